package model

import "time"

// Bookmark はユーザーが保存した記事を表す。
// (user_id, feed_item_id) の組は一意。
type Bookmark struct {
	ID         string
	UserID     string
	FeedItemID string
	Notes      string
	Tags       []string
	IsArchived bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BookmarkWithItem はブックマークと対象記事を結合したモデル。
type BookmarkWithItem struct {
	Bookmark
	Item FeedItem
}

// BookmarkUpdate はブックマークの部分更新。nilフィールドは変更しない。
type BookmarkUpdate struct {
	Notes      *string
	Tags       []string
	IsArchived *bool
}

// BookmarkListFilter はブックマーク一覧の絞り込み条件。
type BookmarkListFilter struct {
	Archived *bool
	Category Category
	Tag      string
	Limit    int
	Offset   int
}

// BookmarkStats はユーザーのブックマーク集計。
type BookmarkStats struct {
	TotalBookmarks    int          `json:"total_bookmarks"`
	ArchivedBookmarks int          `json:"archived_bookmarks"`
	ActiveBookmarks   int          `json:"active_bookmarks"`
	ByCategory        []FacetCount `json:"by_category"`
	ByPriority        []FacetCount `json:"by_priority"`
	TopTags           []FacetCount `json:"top_tags"`
}
