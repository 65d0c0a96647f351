// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// SourceRepository はRSS配信元の永続化インターフェース。
type SourceRepository interface {
	// List は条件に一致する配信元を返す。
	List(ctx context.Context, filter model.SourceListFilter) ([]*model.Source, error)

	// FindByID は指定IDの配信元を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Source, error)

	// Upsert はURLをキーに配信元を作成または更新する。
	// 作成時は source.ID を設定する。
	Upsert(ctx context.Context, source *model.Source) error

	// Stats は配信元全体の集計を返す。
	Stats(ctx context.Context) (*model.SourceStats, error)

	// ListDueForFetch はフェッチ対象の配信元を取得する。
	// is_active かつ next_fetch_at <= now() かつ停止していない配信元を
	// FOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDueForFetch(ctx context.Context) ([]*model.Source, error)

	// UpdateFetchState は配信元のフェッチ状態と統計を更新する。
	UpdateFetchState(ctx context.Context, source *model.Source) error
}

// ItemRepository は記事データの永続化インターフェース。
type ItemRepository interface {
	// InsertIfAbsent はguidが未登録の場合のみ記事を作成する。
	// 作成した場合はtrue、既に存在した場合はfalseを返す。既存行は変更しない。
	InsertIfAbsent(ctx context.Context, item *model.FeedItem) (bool, error)

	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.FeedItem, error)

	// List は条件に一致する記事を公開日時の降順で返す。
	List(ctx context.Context, filter model.ItemListFilter) ([]*model.FeedItem, error)

	// Count は条件に一致する記事の総数を返す。LimitとOffsetは無視する。
	Count(ctx context.Context, filter model.ItemListFilter) (int, error)

	// Stats は記事全体の集計を返す。
	Stats(ctx context.Context) (*model.ItemStats, error)

	// ListForRescore はidがafterIDより大きい記事をid昇順でlimit件返す。
	ListForRescore(ctx context.Context, afterID string, limit int) ([]*model.FeedItem, error)

	// UpdateScores は記事のスコア列のみを更新する。
	UpdateScores(ctx context.Context, id string, scores model.ItemScores) error
}

// SearchRepository は全文検索の永続化インターフェース。
// tsQuery はサニタイズ済みの to_tsquery 式。
type SearchRepository interface {
	// Search は一致した記事の1ページ分と総件数を返す。
	Search(ctx context.Context, query model.SearchQuery, tsQuery string) (*model.SearchPage, error)

	// Facets はページネーション前の一致集合に対するファセットを返す。
	Facets(ctx context.Context, query model.SearchQuery, tsQuery string) (*model.Facets, error)

	// SuggestKeywords は記事キーワードのうちfragmentを含むものを出現頻度順に返す。
	SuggestKeywords(ctx context.Context, fragment string, limit int) ([]string, error)
}

// TermCounter は検索語の全体カウンタ。
type TermCounter interface {
	// IncrementTerm は検索語の回数を1増やし、直近の結果件数を記録する。
	IncrementTerm(ctx context.Context, term string, resultsCount int) error

	// PopularTerms はsince以降に検索された語を回数の降順で返す。
	PopularTerms(ctx context.Context, since time.Time, limit int) ([]model.TermCount, error)

	// SuggestTerms はfragmentを含む検索語を回数の降順で返す。
	SuggestTerms(ctx context.Context, fragment string, limit int) ([]model.TermCount, error)
}

// SearchHistoryRepository はユーザーごとの検索履歴の永続化インターフェース。
type SearchHistoryRepository interface {
	// RecordHistory は検索履歴を1件追加する。
	RecordHistory(ctx context.Context, entry *model.SearchHistoryEntry) error

	// RecentSearches はユーザーのsince以降の検索履歴を新しい順に返す。
	RecentSearches(ctx context.Context, userID string, since time.Time, limit int) ([]model.SearchHistoryEntry, error)

	// DailyTrends はsince以降の日別検索回数を新しい日付順に返す。
	DailyTrends(ctx context.Context, since time.Time) ([]model.DailySearchCount, error)

	// TotalSearches はsince以降の検索回数を返す。
	TotalSearches(ctx context.Context, since time.Time) (int, error)
}

// BookmarkRepository はブックマークの永続化インターフェース。
// 全操作はuserIDで所有者を限定する。
type BookmarkRepository interface {
	// Upsert は(user_id, feed_item_id)をキーにブックマークを作成または更新する。
	Upsert(ctx context.Context, bookmark *model.Bookmark) (*model.Bookmark, error)

	// List は条件に一致するブックマークを作成日時の降順で返す。第2戻り値は総件数。
	List(ctx context.Context, userID string, filter model.BookmarkListFilter) ([]model.BookmarkWithItem, int, error)

	// FindByID は指定IDのブックマークを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.BookmarkWithItem, error)

	// Update はブックマークを部分更新する。見つからない場合はnilを返す。
	Update(ctx context.Context, userID, id string, update model.BookmarkUpdate) (*model.Bookmark, error)

	// Delete はブックマークを削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, userID, id string) (bool, error)

	// Stats はユーザーのブックマーク集計を返す。
	Stats(ctx context.Context, userID string) (*model.BookmarkStats, error)
}
