// Package bookmark はユーザーごとの記事ブックマークを管理する。
package bookmark

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/repository"
)

const (
	maxTags       = 20
	maxTagLength  = 50
	maxNoteLength = 2000
)

// ItemFinder は記事の存在確認に使う。
type ItemFinder interface {
	FindByID(ctx context.Context, id string) (*model.FeedItem, error)
}

// Page はブックマーク一覧の1ページ。
type Page struct {
	Bookmarks  []model.BookmarkWithItem
	Total      int
	Page       int
	PerPage    int
	TotalPages int
}

// ListParams はブックマーク一覧の取得条件。
type ListParams struct {
	Archived *bool
	Category model.Category
	Tag      string
	Page     int
	PerPage  int
}

// Service はブックマーク操作のサービス層。全操作はuserIDに限定される。
type Service struct {
	repo  repository.BookmarkRepository
	items ItemFinder
}

// NewService はServiceを生成する。
func NewService(repo repository.BookmarkRepository, items ItemFinder) *Service {
	return &Service{repo: repo, items: items}
}

// Save は記事をブックマークする。既にブックマーク済みの場合はメモとタグを上書きする。
func (s *Service) Save(ctx context.Context, userID, itemID, notes string, tags []string) (*model.Bookmark, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, model.NewInvalidRequestError("feed_item_idは必須です")
	}
	if err := validateNotes(notes); err != nil {
		return nil, err
	}
	normalized, err := normalizeTags(tags)
	if err != nil {
		return nil, err
	}

	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(itemID)
	}

	return s.repo.Upsert(ctx, &model.Bookmark{
		UserID:     userID,
		FeedItemID: itemID,
		Notes:      notes,
		Tags:       normalized,
	})
}

// List はユーザーのブックマークを作成日時の降順でページ単位に返す。
func (s *Service) List(ctx context.Context, userID string, p ListParams) (*Page, error) {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PerPage == 0 {
		p.PerPage = model.DefaultPerPage
	}
	if p.Page < 1 {
		return nil, model.NewInvalidRequestError("pageは1以上で指定してください")
	}
	if p.PerPage < 1 || p.PerPage > model.MaxPerPage {
		return nil, model.NewInvalidRequestError("per_pageは1〜100で指定してください")
	}
	if p.Category != "" && !p.Category.Valid() {
		return nil, model.NewInvalidFilterError("category")
	}

	rows, total, err := s.repo.List(ctx, userID, model.BookmarkListFilter{
		Archived: p.Archived,
		Category: p.Category,
		Tag:      strings.TrimSpace(p.Tag),
		Limit:    p.PerPage,
		Offset:   (p.Page - 1) * p.PerPage,
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []model.BookmarkWithItem{}
	}
	return &Page{
		Bookmarks:  rows,
		Total:      total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: (total + p.PerPage - 1) / p.PerPage,
	}, nil
}

// Get は指定IDのブックマークを返す。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.BookmarkWithItem, error) {
	b, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, model.NewBookmarkNotFoundError(id)
	}
	return b, nil
}

// Update はブックマークのメモ、タグ、アーカイブ状態を部分更新する。
func (s *Service) Update(ctx context.Context, userID, id string, update model.BookmarkUpdate) (*model.Bookmark, error) {
	if update.Notes == nil && update.Tags == nil && update.IsArchived == nil {
		return nil, model.NewInvalidRequestError("更新する項目がありません")
	}
	if update.Notes != nil {
		if err := validateNotes(*update.Notes); err != nil {
			return nil, err
		}
	}
	if update.Tags != nil {
		tags, err := normalizeTags(update.Tags)
		if err != nil {
			return nil, err
		}
		update.Tags = tags
	}

	b, err := s.repo.Update(ctx, userID, id, update)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, model.NewBookmarkNotFoundError(id)
	}
	return b, nil
}

// Delete はブックマークを削除する。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return model.NewBookmarkNotFoundError(id)
	}
	return nil
}

// Stats はユーザーのブックマーク集計を返す。
func (s *Service) Stats(ctx context.Context, userID string) (*model.BookmarkStats, error) {
	return s.repo.Stats(ctx, userID)
}

func validateNotes(notes string) error {
	if utf8.RuneCountInString(notes) > maxNoteLength {
		return model.NewInvalidRequestError("notesは2000文字以内で指定してください")
	}
	return nil
}

// normalizeTags は前後の空白を除去し、空のタグと重複を取り除く。
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		if utf8.RuneCountInString(t) > maxTagLength {
			return nil, model.NewInvalidRequestError("タグは50文字以内で指定してください")
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > maxTags {
		return nil, model.NewInvalidRequestError("タグは20個以内で指定してください")
	}
	return out, nil
}
