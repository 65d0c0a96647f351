package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fernandoxavier02/AccountingNews/internal/bookmark"
	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// BookmarkServiceInterface はブックマークハンドラーが必要とするサービスインターフェース。
type BookmarkServiceInterface interface {
	Save(ctx context.Context, userID, itemID, notes string, tags []string) (*model.Bookmark, error)
	List(ctx context.Context, userID string, p bookmark.ListParams) (*bookmark.Page, error)
	Get(ctx context.Context, userID, id string) (*model.BookmarkWithItem, error)
	Update(ctx context.Context, userID, id string, update model.BookmarkUpdate) (*model.Bookmark, error)
	Delete(ctx context.Context, userID, id string) error
	Stats(ctx context.Context, userID string) (*model.BookmarkStats, error)
}

// BookmarkHandler はブックマーク管理のHTTPハンドラー。全エンドポイントで認証が必要。
type BookmarkHandler struct {
	service BookmarkServiceInterface
}

// NewBookmarkHandler はBookmarkHandlerを生成する。
func NewBookmarkHandler(service BookmarkServiceInterface) *BookmarkHandler {
	return &BookmarkHandler{service: service}
}

type createBookmarkRequest struct {
	FeedItemID string   `json:"feed_item_id"`
	Notes      string   `json:"notes"`
	Tags       []string `json:"tags"`
}

type updateBookmarkRequest struct {
	Notes      *string  `json:"notes"`
	Tags       []string `json:"tags"`
	IsArchived *bool    `json:"is_archived"`
}

type bookmarkResponse struct {
	ID         string        `json:"id"`
	FeedItemID string        `json:"feed_item_id"`
	Notes      string        `json:"notes"`
	Tags       []string      `json:"tags"`
	IsArchived bool          `json:"is_archived"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Item       *itemResponse `json:"item,omitempty"`
}

type bookmarkListResponse struct {
	Bookmarks  []bookmarkResponse `json:"bookmarks"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
	TotalPages int                `json:"total_pages"`
}

func toBookmarkResponse(b *model.Bookmark) bookmarkResponse {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	return bookmarkResponse{
		ID:         b.ID,
		FeedItemID: b.FeedItemID,
		Notes:      b.Notes,
		Tags:       tags,
		IsArchived: b.IsArchived,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func toBookmarkWithItemResponse(b *model.BookmarkWithItem) bookmarkResponse {
	resp := toBookmarkResponse(&b.Bookmark)
	it := toItemResponse(&b.Item)
	resp.Item = &it
	return resp
}

// Create は記事をブックマークする。既存の場合はメモとタグを上書きする。
// POST /api/bookmarks
func (h *BookmarkHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createBookmarkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.service.Save(r.Context(), userID, req.FeedItemID, req.Notes, req.Tags)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookmarkResponse(b))
}

// List はブックマーク一覧を返す。
// GET /api/bookmarks?page=&per_page=&archived=&category=&tag=
func (h *BookmarkHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, ok := queryInt(w, r, "page", 0)
	if !ok {
		return
	}
	perPage, ok := queryInt(w, r, "per_page", 0)
	if !ok {
		return
	}
	archived, ok := queryBool(w, r, "archived")
	if !ok {
		return
	}

	result, err := h.service.List(r.Context(), userID, bookmark.ListParams{
		Archived: archived,
		Category: model.Category(r.URL.Query().Get("category")),
		Tag:      r.URL.Query().Get("tag"),
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := bookmarkListResponse{
		Bookmarks:  make([]bookmarkResponse, len(result.Bookmarks)),
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	}
	for i := range result.Bookmarks {
		resp.Bookmarks[i] = toBookmarkWithItemResponse(&result.Bookmarks[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get はブックマーク詳細を返す。
// GET /api/bookmarks/{id}
func (h *BookmarkHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	b, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookmarkWithItemResponse(b))
}

// Update はブックマークを部分更新する。
// PUT /api/bookmarks/{id}
func (h *BookmarkHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req updateBookmarkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), model.BookmarkUpdate{
		Notes:      req.Notes,
		Tags:       req.Tags,
		IsArchived: req.IsArchived,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookmarkResponse(b))
}

// Delete はブックマークを削除する。
// DELETE /api/bookmarks/{id}
func (h *BookmarkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats はブックマーク集計を返す。
// GET /api/bookmarks/stats
func (h *BookmarkHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
