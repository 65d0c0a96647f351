package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// ItemServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type ItemServiceInterface interface {
	ListItems(ctx context.Context, filter model.ItemListFilter) (*model.ItemPage, error)
	GetItem(ctx context.Context, id string) (*model.FeedItem, error)
	Stats(ctx context.Context) (*model.ItemStats, error)
}

// ItemHandler は記事参照のHTTPハンドラー。
type ItemHandler struct {
	service ItemServiceInterface
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemServiceInterface) *ItemHandler {
	return &ItemHandler{service: service}
}

// itemResponse は記事のAPIレスポンス。
type itemResponse struct {
	ID              string         `json:"id"`
	SourceID        string         `json:"source_id"`
	SourceName      string         `json:"source_name"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Content         string         `json:"content"`
	Link            string         `json:"link"`
	PubDate         *time.Time     `json:"pub_date,omitempty"`
	IsDateEstimated bool           `json:"is_date_estimated"`
	Priority        model.Priority `json:"priority"`
	RelevanceScore  int            `json:"relevance_score"`
	Keywords        []string       `json:"keywords"`
	Category        model.Category `json:"category"`
	IsNew           bool           `json:"is_new"`
	CreatedAt       time.Time      `json:"created_at"`
}

// itemListResponse は記事一覧のAPIレスポンス。
type itemListResponse struct {
	Items      []itemResponse `json:"items"`
	TotalCount int            `json:"total_count"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset"`
	HasNext    bool           `json:"has_next"`
}

func toItemResponse(it *model.FeedItem) itemResponse {
	keywords := it.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return itemResponse{
		ID:              it.ID,
		SourceID:        it.SourceID,
		SourceName:      it.SourceName,
		Title:           it.Title,
		Description:     it.Description,
		Content:         it.Content,
		Link:            it.Link,
		PubDate:         it.PubDate,
		IsDateEstimated: it.IsDateEstimated,
		Priority:        it.Priority,
		RelevanceScore:  it.RelevanceScore,
		Keywords:        keywords,
		Category:        it.Category,
		IsNew:           it.IsNew,
		CreatedAt:       it.CreatedAt,
	}
}

// ListItems は記事一覧を公開日時の降順で返す。
// search_keywordsは空白区切りで、全ての語がタイトル・概要・本文のいずれかに含まれる記事に絞り込む。
// GET /api/items?source_id=&priority=&category=&search_keywords=&limit=&offset=
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	q := r.URL.Query()

	page, err := h.service.ListItems(r.Context(), model.ItemListFilter{
		SourceID:       q.Get("source_id"),
		Priority:       model.Priority(q.Get("priority")),
		Category:       model.Category(q.Get("category")),
		SearchKeywords: strings.Fields(q.Get("search_keywords")),
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	out := itemListResponse{
		Items:      make([]itemResponse, len(page.Items)),
		TotalCount: page.TotalCount,
		Limit:      page.Limit,
		Offset:     page.Offset,
		HasNext:    page.HasNext(),
	}
	for i, it := range page.Items {
		out.Items[i] = toItemResponse(it)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetItem は記事詳細を返す。
// GET /api/items/{id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.service.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(it))
}

// Stats は記事全体の集計を返す。
// GET /api/items/stats
func (h *ItemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
