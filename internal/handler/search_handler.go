package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fernandoxavier02/AccountingNews/internal/middleware"
	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// SearchServiceInterface は検索ハンドラーが必要とするサービスインターフェース。
type SearchServiceInterface interface {
	Search(ctx context.Context, q model.SearchQuery) (*model.SearchResultSet, error)
	Suggestions(ctx context.Context, fragment string) (*model.SearchSuggestions, error)
	Analytics(ctx context.Context, userID string, days int) (*model.SearchAnalytics, error)
}

// SearchHandler は全文検索のHTTPハンドラー。匿名アクセスを許可する。
type SearchHandler struct {
	service SearchServiceInterface
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(service SearchServiceInterface) *SearchHandler {
	return &SearchHandler{service: service}
}

// searchRequest は検索リクエストのボディ。
type searchRequest struct {
	Query     string        `json:"query"`
	Filters   searchFilters `json:"filters"`
	Page      int           `json:"page"`
	PerPage   int           `json:"per_page"`
	SortBy    string        `json:"sort_by"`
	SortOrder string        `json:"sort_order"`
	Highlight *bool         `json:"highlight"`
}

// searchFilters の日付は YYYY-MM-DD または RFC3339 で受け付ける。
type searchFilters struct {
	DateFrom        string           `json:"date_from"`
	DateTo          string           `json:"date_to"`
	SourceIDs       []string         `json:"source_ids"`
	Categories      []model.Category `json:"categories"`
	Priorities      []model.Priority `json:"priorities"`
	MinRelevance    *int             `json:"min_relevance"`
	Keywords        []string         `json:"keywords"`
	ExcludeKeywords []string         `json:"exclude_keywords"`
	BookmarkedOnly  bool             `json:"bookmarked_only"`
}

func (f searchFilters) toModel() (model.SearchFilters, error) {
	from, err := parseDate("date_from", f.DateFrom)
	if err != nil {
		return model.SearchFilters{}, err
	}
	to, err := parseDate("date_to", f.DateTo)
	if err != nil {
		return model.SearchFilters{}, err
	}
	return model.SearchFilters{
		DateFrom:        from,
		DateTo:          to,
		SourceIDs:       f.SourceIDs,
		Categories:      f.Categories,
		Priorities:      f.Priorities,
		MinRelevance:    f.MinRelevance,
		Keywords:        f.Keywords,
		ExcludeKeywords: f.ExcludeKeywords,
		BookmarkedOnly:  f.BookmarkedOnly,
	}, nil
}

func parseDate(name, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, model.NewInvalidFilterError(name)
}

// Search は全文検索を実行する。
// POST /api/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	filters, err := req.Filters.toModel()
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// 匿名の場合は空文字
	userID, _ := middleware.UserIDFromContext(r.Context())
	highlight := true
	if req.Highlight != nil {
		highlight = *req.Highlight
	}

	result, err := h.service.Search(r.Context(), model.SearchQuery{
		Query:     req.Query,
		Filters:   filters,
		Page:      req.Page,
		PerPage:   req.PerPage,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
		Highlight: highlight,
		UserID:    userID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Suggestions は入力途中の検索語に対する候補を返す。
// GET /api/search/suggestions?q=
func (h *SearchHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Suggestions(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Analytics は直近の検索分析を返す。
// GET /api/search/analytics?days=
func (h *SearchHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(w, r, "days", 0)
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	result, err := h.service.Analytics(r.Context(), userID, days)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
