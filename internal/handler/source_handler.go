package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// SourceServiceInterface は配信元ハンドラーが必要とするサービスインターフェース。
type SourceServiceInterface interface {
	List(ctx context.Context, filter model.SourceListFilter) ([]*model.Source, error)
	Stats(ctx context.Context) (*model.SourceStats, error)
}

// SourceHandler は配信元参照のHTTPハンドラー。
type SourceHandler struct {
	service SourceServiceInterface
}

// NewSourceHandler はSourceHandlerを生成する。
func NewSourceHandler(service SourceServiceInterface) *SourceHandler {
	return &SourceHandler{service: service}
}

// sourceResponse は配信元のAPIレスポンス。ETag等の内部状態は含めない。
type sourceResponse struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	URL              string            `json:"url"`
	Description      string            `json:"description"`
	CredibilityScore int               `json:"credibility_score"`
	IsActive         bool              `json:"is_active"`
	LastFetchAt      *time.Time        `json:"last_fetch_at,omitempty"`
	LastFetchStatus  model.FetchStatus `json:"last_fetch_status"`
	LastErrorMessage string            `json:"last_error_message,omitempty"`
	FetchCount       int               `json:"fetch_count"`
	SuccessCount     int               `json:"success_count"`
	CreatedAt        time.Time         `json:"created_at"`
}

// List は配信元一覧を返す。
// GET /api/sources?active_only=&min_credibility=&order_by=
func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly, ok := queryBool(w, r, "active_only")
	if !ok {
		return
	}
	filter := model.SourceListFilter{OrderBy: r.URL.Query().Get("order_by")}
	if activeOnly != nil {
		filter.ActiveOnly = *activeOnly
	}
	if r.URL.Query().Has("min_credibility") {
		v, ok := queryInt(w, r, "min_credibility", 0)
		if !ok {
			return
		}
		filter.MinCredibility = &v
	}
	h.list(w, r, filter)
}

// ListPublic は認証なしで有効な配信元の一覧を返す。
// GET /api/public/sources
func (h *SourceHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.SourceListFilter{ActiveOnly: true, OrderBy: "credibility_score"})
}

func (h *SourceHandler) list(w http.ResponseWriter, r *http.Request, filter model.SourceListFilter) {
	sources, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	out := make([]sourceResponse, len(sources))
	for i, s := range sources {
		out[i] = sourceResponse{
			ID:               s.ID,
			Name:             s.Name,
			URL:              s.URL,
			Description:      s.Description,
			CredibilityScore: s.CredibilityScore,
			IsActive:         s.IsActive,
			LastFetchAt:      s.LastFetchAt,
			LastFetchStatus:  s.LastFetchStatus,
			LastErrorMessage: s.LastErrorMessage,
			FetchCount:       s.FetchCount,
			SuccessCount:     s.SuccessCount,
			CreatedAt:        s.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Stats は配信元全体の集計を返す。
// GET /api/sources/stats
func (h *SourceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
