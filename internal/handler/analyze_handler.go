package handler

import (
	"net/http"
	"time"

	"github.com/fernandoxavier02/AccountingNews/internal/item"
	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// AnalyzerInterface は任意の記事を判定する。
type AnalyzerInterface interface {
	Analyze(entry model.FeedEntry) (*item.Analysis, error)
}

// AnalyzeHandler は保存を伴わない記事判定のHTTPハンドラー。
type AnalyzeHandler struct {
	analyzer AnalyzerInterface
}

// NewAnalyzeHandler はAnalyzeHandlerを生成する。
func NewAnalyzeHandler(analyzer AnalyzerInterface) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: analyzer}
}

type analyzeRequest struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Content           string     `json:"content"`
	SourceName        string     `json:"source_name"`
	SourceCredibility *int       `json:"source_credibility"`
	PubDate           *time.Time `json:"pub_date"`
}

// Analyze はコンテンツフィルタとスコアリングを実行して結果を返す。
// POST /api/analyze
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cred := model.DefaultCredibility
	if req.SourceCredibility != nil {
		cred = *req.SourceCredibility
	}

	result, err := h.analyzer.Analyze(model.FeedEntry{
		Title:             req.Title,
		Description:       req.Description,
		Content:           req.Content,
		SourceName:        req.SourceName,
		SourceCredibility: cred,
		PubDate:           req.PubDate,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
