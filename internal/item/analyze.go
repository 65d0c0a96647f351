package item

import (
	"github.com/fernandoxavier02/AccountingNews/internal/filter"
	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/scoring"
	"github.com/fernandoxavier02/AccountingNews/internal/textnorm"
)

// Analysis は任意の記事に対するフィルタ判定とスコアリング結果。
type Analysis struct {
	Verdict model.FilterVerdict `json:"verdict"`
	Scored  model.ScoredEntry   `json:"scored"`
}

// Analyzer は保存を伴わずに記事を判定する。
type Analyzer struct {
	filter *filter.ContentFilter
	scorer *scoring.Scorer
}

// NewAnalyzer はAnalyzerを生成する。
func NewAnalyzer(contentFilter *filter.ContentFilter, scorer *scoring.Scorer) *Analyzer {
	return &Analyzer{filter: contentFilter, scorer: scorer}
}

// Analyze はHTMLを含みうる記事をプレーンテキスト化し、フィルタ判定とエンリッチを行う。
// 信頼度が0〜100の範囲外の場合は既定値を使う。
func (a *Analyzer) Analyze(entry model.FeedEntry) (*Analysis, error) {
	if entry.Title == "" && entry.Description == "" && entry.Content == "" {
		return nil, model.NewInvalidRequestError("title、description、contentのいずれかを指定してください")
	}
	if entry.SourceCredibility < 0 || entry.SourceCredibility > 100 {
		entry.SourceCredibility = model.DefaultCredibility
	}
	entry.Description = textnorm.PlainText(entry.Description)
	entry.Content = textnorm.PlainText(entry.Content)

	return &Analysis{
		Verdict: a.filter.Filter(entry.Title, entry.Description, entry.Content),
		Scored:  a.scorer.Enrich(entry),
	}, nil
}
