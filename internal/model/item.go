package model

import "time"

// Priority は記事の優先度を表す。
type Priority string

const (
	// PriorityHigh は最終スコア80以上。
	PriorityHigh Priority = "high"
	// PriorityMedium は最終スコア50以上80未満。
	PriorityMedium Priority = "medium"
	// PriorityLow はそれ以外。
	PriorityLow Priority = "low"
)

// Valid は定義済みの優先度かどうかを返す。
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Category は記事のトピック分類を表す。
type Category string

const (
	CategoryTaxReform   Category = "tax_reform"
	CategoryLegislation Category = "legislation"
	CategoryEconomy     Category = "economy"
	CategoryRegulation  Category = "regulation"
	CategoryGeneral     Category = "general"
)

// Valid は定義済みのカテゴリかどうかを返す。
func (c Category) Valid() bool {
	switch c {
	case CategoryTaxReform, CategoryLegislation, CategoryEconomy, CategoryRegulation, CategoryGeneral:
		return true
	}
	return false
}

// FeedEntry はスコアリング対象となる1件のフィード記事。
// Description と Content はプレーンテキスト化済みであることを想定する。
type FeedEntry struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Content           string     `json:"content"`
	SourceName        string     `json:"source_name"`
	SourceCredibility int        `json:"source_credibility"`
	PubDate           *time.Time `json:"pub_date,omitempty"`
	IsDateEstimated   bool       `json:"is_date_estimated"`
}

// ScoredEntry はスコアリング結果を付与したFeedEntry。
type ScoredEntry struct {
	FeedEntry
	RelevanceScore int      `json:"relevance_score"`
	Priority       Priority `json:"priority"`
	Category       Category `json:"category"`
	Keywords       []string `json:"keywords"`
}

// FilterVerdict はコンテンツフィルタの判定結果。
// FilterReason は IsRelevant が false の場合のみ設定される。
type FilterVerdict struct {
	IsRelevant      bool     `json:"is_relevant"`
	RelevanceScore  int      `json:"relevance_score"`
	MatchedKeywords []string `json:"matched_keywords"`
	FilterReason    string   `json:"filter_reason,omitempty"`
}

// FilteredEntry はバッチフィルタを通過した記事とその判定スコア。
type FilteredEntry struct {
	FeedEntry
	RelevanceScore  int      `json:"relevance_score"`
	MatchedKeywords []string `json:"matched_keywords"`
	// Index はバッチ入力内での位置。
	Index int `json:"-"`
}

// FeedItem は永続化された記事を表す。
type FeedItem struct {
	ID              string
	SourceID        string
	SourceName      string
	GUID            string // 重複排除キー
	Title           string
	Description     string // サニタイズ済みHTML
	Content         string // サニタイズ済みHTML
	Link            string
	PubDate         *time.Time
	IsDateEstimated bool
	Priority        Priority
	RelevanceScore  int
	Keywords        []string
	Category        Category
	IsNew           bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ParsedItem はフィードパーサーから取得した未保存の記事データを表す。
// ワーカーがフィードをパースした後、IngestServiceに渡される。
type ParsedItem struct {
	GUID        string
	Title       string
	Link        string
	Description string     // 未サニタイズ
	Content     string     // 未サニタイズのHTML
	PubDate     *time.Time
}

// ItemListFilter は記事一覧の絞り込み条件。
type ItemListFilter struct {
	SourceID string
	Priority Priority
	Category Category
	// SearchKeywords の各語はタイトル・概要・本文のいずれかに部分一致しなければならない。
	SearchKeywords []string
	Limit          int
	Offset         int
}

// ItemPage は記事一覧の1ページ分と、条件に一致する総件数。
type ItemPage struct {
	Items      []*FeedItem
	TotalCount int
	Limit      int
	Offset     int
}

// HasNext は次のページが存在するかを返す。
func (p *ItemPage) HasNext() bool {
	return p.Offset+p.Limit < p.TotalCount
}

// ItemScores はリスコア時に更新するスコア列。
type ItemScores struct {
	RelevanceScore int
	Priority       Priority
	Category       Category
	Keywords       []string
}

// IngestResult は1ソース分の取り込み結果。
type IngestResult struct {
	Admitted   int
	Inserted   int
	Duplicates int
	Rejected   int
}

// ItemStats は記事全体の集計値。
type ItemStats struct {
	TotalItems        int     `json:"total_items"`
	NewItems          int     `json:"new_items"`
	HighPriorityItems int     `json:"high_priority_items"`
	TodayItems        int     `json:"today_items"`
	ActiveSources     int     `json:"active_sources"`
	AvgRelevanceScore float64 `json:"avg_relevance_score"`
	TaxReformItems    int     `json:"tax_reform_items"`
	LegislationItems  int     `json:"legislation_items"`
}
