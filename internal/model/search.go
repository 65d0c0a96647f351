package model

import "time"

// 検索リクエストの既定値と上限。
const (
	DefaultPerPage  = 20
	MaxPerPage      = 100
	MaxQueryLength  = 500
	SortByRelevance = "relevance"
	SortByDate      = "date"
	SortByPriority  = "priority"
	SortOrderAsc    = "asc"
	SortOrderDesc   = "desc"
)

// SearchFilters は検索の絞り込み条件。全条件はANDで結合される。
type SearchFilters struct {
	DateFrom        *time.Time `json:"date_from,omitempty"`
	DateTo          *time.Time `json:"date_to,omitempty"` // 指定日を含む
	SourceIDs       []string   `json:"source_ids,omitempty"`
	Categories      []Category `json:"categories,omitempty"`
	Priorities      []Priority `json:"priorities,omitempty"`
	MinRelevance    *int       `json:"min_relevance,omitempty"`
	Keywords        []string   `json:"keywords,omitempty"`
	ExcludeKeywords []string   `json:"exclude_keywords,omitempty"`
	BookmarkedOnly  bool       `json:"bookmarked_only,omitempty"`
}

// SearchQuery は全文検索リクエスト。
// UserID は匿名呼び出しの場合は空。
type SearchQuery struct {
	Query     string
	Filters   SearchFilters
	Page      int
	PerPage   int
	SortBy    string
	SortOrder string
	Highlight bool
	UserID    string
}

// SearchResult は検索結果の1件。
type SearchResult struct {
	ID                     string     `json:"id"`
	Title                  string     `json:"title"`
	Description            string     `json:"description"`
	Content                string     `json:"content"`
	Link                   string     `json:"link"`
	PubDate                *time.Time `json:"pub_date,omitempty"`
	SourceID               string     `json:"source_id"`
	SourceName             string     `json:"source_name"`
	Priority               Priority   `json:"priority"`
	RelevanceScore         int        `json:"relevance_score"`
	Category               Category   `json:"category"`
	Keywords               []string   `json:"keywords"`
	SearchRank             float64    `json:"search_rank"`
	IsBookmarked           bool       `json:"is_bookmarked"`
	HighlightedTitle       string     `json:"highlighted_title,omitempty"`
	HighlightedDescription string     `json:"highlighted_description,omitempty"`
	HighlightedContent     string     `json:"highlighted_content,omitempty"`
}

// FacetCount はファセットの1要素。
type FacetCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Facets はページネーション前の一致集合に対する集計。
type Facets struct {
	Categories []FacetCount `json:"categories"`
	Sources    []FacetCount `json:"sources"`
	Priorities []FacetCount `json:"priorities"`
}

// SearchResultSet は検索レスポンス全体。
type SearchResultSet struct {
	Results        []SearchResult `json:"results"`
	TotalResults   int            `json:"total_results"`
	Page           int            `json:"page"`
	PerPage        int            `json:"per_page"`
	TotalPages     int            `json:"total_pages"`
	Query          string         `json:"query"`
	SearchTimeMs   float64        `json:"search_time_ms"`
	Facets         Facets         `json:"facets"`
	SuggestedTerms []string       `json:"suggested_terms"`
}

// SearchPage はリポジトリが返すページ単位の検索結果。
type SearchPage struct {
	Results []SearchResult
	Total   int
}

// TermCount は検索語とその回数。LastResultsCount は直近の検索でヒットした件数。
type TermCount struct {
	Term             string    `json:"term"`
	Count            int       `json:"count"`
	LastResultsCount int       `json:"last_results_count"`
	LastSearched     time.Time `json:"last_searched,omitempty"`
}

// SearchHistoryEntry はユーザーの検索履歴1件。
type SearchHistoryEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	SearchTerm   string    `json:"search_term"`
	Filters      string    `json:"filters"` // JSONスナップショット
	ResultsCount int       `json:"results_count"`
	SearchedAt   time.Time `json:"searched_at"`
}

// DailySearchCount は日別の検索回数。
type DailySearchCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// SearchAnalytics は検索分析エンドポイントのレスポンス。
type SearchAnalytics struct {
	PopularTerms   []TermCount          `json:"popular_terms"`
	RecentSearches []SearchHistoryEntry `json:"recent_searches"`
	DailyTrends    []DailySearchCount   `json:"daily_trends"`
	TotalSearches  int                  `json:"total_searches"`
	PeriodDays     int                  `json:"period_days"`
}

// SearchSuggestions は検索候補エンドポイントのレスポンス。
type SearchSuggestions struct {
	Suggestions     []string    `json:"suggestions"`
	PopularSearches []TermCount `json:"popular_searches"`
}
