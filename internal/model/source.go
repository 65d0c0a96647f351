package model

import "time"

// DefaultCredibility はソースの信頼度スコアが未設定の場合の既定値。
const DefaultCredibility = 70

// Source はRSSフィードの配信元を表す。
// 信頼度スコア（0〜100）は優先度分類に使用される。
type Source struct {
	ID                string
	Name              string
	URL               string
	Description       string
	CredibilityScore  int
	IsActive          bool
	LastFetchAt       *time.Time
	LastFetchStatus   FetchStatus
	LastErrorMessage  string
	FetchCount        int
	SuccessCount      int
	ConsecutiveErrors int
	NextFetchAt       time.Time
	ETag              string
	LastModified      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FetchStatus はソースの直近フェッチ状態を表す。
type FetchStatus string

const (
	// FetchStatusPending は一度もフェッチされていない状態。
	FetchStatusPending FetchStatus = "pending"
	// FetchStatusProcessing はフェッチ処理中の状態。
	FetchStatusProcessing FetchStatus = "processing"
	// FetchStatusSuccess は直近のフェッチが成功した状態。
	FetchStatusSuccess FetchStatus = "success"
	// FetchStatusError は直近のフェッチが失敗した状態。
	FetchStatusError FetchStatus = "error"
	// FetchStatusTimeout は直近のフェッチがタイムアウトした状態。
	FetchStatusTimeout FetchStatus = "timeout"
	// FetchStatusStopped は恒久的なエラーでフェッチを停止した状態。
	FetchStatusStopped FetchStatus = "stopped"
)

// SourceListFilter はソース一覧取得時の絞り込み条件。
type SourceListFilter struct {
	ActiveOnly     bool
	MinCredibility *int
	OrderBy        string // name, credibility_score, created_at, last_fetch_at
}

// SourceStats はソース全体の集計値。
type SourceStats struct {
	TotalSources      int     `json:"total_sources"`
	ActiveSources     int     `json:"active_sources"`
	AvgCredibility    float64 `json:"avg_credibility"`
	HighCredibility   int     `json:"high_credibility_sources"` // 信頼度80以上
	FailingSources    int     `json:"failing_sources"`
	TotalFetches      int     `json:"total_fetches"`
	SuccessfulFetches int     `json:"successful_fetches"`
}
