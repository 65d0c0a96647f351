package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fernandoxavier02/AccountingNews/internal/metrics"
	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/repository"
	"github.com/fernandoxavier02/AccountingNews/internal/textnorm"
)

const (
	recordTimeout         = 5 * time.Second
	suggestionLimit       = 10
	zeroResultSuggestions = 5
	popularTermsLimit     = 20
	recentSearchesLimit   = 10
	defaultAnalyticsDays  = 7
	maxAnalyticsDays      = 365
)

// Recorder は検索メトリクスの記録先。
type Recorder interface {
	RecordSearch(outcome string, duration time.Duration)
	RecordAnalyticsFailure(kind string)
}

// Service は全文検索、検索候補、検索分析を提供する。
// 検索語カウンタと検索履歴の記録は非同期に行い、失敗しても検索結果には影響しない。
type Service struct {
	repo    repository.SearchRepository
	terms   repository.TermCounter
	history repository.SearchHistoryRepository
	metrics Recorder
	logger  *slog.Logger
	now     func() time.Time

	wg sync.WaitGroup
}

// NewService はServiceを生成する。metricsがnilの場合は記録しない。
func NewService(
	repo repository.SearchRepository,
	terms repository.TermCounter,
	history repository.SearchHistoryRepository,
	m Recorder,
	logger *slog.Logger,
) *Service {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return &Service{
		repo:    repo,
		terms:   terms,
		history: history,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Search は検索を実行し、結果ページ・ファセット・ハイライトを返す。
func (s *Service) Search(ctx context.Context, q model.SearchQuery) (*model.SearchResultSet, error) {
	start := time.Now()

	q, err := normalizeQuery(q)
	if err != nil {
		s.metrics.RecordSearch(metrics.SearchOutcomeInvalid, 0)
		return nil, err
	}
	tsQuery, err := Sanitize(q.Query)
	if err != nil {
		s.metrics.RecordSearch(metrics.SearchOutcomeInvalid, 0)
		return nil, err
	}

	page, err := s.repo.Search(ctx, q, tsQuery)
	if err != nil {
		s.metrics.RecordSearch(metrics.SearchOutcomeError, 0)
		return nil, fmt.Errorf("検索の実行に失敗しました: %w", err)
	}
	facets, err := s.repo.Facets(ctx, q, tsQuery)
	if err != nil {
		s.metrics.RecordSearch(metrics.SearchOutcomeError, 0)
		return nil, fmt.Errorf("ファセットの集計に失敗しました: %w", err)
	}

	results := page.Results
	if results == nil {
		results = []model.SearchResult{}
	}
	if q.Highlight {
		terms := Terms(tsQuery)
		for i := range results {
			results[i].HighlightedTitle = Highlight(results[i].Title, terms)
			results[i].HighlightedDescription = Highlight(results[i].Description, terms)
			results[i].HighlightedContent = Highlight(results[i].Content, terms)
		}
	}

	set := &model.SearchResultSet{
		Results:        results,
		TotalResults:   page.Total,
		Page:           q.Page,
		PerPage:        q.PerPage,
		TotalPages:     (page.Total + q.PerPage - 1) / q.PerPage,
		Query:          q.Query,
		Facets:         *facets,
		SuggestedTerms: []string{},
	}
	if page.Total == 0 {
		set.SuggestedTerms = s.relatedTerms(ctx, tsQuery)
	}

	elapsed := time.Since(start)
	set.SearchTimeMs = float64(elapsed.Microseconds()) / 1000
	s.metrics.RecordSearch(metrics.SearchOutcomeOK, elapsed)

	s.recordAsync(ctx, q, page.Total)

	return set, nil
}

// relatedTerms は結果が0件のときに提示する過去の検索語を返す。取得失敗は無視する。
func (s *Service) relatedTerms(ctx context.Context, tsQuery string) []string {
	out := []string{}
	terms := Terms(tsQuery)
	if len(terms) == 0 {
		return out
	}
	found, err := s.terms.SuggestTerms(ctx, terms[0], zeroResultSuggestions)
	if err != nil {
		s.logger.Warn("関連検索語の取得に失敗しました", slog.String("error", err.Error()))
		return out
	}
	for _, tc := range found {
		out = append(out, tc.Term)
	}
	return out
}

// recordAsync は検索語カウンタと検索履歴をバックグラウンドで記録する。
// リクエストのキャンセルとは独立して実行する。
func (s *Service) recordAsync(ctx context.Context, q model.SearchQuery, total int) {
	bg := context.WithoutCancel(ctx)
	term := strings.ToLower(strings.TrimSpace(q.Query))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(bg, recordTimeout)
		defer cancel()

		if err := s.terms.IncrementTerm(ctx, term, total); err != nil {
			s.metrics.RecordAnalyticsFailure(metrics.AnalyticsKindTerm)
			s.logger.Warn("検索語カウンタの記録に失敗しました",
				slog.String("term", term),
				slog.String("error", err.Error()),
			)
		}

		if q.UserID == "" || s.history == nil {
			return
		}
		filters, err := json.Marshal(q.Filters)
		if err != nil {
			filters = []byte("{}")
		}
		entry := &model.SearchHistoryEntry{
			UserID:       q.UserID,
			SearchTerm:   q.Query,
			Filters:      string(filters),
			ResultsCount: total,
		}
		if err := s.history.RecordHistory(ctx, entry); err != nil {
			s.metrics.RecordAnalyticsFailure(metrics.AnalyticsKindHistory)
			s.logger.Warn("検索履歴の記録に失敗しました",
				slog.String("user_id", q.UserID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait は実行中の非同期記録が終わるまで待つ。シャットダウン時とテストで使用する。
func (s *Service) Wait() {
	s.wg.Wait()
}

// Suggestions はfragmentを含む過去の検索語と記事キーワードを最大10件返す。
// 過去の検索語を優先し、重複は除く。
func (s *Service) Suggestions(ctx context.Context, fragment string) (*model.SearchSuggestions, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, model.NewInvalidQueryError("検索候補の入力が空です")
	}
	if len(fragment) > model.MaxQueryLength {
		return nil, model.NewInvalidQueryError("検索候補の入力が長すぎます")
	}

	popular, err := s.terms.SuggestTerms(ctx, fragment, suggestionLimit)
	if err != nil {
		return nil, fmt.Errorf("検索語候補の取得に失敗しました: %w", err)
	}
	keywords, err := s.repo.SuggestKeywords(ctx, textnorm.Normalize(fragment), suggestionLimit)
	if err != nil {
		return nil, fmt.Errorf("キーワード候補の取得に失敗しました: %w", err)
	}

	seen := make(map[string]bool)
	suggestions := []string{}
	add := func(term string) {
		if seen[term] || len(suggestions) >= suggestionLimit {
			return
		}
		seen[term] = true
		suggestions = append(suggestions, term)
	}
	for _, tc := range popular {
		add(tc.Term)
	}
	for _, kw := range keywords {
		add(kw)
	}

	if popular == nil {
		popular = []model.TermCount{}
	}
	return &model.SearchSuggestions{Suggestions: suggestions, PopularSearches: popular}, nil
}

// Analytics は直近days日間の検索分析を返す。
// daysが0の場合は7日間。userIDが空の場合、個人の検索履歴は含めない。
func (s *Service) Analytics(ctx context.Context, userID string, days int) (*model.SearchAnalytics, error) {
	if days == 0 {
		days = defaultAnalyticsDays
	}
	if days < 1 || days > maxAnalyticsDays {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("期間は1〜%d日で指定してください", maxAnalyticsDays))
	}
	since := s.now().AddDate(0, 0, -days)

	popular, err := s.terms.PopularTerms(ctx, since, popularTermsLimit)
	if err != nil {
		return nil, fmt.Errorf("人気検索語の取得に失敗しました: %w", err)
	}

	out := &model.SearchAnalytics{
		PopularTerms:   popular,
		RecentSearches: []model.SearchHistoryEntry{},
		DailyTrends:    []model.DailySearchCount{},
		PeriodDays:     days,
	}
	if out.PopularTerms == nil {
		out.PopularTerms = []model.TermCount{}
	}
	if s.history == nil {
		return out, nil
	}

	if userID != "" {
		recent, err := s.history.RecentSearches(ctx, userID, since, recentSearchesLimit)
		if err != nil {
			return nil, fmt.Errorf("検索履歴の取得に失敗しました: %w", err)
		}
		if recent != nil {
			out.RecentSearches = recent
		}
	}
	trends, err := s.history.DailyTrends(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("日別検索回数の取得に失敗しました: %w", err)
	}
	if trends != nil {
		out.DailyTrends = trends
	}
	if out.TotalSearches, err = s.history.TotalSearches(ctx, since); err != nil {
		return nil, fmt.Errorf("検索回数の取得に失敗しました: %w", err)
	}
	return out, nil
}

// normalizeQuery は既定値を補完し、検索条件を検証する。
// ゼロ値のPage・PerPage・SortBy・SortOrderは既定値として扱う。
func normalizeQuery(q model.SearchQuery) (model.SearchQuery, error) {
	if len(q.Query) > model.MaxQueryLength {
		return q, model.NewInvalidQueryError(fmt.Sprintf("検索語は%d文字以内で指定してください", model.MaxQueryLength))
	}

	if q.Page == 0 {
		q.Page = 1
	}
	if q.Page < 1 {
		return q, model.NewInvalidQueryError("pageは1以上で指定してください")
	}
	if q.PerPage == 0 {
		q.PerPage = model.DefaultPerPage
	}
	if q.PerPage < 1 || q.PerPage > model.MaxPerPage {
		return q, model.NewInvalidQueryError(fmt.Sprintf("per_pageは1〜%dで指定してください", model.MaxPerPage))
	}

	switch q.SortBy {
	case "":
		q.SortBy = model.SortByRelevance
	case model.SortByRelevance, model.SortByDate, model.SortByPriority:
	default:
		return q, model.NewInvalidQueryError(fmt.Sprintf("不明な並び替えキーです: %s", q.SortBy))
	}
	switch q.SortOrder {
	case "":
		q.SortOrder = model.SortOrderDesc
	case model.SortOrderAsc, model.SortOrderDesc:
	default:
		return q, model.NewInvalidQueryError(fmt.Sprintf("不明な並び順です: %s", q.SortOrder))
	}

	f := q.Filters
	for _, id := range f.SourceIDs {
		if _, err := uuid.Parse(id); err != nil {
			return q, model.NewInvalidFilterError("source_ids")
		}
	}
	for _, c := range f.Categories {
		if !c.Valid() {
			return q, model.NewInvalidFilterError("categories")
		}
	}
	for _, p := range f.Priorities {
		if !p.Valid() {
			return q, model.NewInvalidFilterError("priorities")
		}
	}
	if f.MinRelevance != nil && (*f.MinRelevance < 0 || *f.MinRelevance > 100) {
		return q, model.NewInvalidFilterError("min_relevance")
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return q, model.NewInvalidFilterError("date_from")
	}
	// 記事キーワードは正規化済みの語で保存されている
	f.Keywords = normalizeKeywords(f.Keywords)
	f.ExcludeKeywords = normalizeKeywords(f.ExcludeKeywords)
	q.Filters = f

	return q, nil
}

func normalizeKeywords(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, kw := range in {
		if n := textnorm.Normalize(kw); n != "" {
			out = append(out, n)
		}
	}
	return out
}
