package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// PostgresSearchLogRepo は検索語カウンタと検索履歴をPostgreSQLに保存するリポジトリ。
type PostgresSearchLogRepo struct {
	db *sql.DB
}

// NewPostgresSearchLogRepo はPostgresSearchLogRepoを生成する。
func NewPostgresSearchLogRepo(db *sql.DB) *PostgresSearchLogRepo {
	return &PostgresSearchLogRepo{db: db}
}

// IncrementTerm は検索語の回数を1増やし、直近の結果件数を記録する。
func (r *PostgresSearchLogRepo) IncrementTerm(ctx context.Context, term string, resultsCount int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO search_analytics (search_term, search_count, results_count, last_searched)
		 VALUES ($1, 1, $2, now())
		 ON CONFLICT (search_term) DO UPDATE SET
		    search_count = search_analytics.search_count + 1,
		    results_count = EXCLUDED.results_count,
		    last_searched = now()`,
		strings.ToLower(term), resultsCount,
	)
	if err != nil {
		return fmt.Errorf("検索語カウンタの更新に失敗しました: %w", err)
	}
	return nil
}

// PopularTerms はsince以降に検索された語を回数の降順で返す。
func (r *PostgresSearchLogRepo) PopularTerms(ctx context.Context, since time.Time, limit int) ([]model.TermCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT search_term, search_count, results_count, last_searched
		 FROM search_analytics
		 WHERE last_searched >= $1
		 ORDER BY search_count DESC, search_term ASC
		 LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("人気検索語の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return scanTermCounts(rows)
}

// SuggestTerms はfragmentを含む検索語を回数の降順で返す。
func (r *PostgresSearchLogRepo) SuggestTerms(ctx context.Context, fragment string, limit int) ([]model.TermCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT search_term, search_count, results_count, last_searched
		 FROM search_analytics
		 WHERE search_term ILIKE $1
		 ORDER BY search_count DESC, search_term ASC
		 LIMIT $2`,
		containsPattern(fragment), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("検索語候補の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return scanTermCounts(rows)
}

// RecordHistory は検索履歴を1件追加する。
func (r *PostgresSearchLogRepo) RecordHistory(ctx context.Context, entry *model.SearchHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	filters := entry.Filters
	if filters == "" {
		filters = "{}"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO search_history (id, user_id, search_term, filters, results_count, searched_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5, now())`,
		entry.ID, entry.UserID, entry.SearchTerm, filters, entry.ResultsCount,
	)
	if err != nil {
		return fmt.Errorf("検索履歴の保存に失敗しました: %w", err)
	}
	return nil
}

// RecentSearches はユーザーのsince以降の検索履歴を新しい順に返す。
func (r *PostgresSearchLogRepo) RecentSearches(ctx context.Context, userID string, since time.Time, limit int) ([]model.SearchHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, search_term, filters::text, results_count, searched_at
		 FROM search_history
		 WHERE user_id = $1 AND searched_at >= $2
		 ORDER BY searched_at DESC
		 LIMIT $3`,
		userID, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("検索履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	entries := []model.SearchHistoryEntry{}
	for rows.Next() {
		var e model.SearchHistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.SearchTerm, &e.Filters, &e.ResultsCount, &e.SearchedAt); err != nil {
			return nil, fmt.Errorf("検索履歴行の読み取りに失敗しました: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("検索履歴の走査に失敗しました: %w", err)
	}
	return entries, nil
}

// DailyTrends はsince以降の日別検索回数を新しい日付順に返す。
func (r *PostgresSearchLogRepo) DailyTrends(ctx context.Context, since time.Time) ([]model.DailySearchCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT to_char(date(searched_at), 'YYYY-MM-DD') AS day, COUNT(*)
		 FROM search_history
		 WHERE searched_at >= $1
		 GROUP BY day
		 ORDER BY day DESC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("日別検索回数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	trends := []model.DailySearchCount{}
	for rows.Next() {
		var d model.DailySearchCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, fmt.Errorf("日別検索回数の読み取りに失敗しました: %w", err)
		}
		trends = append(trends, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("日別検索回数の走査に失敗しました: %w", err)
	}
	return trends, nil
}

// TotalSearches はsince以降の検索回数を返す。
func (r *PostgresSearchLogRepo) TotalSearches(ctx context.Context, since time.Time) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_history WHERE searched_at >= $1`, since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("検索回数の取得に失敗しました: %w", err)
	}
	return total, nil
}

func scanTermCounts(rows *sql.Rows) ([]model.TermCount, error) {
	terms := []model.TermCount{}
	for rows.Next() {
		var tc model.TermCount
		if err := rows.Scan(&tc.Term, &tc.Count, &tc.LastResultsCount, &tc.LastSearched); err != nil {
			return nil, fmt.Errorf("検索語行の読み取りに失敗しました: %w", err)
		}
		terms = append(terms, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("検索語の走査に失敗しました: %w", err)
	}
	return terms, nil
}

// compile-time interface check
var _ TermCounter = (*PostgresSearchLogRepo)(nil)
var _ SearchHistoryRepository = (*PostgresSearchLogRepo)(nil)
