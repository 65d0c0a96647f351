package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

const sourceColumns = `id, name, url, description, credibility_score, is_active,
	last_fetch_at, last_fetch_status, last_error_message, fetch_count, success_count,
	consecutive_errors, next_fetch_at, etag, last_modified, created_at, updated_at`

// sourceOrderColumns は一覧の並び順として許可する列。
var sourceOrderColumns = map[string]string{
	"name":              "name ASC",
	"credibility_score": "credibility_score DESC",
	"created_at":        "created_at DESC",
	"last_fetch_at":     "last_fetch_at DESC NULLS LAST",
}

// psql はPostgreSQLのプレースホルダ（$1, $2...）を使うクエリビルダ。
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresSourceRepo はPostgreSQLを使用した配信元リポジトリ。
type PostgresSourceRepo struct {
	db *sql.DB
}

// NewPostgresSourceRepo はPostgresSourceRepoを生成する。
func NewPostgresSourceRepo(db *sql.DB) *PostgresSourceRepo {
	return &PostgresSourceRepo{db: db}
}

// buildSourceListQuery は配信元一覧のSELECT文を組み立てる。
// 未知の並び順は name として扱う。
func buildSourceListQuery(filter model.SourceListFilter) (string, []interface{}, error) {
	b := psql.Select(sourceColumns).From("rss_sources")
	if filter.ActiveOnly {
		b = b.Where(sq.Eq{"is_active": true})
	}
	if filter.MinCredibility != nil {
		b = b.Where(sq.GtOrEq{"credibility_score": *filter.MinCredibility})
	}
	order, ok := sourceOrderColumns[filter.OrderBy]
	if !ok {
		order = sourceOrderColumns["name"]
	}
	return b.OrderBy(order, "id ASC").ToSql()
}

// List は条件に一致する配信元を返す。
func (r *PostgresSourceRepo) List(ctx context.Context, filter model.SourceListFilter) ([]*model.Source, error) {
	query, args, err := buildSourceListQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("配信元一覧クエリの構築に失敗しました: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("配信元一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return scanSources(rows)
}

// FindByID は指定IDの配信元を取得する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByID(ctx context.Context, id string) (*model.Source, error) {
	src, err := scanSource(r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM rss_sources WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("配信元の取得に失敗しました: %w", err)
	}
	return src, nil
}

// Upsert はURLをキーに配信元を作成または更新する。
// フェッチ統計は更新しない。
func (r *PostgresSourceRepo) Upsert(ctx context.Context, source *model.Source) error {
	if source.ID == "" {
		source.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO rss_sources (id, name, url, description, credibility_score, is_active,
		                          last_fetch_status, next_fetch_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 'pending', now(), now(), now())
		 ON CONFLICT (url) DO UPDATE SET
		    name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    credibility_score = EXCLUDED.credibility_score,
		    is_active = EXCLUDED.is_active,
		    updated_at = now()
		 RETURNING id, created_at, updated_at`,
		source.ID, source.Name, source.URL, nullString(source.Description),
		source.CredibilityScore, source.IsActive,
	).Scan(&source.ID, &source.CreatedAt, &source.UpdatedAt)
	if err != nil {
		return fmt.Errorf("配信元の登録に失敗しました: %w", err)
	}
	return nil
}

// Stats は配信元全体の集計を返す。
func (r *PostgresSourceRepo) Stats(ctx context.Context) (*model.SourceStats, error) {
	stats := &model.SourceStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_active),
		        COALESCE(AVG(credibility_score), 0),
		        COUNT(*) FILTER (WHERE credibility_score >= 80),
		        COUNT(*) FILTER (WHERE last_fetch_status IN ('error', 'timeout', 'stopped')),
		        COALESCE(SUM(fetch_count), 0),
		        COALESCE(SUM(success_count), 0)
		 FROM rss_sources`,
	).Scan(
		&stats.TotalSources, &stats.ActiveSources, &stats.AvgCredibility,
		&stats.HighCredibility, &stats.FailingSources,
		&stats.TotalFetches, &stats.SuccessfulFetches,
	)
	if err != nil {
		return nil, fmt.Errorf("配信元統計の取得に失敗しました: %w", err)
	}
	return stats, nil
}

// ListDueForFetch はフェッチ対象の配信元を取得する。
func (r *PostgresSourceRepo) ListDueForFetch(ctx context.Context) ([]*model.Source, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sourceColumns+`
		 FROM rss_sources
		 WHERE is_active
		   AND next_fetch_at <= now()
		   AND last_fetch_status <> 'stopped'
		 ORDER BY next_fetch_at ASC
		 FOR UPDATE SKIP LOCKED`,
	)
	if err != nil {
		return nil, fmt.Errorf("フェッチ対象配信元の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return scanSources(rows)
}

// UpdateFetchState は配信元のフェッチ状態と統計を更新する。
func (r *PostgresSourceRepo) UpdateFetchState(ctx context.Context, source *model.Source) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE rss_sources SET
		    last_fetch_at = $2,
		    last_fetch_status = $3,
		    last_error_message = $4,
		    fetch_count = $5,
		    success_count = $6,
		    consecutive_errors = $7,
		    next_fetch_at = $8,
		    etag = $9,
		    last_modified = $10,
		    updated_at = now()
		 WHERE id = $1`,
		source.ID,
		source.LastFetchAt,
		source.LastFetchStatus,
		nullString(source.LastErrorMessage),
		source.FetchCount,
		source.SuccessCount,
		source.ConsecutiveErrors,
		source.NextFetchAt,
		nullString(source.ETag),
		nullString(source.LastModified),
	)
	if err != nil {
		return fmt.Errorf("フェッチ状態の更新に失敗しました: %w", err)
	}
	return nil
}

// rowScanner は *sql.Row と *sql.Rows の共通インターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSource(row rowScanner) (*model.Source, error) {
	src := &model.Source{}
	var lastFetchAt sql.NullTime
	var description, lastError, etag, lastModified sql.NullString

	if err := row.Scan(
		&src.ID, &src.Name, &src.URL, &description, &src.CredibilityScore, &src.IsActive,
		&lastFetchAt, &src.LastFetchStatus, &lastError, &src.FetchCount, &src.SuccessCount,
		&src.ConsecutiveErrors, &src.NextFetchAt, &etag, &lastModified,
		&src.CreatedAt, &src.UpdatedAt,
	); err != nil {
		return nil, err
	}

	src.Description = nullStringValue(description)
	src.LastErrorMessage = nullStringValue(lastError)
	src.ETag = nullStringValue(etag)
	src.LastModified = nullStringValue(lastModified)
	if lastFetchAt.Valid {
		src.LastFetchAt = &lastFetchAt.Time
	}
	return src, nil
}

func scanSources(rows *sql.Rows) ([]*model.Source, error) {
	var sources []*model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("配信元行の読み取りに失敗しました: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("配信元一覧の走査に失敗しました: %w", err)
	}
	return sources, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ SourceRepository = (*PostgresSourceRepo)(nil)
