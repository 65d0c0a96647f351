package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

const itemColumns = `i.id, i.source_id, COALESCE(s.name, ''), i.guid, i.title, i.description, i.content,
	i.link, i.pub_date, i.is_date_estimated, i.priority, i.relevance_score, i.keywords,
	i.category, i.is_new, i.created_at, i.updated_at`

const itemFrom = `rss_feed_items i LEFT JOIN rss_sources s ON s.id = i.source_id`

// PostgresItemRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// InsertIfAbsent はguidが未登録の場合のみ記事を作成する。
// 既存行のスコアは書き換えない。
func (r *PostgresItemRepo) InsertIfAbsent(ctx context.Context, item *model.FeedItem) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rss_feed_items (id, source_id, guid, title, description, content, link,
		                             pub_date, is_date_estimated, priority, relevance_score,
		                             keywords, category, is_new, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, true, now(), now())
		 ON CONFLICT (guid) DO NOTHING`,
		item.ID, item.SourceID, item.GUID, item.Title,
		nullString(item.Description), nullString(item.Content), nullString(item.Link),
		item.PubDate, item.IsDateEstimated, item.Priority, item.RelevanceScore,
		pq.Array(item.Keywords), item.Category,
	)
	if err != nil {
		return false, fmt.Errorf("記事の作成に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("記事作成結果の取得に失敗しました: %w", err)
	}
	return n == 1, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id string) (*model.FeedItem, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM `+itemFrom+` WHERE i.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	return item, nil
}

// itemListPredicate は記事一覧と件数の両クエリで共有するWHERE条件を返す。
func itemListPredicate(filter model.ItemListFilter) sq.And {
	pred := sq.And{}
	if filter.SourceID != "" {
		pred = append(pred, sq.Eq{"i.source_id": filter.SourceID})
	}
	if filter.Priority != "" {
		pred = append(pred, sq.Eq{"i.priority": string(filter.Priority)})
	}
	if filter.Category != "" {
		pred = append(pred, sq.Eq{"i.category": string(filter.Category)})
	}
	for _, kw := range filter.SearchKeywords {
		pattern := containsPattern(kw)
		pred = append(pred, sq.Or{
			sq.ILike{"i.title": pattern},
			sq.ILike{"i.description": pattern},
			sq.ILike{"i.content": pattern},
		})
	}
	return pred
}

// buildItemListQuery は記事一覧のSELECT文を組み立てる。
func buildItemListQuery(filter model.ItemListFilter) (string, []interface{}, error) {
	b := psql.Select(itemColumns).From(itemFrom)
	if pred := itemListPredicate(filter); len(pred) > 0 {
		b = b.Where(pred)
	}
	b = b.OrderBy("i.pub_date DESC NULLS LAST", "i.created_at DESC", "i.id ASC")
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		b = b.Offset(uint64(filter.Offset))
	}
	return b.ToSql()
}

// buildItemCountQuery は記事一覧と同じ条件の件数を数えるSELECT文を組み立てる。
func buildItemCountQuery(filter model.ItemListFilter) (string, []interface{}, error) {
	b := psql.Select("COUNT(*)").From("rss_feed_items i")
	if pred := itemListPredicate(filter); len(pred) > 0 {
		b = b.Where(pred)
	}
	return b.ToSql()
}

// List は条件に一致する記事を公開日時の降順で返す。
func (r *PostgresItemRepo) List(ctx context.Context, filter model.ItemListFilter) ([]*model.FeedItem, error) {
	query, args, err := buildItemListQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("記事一覧クエリの構築に失敗しました: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// Count は条件に一致する記事の総数を返す。
func (r *PostgresItemRepo) Count(ctx context.Context, filter model.ItemListFilter) (int, error) {
	query, args, err := buildItemCountQuery(filter)
	if err != nil {
		return 0, fmt.Errorf("記事件数クエリの構築に失敗しました: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("記事件数の取得に失敗しました: %w", err)
	}
	return total, nil
}

// Stats は記事全体の集計を返す。
func (r *PostgresItemRepo) Stats(ctx context.Context) (*model.ItemStats, error) {
	stats := &model.ItemStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_new),
		        COUNT(*) FILTER (WHERE priority = 'high'),
		        COUNT(*) FILTER (WHERE created_at >= date_trunc('day', now())),
		        (SELECT COUNT(*) FROM rss_sources WHERE is_active),
		        COALESCE(AVG(relevance_score), 0),
		        COUNT(*) FILTER (WHERE category = 'tax_reform'),
		        COUNT(*) FILTER (WHERE category = 'legislation')
		 FROM rss_feed_items`,
	).Scan(
		&stats.TotalItems, &stats.NewItems, &stats.HighPriorityItems, &stats.TodayItems,
		&stats.ActiveSources, &stats.AvgRelevanceScore,
		&stats.TaxReformItems, &stats.LegislationItems,
	)
	if err != nil {
		return nil, fmt.Errorf("記事統計の取得に失敗しました: %w", err)
	}
	return stats, nil
}

// ListForRescore はidがafterIDより大きい記事をid昇順でlimit件返す。
// afterIDが空の場合は先頭から取得する。
func (r *PostgresItemRepo) ListForRescore(ctx context.Context, afterID string, limit int) ([]*model.FeedItem, error) {
	if afterID == "" {
		afterID = uuid.Nil.String()
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM `+itemFrom+`
		 WHERE i.id > $1
		 ORDER BY i.id ASC
		 LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("リスコア対象記事の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// UpdateScores は記事のスコア列のみを更新する。
func (r *PostgresItemRepo) UpdateScores(ctx context.Context, id string, scores model.ItemScores) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE rss_feed_items SET
		    relevance_score = $2,
		    priority = $3,
		    category = $4,
		    keywords = $5,
		    updated_at = now()
		 WHERE id = $1`,
		id, scores.RelevanceScore, scores.Priority, scores.Category, pq.Array(scores.Keywords),
	)
	if err != nil {
		return fmt.Errorf("記事スコアの更新に失敗しました: %w", err)
	}
	return nil
}

func scanItem(row rowScanner) (*model.FeedItem, error) {
	item := &model.FeedItem{}
	var pubDate sql.NullTime
	var description, content, link sql.NullString
	var keywords pq.StringArray

	if err := row.Scan(
		&item.ID, &item.SourceID, &item.SourceName, &item.GUID, &item.Title,
		&description, &content, &link, &pubDate, &item.IsDateEstimated,
		&item.Priority, &item.RelevanceScore, &keywords, &item.Category,
		&item.IsNew, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}

	item.Description = nullStringValue(description)
	item.Content = nullStringValue(content)
	item.Link = nullStringValue(link)
	item.Keywords = []string(keywords)
	if item.Keywords == nil {
		item.Keywords = []string{}
	}
	if pubDate.Valid {
		item.PubDate = &pubDate.Time
	}
	return item, nil
}

func scanItems(rows *sql.Rows) ([]*model.FeedItem, error) {
	var items []*model.FeedItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("記事行の読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の走査に失敗しました: %w", err)
	}
	return items, nil
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
