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

const bookmarkColumns = `b.id, b.user_id, b.feed_item_id, b.notes, b.tags, b.is_archived, b.created_at, b.updated_at`

const bookmarkFrom = `user_bookmarks b
	JOIN rss_feed_items i ON i.id = b.feed_item_id
	LEFT JOIN rss_sources s ON s.id = i.source_id`

const topTagsLimit = 10

// PostgresBookmarkRepo はPostgreSQLを使用したブックマークリポジトリ。
type PostgresBookmarkRepo struct {
	db *sql.DB
}

// NewPostgresBookmarkRepo はPostgresBookmarkRepoを生成する。
func NewPostgresBookmarkRepo(db *sql.DB) *PostgresBookmarkRepo {
	return &PostgresBookmarkRepo{db: db}
}

// Upsert は(user_id, feed_item_id)をキーにブックマークを作成または更新する。
// 既存のブックマークはメモとタグのみ上書きする。
func (r *PostgresBookmarkRepo) Upsert(ctx context.Context, b *model.Bookmark) (*model.Bookmark, error) {
	id := b.ID
	if id == "" {
		id = uuid.New().String()
	}
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}

	out, err := scanBookmark(r.db.QueryRowContext(ctx,
		`INSERT INTO user_bookmarks (id, user_id, feed_item_id, notes, tags, is_archived, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, false, now(), now())
		 ON CONFLICT (user_id, feed_item_id) DO UPDATE SET
		    notes = EXCLUDED.notes,
		    tags = EXCLUDED.tags,
		    updated_at = now()
		 RETURNING id, user_id, feed_item_id, notes, tags, is_archived, created_at, updated_at`,
		id, b.UserID, b.FeedItemID, nullString(b.Notes), pq.Array(tags),
	))
	if err != nil {
		return nil, fmt.Errorf("ブックマークの保存に失敗しました: %w", err)
	}
	return out, nil
}

// bookmarkPredicate は一覧と件数で共有するWHERE条件を返す。
func bookmarkPredicate(userID string, filter model.BookmarkListFilter) sq.And {
	pred := sq.And{sq.Eq{"b.user_id": userID}}
	if filter.Archived != nil {
		pred = append(pred, sq.Eq{"b.is_archived": *filter.Archived})
	}
	if filter.Category != "" {
		pred = append(pred, sq.Eq{"i.category": string(filter.Category)})
	}
	if filter.Tag != "" {
		pred = append(pred, sq.Expr("? = ANY(b.tags)", filter.Tag))
	}
	return pred
}

// buildBookmarkListQuery はブックマーク一覧のSELECT文を組み立てる。
func buildBookmarkListQuery(userID string, filter model.BookmarkListFilter) sq.SelectBuilder {
	b := psql.Select(bookmarkColumns, itemColumns).
		From(bookmarkFrom).
		Where(bookmarkPredicate(userID, filter)).
		OrderBy("b.created_at DESC", "b.id ASC")
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		b = b.Offset(uint64(filter.Offset))
	}
	return b
}

// List は条件に一致するブックマークを作成日時の降順で返す。
func (r *PostgresBookmarkRepo) List(ctx context.Context, userID string, filter model.BookmarkListFilter) ([]model.BookmarkWithItem, int, error) {
	countSQL, countArgs, err := psql.Select("COUNT(*)").
		From(bookmarkFrom).
		Where(bookmarkPredicate(userID, filter)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ブックマーク件数クエリの構築に失敗しました: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ブックマーク件数の取得に失敗しました: %w", err)
	}

	query, args, err := buildBookmarkListQuery(userID, filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ブックマーク一覧クエリの構築に失敗しました: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ブックマーク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	list := []model.BookmarkWithItem{}
	for rows.Next() {
		bw, err := scanBookmarkWithItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ブックマーク行の読み取りに失敗しました: %w", err)
		}
		list = append(list, *bw)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ブックマーク一覧の走査に失敗しました: %w", err)
	}
	return list, total, nil
}

// FindByID は指定IDのブックマークを取得する。見つからない場合はnilを返す。
func (r *PostgresBookmarkRepo) FindByID(ctx context.Context, userID, id string) (*model.BookmarkWithItem, error) {
	bw, err := scanBookmarkWithItem(r.db.QueryRowContext(ctx,
		`SELECT `+bookmarkColumns+`, `+itemColumns+`
		 FROM `+bookmarkFrom+`
		 WHERE b.user_id = $1 AND b.id = $2`,
		userID, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ブックマークの取得に失敗しました: %w", err)
	}
	return bw, nil
}

// buildBookmarkUpdate はnilでないフィールドのみを更新するUPDATE文を組み立てる。
func buildBookmarkUpdate(userID, id string, update model.BookmarkUpdate) sq.UpdateBuilder {
	b := psql.Update("user_bookmarks").Set("updated_at", sq.Expr("now()"))
	if update.Notes != nil {
		b = b.Set("notes", nullString(*update.Notes))
	}
	if update.Tags != nil {
		b = b.Set("tags", pq.Array(update.Tags))
	}
	if update.IsArchived != nil {
		b = b.Set("is_archived", *update.IsArchived)
	}
	return b.
		Where(sq.Eq{"id": id, "user_id": userID}).
		Suffix("RETURNING id, user_id, feed_item_id, notes, tags, is_archived, created_at, updated_at")
}

// Update はブックマークを部分更新する。見つからない場合はnilを返す。
func (r *PostgresBookmarkRepo) Update(ctx context.Context, userID, id string, update model.BookmarkUpdate) (*model.Bookmark, error) {
	query, args, err := buildBookmarkUpdate(userID, id, update).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ブックマーク更新クエリの構築に失敗しました: %w", err)
	}
	out, err := scanBookmark(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ブックマークの更新に失敗しました: %w", err)
	}
	return out, nil
}

// Delete はブックマークを削除する。削除した場合はtrueを返す。
func (r *PostgresBookmarkRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_bookmarks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("ブックマークの削除に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ブックマーク削除結果の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// Stats はユーザーのブックマーク集計を返す。
func (r *PostgresBookmarkRepo) Stats(ctx context.Context, userID string) (*model.BookmarkStats, error) {
	stats := &model.BookmarkStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_archived)
		 FROM user_bookmarks WHERE user_id = $1`,
		userID,
	).Scan(&stats.TotalBookmarks, &stats.ArchivedBookmarks)
	if err != nil {
		return nil, fmt.Errorf("ブックマーク統計の取得に失敗しました: %w", err)
	}
	stats.ActiveBookmarks = stats.TotalBookmarks - stats.ArchivedBookmarks

	if stats.ByCategory, err = r.countBy(ctx, userID, "i.category"); err != nil {
		return nil, err
	}
	if stats.ByPriority, err = r.countBy(ctx, userID, "i.priority"); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT tag, COUNT(*)
		 FROM user_bookmarks, unnest(tags) AS tag
		 WHERE user_id = $1
		 GROUP BY tag
		 ORDER BY COUNT(*) DESC, tag ASC
		 LIMIT $2`,
		userID, topTagsLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("タグ集計の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	if stats.TopTags, err = scanFacetCounts(rows); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *PostgresBookmarkRepo) countBy(ctx context.Context, userID, column string) ([]model.FacetCount, error) {
	query, args, err := psql.Select(column, "COUNT(*)").
		From(bookmarkFrom).
		Where(sq.Eq{"b.user_id": userID}).
		GroupBy(column).
		OrderBy("COUNT(*) DESC", column+" ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ブックマーク集計クエリの構築に失敗しました: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ブックマーク集計の取得に失敗しました（%s）: %w", column, err)
	}
	defer rows.Close()
	return scanFacetCounts(rows)
}

func scanBookmark(row rowScanner) (*model.Bookmark, error) {
	b := &model.Bookmark{}
	var notes sql.NullString
	var tags pq.StringArray
	if err := row.Scan(
		&b.ID, &b.UserID, &b.FeedItemID, &notes, &tags, &b.IsArchived, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Notes = nullStringValue(notes)
	b.Tags = []string(tags)
	if b.Tags == nil {
		b.Tags = []string{}
	}
	return b, nil
}

func scanBookmarkWithItem(row rowScanner) (*model.BookmarkWithItem, error) {
	bw := &model.BookmarkWithItem{}
	var notes, description, content, link sql.NullString
	var tags, keywords pq.StringArray
	var pubDate sql.NullTime
	it := &bw.Item

	if err := row.Scan(
		&bw.ID, &bw.UserID, &bw.FeedItemID, &notes, &tags, &bw.IsArchived, &bw.CreatedAt, &bw.UpdatedAt,
		&it.ID, &it.SourceID, &it.SourceName, &it.GUID, &it.Title,
		&description, &content, &link, &pubDate, &it.IsDateEstimated,
		&it.Priority, &it.RelevanceScore, &keywords, &it.Category,
		&it.IsNew, &it.CreatedAt, &it.UpdatedAt,
	); err != nil {
		return nil, err
	}

	bw.Notes = nullStringValue(notes)
	bw.Tags = []string(tags)
	if bw.Tags == nil {
		bw.Tags = []string{}
	}
	it.Description = nullStringValue(description)
	it.Content = nullStringValue(content)
	it.Link = nullStringValue(link)
	it.Keywords = []string(keywords)
	if it.Keywords == nil {
		it.Keywords = []string{}
	}
	if pubDate.Valid {
		it.PubDate = &pubDate.Time
	}
	return bw, nil
}

// compile-time interface check
var _ BookmarkRepository = (*PostgresBookmarkRepo)(nil)
