package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// PostgresSearchRepo はPostgreSQLの全文検索を使用した検索リポジトリ。
type PostgresSearchRepo struct {
	db *sql.DB
}

// NewPostgresSearchRepo はPostgresSearchRepoを生成する。
func NewPostgresSearchRepo(db *sql.DB) *PostgresSearchRepo {
	return &PostgresSearchRepo{db: db}
}

// Search は一致した記事の1ページ分と総件数を返す。
func (r *PostgresSearchRepo) Search(ctx context.Context, q model.SearchQuery, tsQuery string) (*model.SearchPage, error) {
	countSQL, countArgs, err := buildSearchCountQuery(q, tsQuery).ToSql()
	if err != nil {
		return nil, fmt.Errorf("検索件数クエリの構築に失敗しました: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("検索件数の取得に失敗しました: %w", err)
	}

	page := &model.SearchPage{Results: []model.SearchResult{}, Total: total}
	if total == 0 {
		return page, nil
	}

	pageSQL, pageArgs, err := buildSearchPageQuery(q, tsQuery).ToSql()
	if err != nil {
		return nil, fmt.Errorf("検索クエリの構築に失敗しました: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("検索の実行に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var res model.SearchResult
		var pubDate sql.NullTime
		var description, content, link sql.NullString
		var keywords pq.StringArray

		if err := rows.Scan(
			&res.ID, &res.Title, &description, &content, &link, &pubDate,
			&res.SourceID, &res.SourceName, &res.Priority, &res.RelevanceScore,
			&res.Category, &keywords, &res.SearchRank, &res.IsBookmarked,
		); err != nil {
			return nil, fmt.Errorf("検索結果行の読み取りに失敗しました: %w", err)
		}

		res.Description = nullStringValue(description)
		res.Content = nullStringValue(content)
		res.Link = nullStringValue(link)
		res.Keywords = []string(keywords)
		if res.Keywords == nil {
			res.Keywords = []string{}
		}
		if pubDate.Valid {
			res.PubDate = &pubDate.Time
		}
		page.Results = append(page.Results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("検索結果の走査に失敗しました: %w", err)
	}

	return page, nil
}

// Facets はページネーション前の一致集合に対するファセットを返す。
func (r *PostgresSearchRepo) Facets(ctx context.Context, q model.SearchQuery, tsQuery string) (*model.Facets, error) {
	categories, err := r.facet(ctx, q, tsQuery, facetColumns["categories"])
	if err != nil {
		return nil, err
	}
	sources, err := r.facet(ctx, q, tsQuery, facetColumns["sources"])
	if err != nil {
		return nil, err
	}
	priorities, err := r.facet(ctx, q, tsQuery, facetColumns["priorities"])
	if err != nil {
		return nil, err
	}
	return &model.Facets{Categories: categories, Sources: sources, Priorities: priorities}, nil
}

func (r *PostgresSearchRepo) facet(ctx context.Context, q model.SearchQuery, tsQuery, column string) ([]model.FacetCount, error) {
	query, args, err := buildFacetQuery(q, tsQuery, column).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ファセットクエリの構築に失敗しました: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ファセットの取得に失敗しました（%s）: %w", column, err)
	}
	defer rows.Close()
	return scanFacetCounts(rows)
}

// SuggestKeywords は記事キーワードのうちfragmentを含むものを出現頻度順に返す。
func (r *PostgresSearchRepo) SuggestKeywords(ctx context.Context, fragment string, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kw
		 FROM rss_feed_items, unnest(keywords) AS kw
		 WHERE kw ILIKE $1
		 GROUP BY kw
		 ORDER BY COUNT(*) DESC, kw ASC
		 LIMIT $2`,
		containsPattern(fragment), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("キーワード候補の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	keywords := []string{}
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, fmt.Errorf("キーワード候補の読み取りに失敗しました: %w", err)
		}
		keywords = append(keywords, kw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("キーワード候補の走査に失敗しました: %w", err)
	}
	return keywords, nil
}

func scanFacetCounts(rows *sql.Rows) ([]model.FacetCount, error) {
	counts := []model.FacetCount{}
	for rows.Next() {
		var fc model.FacetCount
		if err := rows.Scan(&fc.Name, &fc.Count); err != nil {
			return nil, fmt.Errorf("集計行の読み取りに失敗しました: %w", err)
		}
		counts = append(counts, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("集計の走査に失敗しました: %w", err)
	}
	return counts, nil
}

// containsPattern はLIKEのワイルドカードをエスケープした部分一致パターンを返す。
func containsPattern(fragment string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(fragment)) + "%"
}

// compile-time interface check
var _ SearchRepository = (*PostgresSearchRepo)(nil)
