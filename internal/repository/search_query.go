package repository

import (
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// documentVector は検索対象文書のポルトガル語tsvector式。
// マイグレーションのGINインデックスと同じ式でなければならない。
const documentVector = `to_tsvector('portuguese', i.title || ' ' || COALESCE(i.description, '') || ' ' || COALESCE(i.content, ''))`

const priorityWeight = `CASE i.priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END`

// facetColumns はファセットの次元ごとの集計列。
var facetColumns = map[string]string{
	"categories": "i.category",
	"sources":    "COALESCE(s.name, '')",
	"priorities": "i.priority",
}

// searchPredicate はページ・件数・ファセットの全クエリで共有するWHERE条件を返す。
// 同じ述語を使うことで、各ファセットの件数合計は総件数と一致する。
func searchPredicate(q model.SearchQuery, tsQuery string) sq.And {
	pred := sq.And{
		sq.Expr(documentVector+" @@ to_tsquery('portuguese', ?)", tsQuery),
	}

	f := q.Filters
	if f.DateFrom != nil {
		pred = append(pred, sq.Expr("i.pub_date >= ?", *f.DateFrom))
	}
	if f.DateTo != nil {
		// 終了日は当日を含む
		pred = append(pred, sq.Expr("i.pub_date < ?", endOfDay(*f.DateTo)))
	}
	if len(f.SourceIDs) > 0 {
		pred = append(pred, sq.Expr("i.source_id = ANY(?)", pq.Array(f.SourceIDs)))
	}
	if len(f.Categories) > 0 {
		pred = append(pred, sq.Expr("i.category = ANY(?)", pq.Array(categoryStrings(f.Categories))))
	}
	if len(f.Priorities) > 0 {
		pred = append(pred, sq.Expr("i.priority = ANY(?)", pq.Array(priorityStrings(f.Priorities))))
	}
	if f.MinRelevance != nil {
		pred = append(pred, sq.GtOrEq{"i.relevance_score": *f.MinRelevance})
	}
	if len(f.Keywords) > 0 {
		pred = append(pred, sq.Expr("i.keywords && ?", pq.Array(f.Keywords)))
	}
	if len(f.ExcludeKeywords) > 0 {
		pred = append(pred, sq.Expr("NOT (i.keywords && ?)", pq.Array(f.ExcludeKeywords)))
	}
	// 匿名呼び出しではブックマーク条件を無視する
	if f.BookmarkedOnly && q.UserID != "" {
		pred = append(pred, sq.Expr(
			"EXISTS (SELECT 1 FROM user_bookmarks ub WHERE ub.feed_item_id = i.id AND ub.user_id = ?)",
			q.UserID,
		))
	}
	return pred
}

// buildSearchPageQuery は1ページ分の検索結果を取得するSELECT文を組み立てる。
func buildSearchPageQuery(q model.SearchQuery, tsQuery string) sq.SelectBuilder {
	b := psql.Select(
		"i.id", "i.title", "i.description", "i.content", "i.link", "i.pub_date",
		"i.source_id", "COALESCE(s.name, '')", "i.priority", "i.relevance_score",
		"i.category", "i.keywords",
	).
		Column(sq.Expr("ts_rank_cd("+documentVector+", to_tsquery('portuguese', ?)) AS search_rank", tsQuery))

	if q.UserID != "" {
		b = b.Column(sq.Expr(
			"EXISTS (SELECT 1 FROM user_bookmarks ub WHERE ub.feed_item_id = i.id AND ub.user_id = ?) AS is_bookmarked",
			q.UserID,
		))
	} else {
		b = b.Column("false AS is_bookmarked")
	}

	perPage := q.PerPage
	if perPage <= 0 {
		perPage = model.DefaultPerPage
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	return b.From(itemFrom).
		Where(searchPredicate(q, tsQuery)).
		OrderBy(searchOrder(q.SortBy, q.SortOrder), "i.id ASC").
		Limit(uint64(perPage)).
		Offset(uint64((page - 1) * perPage))
}

// buildSearchCountQuery はページネーション前の総件数を数えるSELECT文を組み立てる。
func buildSearchCountQuery(q model.SearchQuery, tsQuery string) sq.SelectBuilder {
	return psql.Select("COUNT(*)").
		From(itemFrom).
		Where(searchPredicate(q, tsQuery))
}

// buildFacetQuery は指定次元の件数を集計するSELECT文を組み立てる。
// 件数の降順、同数の場合は名前の昇順に並べる。
func buildFacetQuery(q model.SearchQuery, tsQuery, column string) sq.SelectBuilder {
	return psql.Select(column, "COUNT(*)").
		From(itemFrom).
		Where(searchPredicate(q, tsQuery)).
		GroupBy(column).
		OrderBy("COUNT(*) DESC", column+" ASC")
}

// searchOrder は並び替えキーと方向からORDER BY句を返す。
// 未知のキーは関連度、未知の方向は降順として扱う。
func searchOrder(sortBy, sortOrder string) string {
	dir := "DESC"
	if sortOrder == model.SortOrderAsc {
		dir = "ASC"
	}
	switch sortBy {
	case model.SortByDate:
		return "i.pub_date " + dir + " NULLS LAST"
	case model.SortByPriority:
		return priorityWeight + " " + dir
	default:
		return "search_rank " + dir
	}
}

// endOfDay は指定日の翌日0時を返す。
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}

func categoryStrings(cs []model.Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

func priorityStrings(ps []model.Priority) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
