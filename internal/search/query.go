// Package search は全文検索の入力検証、ランキング結果の組み立て、
// ハイライト、検索分析の記録を提供する。
package search

import (
	"regexp"
	"strings"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// tsquery の演算子として解釈される文字は空白に置き換える。
var operatorReplacer = strings.NewReplacer(
	"<", " ", ">", " ", "(", " ", ")", " ",
	"&", " ", "|", " ", "!", " ",
	"'", " ", ":", " ", "*", " ", `\`, " ",
)

const andOperator = " & "

// Sanitize は生の検索文字列を to_tsquery 用のAND式に変換する。
// 演算子文字を除去して空白で分割し、" & " で連結する。
// 語が残らない場合は INVALID_QUERY エラーを返す。
func Sanitize(raw string) (string, error) {
	words := strings.Fields(operatorReplacer.Replace(raw))
	if len(words) == 0 {
		return "", model.NewInvalidQueryError("検索語が空です")
	}
	return strings.Join(words, andOperator), nil
}

// Terms はサニタイズ済みのAND式を語の一覧に戻す。
func Terms(tsQuery string) []string {
	if tsQuery == "" {
		return nil
	}
	return strings.Split(tsQuery, andOperator)
}

// Highlight はtext中の各語の出現を大文字小文字を区別せずに <mark>…</mark> で囲む。
// 元の表記は保持する。語が重なる場合の二重のマークは許容する。
func Highlight(text string, terms []string) string {
	if text == "" {
		return text
	}
	for _, term := range terms {
		if term == "" {
			continue
		}
		re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
		text = re.ReplaceAllString(text, "<mark>${0}</mark>")
	}
	return text
}
