// Package textnorm はスコアリング・フィルタ・検索で共通に使うテキスト正規化を提供する。
//
// 正規化は小文字化、アクセント記号の除去、文字・数字以外の連続を単一の空白へ畳み込む処理からなる。
// キーワード表も同じ関数で正規化するため、"tributária" と "tributaria" は同一視される。
// 関連度スコアの算出だけはNormalizeLettersを使い、数字も空白に畳み込む。
package textnorm

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize は入力を照合用の正規形に変換する。
// 数字は保持する（"pec 45" のような語を照合するため）。
// 結果の前後に空白は含まれない。
func Normalize(s string) string {
	return collapse(s, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) })
}

// NormalizeLetters はNormalizeと同じだが、文字以外は数字も含めて空白に畳み込む。
// "PEC 45" は "pec" になるため、数字を含むキーワードはこの形には一致しない。
func NormalizeLetters(s string) string {
	return collapse(s, unicode.IsLetter)
}

func collapse(s string, keep func(rune) bool) string {
	if s == "" {
		return ""
	}

	// transform.Chainは状態を持つため呼び出しごとに生成する
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	pendingSpace := false
	for _, r := range stripped {
		if keep(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Tokens は正規化済みテキストを空白で分割したトークン列を返す。
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// Join は複数フィールドを空白区切りで連結する。空のフィールドは無視する。
func Join(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// PlainText はHTML断片からタグを取り除いたテキストを返す。
// ブロック要素の境界で語が連結されないよう、テキストノードごとに空白を挟む。
// パースに失敗した場合は入力をそのまま返す。
func PlainText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return strings.TrimSpace(html)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}

	doc.Find("script, style, noscript").Remove()

	var parts []string
	doc.Find("body").Contents().Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(doc.Text())
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
