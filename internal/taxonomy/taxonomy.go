// Package taxonomy はブラジル税制改革ニュースの判定に使うキーワード表を保持する。
//
// 表はプロセス起動時に1回だけ正規化して構築され、以後は変更されない。
// 全てのキーワードは textnorm.Normalize 済みの形で保持されるため、
// アクセント有無の表記ゆれは1エントリに統合される。
package taxonomy

import (
	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/textnorm"
)

// WeightedKeyword は関連度スコアリング用の重み付きキーワード。
type WeightedKeyword struct {
	Term   string
	Weight int
}

// SourceAuthority は既知の配信元とその乗数。
type SourceAuthority struct {
	Name       string
	Multiplier float64
}

// CategoryRule はカテゴリとその判定キーワード。
type CategoryRule struct {
	Category model.Category
	Terms    []string
}

// Taxonomy はスコアリング・分類・フィルタが参照する不変のキーワード表。
type Taxonomy struct {
	relevance  []WeightedKeyword
	sources    []SourceAuthority
	categories []CategoryRule
	primary    []string
	secondary  []string
	exclusion  []string
}

var defaultTaxonomy = build()

// Default は組み込みのキーワード表を返す。
func Default() *Taxonomy {
	return defaultTaxonomy
}

// RelevanceKeywords は関連度スコアリング用のキーワードを表の順序で返す。
func (t *Taxonomy) RelevanceKeywords() []WeightedKeyword {
	return append([]WeightedKeyword(nil), t.relevance...)
}

// SourceAuthorities は配信元乗数表を照合順で返す。
func (t *Taxonomy) SourceAuthorities() []SourceAuthority {
	return append([]SourceAuthority(nil), t.sources...)
}

// CategoryRules はカテゴリ判定表を判定順で返す。generalは含まない。
func (t *Taxonomy) CategoryRules() []CategoryRule {
	out := make([]CategoryRule, len(t.categories))
	for i, c := range t.categories {
		out[i] = CategoryRule{Category: c.Category, Terms: append([]string(nil), c.Terms...)}
	}
	return out
}

// PrimaryKeywords はコンテンツフィルタの必須キーワードを返す。
func (t *Taxonomy) PrimaryKeywords() []string { return append([]string(nil), t.primary...) }

// SecondaryKeywords はコンテンツフィルタの加点キーワードを返す。
func (t *Taxonomy) SecondaryKeywords() []string { return append([]string(nil), t.secondary...) }

// ExclusionKeywords はコンテンツフィルタの減点キーワードを返す。
func (t *Taxonomy) ExclusionKeywords() []string { return append([]string(nil), t.exclusion...) }

func build() *Taxonomy {
	t := &Taxonomy{}

	seen := make(map[string]bool)
	for _, kw := range rawRelevanceKeywords {
		term := textnorm.Normalize(kw.Term)
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		t.relevance = append(t.relevance, WeightedKeyword{Term: term, Weight: kw.Weight})
	}

	seen = make(map[string]bool)
	for _, s := range rawSourceAuthorities {
		name := textnorm.Normalize(s.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		t.sources = append(t.sources, SourceAuthority{Name: name, Multiplier: s.Multiplier})
	}

	for _, c := range rawCategoryRules {
		t.categories = append(t.categories, CategoryRule{
			Category: c.Category,
			Terms:    normalizeList(c.Terms),
		})
	}

	t.primary = normalizeList(rawPrimaryKeywords)
	t.secondary = normalizeList(rawSecondaryKeywords)
	t.exclusion = normalizeList(rawExclusionKeywords)

	return t
}

// normalizeList は各要素を正規化し、重複と空要素を取り除いて順序を保ったまま返す。
func normalizeList(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		n := textnorm.Normalize(term)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
