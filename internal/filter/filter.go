// Package filter は記事を保存するかどうかを決める取り込み時のコンテンツフィルタを提供する。
//
// 優先度用の関連度スコアとは独立した採点を行う。
// 必須キーワード1出現ごとに20点（異なる必須キーワードが2語以上なら+15）、
// 加点キーワード1出現ごとに5点、除外キーワード1出現ごとに-10点を与え、0〜100に丸める。
// 必須キーワードが1つ以上あり、かつスコアが15以上の記事のみを採用する。
package filter

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/taxonomy"
	"github.com/fernandoxavier02/AccountingNews/internal/textnorm"
)

const (
	primaryPoints        = 20
	multiPrimaryBonus    = 15
	secondaryPoints      = 5
	exclusionPenalty     = 10
	minRelevantScore     = 15
	defaultMaxConcurrent = 8
)

// 不採用理由
const (
	ReasonNoContent = "no content to analyze"
	ReasonNoPrimary = "no primary keyword found"
)

// phrase はトークン列に分割済みのキーワード。
type phrase struct {
	term   string
	tokens []string
}

// ContentFilter は取り込み可否を判定するフィルタ。
type ContentFilter struct {
	primary        []phrase
	secondary      []phrase
	exclusion      []phrase
	maxConcurrency int
}

// New は指定したキーワード表を参照するContentFilterを生成する。
func New(tax *taxonomy.Taxonomy) *ContentFilter {
	return &ContentFilter{
		primary:        toPhrases(tax.PrimaryKeywords()),
		secondary:      toPhrases(tax.SecondaryKeywords()),
		exclusion:      toPhrases(tax.ExclusionKeywords()),
		maxConcurrency: defaultMaxConcurrent,
	}
}

// Filter は1件の記事を判定する。
// 入力が空白のみの場合は例外とせず「no content to analyze」の不採用判定を返す。
func (f *ContentFilter) Filter(title, description, content string) model.FilterVerdict {
	full := textnorm.Join(title, description, content)
	if strings.TrimSpace(full) == "" {
		return model.FilterVerdict{
			IsRelevant:      false,
			RelevanceScore:  0,
			MatchedKeywords: []string{},
			FilterReason:    ReasonNoContent,
		}
	}

	tokens := textnorm.Tokens(full)

	primaryHits := countAll(tokens, f.primary)
	secondaryHits := countAll(tokens, f.secondary)
	exclusionHits := countAll(tokens, f.exclusion)

	score := 0
	for _, h := range primaryHits {
		score += h.count * primaryPoints
	}
	if len(primaryHits) > 1 {
		score += multiPrimaryBonus
	}
	for _, h := range secondaryHits {
		score += h.count * secondaryPoints
	}
	for _, h := range exclusionHits {
		score -= h.count * exclusionPenalty
	}
	score = clamp(score, 0, 100)

	matched := make([]string, 0, len(primaryHits)+len(secondaryHits))
	for _, h := range primaryHits {
		matched = append(matched, h.term)
	}
	for _, h := range secondaryHits {
		matched = append(matched, h.term)
	}

	hasPrimary := len(primaryHits) > 0
	verdict := model.FilterVerdict{
		IsRelevant:      hasPrimary && score >= minRelevantScore,
		RelevanceScore:  score,
		MatchedKeywords: matched,
	}
	switch {
	case verdict.IsRelevant:
	case !hasPrimary:
		verdict.FilterReason = ReasonNoPrimary
	default:
		verdict.FilterReason = fmt.Sprintf("low relevance score: %d", score)
	}
	return verdict
}

// FilterBatch は複数記事を並列に判定し、採用された記事のみを返す。
// 採用記事には判定スコアと一致キーワード、入力内の位置を付与し、スコア降順に並べる。
// 同点の場合は入力順を保つ。
func (f *ContentFilter) FilterBatch(entries []model.FeedEntry) []model.FilteredEntry {
	verdicts := make([]model.FilterVerdict, len(entries))

	sem := make(chan struct{}, f.maxConcurrency)
	var wg sync.WaitGroup
	for i := range entries {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			e := entries[i]
			verdicts[i] = f.Filter(e.Title, e.Description, e.Content)
		}(i)
	}
	wg.Wait()

	out := make([]model.FilteredEntry, 0, len(entries))
	for i, v := range verdicts {
		if !v.IsRelevant {
			continue
		}
		out = append(out, model.FilteredEntry{
			FeedEntry:       entries[i],
			RelevanceScore:  v.RelevanceScore,
			MatchedKeywords: v.MatchedKeywords,
			Index:           i,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RelevanceScore > out[j].RelevanceScore
	})
	return out
}

type hit struct {
	term  string
	count int
}

// countAll は各キーワードの出現回数を数え、1回以上出現したものを表の順序で返す。
func countAll(tokens []string, phrases []phrase) []hit {
	var hits []hit
	for _, p := range phrases {
		if n := countPhrase(tokens, p.tokens); n > 0 {
			hits = append(hits, hit{term: p.term, count: n})
		}
	}
	return hits
}

// countPhrase はトークン境界に揃った重ならない出現回数を数える。
func countPhrase(tokens, phrase []string) int {
	n := len(phrase)
	if n == 0 || len(tokens) < n {
		return 0
	}
	count := 0
	for i := 0; i <= len(tokens)-n; {
		if equalAt(tokens, i, phrase) {
			count++
			i += n
			continue
		}
		i++
	}
	return count
}

func equalAt(tokens []string, at int, phrase []string) bool {
	for j, w := range phrase {
		if tokens[at+j] != w {
			return false
		}
	}
	return true
}

func toPhrases(terms []string) []phrase {
	out := make([]phrase, 0, len(terms))
	for _, t := range terms {
		out = append(out, phrase{term: t, tokens: strings.Fields(t)})
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
