// Package scoring は記事の関連度スコア、優先度、カテゴリを算出する。
//
// 全ての関数は入力と現在時刻のみに依存する純粋関数であり、
// 複数のgoroutineから同時に呼び出してよい。
package scoring

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/taxonomy"
	"github.com/fernandoxavier02/AccountingNews/internal/textnorm"
)

const (
	// highThreshold 以上の最終スコアは high。
	highThreshold = 80.0
	// mediumThreshold 以上の最終スコアは medium。
	mediumThreshold = 50.0

	comboBonusPerKeyword = 5
	titleBonusPerKeyword = 20
	maxScore             = 100

	defaultBatchConcurrency = 8
)

// Scorer は関連度・優先度・カテゴリの算出器。
type Scorer struct {
	keywords   []taxonomy.WeightedKeyword
	sources    []taxonomy.SourceAuthority
	categories []taxonomy.CategoryRule
	now        func() time.Time
}

// NewScorer は指定したキーワード表を参照するScorerを生成する。
func NewScorer(tax *taxonomy.Taxonomy) *Scorer {
	return &Scorer{
		keywords:   tax.RelevanceKeywords(),
		sources:    tax.SourceAuthorities(),
		categories: tax.CategoryRules(),
		now:        time.Now,
	}
}

// WithClock は現在時刻の取得関数を差し替えたScorerを返す。
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	c := *s
	c.now = now
	return &c
}

// Score は記事の関連度スコア（0〜100）を返す。
//
// 結合テキストに部分一致したキーワードの重みを合計し、
// 2語以上一致した場合は 5×一致語数 を加算する。
// 一致語がタイトルにも含まれる場合は1語ごとに20を加算する。
// 照合前に数字を空白へ畳み込むため、"pec 45" のような数字を含むキーワードは加点されない。
func (s *Scorer) Score(title, description, content string) int {
	return s.relevance(title, description, content)
}

// MatchedKeywords は結合テキストに部分一致したキーワードを表の順序で返す。
func (s *Scorer) MatchedKeywords(title, description, content string) []string {
	text := textnorm.Normalize(textnorm.Join(title, description, content))
	matched := s.match(text)
	out := make([]string, len(matched))
	for i, kw := range matched {
		out[i] = kw.Term
	}
	return out
}

// Classify は関連度・配信元・信頼度・鮮度から優先度を判定する。
func (s *Scorer) Classify(title, description, content string, credibility int, sourceName string, pubDate *time.Time) model.Priority {
	relevance := s.Score(title, description, content)
	final := FinalScore(relevance, s.SourceMultiplier(sourceName), CredibilityFactor(credibility), RecencyBonus(pubDate, s.now()))
	return PriorityForScore(final)
}

// Categorize は判定順に最初に一致したカテゴリを返す。どれにも一致しない場合はgeneral。
func (s *Scorer) Categorize(title, description, content string) model.Category {
	return s.categorize(textnorm.Normalize(textnorm.Join(title, description, content)))
}

// SourceMultiplier は配信元名に対応する乗数を返す。
// 表の先頭から部分一致で照合し、一致しない場合は1.0。
func (s *Scorer) SourceMultiplier(sourceName string) float64 {
	name := textnorm.Normalize(sourceName)
	if name == "" {
		return 1.0
	}
	for _, src := range s.sources {
		if strings.Contains(name, src.Name) {
			return src.Multiplier
		}
	}
	return 1.0
}

// Enrich は記事にスコアリング結果を付与する。
func (s *Scorer) Enrich(entry model.FeedEntry) model.ScoredEntry {
	text := textnorm.Normalize(textnorm.Join(entry.Title, entry.Description, entry.Content))

	matched := s.match(text)
	keywords := make([]string, len(matched))
	for i, kw := range matched {
		keywords[i] = kw.Term
	}

	relevance := s.relevance(entry.Title, entry.Description, entry.Content)
	final := FinalScore(
		relevance,
		s.SourceMultiplier(entry.SourceName),
		CredibilityFactor(entry.SourceCredibility),
		RecencyBonus(entry.PubDate, s.now()),
	)

	return model.ScoredEntry{
		FeedEntry:      entry,
		RelevanceScore: relevance,
		Priority:       PriorityForScore(final),
		Category:       s.categorize(text),
		Keywords:       keywords,
	}
}

// EnrichBatch は複数記事を並列にスコアリングする。
// 出力順は入力順と一致する。
func (s *Scorer) EnrichBatch(entries []model.FeedEntry) []model.ScoredEntry {
	out := make([]model.ScoredEntry, len(entries))
	if len(entries) == 0 {
		return out
	}

	sem := make(chan struct{}, defaultBatchConcurrency)
	var wg sync.WaitGroup
	for i := range entries {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i] = s.Enrich(entries[i])
		}(i)
	}
	wg.Wait()

	return out
}

// relevance はキーワード抽出やカテゴリ判定とは異なり、数字を除いた正規形で照合する。
func (s *Scorer) relevance(title, description, content string) int {
	text := textnorm.NormalizeLetters(textnorm.Join(title, description, content))
	return scoreMatches(s.match(text), textnorm.NormalizeLetters(title))
}

func (s *Scorer) match(text string) []taxonomy.WeightedKeyword {
	if text == "" {
		return nil
	}
	var matched []taxonomy.WeightedKeyword
	for _, kw := range s.keywords {
		if strings.Contains(text, kw.Term) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func (s *Scorer) categorize(text string) model.Category {
	if text == "" {
		return model.CategoryGeneral
	}
	for _, rule := range s.categories {
		for _, term := range rule.Terms {
			if strings.Contains(text, term) {
				return rule.Category
			}
		}
	}
	return model.CategoryGeneral
}

func scoreMatches(matched []taxonomy.WeightedKeyword, normTitle string) int {
	score := 0
	for _, kw := range matched {
		score += kw.Weight
	}
	if len(matched) > 1 {
		score += comboBonusPerKeyword * len(matched)
	}
	for _, kw := range matched {
		if normTitle != "" && strings.Contains(normTitle, kw.Term) {
			score += titleBonusPerKeyword
		}
	}
	return clamp(score, 0, maxScore)
}

// CredibilityFactor は信頼度（0〜100）を係数0.7〜1.3に変換する。
// 範囲外の信頼度は0〜100に丸める。
func CredibilityFactor(credibility int) float64 {
	c := clamp(credibility, 0, 100)
	// 0.7 + c/100*0.6 を整数演算で求め、境界値を正確に保つ
	return float64(700+6*c) / 1000
}

// RecencyBonus は公開日時からの経過日数に応じた加点を返す。
// 経過日数はタイムゾーンを無視した壁時計同士の差を切り捨てた日数。
// pubDateがnilの場合は0。
func RecencyBonus(pubDate *time.Time, now time.Time) int {
	if pubDate == nil {
		return 0
	}
	p := *pubDate
	naive := time.Date(p.Year(), p.Month(), p.Day(), p.Hour(), p.Minute(), p.Second(), p.Nanosecond(), time.UTC)
	days := int(math.Floor(now.UTC().Sub(naive).Hours() / 24))

	switch {
	case days <= 1:
		return 10
	case days <= 7:
		return 5
	case days <= 30:
		return 2
	default:
		return 0
	}
}

// FinalScore は優先度判定に使う最終スコアを計算する。
func FinalScore(relevance int, sourceMultiplier, credibilityFactor float64, recencyBonus int) float64 {
	return float64(relevance)*sourceMultiplier*credibilityFactor + float64(recencyBonus)
}

// PriorityForScore は最終スコアを優先度に変換する。閾値は両端を含む。
func PriorityForScore(final float64) model.Priority {
	switch {
	case final >= highThreshold:
		return model.PriorityHigh
	case final >= mediumThreshold:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
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
