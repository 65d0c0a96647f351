package scoring

import (
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/taxonomy"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestScorer() *Scorer {
	return NewScorer(taxonomy.Default()).WithClock(func() time.Time { return fixedNow })
}

func timePtr(t time.Time) *time.Time { return &t }

func TestScore_CoreReformTitleSaturates(t *testing.T) {
	s := newTestScorer()

	got := s.Score("Reforma Tributária aprovada: IBS e CBS entram em vigor", "", "")
	if got != 100 {
		t.Errorf("Score = %d, want 100", got)
	}
}

func TestScore_OffTopicIsZero(t *testing.T) {
	s := newTestScorer()

	if got := s.Score("Jogo de futebol tem grande público", "", ""); got != 0 {
		t.Errorf("Score = %d, want 0", got)
	}
}

func TestScore_DigitsAreNotMatched(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name  string
		title string
	}{
		{"数字を含むキーワードは加点しない", "PEC 45 avança no Senado"},
		{"より長い番号にも一致しない", "PEC 450 sobre transporte"},
		{"区切りなしの番号", "PEC 4592 arquivada"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Score(tt.title, "", ""); got != 0 {
				t.Errorf("Score(%q) = %d, want 0", tt.title, got)
			}
		})
	}
}

func TestEnrich_DigitKeywordIsExtractedButNotScored(t *testing.T) {
	s := newTestScorer()

	got := s.Enrich(model.FeedEntry{Title: "PEC 45 avança no Senado"})
	if got.RelevanceScore != 0 {
		t.Errorf("RelevanceScore = %d, want 0", got.RelevanceScore)
	}
	if want := []string{"pec 45"}; !reflect.DeepEqual(got.Keywords, want) {
		t.Errorf("Keywords = %v, want %v", got.Keywords, want)
	}
	if got.Category != model.CategoryTaxReform {
		t.Errorf("Category = %q, want tax_reform", got.Category)
	}
}

func TestScore_TitleBonus(t *testing.T) {
	s := newTestScorer()

	inTitle := s.Score("ICMS", "", "")
	inBody := s.Score("Notícia", "ICMS", "")

	if inBody != 70 {
		t.Errorf("Score(body) = %d, want 70", inBody)
	}
	if inTitle != 90 {
		t.Errorf("Score(title) = %d, want 90", inTitle)
	}
}

func TestScore_ComboBonus(t *testing.T) {
	s := newTestScorer()

	// fisco(30) + contribuinte(25) + 2語一致ボーナス(10)
	if got := s.Score("Notícia", "o fisco e o contribuinte", ""); got != 65 {
		t.Errorf("Score = %d, want 65", got)
	}
}

func TestScore_AccentInsensitive(t *testing.T) {
	s := newTestScorer()

	a := s.Score("Notícia", "tributação", "")
	b := s.Score("Notícia", "TRIBUTACAO", "")
	if a != b || a != 55 {
		t.Errorf("Score(tributação) = %d, Score(TRIBUTACAO) = %d, want both 55", a, b)
	}
}

func TestScore_AlwaysWithinRange(t *testing.T) {
	s := newTestScorer()

	inputs := [][3]string{
		{"", "", ""},
		{"!!!", "???", "..."},
		{strings.Repeat("reforma tributária ibs cbs iva icms ", 200), strings.Repeat("imposto ", 500), ""},
	}
	for _, in := range inputs {
		got := s.Score(in[0], in[1], in[2])
		if got < 0 || got > 100 {
			t.Errorf("Score(%.20q...) = %d, want within [0,100]", in[0], got)
		}
	}
}

func TestMatchedKeywords_TaxonomyOrder(t *testing.T) {
	s := newTestScorer()

	got := s.MatchedKeywords("COFINS e PIS", "mudanças no ICMS", "")
	want := []string{"icms", "pis", "cofins"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MatchedKeywords = %v, want %v", got, want)
	}
}

func TestCredibilityFactor(t *testing.T) {
	tests := []struct {
		credibility int
		want        float64
	}{
		{0, 0.7},
		{50, 1.0},
		{100, 1.3},
		{-10, 0.7},
		{150, 1.3},
	}
	for _, tt := range tests {
		if got := CredibilityFactor(tt.credibility); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("CredibilityFactor(%d) = %v, want %v", tt.credibility, got, tt.want)
		}
	}
}

func TestRecencyBonus(t *testing.T) {
	tests := []struct {
		name string
		pub  *time.Time
		want int
	}{
		{"公開日なし", nil, 0},
		{"数時間前", timePtr(fixedNow.Add(-3 * time.Hour)), 10},
		{"36時間前は1日", timePtr(fixedNow.Add(-36 * time.Hour)), 10},
		{"2日前", timePtr(fixedNow.Add(-48 * time.Hour)), 5},
		{"7日前", timePtr(fixedNow.AddDate(0, 0, -7)), 5},
		{"8日前", timePtr(fixedNow.AddDate(0, 0, -8)), 2},
		{"30日前", timePtr(fixedNow.AddDate(0, 0, -30)), 2},
		{"31日前", timePtr(fixedNow.AddDate(0, 0, -31)), 0},
		{"未来日時", timePtr(fixedNow.Add(48 * time.Hour)), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RecencyBonus(tt.pub, fixedNow); got != tt.want {
				t.Errorf("RecencyBonus = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRecencyBonus_IgnoresTimezoneOffset(t *testing.T) {
	// 壁時計の値だけを比較するため、-03:00で表現された40日前の日時は40日前として扱う
	brt := time.FixedZone("BRT", -3*60*60)
	pub := time.Date(2026, 1, 29, 12, 0, 0, 0, brt)
	if got := RecencyBonus(&pub, fixedNow); got != 0 {
		t.Errorf("RecencyBonus = %d, want 0", got)
	}

	// 壁時計では同時刻（UTCでは3時間後）
	same := time.Date(2026, 3, 10, 12, 0, 0, 0, brt)
	if got := RecencyBonus(&same, fixedNow); got != 10 {
		t.Errorf("RecencyBonus = %d, want 10", got)
	}
}

func TestPriorityForScore_Boundaries(t *testing.T) {
	tests := []struct {
		final float64
		want  model.Priority
	}{
		{100, model.PriorityHigh},
		{80, model.PriorityHigh},
		{79.99, model.PriorityMedium},
		{58.8, model.PriorityMedium},
		{50, model.PriorityMedium},
		{49.99, model.PriorityLow},
		{42, model.PriorityLow},
		{0, model.PriorityLow},
	}
	for _, tt := range tests {
		if got := PriorityForScore(tt.final); got != tt.want {
			t.Errorf("PriorityForScore(%v) = %q, want %q", tt.final, got, tt.want)
		}
	}
}

func TestFinalScore_ZeroCredibility(t *testing.T) {
	factor := CredibilityFactor(0)

	if got := FinalScore(60, 1.0, factor, 0); math.Abs(got-42) > 1e-9 {
		t.Errorf("FinalScore(60) = %v, want 42", got)
	}
	got := FinalScore(84, 1.0, factor, 0)
	if math.Abs(got-58.8) > 1e-9 {
		t.Errorf("FinalScore(84) = %v, want 58.8", got)
	}
	if p := PriorityForScore(got); p != model.PriorityMedium {
		t.Errorf("priority = %q, want medium", p)
	}
}

func TestClassify_HighBoundaryInclusive(t *testing.T) {
	s := newTestScorer()

	// emenda constitucional(80) のみ、信頼度50で係数1.0、配信元不明で乗数1.0
	if got := s.Score("Notícia do dia", "emenda constitucional", ""); got != 80 {
		t.Fatalf("precondition: Score = %d, want 80", got)
	}
	if got := s.Classify("Notícia do dia", "emenda constitucional", "", 50, "", nil); got != model.PriorityHigh {
		t.Errorf("Classify = %q, want high", got)
	}
	if got := s.Classify("Notícia do dia", "emenda constitucional", "", 49, "", nil); got != model.PriorityMedium {
		t.Errorf("Classify(credibility 49) = %q, want medium", got)
	}
}

func TestClassify_MediumBoundaryWithRecency(t *testing.T) {
	s := newTestScorer()

	// imposto(40) + 1日以内ボーナス(10) = 50
	recent := fixedNow.Add(-time.Hour)
	if got := s.Classify("Notícia", "imposto", "", 50, "", &recent); got != model.PriorityMedium {
		t.Errorf("Classify = %q, want medium", got)
	}

	// imposto(40) + 7日以内ボーナス(5) = 45
	older := fixedNow.AddDate(0, 0, -3)
	if got := s.Classify("Notícia", "imposto", "", 50, "", &older); got != model.PriorityLow {
		t.Errorf("Classify = %q, want low", got)
	}
}

func TestClassify_OffTopicIsLow(t *testing.T) {
	s := newTestScorer()

	if got := s.Classify("Jogo de futebol tem grande público", "", "", model.DefaultCredibility, "", nil); got != model.PriorityLow {
		t.Errorf("Classify = %q, want low", got)
	}
}

func TestClassify_MonotonicInCredibility(t *testing.T) {
	s := newTestScorer()
	rank := map[model.Priority]int{model.PriorityLow: 0, model.PriorityMedium: 1, model.PriorityHigh: 2}

	prev := -1
	for cred := 0; cred <= 100; cred++ {
		p := s.Classify("Notícia", "lei complementar", "", cred, "Senado Federal", nil)
		if rank[p] < prev {
			t.Fatalf("priority decreased at credibility %d: %q", cred, p)
		}
		prev = rank[p]
	}
}

func TestSourceMultiplier(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		source string
		want   float64
	}{
		{"Receita Federal do Brasil", 1.0},
		{"Agência Senado Federal", 0.95},
		{"Camara dos Deputados", 0.95},
		{"Portal da Transparência", 0.85},
		{"Governo Federal", 0.8},
		{"Congresso Nacional", 0.9},
		{"Blog Desconhecido", 1.0},
		{"", 1.0},
	}
	for _, tt := range tests {
		if got := s.SourceMultiplier(tt.source); got != tt.want {
			t.Errorf("SourceMultiplier(%q) = %v, want %v", tt.source, got, tt.want)
		}
	}
}

func TestCategorize(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name  string
		title string
		desc  string
		want  model.Category
	}{
		{"税制改革が最優先", "Nova lei sobre o IBS", "", model.CategoryTaxReform},
		{"法令", "Projeto aprovado no plenário", "", model.CategoryLegislation},
		{"経済", "A inflação subiu", "", model.CategoryEconomy},
		{"規制", "Nova portaria publicada", "", model.CategoryRegulation},
		{"一致なし", "Jogo de futebol tem grande público", "", model.CategoryGeneral},
		{"空入力", "", "", model.CategoryGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Categorize(tt.title, tt.desc, "")
			if got != tt.want {
				t.Errorf("Categorize = %q, want %q", got, tt.want)
			}
			if !got.Valid() {
				t.Errorf("Categorize returned undefined category %q", got)
			}
		})
	}
}

func TestEnrich(t *testing.T) {
	s := newTestScorer()
	pub := fixedNow.Add(-2 * time.Hour)

	got := s.Enrich(model.FeedEntry{
		Title:             "Reforma Tributária aprovada: IBS e CBS entram em vigor",
		SourceName:        "Agência Senado Federal",
		SourceCredibility: 90,
		PubDate:           &pub,
	})

	if got.RelevanceScore != 100 {
		t.Errorf("RelevanceScore = %d, want 100", got.RelevanceScore)
	}
	if got.Priority != model.PriorityHigh {
		t.Errorf("Priority = %q, want high", got.Priority)
	}
	if got.Category != model.CategoryTaxReform {
		t.Errorf("Category = %q, want tax_reform", got.Category)
	}
	want := []string{"reforma tributaria", "ibs", "cbs"}
	if !reflect.DeepEqual(got.Keywords, want) {
		t.Errorf("Keywords = %v, want %v", got.Keywords, want)
	}
}

func TestEnrich_OffTopicDefaults(t *testing.T) {
	s := newTestScorer()

	got := s.Enrich(model.FeedEntry{Title: "Jogo de futebol tem grande público"})
	if got.Priority != model.PriorityLow {
		t.Errorf("Priority = %q, want low", got.Priority)
	}
	if got.Category != model.CategoryGeneral {
		t.Errorf("Category = %q, want general", got.Category)
	}
	if len(got.Keywords) != 0 {
		t.Errorf("Keywords = %v, want empty", got.Keywords)
	}
}

func TestEnrichBatch_PreservesOrder(t *testing.T) {
	s := newTestScorer()

	entries := make([]model.FeedEntry, 30)
	for i := range entries {
		if i%2 == 0 {
			entries[i] = model.FeedEntry{Title: "IBS e CBS"}
		} else {
			entries[i] = model.FeedEntry{Title: "Jogo de futebol"}
		}
	}

	got := s.EnrichBatch(entries)
	if len(got) != len(entries) {
		t.Fatalf("len = %d, want %d", len(got), len(entries))
	}
	for i, e := range got {
		if e.Title != entries[i].Title {
			t.Errorf("got[%d].Title = %q, want %q", i, e.Title, entries[i].Title)
		}
		want := s.Score(entries[i].Title, "", "")
		if e.RelevanceScore != want {
			t.Errorf("got[%d].RelevanceScore = %d, want %d", i, e.RelevanceScore, want)
		}
	}

	if out := s.EnrichBatch(nil); len(out) != 0 {
		t.Errorf("EnrichBatch(nil) = %v, want empty", out)
	}
}
