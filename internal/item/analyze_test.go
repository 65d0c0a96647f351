package item

import (
	"errors"
	"testing"
	"time"

	"github.com/fernandoxavier02/AccountingNews/internal/filter"
	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/scoring"
	"github.com/fernandoxavier02/AccountingNews/internal/taxonomy"
)

func newTestAnalyzer() *Analyzer {
	tax := taxonomy.Default()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return NewAnalyzer(filter.New(tax), scoring.NewScorer(tax).WithClock(func() time.Time { return now }))
}

func TestAnalyzer_RelevantEntry(t *testing.T) {
	a := newTestAnalyzer()

	got, err := a.Analyze(model.FeedEntry{
		Title:             "Reforma Tributária aprovada: IBS e CBS entram em vigor",
		Description:       "<p>Nova <b>legislação</b> tributária</p>",
		SourceCredibility: 90,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !got.Verdict.IsRelevant || got.Verdict.FilterReason != "" {
		t.Errorf("verdict = %+v", got.Verdict)
	}
	if got.Scored.RelevanceScore != 100 || got.Scored.Category != model.CategoryTaxReform {
		t.Errorf("scored = %+v", got.Scored)
	}
	if got.Scored.Description != "Nova legislação tributária" {
		t.Errorf("Description = %q, want plain text", got.Scored.Description)
	}
}

func TestAnalyzer_OffTopicEntry(t *testing.T) {
	got, err := newTestAnalyzer().Analyze(model.FeedEntry{Title: "Jogo de futebol tem grande público"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got.Verdict.IsRelevant || got.Verdict.FilterReason != "no primary keyword found" {
		t.Errorf("verdict = %+v", got.Verdict)
	}
	if got.Scored.Priority != model.PriorityLow || got.Scored.Category != model.CategoryGeneral {
		t.Errorf("scored = %+v", got.Scored)
	}
}

func TestAnalyzer_EmptyEntry(t *testing.T) {
	_, err := newTestAnalyzer().Analyze(model.FeedEntry{})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRequest {
		t.Errorf("err = %v, want INVALID_REQUEST", err)
	}
}
