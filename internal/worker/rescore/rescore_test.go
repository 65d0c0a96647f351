package rescore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/scoring"
	"github.com/fernandoxavier02/AccountingNews/internal/taxonomy"
)

// --- テスト用モック ---

type mockItemRepo struct {
	items     []*model.FeedItem // id昇順
	pages     []string          // ListForRescoreに渡されたafterID
	updates   map[string]model.ItemScores
	updateErr error
}

func (m *mockItemRepo) InsertIfAbsent(context.Context, *model.FeedItem) (bool, error) {
	return false, nil
}
func (m *mockItemRepo) FindByID(context.Context, string) (*model.FeedItem, error) { return nil, nil }
func (m *mockItemRepo) List(context.Context, model.ItemListFilter) ([]*model.FeedItem, error) {
	return nil, nil
}
func (m *mockItemRepo) Count(context.Context, model.ItemListFilter) (int, error) { return 0, nil }
func (m *mockItemRepo) Stats(context.Context) (*model.ItemStats, error)         { return nil, nil }

func (m *mockItemRepo) ListForRescore(_ context.Context, afterID string, limit int) ([]*model.FeedItem, error) {
	m.pages = append(m.pages, afterID)
	var out []*model.FeedItem
	for _, it := range m.items {
		if it.ID > afterID && len(out) < limit {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockItemRepo) UpdateScores(_ context.Context, id string, s model.ItemScores) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if m.updates == nil {
		m.updates = map[string]model.ItemScores{}
	}
	m.updates[id] = s
	return nil
}

type mockSourceRepo struct {
	sources []*model.Source
	listErr error
}

func (m *mockSourceRepo) List(context.Context, model.SourceListFilter) ([]*model.Source, error) {
	return m.sources, m.listErr
}
func (m *mockSourceRepo) FindByID(context.Context, string) (*model.Source, error) { return nil, nil }
func (m *mockSourceRepo) Upsert(context.Context, *model.Source) error             { return nil }
func (m *mockSourceRepo) Stats(context.Context) (*model.SourceStats, error)       { return nil, nil }
func (m *mockSourceRepo) ListDueForFetch(context.Context) ([]*model.Source, error) {
	return nil, nil
}
func (m *mockSourceRepo) UpdateFetchState(context.Context, *model.Source) error { return nil }

type mockRecorder struct{ counts []int }

func (m *mockRecorder) RecordItemsRescored(n int) { m.counts = append(m.counts, n) }

func newJob(items *mockItemRepo, sources *mockSourceRepo, rec *mockRecorder, batch int) *Job {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	scorer := scoring.NewScorer(taxonomy.Default()).WithClock(func() time.Time { return now })
	return NewJob(items, sources, scorer, rec, slog.New(slog.NewJSONHandler(io.Discard, nil)), Config{BatchSize: batch})
}

func TestJob_RunOnce_PagesThroughAllItems(t *testing.T) {
	items := &mockItemRepo{items: []*model.FeedItem{
		{ID: "01", SourceID: "s1", Title: "Reforma Tributária aprovada: IBS e CBS entram em vigor", Priority: model.PriorityLow, Category: model.CategoryGeneral},
		{ID: "02", SourceID: "s1", Title: "Jogo de futebol tem grande público", Priority: model.PriorityLow, Category: model.CategoryGeneral, Keywords: []string{}},
		{ID: "03", SourceID: "s2", Title: "<b>CBS</b> regulamentada", Description: "<p>Texto sobre a CBS</p>"},
	}}
	sources := &mockSourceRepo{sources: []*model.Source{{ID: "s1", CredibilityScore: 90}}}
	rec := &mockRecorder{}

	updated, err := newJob(items, sources, rec, 2).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	// 2件ずつ: "" → "02" で終了（2ページ目が1件のみ）
	if len(items.pages) != 2 || items.pages[0] != "" || items.pages[1] != "02" {
		t.Errorf("pages = %v, want [\"\" \"02\"]", items.pages)
	}
	// 02はスコアが変わらないため更新しない
	if updated != 2 {
		t.Errorf("updated = %d, want 2", updated)
	}
	if _, ok := items.updates["02"]; ok {
		t.Error("unchanged item must not be written")
	}
	got := items.updates["01"]
	if got.RelevanceScore != 100 || got.Priority != model.PriorityHigh || got.Category != model.CategoryTaxReform {
		t.Errorf("rescored 01 = %+v", got)
	}
	if len(rec.counts) != 1 || rec.counts[0] != 2 {
		t.Errorf("recorded = %v, want [2]", rec.counts)
	}
}

func TestJob_RunOnce_UnknownSourceUsesDefaultCredibility(t *testing.T) {
	title := "Reforma Tributária aprovada: IBS e CBS entram em vigor"
	items := &mockItemRepo{items: []*model.FeedItem{{ID: "01", SourceID: "gone", Title: title}}}
	job := newJob(items, &mockSourceRepo{}, &mockRecorder{}, 10)

	if _, err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	want := job.scorer.Enrich(model.FeedEntry{Title: title, SourceCredibility: model.DefaultCredibility})
	if got := items.updates["01"]; got.Priority != want.Priority {
		t.Errorf("priority = %q, want %q", got.Priority, want.Priority)
	}
}

func TestJob_RunOnce_Errors(t *testing.T) {
	listErr := errors.New("db down")
	_, err := newJob(&mockItemRepo{}, &mockSourceRepo{listErr: listErr}, &mockRecorder{}, 10).RunOnce(context.Background())
	if !errors.Is(err, listErr) {
		t.Errorf("err = %v, want wrapped %v", err, listErr)
	}

	updErr := errors.New("write failed")
	items := &mockItemRepo{
		items:     []*model.FeedItem{{ID: "01", Title: "IBS e CBS"}},
		updateErr: updErr,
	}
	_, err = newJob(items, &mockSourceRepo{}, &mockRecorder{}, 10).RunOnce(context.Background())
	if !errors.Is(err, updErr) {
		t.Errorf("err = %v, want wrapped %v", err, updErr)
	}
}

func TestJob_RunOnce_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items := &mockItemRepo{items: []*model.FeedItem{{ID: "01"}}}

	_, err := newJob(items, &mockSourceRepo{}, &mockRecorder{}, 10).RunOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(items.pages) != 0 {
		t.Error("no page should be read after cancellation")
	}
}

func TestJob_Start_DisabledReturnsImmediately(t *testing.T) {
	job := newJob(&mockItemRepo{}, &mockSourceRepo{}, &mockRecorder{}, 10)
	done := make(chan struct{})
	go func() {
		job.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start with zero interval should return immediately")
	}
}
