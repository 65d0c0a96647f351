package fetch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// --- モック定義 ---

// mockSourceRepo はSourceRepositoryのテスト用モック。
type mockSourceRepo struct {
	listDueForFetchFunc  func(ctx context.Context) ([]*model.Source, error)
	updateFetchStateFunc func(ctx context.Context, src *model.Source) error

	mu      sync.Mutex
	updates []model.Source
}

func (m *mockSourceRepo) List(context.Context, model.SourceListFilter) ([]*model.Source, error) {
	return nil, nil
}

func (m *mockSourceRepo) FindByID(context.Context, string) (*model.Source, error) {
	return nil, nil
}

func (m *mockSourceRepo) Upsert(context.Context, *model.Source) error {
	return nil
}

func (m *mockSourceRepo) Stats(context.Context) (*model.SourceStats, error) {
	return &model.SourceStats{}, nil
}

func (m *mockSourceRepo) ListDueForFetch(ctx context.Context) ([]*model.Source, error) {
	if m.listDueForFetchFunc != nil {
		return m.listDueForFetchFunc(ctx)
	}
	return nil, nil
}

func (m *mockSourceRepo) UpdateFetchState(ctx context.Context, src *model.Source) error {
	m.mu.Lock()
	m.updates = append(m.updates, *src)
	m.mu.Unlock()
	if m.updateFetchStateFunc != nil {
		return m.updateFetchStateFunc(ctx, src)
	}
	return nil
}

// statuses は保存されたフェッチ状態の履歴を返す。
func (m *mockSourceRepo) statuses() []model.FetchStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.FetchStatus, len(m.updates))
	for i, u := range m.updates {
		out[i] = u.LastFetchStatus
	}
	return out
}

// mockFetcher はSourceFetcherのテスト用モック。
type mockFetcher struct {
	fetchFunc func(ctx context.Context, src *model.Source) error
}

func (m *mockFetcher) Fetch(ctx context.Context, src *model.Source) error {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, src)
	}
	return nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func makeSources(n int) []*model.Source {
	out := make([]*model.Source, n)
	for i := range out {
		out[i] = &model.Source{ID: string(rune('a' + i)), URL: "https://example.com/feed"}
	}
	return out
}

// --- スケジューラのテスト ---

func TestNewScheduler_DefaultConcurrency(t *testing.T) {
	var buf bytes.Buffer
	s := NewScheduler(&mockSourceRepo{}, &mockFetcher{}, newTestLogger(&buf), 0)
	if s.maxConcurrency != 5 {
		t.Errorf("maxConcurrency = %d, want 5", s.maxConcurrency)
	}
}

func TestScheduler_RunOnce_FetchesAllDueSources(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockSourceRepo{
		listDueForFetchFunc: func(context.Context) ([]*model.Source, error) {
			return makeSources(7), nil
		},
	}
	var mu sync.Mutex
	fetched := map[string]bool{}
	fetcher := &mockFetcher{fetchFunc: func(_ context.Context, src *model.Source) error {
		mu.Lock()
		fetched[src.ID] = true
		mu.Unlock()
		return nil
	}}

	n, err := NewScheduler(repo, fetcher, newTestLogger(&buf), 3).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if n != 7 || len(fetched) != 7 {
		t.Errorf("attempted = %d, fetched = %d, want 7", n, len(fetched))
	}
}

func TestScheduler_RunOnce_RespectsMaxConcurrency(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockSourceRepo{
		listDueForFetchFunc: func(context.Context) ([]*model.Source, error) {
			return makeSources(12), nil
		},
	}
	var current, peak int32
	fetcher := &mockFetcher{fetchFunc: func(context.Context, *model.Source) error {
		c := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if c <= p || atomic.CompareAndSwapInt32(&peak, p, c) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return nil
	}}

	if _, err := NewScheduler(repo, fetcher, newTestLogger(&buf), 2).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestScheduler_RunOnce_FailureDoesNotStopOthers(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockSourceRepo{
		listDueForFetchFunc: func(context.Context) ([]*model.Source, error) {
			return makeSources(3), nil
		},
	}
	var calls int32
	fetcher := &mockFetcher{fetchFunc: func(_ context.Context, src *model.Source) error {
		atomic.AddInt32(&calls, 1)
		if src.ID == "a" {
			return errors.New("connection refused")
		}
		return nil
	}}

	if _, err := NewScheduler(repo, fetcher, newTestLogger(&buf), 1).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("fetch calls = %d, want 3", calls)
	}
}

func TestScheduler_RunOnce_ListError(t *testing.T) {
	var buf bytes.Buffer
	listErr := errors.New("db down")
	repo := &mockSourceRepo{
		listDueForFetchFunc: func(context.Context) ([]*model.Source, error) {
			return nil, listErr
		},
	}

	_, err := NewScheduler(repo, &mockFetcher{}, newTestLogger(&buf), 1).RunOnce(context.Background())
	if !errors.Is(err, listErr) {
		t.Errorf("err = %v, want %v", err, listErr)
	}
}

func TestScheduler_Start_StopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	var cycles int32
	repo := &mockSourceRepo{
		listDueForFetchFunc: func(context.Context) ([]*model.Source, error) {
			atomic.AddInt32(&cycles, 1)
			return nil, nil
		},
	}
	s := NewScheduler(repo, &mockFetcher{}, newTestLogger(&buf), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, 20*time.Millisecond)
		close(done)
	}()

	time.Sleep(70 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if atomic.LoadInt32(&cycles) < 2 {
		t.Errorf("cycles = %d, want at least 2 (immediate run plus ticks)", cycles)
	}
}
