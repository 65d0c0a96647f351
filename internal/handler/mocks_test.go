package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fernandoxavier02/AccountingNews/internal/bookmark"
	"github.com/fernandoxavier02/AccountingNews/internal/item"
	"github.com/fernandoxavier02/AccountingNews/internal/middleware"
	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// --- モック定義 ---

type mockItemService struct {
	listFn func(ctx context.Context, f model.ItemListFilter) ([]*model.FeedItem, error)
	getFn  func(ctx context.Context, id string) (*model.FeedItem, error)
	total  int
}

func (m *mockItemService) ListItems(ctx context.Context, f model.ItemListFilter) (*model.ItemPage, error) {
	items := []*model.FeedItem{}
	if m.listFn != nil {
		var err error
		if items, err = m.listFn(ctx, f); err != nil {
			return nil, err
		}
	}
	total := m.total
	if total == 0 {
		total = f.Offset + len(items)
	}
	return &model.ItemPage{Items: items, TotalCount: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (m *mockItemService) GetItem(ctx context.Context, id string) (*model.FeedItem, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewItemNotFoundError(id)
}

func (m *mockItemService) Stats(context.Context) (*model.ItemStats, error) {
	return &model.ItemStats{TotalItems: 7}, nil
}

type mockSourceService struct {
	lastFilter model.SourceListFilter
}

func (m *mockSourceService) List(_ context.Context, f model.SourceListFilter) ([]*model.Source, error) {
	m.lastFilter = f
	return []*model.Source{{ID: "s1", Name: "Receita Federal", CredibilityScore: 95, IsActive: true, ETag: `"secret"`}}, nil
}

func (m *mockSourceService) Stats(context.Context) (*model.SourceStats, error) {
	return &model.SourceStats{TotalSources: 3}, nil
}

type mockSearchService struct {
	lastQuery    model.SearchQuery
	searchErr    error
	lastFragment string
	lastDays     int
	lastUserID   string
}

func (m *mockSearchService) Search(_ context.Context, q model.SearchQuery) (*model.SearchResultSet, error) {
	m.lastQuery = q
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return &model.SearchResultSet{Results: []model.SearchResult{}, Query: q.Query, Page: 1, PerPage: 20}, nil
}

func (m *mockSearchService) Suggestions(_ context.Context, fragment string) (*model.SearchSuggestions, error) {
	m.lastFragment = fragment
	return &model.SearchSuggestions{Suggestions: []string{"ibs"}, PopularSearches: []model.TermCount{}}, nil
}

func (m *mockSearchService) Analytics(_ context.Context, userID string, days int) (*model.SearchAnalytics, error) {
	m.lastUserID, m.lastDays = userID, days
	return &model.SearchAnalytics{PeriodDays: days}, nil
}

type mockBookmarkService struct {
	saveFn     func(userID, itemID, notes string, tags []string) (*model.Bookmark, error)
	lastParams bookmark.ListParams
	lastUpdate model.BookmarkUpdate
	deleted    []string
}

func (m *mockBookmarkService) Save(_ context.Context, userID, itemID, notes string, tags []string) (*model.Bookmark, error) {
	if m.saveFn != nil {
		return m.saveFn(userID, itemID, notes, tags)
	}
	return &model.Bookmark{ID: "bm-1", UserID: userID, FeedItemID: itemID, Notes: notes, Tags: tags}, nil
}

func (m *mockBookmarkService) List(_ context.Context, _ string, p bookmark.ListParams) (*bookmark.Page, error) {
	m.lastParams = p
	return &bookmark.Page{
		Bookmarks: []model.BookmarkWithItem{{
			Bookmark: model.Bookmark{ID: "bm-1", FeedItemID: "item-1"},
			Item:     model.FeedItem{ID: "item-1", Title: "IBS"},
		}},
		Total: 1, Page: 1, PerPage: 20, TotalPages: 1,
	}, nil
}

func (m *mockBookmarkService) Get(_ context.Context, _, id string) (*model.BookmarkWithItem, error) {
	return nil, model.NewBookmarkNotFoundError(id)
}

func (m *mockBookmarkService) Update(_ context.Context, _, id string, u model.BookmarkUpdate) (*model.Bookmark, error) {
	m.lastUpdate = u
	return &model.Bookmark{ID: id}, nil
}

func (m *mockBookmarkService) Delete(_ context.Context, _, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockBookmarkService) Stats(context.Context, string) (*model.BookmarkStats, error) {
	return &model.BookmarkStats{TotalBookmarks: 1}, nil
}

type mockAnalyzer struct {
	last model.FeedEntry
}

func (m *mockAnalyzer) Analyze(entry model.FeedEntry) (*item.Analysis, error) {
	m.last = entry
	return &item.Analysis{Verdict: model.FilterVerdict{IsRelevant: true, RelevanceScore: 80}}, nil
}

type mockPinger struct{ err error }

func (m *mockPinger) PingContext(context.Context) error { return m.err }

// --- テスト用ルーター ---

const testJWTSecret = "handler-test-secret"

type testEnv struct {
	router   http.Handler
	items    *mockItemService
	sources  *mockSourceService
	search   *mockSearchService
	bookmark *mockBookmarkService
	analyzer *mockAnalyzer
	pinger   *mockPinger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{GeneralPerMinute: 1000, SearchPerMinute: 1000, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)

	env := &testEnv{
		items:    &mockItemService{},
		sources:  &mockSourceService{},
		search:   &mockSearchService{},
		bookmark: &mockBookmarkService{},
		analyzer: &mockAnalyzer{},
		pinger:   &mockPinger{},
	}
	env.router = NewRouter(&RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		HealthChecker:     env.pinger,
		MetricsHandler:    http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "# metrics\n") }),
		AccessPolicy:      middleware.NewAccessPolicy(testJWTSecret, nil, []string{"firma.com.br"}),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		ItemService:       env.items,
		SourceService:     env.sources,
		SearchService:     env.search,
		BookmarkService:   env.bookmark,
		Analyzer:          env.analyzer,
	})
	return env
}

func bearer(t *testing.T, email string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + tok
}

// do はリクエストを実行する。authが空の場合は匿名。
func (e *testEnv) do(method, path, auth string, body any) *httptest.ResponseRecorder {
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		buf, _ := json.Marshal(b)
		rdr = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rdr)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v (raw %q)", err, w.Body.String())
	}
	return body
}
