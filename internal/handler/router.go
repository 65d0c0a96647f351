package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fernandoxavier02/AccountingNews/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger            *slog.Logger
	HealthChecker     HealthChecker
	MetricsHandler    http.Handler
	AccessPolicy      *middleware.AccessPolicy
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	ItemService     ItemServiceInterface
	SourceService   SourceServiceInterface
	SearchService   SearchServiceInterface
	BookmarkService BookmarkServiceInterface
	Analyzer        AnalyzerInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (Auth | OptionalAuth) → RateLimit
//
// /health、/metrics、/api/public/* は認証不要。
// /api/search/* は匿名でも利用でき、トークンがあればユーザーに紐づけて記録する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	itemHandler := NewItemHandler(deps.ItemService)
	sourceHandler := NewSourceHandler(deps.SourceService)
	searchHandler := NewSearchHandler(deps.SearchService)
	bookmarkHandler := NewBookmarkHandler(deps.BookmarkService)
	analyzeHandler := NewAnalyzeHandler(deps.Analyzer)

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証不要 ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Get("/api/public/sources", sourceHandler.ListPublic)
	})

	// --- 匿名可 ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOptionalAuthMiddleware(deps.AccessPolicy))
		r.Use(deps.RateLimiter.SearchMiddleware())

		r.Post("/api/search", searchHandler.Search)
		r.Get("/api/search/suggestions", searchHandler.Suggestions)
		r.Get("/api/search/analytics", searchHandler.Analytics)
	})

	// --- 認証が必要 ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.AccessPolicy))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/items", func(r chi.Router) {
			r.Get("/", itemHandler.ListItems)
			r.Get("/stats", itemHandler.Stats)
			r.Get("/{id}", itemHandler.GetItem)
		})

		r.Route("/api/sources", func(r chi.Router) {
			r.Get("/", sourceHandler.List)
			r.Get("/stats", sourceHandler.Stats)
		})

		r.Post("/api/analyze", analyzeHandler.Analyze)

		r.Route("/api/bookmarks", func(r chi.Router) {
			r.Post("/", bookmarkHandler.Create)
			r.Get("/", bookmarkHandler.List)
			r.Get("/stats", bookmarkHandler.Stats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", bookmarkHandler.Get)
				r.Put("/", bookmarkHandler.Update)
				r.Delete("/", bookmarkHandler.Delete)
			})
		})
	})

	return r
}
