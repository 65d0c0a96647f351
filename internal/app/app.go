// Package app はtributoflowのコマンドと依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fernandoxavier02/AccountingNews/internal/bookmark"
	"github.com/fernandoxavier02/AccountingNews/internal/config"
	"github.com/fernandoxavier02/AccountingNews/internal/database"
	"github.com/fernandoxavier02/AccountingNews/internal/filter"
	"github.com/fernandoxavier02/AccountingNews/internal/handler"
	"github.com/fernandoxavier02/AccountingNews/internal/item"
	"github.com/fernandoxavier02/AccountingNews/internal/metrics"
	"github.com/fernandoxavier02/AccountingNews/internal/middleware"
	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/redisclient"
	"github.com/fernandoxavier02/AccountingNews/internal/repository"
	"github.com/fernandoxavier02/AccountingNews/internal/scoring"
	"github.com/fernandoxavier02/AccountingNews/internal/search"
	"github.com/fernandoxavier02/AccountingNews/internal/security"
	"github.com/fernandoxavier02/AccountingNews/internal/source"
	"github.com/fernandoxavier02/AccountingNews/internal/taxonomy"
	"github.com/fernandoxavier02/AccountingNews/internal/worker/cleanup"
	fetchpkg "github.com/fernandoxavier02/AccountingNews/internal/worker/fetch"
	"github.com/fernandoxavier02/AccountingNews/internal/worker/rescore"
)

const (
	shutdownTimeout = 30 * time.Second
	cleanupInterval = 24 * time.Hour
)

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMでコマンドのコンテキストをキャンセルする。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(databaseURL)),
	)
	return db, nil
}

// newRegistry はGo/プロセスのメトリクスを含むレジストリとCollectorを生成する。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newTermCounter はREDIS_ADDRが設定されていればRedis、なければPostgreSQLの検索語カウンタを返す。
// 戻り値のclose関数は必ず呼び出す。
func newTermCounter(ctx context.Context, cfg *config.Config, fallback repository.TermCounter) (repository.TermCounter, func(), error) {
	if cfg.Redis.Addr == "" {
		return fallback, func() {}, nil
	}
	rdb, err := redisclient.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("redis connection established", slog.String("addr", cfg.Redis.Addr))
	return repository.NewRedisTermCounter(rdb), func() { rdb.Close() }, nil
}

// runServe はAPIサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func runServe(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	sourceRepo := repository.NewPostgresSourceRepo(db)
	itemRepo := repository.NewPostgresItemRepo(db)
	searchRepo := repository.NewPostgresSearchRepo(db)
	searchLogRepo := repository.NewPostgresSearchLogRepo(db)
	bookmarkRepo := repository.NewPostgresBookmarkRepo(db)

	terms, closeTerms, err := newTermCounter(ctx, cfg, searchLogRepo)
	if err != nil {
		return err
	}
	defer closeTerms()

	reg, collector := newRegistry()
	tax := taxonomy.Default()

	searchService := search.NewService(searchRepo, terms, searchLogRepo, collector, slog.Default())
	defer searchService.Wait()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralPerMinute: cfg.RateLimitGeneral,
		SearchPerMinute:  cfg.RateLimitSearch,
		CleanupInterval:  middleware.DefaultRateLimiterConfig().CleanupInterval,
	})
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		HealthChecker:     db,
		MetricsHandler:    metrics.Handler(reg),
		AccessPolicy:      middleware.NewAccessPolicy(cfg.JWTSecret, cfg.AuthorizedEmails, cfg.AuthorizedDomains),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		ItemService:     item.NewItemService(itemRepo),
		SourceService:   source.NewService(sourceRepo, security.NewSSRFGuard()),
		SearchService:   searchService,
		BookmarkService: bookmark.NewService(bookmarkRepo, itemRepo),
		Analyzer:        item.NewAnalyzer(filter.New(tax), scoring.NewScorer(tax)),
	})

	return serveHTTP(ctx, &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	})
}

// serveHTTP はctxがキャンセルされるまでサーバーを動かし、その後シャットダウンする。
func serveHTTP(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runWorker はフェッチスケジューラ、リスコアジョブ、検索履歴の削除ジョブを起動する。
// ワーカーも/healthと/metricsを公開し、コンテナのヘルスチェックとスクレイプに応える。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	sourceRepo := repository.NewPostgresSourceRepo(db)
	itemRepo := repository.NewPostgresItemRepo(db)

	reg, collector := newRegistry()
	tax := taxonomy.Default()
	scorer := scoring.NewScorer(tax)
	ssrfGuard := security.NewSSRFGuard()

	ingester := item.NewIngestService(
		itemRepo, security.NewContentSanitizer(), filter.New(tax), scorer, collector, slog.Default(),
	)
	fetcher := fetchpkg.NewFetcher(sourceRepo, ingester, ssrfGuard, collector, slog.Default(), fetchpkg.Options{
		Timeout:     cfg.FetchTimeout,
		MaxBodySize: cfg.FetchMaxSize,
		MaxEntries:  cfg.FetchMaxEntries,
		Interval:    cfg.FetchInterval,
	})
	scheduler := fetchpkg.NewScheduler(sourceRepo, fetcher, slog.Default(), cfg.FetchMaxConcurrent)

	rescoreJob := rescore.NewJob(itemRepo, sourceRepo, scorer, collector, slog.Default(), rescore.Config{
		Interval:  cfg.RescoreInterval,
		BatchSize: cfg.RescoreBatchSize,
	})
	cleanupJob := cleanup.NewHistoryCleanupJob(db, slog.Default(), cfg.HistoryRetentionDays)

	slog.Info("worker starting",
		slog.Duration("fetch_interval", cfg.FetchInterval),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
		slog.Duration("rescore_interval", cfg.RescoreInterval),
		slog.Int("history_retention_days", cfg.HistoryRetentionDays),
	)

	mux := http.NewServeMux()
	mux.Handle("/health", handler.NewHealthHandler(db))
	mux.Handle("/metrics", metrics.Handler(reg))
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	run(func() { rescoreJob.Start(ctx) })
	run(func() {
		// 起動直後に1回実行する。エラーはRun内でログ出力済み
		_, _ = cleanupJob.Run(ctx)
		cleanupJob.Start(ctx, cleanupInterval)
	})
	run(func() { scheduler.Start(ctx, cfg.FetchInterval) })

	err = serveHTTP(ctx, server)
	cancel()
	wg.Wait()
	if err != nil {
		return err
	}
	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はすべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runRescore は全記事のスコアを1回だけ再計算する。
func runRescore(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	job := rescore.NewJob(
		repository.NewPostgresItemRepo(db),
		repository.NewPostgresSourceRepo(db),
		scoring.NewScorer(taxonomy.Default()),
		nil,
		slog.Default(),
		rescore.Config{BatchSize: cfg.RescoreBatchSize},
	)
	updated, err := job.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("rescore failed: %w", err)
	}
	slog.Info("rescore completed", slog.Int("updated", updated))
	return nil
}

// runSeed はYAMLファイルの配信元を登録し、結果をwに書き出す。
func runSeed(ctx context.Context, cfg *config.Config, path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	seed, err := source.ParseSeed(f)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := source.NewService(repository.NewPostgresSourceRepo(db), security.NewSSRFGuard())
	result, err := svc.Seed(ctx, seed)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	for _, reason := range result.Skipped {
		slog.Warn("配信元をスキップしました", slog.String("reason", reason))
	}
	fmt.Fprintf(w, "upserted: %d, skipped: %d\n", result.Upserted, len(result.Skipped))
	return nil
}

// runAnalyze は記事1件の判定結果をJSONでwに書き出す。
func runAnalyze(w io.Writer, entry model.FeedEntry) error {
	tax := taxonomy.Default()
	analyzer := item.NewAnalyzer(filter.New(tax), scoring.NewScorer(tax))

	analysis, err := analyzer.Analyze(entry)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(analysis)
}

// runHealthcheck はhealthURLにGETを送り、200以外をエラーとする。
func runHealthcheck(ctx context.Context, healthURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
