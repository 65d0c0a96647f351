package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/fernandoxavier02/AccountingNews/internal/metrics"
	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/repository"
)

const userAgent = "TributoFlow/1.0 (+RSS monitor)"

// Ingester はパース済み記事の取り込み処理のインターフェース。
type Ingester interface {
	Ingest(ctx context.Context, source *model.Source, items []model.ParsedItem) (model.IngestResult, error)
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// FetchRecorder はフェッチメトリクスの記録先。
type FetchRecorder interface {
	RecordFetchSuccess(sourceID string)
	RecordFetchFailure(sourceID string, reason string)
	RecordParseFailure(sourceID string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
}

// Options はFetcherの動作設定。
type Options struct {
	Timeout     time.Duration
	MaxBodySize int64
	MaxEntries  int           // 1回のフェッチで取り込む最大件数
	Interval    time.Duration // 成功時の次回フェッチまでの間隔
}

// Fetcher は1ソースのHTTPフェッチ、パース、取り込みを行う。
// ETag/Last-Modifiedによる条件付きGETとSSRF検証を行い、
// 結果に応じてソースのフェッチ状態を更新する。
type Fetcher struct {
	sources   repository.SourceRepository
	ingester  Ingester
	ssrfGuard SSRFValidator
	metrics   FetchRecorder
	logger    *slog.Logger
	opts      Options
	now       func() time.Time
}

// NewFetcher はFetcherを生成する。mがnilの場合はメトリクスを記録しない。
func NewFetcher(
	sources repository.SourceRepository,
	ingester Ingester,
	ssrfGuard SSRFValidator,
	m FetchRecorder,
	logger *slog.Logger,
	opts Options,
) *Fetcher {
	if m == nil {
		m = metrics.NopCollector{}
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 20
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	return &Fetcher{
		sources:   sources,
		ingester:  ingester,
		ssrfGuard: ssrfGuard,
		metrics:   m,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Fetch はソースをフェッチし、結果に応じてフェッチ状態を更新する。
// HTTPステータスやパースの失敗はソースの状態として記録し、エラーは返さない。
// SSRF検証失敗と通信失敗はエラーを返す。
func (f *Fetcher) Fetch(ctx context.Context, src *model.Source) error {
	start := f.now()
	log := f.logger.With(slog.String("source_id", src.ID), slog.String("url", src.URL))

	MarkProcessing(src, start)
	f.saveState(ctx, src)

	if err := f.ssrfGuard.ValidateURL(src.URL); err != nil {
		log.Error("SSRF検証に失敗しました", slog.String("error", err.Error()))
		f.metrics.RecordFetchFailure(src.ID, metrics.FetchFailureSSRF)
		ApplyStopSource(src, fmt.Sprintf("SSRF検証失敗: %s", err.Error()))
		f.saveState(ctx, src)
		return fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := f.ssrfGuard.NewSafeClient(f.opts.Timeout, f.opts.MaxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		ApplyStopSource(src, fmt.Sprintf("不正なURL: %s", err.Error()))
		f.saveState(ctx, src)
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	if src.ETag != "" {
		req.Header.Set("If-None-Match", src.ETag)
	}
	if src.LastModified != "" {
		req.Header.Set("If-Modified-Since", src.LastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		now := f.now()
		if isTimeout(err) {
			log.Warn("フェッチがタイムアウトしました", slog.String("error", err.Error()))
			f.metrics.RecordFetchFailure(src.ID, metrics.FetchFailureTimeout)
			ApplyTimeout(src, fmt.Sprintf("タイムアウト: %s", err.Error()), now)
		} else {
			log.Error("HTTPリクエストに失敗しました", slog.String("error", err.Error()))
			f.metrics.RecordFetchFailure(src.ID, metrics.FetchFailureTransport)
			ApplyBackoff(src, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()), now)
		}
		f.saveState(ctx, src)
		return fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	f.metrics.RecordHTTPStatus(resp.StatusCode)

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case FetchResultOK:
	case FetchResultNotModified:
		log.Info("フィードは未変更です（304）")
		ApplySuccess(src, f.opts.Interval, f.now())
		f.metrics.RecordFetchSuccess(src.ID)
		f.metrics.RecordFetchLatency(f.now().Sub(start))
		return f.updateState(ctx, src)
	case FetchResultStop:
		reason := fmt.Sprintf("HTTPステータス %d によりフェッチを停止しました", resp.StatusCode)
		log.Warn("ソースのフェッチを停止します", slog.Int("http_status", resp.StatusCode))
		f.metrics.RecordFetchFailure(src.ID, metrics.FetchFailureHTTP)
		ApplyStopSource(src, reason)
		return f.updateState(ctx, src)
	default:
		log.Warn("フェッチにバックオフを適用します",
			slog.Int("http_status", resp.StatusCode),
			slog.Int("consecutive_errors", src.ConsecutiveErrors+1),
		)
		f.metrics.RecordFetchFailure(src.ID, metrics.FetchFailureHTTP)
		ApplyBackoff(src, fmt.Sprintf("HTTPステータス %d", resp.StatusCode), f.now())
		return f.updateState(ctx, src)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodySize))
	if err != nil {
		log.Error("レスポンスボディの読み取りに失敗しました", slog.String("error", err.Error()))
		f.metrics.RecordFetchFailure(src.ID, metrics.FetchFailureTransport)
		if isTimeout(err) {
			ApplyTimeout(src, fmt.Sprintf("レスポンス読み取りタイムアウト: %s", err.Error()), f.now())
		} else {
			ApplyBackoff(src, fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()), f.now())
		}
		return f.updateState(ctx, src)
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		log.Error("フィードのパースに失敗しました", slog.String("error", err.Error()))
		f.metrics.RecordParseFailure(src.ID)
		ApplyParseFailure(src, err.Error(), f.now())
		return f.updateState(ctx, src)
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		src.ETag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		src.LastModified = lastMod
	}

	items := convertGofeedItems(parsed.Items, f.opts.MaxEntries)
	result, err := f.ingester.Ingest(ctx, src, items)
	if err != nil {
		log.Error("記事の取り込みに失敗しました", slog.String("error", err.Error()))
		ApplyBackoff(src, fmt.Sprintf("記事の取り込み失敗: %s", err.Error()), f.now())
		// 取り込み失敗時は次回も全件を取得し直す
		src.ETag, src.LastModified = "", ""
		f.saveState(ctx, src)
		return fmt.Errorf("記事の取り込みに失敗: %w", err)
	}

	ApplySuccess(src, f.opts.Interval, f.now())
	duration := f.now().Sub(start)
	f.metrics.RecordFetchSuccess(src.ID)
	f.metrics.RecordFetchLatency(duration)

	if err := f.updateState(ctx, src); err != nil {
		return err
	}

	log.Info("フィードフェッチが完了しました",
		slog.Int("http_status", resp.StatusCode),
		slog.Int("entries", len(items)),
		slog.Int("inserted", result.Inserted),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("rejected", result.Rejected),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}

// updateState はフェッチ状態を保存し、失敗した場合はエラーを返す。
func (f *Fetcher) updateState(ctx context.Context, src *model.Source) error {
	if err := f.sources.UpdateFetchState(ctx, src); err != nil {
		f.logger.Error("ソース状態の更新に失敗しました",
			slog.String("source_id", src.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("ソース状態の更新に失敗: %w", err)
	}
	return nil
}

// saveState はフェッチ状態を保存する。失敗はログのみ。
func (f *Fetcher) saveState(ctx context.Context, src *model.Source) {
	_ = f.updateState(ctx, src)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// convertGofeedItems はgofeedの記事を先頭からmax件までParsedItemに変換する。
func convertGofeedItems(items []*gofeed.Item, max int) []model.ParsedItem {
	out := make([]model.ParsedItem, 0, min(len(items), max))
	for _, item := range items {
		if len(out) >= max {
			break
		}
		if item == nil {
			continue
		}

		parsed := model.ParsedItem{
			GUID:        strings.TrimSpace(item.GUID),
			Title:       strings.TrimSpace(item.Title),
			Link:        strings.TrimSpace(item.Link),
			Description: item.Description,
			Content:     item.Content,
		}
		if parsed.Content == "" {
			parsed.Content = item.Description
		}

		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			parsed.PubDate = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			parsed.PubDate = &t
		}

		// linkがなくGUIDがURLの場合はGUIDをlinkとして使う
		if parsed.Link == "" &&
			(strings.HasPrefix(parsed.GUID, "http://") || strings.HasPrefix(parsed.GUID, "https://")) {
			parsed.Link = parsed.GUID
		}

		out = append(out, parsed)
	}
	return out
}
