// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// メトリクスのラベル値
const (
	SearchOutcomeOK       = "ok"
	SearchOutcomeInvalid  = "invalid"
	SearchOutcomeError    = "error"
	AnalyticsKindTerm     = "term"
	AnalyticsKindHistory  = "history"
	FetchFailureTimeout   = "timeout"
	FetchFailureHTTP      = "http"
	FetchFailureTransport = "transport"
	FetchFailureSSRF      = "ssrf"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordFetchSuccess(sourceID string)
	RecordFetchFailure(sourceID string, reason string)
	RecordParseFailure(sourceID string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordIngest(result model.IngestResult)
	RecordItemPriority(priority model.Priority)
	RecordItemsRescored(count int)
	RecordSearch(outcome string, duration time.Duration)
	RecordAnalyticsFailure(kind string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess      prometheus.Counter
	fetchFail         *prometheus.CounterVec
	parseFail         prometheus.Counter
	httpStatus        *prometheus.CounterVec
	fetchLatency      prometheus.Histogram
	itemsIngested     *prometheus.CounterVec
	itemsByPriority   *prometheus.CounterVec
	itemsRescored     prometheus.Counter
	searches          *prometheus.CounterVec
	searchLatency     prometheus.Histogram
	analyticsFailures *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tributoflow_fetch_success_total",
			Help: "フィードフェッチ成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tributoflow_fetch_fail_total",
			Help: "フィードフェッチ失敗の合計数",
		}, []string{"reason"}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tributoflow_parse_fail_total",
			Help: "フィードパース失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tributoflow_http_status_total",
			Help: "配信元のHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tributoflow_fetch_latency_seconds",
			Help:    "フィードフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		itemsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tributoflow_items_ingested_total",
			Help: "取り込み結果別の記事数",
		}, []string{"result"}),
		itemsByPriority: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tributoflow_items_priority_total",
			Help: "保存された記事の優先度別の件数",
		}, []string{"priority"}),
		itemsRescored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tributoflow_items_rescored_total",
			Help: "再スコアリングされた記事の合計数",
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tributoflow_search_requests_total",
			Help: "結果区分別の検索リクエスト数",
		}, []string{"outcome"}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tributoflow_search_latency_seconds",
			Help:    "検索のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		analyticsFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tributoflow_search_analytics_failures_total",
			Help: "検索分析の記録に失敗した回数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.parseFail,
		c.httpStatus,
		c.fetchLatency,
		c.itemsIngested,
		c.itemsByPriority,
		c.itemsRescored,
		c.searches,
		c.searchLatency,
		c.analyticsFailures,
	)

	return c
}

// RecordFetchSuccess はフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess(sourceID string) {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はフェッチ失敗を理由別に記録する。
func (c *Collector) RecordFetchFailure(sourceID string, reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordParseFailure はパース失敗を記録する。
func (c *Collector) RecordParseFailure(sourceID string) {
	c.parseFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordIngest は1配信元分の取り込み結果を記録する。
func (c *Collector) RecordIngest(result model.IngestResult) {
	c.itemsIngested.WithLabelValues("inserted").Add(float64(result.Inserted))
	c.itemsIngested.WithLabelValues("duplicate").Add(float64(result.Duplicates))
	c.itemsIngested.WithLabelValues("rejected").Add(float64(result.Rejected))
}

// RecordItemPriority は保存した記事の優先度を記録する。
func (c *Collector) RecordItemPriority(priority model.Priority) {
	c.itemsByPriority.WithLabelValues(string(priority)).Inc()
}

// RecordItemsRescored は再スコアリングした記事数を記録する。
func (c *Collector) RecordItemsRescored(count int) {
	c.itemsRescored.Add(float64(count))
}

// RecordSearch は検索の結果区分とレイテンシを記録する。
func (c *Collector) RecordSearch(outcome string, duration time.Duration) {
	c.searches.WithLabelValues(outcome).Inc()
	if outcome == SearchOutcomeOK {
		c.searchLatency.Observe(duration.Seconds())
	}
}

// RecordAnalyticsFailure は検索分析の記録失敗を記録する。
func (c *Collector) RecordAnalyticsFailure(kind string) {
	c.analyticsFailures.WithLabelValues(kind).Inc()
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordFetchSuccess(string) {}
func (NopCollector) RecordFetchFailure(string, string) {}
func (NopCollector) RecordParseFailure(string) {}
func (NopCollector) RecordHTTPStatus(int) {}
func (NopCollector) RecordFetchLatency(time.Duration) {}
func (NopCollector) RecordIngest(model.IngestResult) {}
func (NopCollector) RecordItemPriority(model.Priority) {}
func (NopCollector) RecordItemsRescored(int) {}
func (NopCollector) RecordSearch(string, time.Duration) {}
func (NopCollector) RecordAnalyticsFailure(string) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var _ MetricsCollector = (*Collector)(nil)
var _ MetricsCollector = NopCollector{}
