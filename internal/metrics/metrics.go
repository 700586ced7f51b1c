// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証試行の結果ラベル
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordAuthAttempt(method string, outcome string)
	RecordGuardRejection(reason string)
	RecordApplicationSubmission(outcome string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordRateLimited(scope string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authAttempts    *prometheus.CounterVec
	guardRejections *prometheus.CounterVec
	applications    *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	rateLimited     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerboard_auth_attempts_total",
			Help: "認証方式・結果別の認証試行数",
		}, []string{"method", "outcome"}),
		guardRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerboard_guard_rejections_total",
			Help: "アクセスガードが拒否したリクエスト数（理由別）",
		}, []string{"reason"}),
		applications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerboard_application_submissions_total",
			Help: "結果別の応募送信数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerboard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "careerboard_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerboard_rate_limited_total",
			Help: "レート制限で拒否したリクエスト数",
		}, []string{"scope"}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.guardRejections,
		c.applications,
		c.httpStatus,
		c.requestLatency,
		c.rateLimited,
	)

	return c
}

// RecordAuthAttempt は認証試行を記録する。
func (c *Collector) RecordAuthAttempt(method string, outcome string) {
	c.authAttempts.WithLabelValues(method, outcome).Inc()
}

// RecordGuardRejection はアクセスガードの拒否を記録する。
func (c *Collector) RecordGuardRejection(reason string) {
	c.guardRejections.WithLabelValues(reason).Inc()
}

// RecordApplicationSubmission は応募送信の結果を記録する。
func (c *Collector) RecordApplicationSubmission(outcome string) {
	c.applications.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(scope string) {
	c.rateLimited.WithLabelValues(scope).Inc()
}

// Noop は何も記録しないMetricsCollector。メトリクスを注入しないテストやツールで使う。
type Noop struct{}

func (Noop) RecordAuthAttempt(string, string)   {}
func (Noop) RecordGuardRejection(string)        {}
func (Noop) RecordApplicationSubmission(string) {}
func (Noop) RecordHTTPStatus(int)               {}
func (Noop) RecordRequestLatency(time.Duration) {}
func (Noop) RecordRateLimited(string)           {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Noop{}
)
