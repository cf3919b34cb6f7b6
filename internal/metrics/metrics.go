// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証結果ラベル
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証パイプライン、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordAuthentication(method, outcome string)
	RecordAuthorizationDenied(kind string)
	RecordHydrationFailure()
	RecordJWKSFetch(success bool)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordSessionsCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authentications *prometheus.CounterVec
	authzDenied     *prometheus.CounterVec
	hydrationFail   prometheus.Counter
	jwksFetch       *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authentications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "famorg_authentications_total",
			Help: "認証方式と結果別の認証試行数",
		}, []string{"method", "outcome"}),
		authzDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "famorg_authorization_denied_total",
			Help: "認可チェックで拒否されたリクエスト数",
		}, []string{"kind"}),
		hydrationFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "famorg_family_hydration_fail_total",
			Help: "ファミリー所属情報の取得に失敗した回数",
		}),
		jwksFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "famorg_jwks_fetch_total",
			Help: "JWKS取得の試行数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "famorg_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "famorg_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "famorg_sessions_cleaned_total",
			Help: "クリーンアップで削除された期限切れセッション数",
		}),
	}

	reg.MustRegister(
		c.authentications,
		c.authzDenied,
		c.hydrationFail,
		c.jwksFetch,
		c.httpStatus,
		c.requestLatency,
		c.sessionsCleaned,
	)

	return c
}

// RecordAuthentication は認証結果を記録する。
func (c *Collector) RecordAuthentication(method, outcome string) {
	if method == "" {
		method = "none"
	}
	c.authentications.WithLabelValues(method, outcome).Inc()
}

// RecordAuthorizationDenied は認可拒否を記録する。kindはownership、role、not_foundのいずれか。
func (c *Collector) RecordAuthorizationDenied(kind string) {
	c.authzDenied.WithLabelValues(kind).Inc()
}

// RecordHydrationFailure はファミリー所属情報の取得失敗を記録する。
func (c *Collector) RecordHydrationFailure() {
	c.hydrationFail.Inc()
}

// RecordJWKSFetch はJWKS取得の結果を記録する。
func (c *Collector) RecordJWKSFetch(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.jwksFetch.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSessionsCleaned は削除されたセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordAuthentication(string, string) {}
func (Nop) RecordAuthorizationDenied(string)    {}
func (Nop) RecordHydrationFailure()             {}
func (Nop) RecordJWKSFetch(bool)                {}
func (Nop) RecordHTTPStatus(int)                {}
func (Nop) RecordRequestLatency(time.Duration)  {}
func (Nop) RecordSessionsCleaned(int64)         {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
