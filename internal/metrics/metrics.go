// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 商品変更操作のラベル値。
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordProductMutation(op string)
	RecordLogin(success bool)
	RecordProxyFetchSuccess()
	RecordProxyFetchFailure(reason string)
	RecordProxyLatency(duration time.Duration)
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus       *prometheus.CounterVec
	productMutations *prometheus.CounterVec
	logins           *prometheus.CounterVec
	proxySuccess     prometheus.Counter
	proxyFail        *prometheus.CounterVec
	proxyLatency     prometheus.Histogram
	sessionsPurged   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tarkam_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		productMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tarkam_product_mutations_total",
			Help: "操作種別ごとの商品変更数",
		}, []string{"op"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tarkam_login_attempts_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		proxySuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tarkam_proxy_fetch_success_total",
			Help: "画像プロキシ取得成功の合計数",
		}),
		proxyFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tarkam_proxy_fetch_fail_total",
			Help: "原因別の画像プロキシ取得失敗数",
		}, []string{"reason"}),
		proxyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tarkam_proxy_fetch_latency_seconds",
			Help:    "画像プロキシ取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tarkam_sessions_purged_total",
			Help: "クリーンアップで削除された期限切れセッション数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.productMutations,
		c.logins,
		c.proxySuccess,
		c.proxyFail,
		c.proxyLatency,
		c.sessionsPurged,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordProductMutation は商品の作成・更新・削除を記録する。
func (c *Collector) RecordProductMutation(op string) {
	c.productMutations.WithLabelValues(op).Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

// RecordProxyFetchSuccess は画像取得成功を記録する。
func (c *Collector) RecordProxyFetchSuccess() {
	c.proxySuccess.Inc()
}

// RecordProxyFetchFailure は画像取得失敗を記録する。
func (c *Collector) RecordProxyFetchFailure(reason string) {
	c.proxyFail.WithLabelValues(reason).Inc()
}

// RecordProxyLatency は画像取得のレイテンシを記録する。
func (c *Collector) RecordProxyLatency(duration time.Duration) {
	c.proxyLatency.Observe(duration.Seconds())
}

// RecordSessionsPurged は削除した期限切れセッション数を加算する。
func (c *Collector) RecordSessionsPurged(count int64) {
	if count > 0 {
		c.sessionsPurged.Add(float64(count))
	}
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// worker サブコマンドのように chi ルーターを持たないプロセスで使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
