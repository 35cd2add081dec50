// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordWebhookDelivery(outcome string)
	RecordProvisioning(result string)
	RecordQuotaDecision(category, decision string)
	RecordGeneration(outcome string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	webhookDeliveries *prometheus.CounterVec
	provisioning      *prometheus.CounterVec
	quotaDecisions    *prometheus.CounterVec
	generation        *prometheus.CounterVec
	generationLatency prometheus.Histogram
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "astroline_webhook_deliveries_total",
			Help: "結果別のWebhook受信数",
		}, []string{"outcome"}),
		provisioning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "astroline_provisioning_total",
			Help: "結果別（created, existing, error）のプロビジョニング数",
		}, []string{"result"}),
		quotaDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "astroline_quota_decisions_total",
			Help: "カテゴリ・判定別のQuota Guard判定数",
		}, []string{"category", "decision"}),
		generation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "astroline_generation_total",
			Help: "結果別のラブスケッチ生成数",
		}, []string{"outcome"}),
		generationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "astroline_generation_latency_seconds",
			Help:    "プロバイダー呼び出しを含む生成処理のレイテンシ（秒）",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "astroline_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.webhookDeliveries,
		c.provisioning,
		c.quotaDecisions,
		c.generation,
		c.generationLatency,
		c.httpStatus,
	)

	return c
}

// RecordWebhookDelivery はWebhook受信の結果を記録する。
func (c *Collector) RecordWebhookDelivery(outcome string) {
	c.webhookDeliveries.WithLabelValues(outcome).Inc()
}

// RecordProvisioning はプロビジョニングの結果を記録する。
func (c *Collector) RecordProvisioning(result string) {
	c.provisioning.WithLabelValues(result).Inc()
}

// RecordQuotaDecision はQuota Guardの判定を記録する。
func (c *Collector) RecordQuotaDecision(category, decision string) {
	c.quotaDecisions.WithLabelValues(category, decision).Inc()
}

// RecordGeneration は生成の結果とレイテンシを記録する。
func (c *Collector) RecordGeneration(outcome string, duration time.Duration) {
	c.generation.WithLabelValues(outcome).Inc()
	c.generationLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 一部のコレクターが失敗しても、収集できたメトリクスは返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
