package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 系统运行指标
//
// 每个 Metrics 实例持有独立的 registry，测试中可重复创建。
type Metrics struct {
	registry *prometheus.Registry

	// 投递管道
	IngestOutcomes      *prometheus.CounterVec
	AttachmentsRejected *prometheus.CounterVec

	// 保留清理
	SweepDeletedTotal prometheus.Counter
	SweepDuration     prometheus.Histogram

	// HTTP
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics 创建并注册全部指标
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		IngestOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dropmail_ingest_outcomes_total",
			Help: "Inbound message processing outcomes",
		}, []string{"outcome"}),
		AttachmentsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dropmail_attachments_rejected_total",
			Help: "Attachments dropped by the acceptance policy",
		}, []string{"reason"}),
		SweepDeletedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dropmail_sweep_deleted_total",
			Help: "Emails deleted by retention sweeps",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dropmail_sweep_duration_seconds",
			Help:    "Duration of retention sweep runs",
			Buckets: prometheus.DefBuckets,
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dropmail_http_requests_total",
			Help: "HTTP requests by method, path and status",
		}, []string{"method", "path", "status"}),
	}
}

// HTTPHandler 返回 Prometheus 指标端点处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
