package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 采集管道监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 采集指标
	MessagesFetched *prometheus.CounterVec // 按账户与来源（backfill/realtime）
	MessagesIndexed *prometheus.CounterVec // 按账户与标签
	ParseFailures   *prometheus.CounterVec // 按账户
	IndexErrors     *prometheus.CounterVec // 按账户
	DuplicatesSkipped *prometheus.CounterVec // 按账户

	// 分类指标
	ClassifyDuration prometheus.Histogram

	// 通知指标
	NotificationsSent   *prometheus.CounterVec // 按目标
	NotificationErrors  *prometheus.CounterVec // 按目标
	NotificationDropped prometheus.Counter     // 投递队列满被丢弃

	// 会话指标
	SessionsActive  prometheus.Gauge
	SessionRestarts *prometheus.CounterVec // 按账户
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "onebox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		MessagesFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_messages_fetched_total",
				Help: "Messages fetched from IMAP, by account and source",
			},
			[]string{"account", "source"},
		),
		MessagesIndexed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_messages_indexed_total",
				Help: "Messages successfully upserted into the index, by account and label",
			},
			[]string{"account", "label"},
		),
		ParseFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_parse_failures_total",
				Help: "Messages skipped because the raw content could not be parsed",
			},
			[]string{"account"},
		),
		IndexErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_index_errors_total",
				Help: "Per-message index write failures",
			},
			[]string{"account"},
		),
		DuplicatesSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_duplicates_skipped_total",
				Help: "Messages skipped because they were already processed",
			},
			[]string{"account"},
		),
		ClassifyDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "onebox_classify_duration_seconds",
				Help:    "Classification duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		NotificationsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_notifications_sent_total",
				Help: "Notifications delivered, by sink",
			},
			[]string{"sink"},
		),
		NotificationErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_notification_errors_total",
				Help: "Notification delivery failures, by sink",
			},
			[]string{"sink"},
		),
		NotificationDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "onebox_notifications_dropped_total",
				Help: "Notifications dropped because the delivery queue was full",
			},
		),
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "onebox_sessions_active",
				Help: "Number of account sessions currently connected",
			},
		),
		SessionRestarts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_session_restarts_total",
				Help: "Account session restarts after a transport error",
			},
			[]string{"account"},
		),
	}
}

// RecordHTTPRequest 记录一次 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Handler 返回 /metrics 的 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
