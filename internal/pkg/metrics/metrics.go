package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約操作の総数（operation: create/cancel/reschedule, result: success/noop/not_found/...）
	ReservationOperationsTotal *prometheus.CounterVec

	// 予約操作のトランザクション所要時間（operation）
	ReservationOperationDuration *prometheus.HistogramVec

	// 空き状況キャッシュの参照結果（result: hit/miss/error）
	AvailabilityCacheRequests *prometheus.CounterVec

	// 監査ログ出力の失敗数（sink: log/amqp）
	AuditEmitFailures *prometheus.CounterVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ReservationOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservation_operations_total",
				Help: "Total number of reservation operations by result",
			},
			[]string{"operation", "result"},
		),
		ReservationOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reservation_operation_duration_seconds",
				Help:    "Time spent inside reservation transactions",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		AvailabilityCacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "availability_cache_requests_total",
				Help: "Availability cache lookups by result",
			},
			[]string{"result"},
		),
		AuditEmitFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_emit_failures_total",
				Help: "Audit records that could not be emitted",
			},
			[]string{"sink"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationOperationsTotal,
		m.ReservationOperationDuration,
		m.AvailabilityCacheRequests,
		m.AuditEmitFailures,
	)

	return m
}

// ObserveOperation は予約操作の結果と所要時間を記録する。nil レシーバの場合は何もしない
func (m *Metrics) ObserveOperation(operation, result string, seconds float64) {
	if m == nil {
		return
	}
	m.ReservationOperationsTotal.WithLabelValues(operation, result).Inc()
	m.ReservationOperationDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveCache は空き状況キャッシュの参照結果を記録する。nil レシーバの場合は何もしない
func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.AvailabilityCacheRequests.WithLabelValues(result).Inc()
}

// ObserveAuditFailure は監査ログ出力の失敗を記録する。nil レシーバの場合は何もしない
func (m *Metrics) ObserveAuditFailure(sink string) {
	if m == nil {
		return
	}
	m.AuditEmitFailures.WithLabelValues(sink).Inc()
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
