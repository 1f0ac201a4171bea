package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 重算耗时（秒）
	RecalculationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schedule_recalculation_duration_seconds",
			Help:    "End-to-end schedule recalculation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"trigger"},
	)

	// 重算结果计数
	RecalculationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_recalculation_total",
			Help: "Total number of schedule recalculations",
		},
		[]string{"trigger", "result"}, // result: success, not_found, locked, failed
	)

	// 每次重算的延期条目数
	DelayedItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schedule_delayed_items",
			Help:    "Delayed items per recalculated schedule",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// 每次重算的关键条目数
	CriticalItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schedule_critical_items",
			Help:    "Critical (blocked or delayed) items per recalculated schedule",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// 被忽略的依赖计数
	IgnoredDependencies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_ignored_dependencies_total",
			Help: "Dependencies skipped because their type is not evaluated",
		},
		[]string{"type"},
	)

	// 扫描发出的重算请求
	SweepRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_sweep_requests_total",
			Help: "Recalculation requests published by the sweeper",
		},
		[]string{"status"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Queries slower than the configured threshold",
		},
		[]string{"operation"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// Outbox 事件投递计数
	OutboxDispatchCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_dispatch_total",
			Help: "Outbox events dispatched to the broker",
		},
		[]string{"event_type", "status"},
	)
)

// RecordRecalculation 记录一次重算的耗时与结果
func RecordRecalculation(trigger, result string, duration time.Duration) {
	RecalculationDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	RecalculationCount.WithLabelValues(trigger, result).Inc()
}

// ObserveSummary 记录重算摘要中的延期/关键条目数
func ObserveSummary(delayed, critical int) {
	DelayedItems.Observe(float64(delayed))
	CriticalItems.Observe(float64(critical))
}

// IncrementIgnoredDependency 增加被忽略依赖计数
func IncrementIgnoredDependency(depType string) {
	if depType == "" {
		depType = "unknown"
	}
	IgnoredDependencies.WithLabelValues(depType).Inc()
}

// IncrementSweepRequest 增加扫描请求计数
func IncrementSweepRequest(status string) {
	SweepRequests.WithLabelValues(status).Inc()
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue, status string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue, status).Observe(float64(duration.Milliseconds()))
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery(operation string) {
	SlowQueryCount.WithLabelValues(operation).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementOutboxDispatch 增加 outbox 投递计数
func IncrementOutboxDispatch(eventType, status string) {
	OutboxDispatchCount.WithLabelValues(eventType, status).Inc()
}
