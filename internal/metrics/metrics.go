package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysishub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysishub_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 远程分析服务调用
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysishub_gateway_requests_total",
			Help: "Total number of requests sent to the analysis service",
		},
		[]string{"endpoint", "outcome"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysishub_gateway_request_duration_seconds",
			Help:    "Analysis service request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
		[]string{"endpoint"},
	)

	GatewayRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysishub_gateway_retries_total",
			Help: "Total number of retried analysis service reads",
		},
		[]string{"endpoint"},
	)

	// 编排操作
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysishub_operations_total",
			Help: "Total number of orchestration operations",
		},
		[]string{"operation", "result"},
	)

	TaskTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysishub_task_transitions_total",
			Help: "Total number of task status transitions",
		},
		[]string{"task_type", "status"},
	)

	// 后台刷新
	RefreshEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysishub_refresh_enqueued_total",
			Help: "Total number of background refresh tasks enqueued",
		},
		[]string{"result"},
	)

	// 数据库连接池指标
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analysishub_db_connections_in_use",
			Help: "Number of database connections in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analysishub_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	DBConnectionsMax = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analysishub_db_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 错误指标
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysishub_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "type"},
	)
)

// RecordHTTPRequest 记录 HTTP 请求
func RecordHTTPRequest(method, path string, status int, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordGatewayRequest 记录一次远程调用
func RecordGatewayRequest(endpoint, outcome string, duration float64) {
	GatewayRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	GatewayRequestDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordGatewayRetry 记录一次重试
func RecordGatewayRetry(endpoint string) {
	GatewayRetriesTotal.WithLabelValues(endpoint).Inc()
}

// RecordOperation 记录编排操作结果
func RecordOperation(operation, result string) {
	OperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordTransition 记录任务状态变化
func RecordTransition(taskType, status string) {
	TaskTransitionsTotal.WithLabelValues(taskType, status).Inc()
}

// RecordRefreshEnqueued 记录刷新任务入队
func RecordRefreshEnqueued(result string) {
	RefreshEnqueuedTotal.WithLabelValues(result).Inc()
}

// UpdateDBPoolStats 更新数据库连接池统计
func UpdateDBPoolStats(inUse, idle, max int) {
	DBConnectionsInUse.Set(float64(inUse))
	DBConnectionsIdle.Set(float64(idle))
	DBConnectionsMax.Set(float64(max))
}

// RecordError 记录错误
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// statusClass 将 HTTP 状态码转为类别
func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
