// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 画布指标
	canvasCommandsTotal  *prometheus.CounterVec
	validationIssues     *prometheus.CounterVec
	validationRunsTotal  *prometheus.CounterVec
	activeSessions       prometheus.Gauge
	sessionsEvictedTotal prometheus.Counter
	wsConnections        prometheus.Gauge

	// 工作流 API 指标
	workflowRequestsTotal   *prometheus.CounterVec
	workflowRequestDuration *prometheus.HistogramVec
	breakerState            *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，reg 为 nil 时注册到默认 Registry
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 画布指标
	c.canvasCommandsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "canvas_commands_total",
			Help:      "Total number of editor commands by outcome",
		},
		[]string{"op", "outcome"}, // outcome: applied, rejected, invalid
	)

	c.validationRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "canvas_validations_total",
			Help:      "Total number of graph validations",
		},
		[]string{"valid"},
	)

	c.validationIssues = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "canvas_validation_issues_total",
			Help:      "Total number of validation issues reported",
		},
		[]string{"severity", "code"},
	)

	c.activeSessions = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "canvas_active_sessions",
			Help:      "Number of open editing sessions",
		},
	)

	c.sessionsEvictedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "canvas_sessions_evicted_total",
			Help:      "Total number of sessions evicted after idling",
		},
	)

	c.wsConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "canvas_ws_connections",
			Help:      "Number of open websocket command streams",
		},
	)

	// 工作流 API 指标
	c.workflowRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_api_requests_total",
			Help:      "Total number of workflow API calls",
		},
		[]string{"operation", "status"},
	)

	c.workflowRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_api_request_duration_seconds",
			Help:      "Workflow API call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	c.breakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflow_api_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"breaker"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🎨 画布指标记录
// =============================================================================

// RecordCommand 记录编辑命令结果
func (c *Collector) RecordCommand(op, outcome string) {
	c.canvasCommandsTotal.WithLabelValues(op, outcome).Inc()
}

// RecordValidation 记录一次校验及其问题分布
func (c *Collector) RecordValidation(valid bool, issues []IssueSample) {
	c.validationRunsTotal.WithLabelValues(strconv.FormatBool(valid)).Inc()
	for _, is := range issues {
		c.validationIssues.WithLabelValues(is.Severity, is.Code).Inc()
	}
}

// IssueSample 单条校验问题的标签
type IssueSample struct {
	Severity string
	Code     string
}

// SetActiveSessions 设置当前会话数
func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}

// RecordSessionsEvicted 记录过期清理的会话数
func (c *Collector) RecordSessionsEvicted(n int) {
	c.sessionsEvictedTotal.Add(float64(n))
}

// WSConnected 记录 websocket 连接打开
func (c *Collector) WSConnected() { c.wsConnections.Inc() }

// WSDisconnected 记录 websocket 连接关闭
func (c *Collector) WSDisconnected() { c.wsConnections.Dec() }

// =============================================================================
// 🔗 工作流 API 指标记录
// =============================================================================

// RecordWorkflowRequest 记录工作流 API 调用
func (c *Collector) RecordWorkflowRequest(operation, status string, duration time.Duration) {
	c.workflowRequestsTotal.WithLabelValues(operation, status).Inc()
	c.workflowRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetBreakerState 记录熔断器状态
func (c *Collector) SetBreakerState(name string, state int) {
	c.breakerState.WithLabelValues(name).Set(float64(state))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
