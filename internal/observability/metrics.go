package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "huddle"

// MetricsCollector holds all Prometheus metrics on a private registry.
// Every Observe method is safe to call on a nil collector.
type MetricsCollector struct {
	Registry *prometheus.Registry

	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	LLMTokensUsed      *prometheus.CounterVec

	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec

	WorkflowRunsTotal     *prometheus.CounterVec
	WorkflowStageDuration *prometheus.HistogramVec

	ZoomRequestsTotal *prometheus.CounterVec
	MeetingsJoined    prometheus.Counter
	TimeResolutions   *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ActiveRequests      prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		LLMRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total LLM API requests.",
		}, []string{"provider", "status"}),

		LLMRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "LLM API request duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),

		LLMTokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total LLM tokens consumed.",
		}, []string{"provider", "direction"}),

		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Total tool calls made by agents.",
		}, []string{"tool", "status"}),

		ToolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "call_duration_seconds",
			Help:      "Tool call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),

		WorkflowRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Total email workflow runs by final status.",
		}, []string{"status"}),

		WorkflowStageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "stage_duration_seconds",
			Help:      "Workflow stage duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"stage"}),

		ZoomRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "zoom",
			Name:      "requests_total",
			Help:      "Total Zoom API requests.",
		}, []string{"operation", "status_code"}),

		MeetingsJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meetings_joined_total",
			Help:      "Total meetings opened by the auto-joiner.",
		}),

		TimeResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "time_resolutions_total",
			Help:      "Meeting time expressions resolved, by matching rule.",
		}, []string{"rule"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of HTTP requests in flight.",
		}),
	}

	reg.MustRegister(
		m.LLMRequestsTotal,
		m.LLMRequestDuration,
		m.LLMTokensUsed,
		m.ToolCallsTotal,
		m.ToolCallDuration,
		m.WorkflowRunsTotal,
		m.WorkflowStageDuration,
		m.ZoomRequestsTotal,
		m.MeetingsJoined,
		m.TimeResolutions,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
	)

	return m
}

// ObserveResolution counts a meeting time resolution.
func (m *MetricsCollector) ObserveResolution(rule string) {
	if m == nil {
		return
	}
	m.TimeResolutions.WithLabelValues(rule).Inc()
}

// ObserveZoomRequest counts a Zoom API call. statusCode 0 means a transport error.
func (m *MetricsCollector) ObserveZoomRequest(operation string, statusCode int) {
	if m == nil {
		return
	}
	m.ZoomRequestsTotal.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
}

// ObserveJoin counts meetings opened by the joiner.
func (m *MetricsCollector) ObserveJoin(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MeetingsJoined.Add(float64(n))
}

// ObserveToolCall records a tool execution.
func (m *MetricsCollector) ObserveToolCall(tool string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(tool, outcome(success)).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveStage records a workflow stage duration.
func (m *MetricsCollector) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.WorkflowStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRun counts a finished workflow run.
func (m *MetricsCollector) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.WorkflowRunsTotal.WithLabelValues(status).Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
