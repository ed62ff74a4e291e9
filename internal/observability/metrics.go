package observability

import (
	"io"
	"net/http"
	"strconv"
	"time"
)

// Metrics holds the process counters served on /metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	apiRequests      *CounterVec
	apiLatency       *HistogramVec
	apiInflight      *Gauge
	progressOutcomes *CounterVec
	courseCompleted  *CounterVec
	chatStreams      *CounterVec
	chatStreamTime   *HistogramVec
	sseClients       *Gauge
	analyticsExport  *CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("sf_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"sf_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		apiInflight:      NewGauge("sf_api_inflight_requests", "In-flight API requests."),
		progressOutcomes: NewCounterVec("sf_progress_outcomes_total", "Progress tracker outcomes by source/status/reason.", []string{"source", "status", "reason"}),
		courseCompleted:  NewCounterVec("sf_course_completions_total", "Enrollments moved to completed by trigger source.", []string{"source"}),
		chatStreams:      NewCounterVec("sf_chat_streams_total", "Agent streams by terminal status.", []string{"status"}),
		chatStreamTime: NewHistogramVec(
			"sf_chat_stream_duration_seconds",
			"Agent stream duration in seconds.",
			[]string{"status"},
			[]float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		),
		sseClients:      NewGauge("sf_sse_clients", "Connected SSE clients."),
		analyticsExport: NewCounterVec("sf_analytics_export_total", "Analytics export attempts by result.", []string{"result"}),
	}
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.progressOutcomes, m.courseCompleted,
		m.chatStreams, m.chatStreamTime, m.sseClients,
		m.analyticsExport,
	}
	for _, mw := range writers {
		if err := mw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncProgressOutcome(source, status, reason string) {
	if m == nil {
		return
	}
	m.progressOutcomes.Inc(source, status, reason)
}

func (m *Metrics) IncCourseCompleted(source string) {
	if m == nil {
		return
	}
	m.courseCompleted.Inc(source)
}

func (m *Metrics) ObserveChatStream(status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.chatStreams.Inc(status)
	m.chatStreamTime.Observe(dur.Seconds(), status)
}

func (m *Metrics) SSEClientConnected() {
	if m == nil {
		return
	}
	m.sseClients.Inc()
}

func (m *Metrics) SSEClientDisconnected() {
	if m == nil {
		return
	}
	m.sseClients.Dec()
}

func (m *Metrics) IncAnalyticsExport(result string) {
	if m == nil {
		return
	}
	m.analyticsExport.Inc(result)
}

// ProgressOutcomes exposes the outcome counter for tests and health output.
func (m *Metrics) ProgressOutcomes(source, status, reason string) float64 {
	if m == nil {
		return 0
	}
	return m.progressOutcomes.Value(source, status, reason)
}
