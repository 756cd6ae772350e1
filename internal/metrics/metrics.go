package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec

	SearchAttemptsTotal   *prometheus.CounterVec
	SearchRequestDuration *prometheus.HistogramVec

	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	RateLimitHitsTotal *prometheus.CounterVec

	HistoryWritesTotal *prometheus.CounterVec
}

// New регистрирует метрики в reg. nil - глобальный registry.
// В тестах передаём prometheus.NewRegistry(), иначе повторная регистрация паникует.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	m := &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_assistant_requests_total",
				Help: "Total number of answer requests processed",
			},
			[]string{"mode", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_assistant_request_duration_seconds",
				Help:    "Answer request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"mode"},
		),
		RequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "search_assistant_requests_in_flight",
				Help: "Number of requests currently being processed",
			},
		),

		LLMRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_assistant_llm_requests_total",
				Help: "Total number of LLM API requests",
			},
			[]string{"mode", "status"},
		),
		LLMRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_assistant_llm_request_duration_seconds",
				Help:    "LLM request duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"mode"},
		),

		SearchAttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_assistant_search_attempts_total",
				Help: "Total number of search provider attempts",
			},
			[]string{"provider", "status"},
		),
		SearchRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_assistant_search_duration_seconds",
				Help:    "Search duration in seconds including retries",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"provider"},
		),

		ExtractionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_assistant_extractions_total",
				Help: "Total number of page extractions",
			},
			[]string{"provider", "status"},
		),
		ExtractionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_assistant_extraction_duration_seconds",
				Help:    "Page extraction duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		),

		CacheHitsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "search_assistant_cache_hits_total",
				Help: "Total number of search cache hits",
			},
		),
		CacheMissesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "search_assistant_cache_misses_total",
				Help: "Total number of search cache misses",
			},
		),

		RateLimitHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_assistant_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"transport"},
		),

		HistoryWritesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_assistant_history_writes_total",
				Help: "Total number of history records written",
			},
			[]string{"status"},
		),
	}

	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor отдаёт метрики конкретного registry.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(mode, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(mode, status).Inc()
	m.RequestDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func (m *Metrics) RecordLLMRequest(mode, status string, duration time.Duration) {
	m.LLMRequestsTotal.WithLabelValues(mode, status).Inc()
	m.LLMRequestDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func (m *Metrics) RecordSearchAttempt(provider, status string) {
	m.SearchAttemptsTotal.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) RecordSearch(provider string, duration time.Duration) {
	m.SearchRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordExtraction(provider, status string, duration time.Duration) {
	m.ExtractionsTotal.WithLabelValues(provider, status).Inc()
	m.ExtractionDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) RecordRateLimitHit(transport string) {
	m.RateLimitHitsTotal.WithLabelValues(transport).Inc()
}

func (m *Metrics) RecordHistoryWrite(status string) {
	m.HistoryWritesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncRequestsInFlight() {
	m.RequestsInFlight.Inc()
}

func (m *Metrics) DecRequestsInFlight() {
	m.RequestsInFlight.Dec()
}
