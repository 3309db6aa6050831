package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the exit-pass
// workflow and the HTTP layer.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	passesCreated  prometheus.Counter
	stageDecisions *prometheus.CounterVec
	sweepDemotions prometheus.Counter
	exitsMarked    prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guard_cache_hits_total",
		Help: "Guard listing cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guard_cache_misses_total",
		Help: "Guard listing cache misses",
	})

	passesCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exit_requests_created_total",
		Help: "Exit requests successfully created",
	})

	stageDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exit_request_decisions_total",
		Help: "Stage decisions recorded on exit requests",
	}, []string{"stage", "decision"})

	sweepDemotions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exit_requests_expired_total",
		Help: "Stale exit requests demoted by the expiry sweep",
	})

	exitsMarked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exits_marked_total",
		Help: "Campus exits marked by guards",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		passesCreated, stageDecisions, sweepDemotions, exitsMarked, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		passesCreated:   passesCreated,
		stageDecisions:  stageDecisions,
		sweepDemotions:  sweepDemotions,
		exitsMarked:     exitsMarked,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheLookup records a guard-cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordRequestCreated counts a successful request creation.
func (m *MetricsService) RecordRequestCreated() {
	if m == nil {
		return
	}
	m.passesCreated.Inc()
}

// RecordDecision counts a stage decision, stage in {mentor, hod} and decision
// in {approve, reject}.
func (m *MetricsService) RecordDecision(stage, decision string) {
	if m == nil {
		return
	}
	m.stageDecisions.WithLabelValues(stage, decision).Inc()
}

// RecordSweep counts rows demoted by an expiry sweep.
func (m *MetricsService) RecordSweep(demoted int64) {
	if m == nil || demoted <= 0 {
		return
	}
	m.sweepDemotions.Add(float64(demoted))
}

// RecordExitMarked counts a guard exit mark.
func (m *MetricsService) RecordExitMarked() {
	if m == nil {
		return
	}
	m.exitsMarked.Inc()
}
