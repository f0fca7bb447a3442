package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation: HTTP request
// metrics plus counters for the ledger operations the school cares about.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	settlements     prometheus.Counter
	collected       prometheus.Counter
	cancellations   prometheus.Counter
	lateFees        prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers the Prometheus collectors.
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

	settlements := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_settlements_total",
		Help: "Total number of payment settlements applied",
	})

	collected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_collected_guaranies_total",
		Help: "Total amount collected through settlements",
	})

	cancellations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_cancellations_total",
		Help: "Total number of payment cancellations",
	})

	lateFees := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_late_fees_total",
		Help: "Total number of late fees applied",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, settlements, collected, cancellations, lateFees, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		settlements:     settlements,
		collected:       collected,
		cancellations:   cancellations,
		lateFees:        lateFees,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
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

// RecordSettlement counts one applied settlement and the amount it moved.
func (m *MetricsService) RecordSettlement(amount float64) {
	if m == nil {
		return
	}
	m.settlements.Inc()
	m.collected.Add(amount)
}

// RecordCancellation counts one payment cancellation.
func (m *MetricsService) RecordCancellation() {
	if m == nil {
		return
	}
	m.cancellations.Inc()
}

// RecordLateFee counts one applied late fee.
func (m *MetricsService) RecordLateFee() {
	if m == nil {
		return
	}
	m.lateFees.Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
