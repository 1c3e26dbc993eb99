package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk HTTP dan mesin entri dokumen.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	saves           *prometheus.CounterVec
	drafts          *prometheus.CounterVec
	validations     *prometheus.CounterVec
	staleLookups    *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "entry_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "entry_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "entry_document_saves_total",
		Help: "Document saves by kind and outcome.",
	}, []string{"kind", "outcome"})
	drafts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "entry_draft_operations_total",
		Help: "Held draft operations by kind and action.",
	}, []string{"kind", "action"})
	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "entry_validation_failures_total",
		Help: "Row and document validation failures by focused field.",
	}, []string{"kind", "field"})
	stale := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "entry_stale_lookups_total",
		Help: "Lookup results discarded because the row changed meanwhile.",
	}, []string{"kind"})
	registry.MustRegister(requests, duration, saves, drafts, validations, stale)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		saves:           saves,
		drafts:          drafts,
		validations:     validations,
		staleLookups:    stale,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObserveSave counts a save attempt.
func (m *Metrics) ObserveSave(kind, outcome string) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(kind, outcome).Inc()
}

// ObserveDraft counts a hold, restore or discard.
func (m *Metrics) ObserveDraft(kind, action string) {
	if m == nil {
		return
	}
	m.drafts.WithLabelValues(kind, action).Inc()
}

// ObserveValidation counts a validation failure against the focused field.
func (m *Metrics) ObserveValidation(kind, field string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(kind, field).Inc()
}

// ObserveStaleLookup counts a discarded lookup result.
func (m *Metrics) ObserveStaleLookup(kind string) {
	if m == nil {
		return
	}
	m.staleLookups.WithLabelValues(kind).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
