package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/jobs"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/workflow"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	matches         *prometheus.CounterVec
	matchedLines    prometheus.Counter
	jobs            *jobmetrics.Metrics
}

// NewMetrics menginisialisasi registry, metrik HTTP, metrik alur dokumen dan metrik job.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pembelian_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pembelian_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pembelian_workflow_transitions_total",
		Help: "Transisi status dokumen berdasarkan jenis dokumen, aksi dan hasil.",
	}, []string{"document", "trigger", "result"})
	matches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pembelian_three_way_match_total",
		Help: "Hasil pencocokan SOPb, LPB dan faktur.",
	}, []string{"verdict"})
	lines := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pembelian_three_way_match_lines_total",
		Help: "Jumlah baris item yang dicocokkan.",
	})
	registry.MustRegister(requests, duration, transitions, matches, lines)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		transitions:     transitions,
		matches:         matches,
		matchedLines:    lines,
		jobs:            jobmetrics.NewMetrics(registry),
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

// ObserveTransition mencatat hasil transisi status dokumen.
func (m *Metrics) ObserveTransition(document string, trigger workflow.Trigger, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(document, string(trigger), transitionResult(err)).Inc()
}

// ObserveReconciliation mencatat hasil three-way match.
func (m *Metrics) ObserveReconciliation(allMatch bool, lines int) {
	if m == nil {
		return
	}
	verdict := "discrepancy"
	if allMatch {
		verdict = "match"
	}
	m.matches.WithLabelValues(verdict).Inc()
	if lines > 0 {
		m.matchedLines.Add(float64(lines))
	}
}

// Jobs mengembalikan metrik job yang terdaftar di registry yang sama.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

func transitionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, workflow.ErrIllegalTransition):
		return "illegal"
	case errors.Is(err, workflow.ErrPrecondition):
		return "precondition"
	default:
		return "error"
	}
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
