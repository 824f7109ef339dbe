package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	overdueCount  prometheus.Gauge
	overdueAmount prometheus.Gauge
	notifications *prometheus.CounterVec
	lowStock      prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// SetOverdue records the latest overdue voucher scan.
func (m *Metrics) SetOverdue(count int, amount float64) {
	if m == nil {
		return
	}
	m.overdueCount.Set(float64(count))
	m.overdueAmount.Set(amount)
}

// SetLowStock records how many stock cards are low or empty.
func (m *Metrics) SetLowStock(count int) {
	if m == nil {
		return
	}
	m.lowStock.Set(float64(count))
}

// AddNotification counts a supplier payment notification by payment method.
func (m *Metrics) AddNotification(method string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.notifications.WithLabelValues(method).Inc()
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pembelian_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pembelian_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pembelian_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	overdueCount := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pembelian_bkk_overdue",
		Help: "Unpaid payment vouchers past their due date at the last scan.",
	})
	overdueAmount := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pembelian_bkk_overdue_amount_rupiah",
		Help: "Total value of overdue payment vouchers at the last scan.",
	})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pembelian_payment_notifications_total",
		Help: "Supplier payment notifications delivered, by payment method.",
	}, []string{"method"})
	lowStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pembelian_stock_low_items",
		Help: "Stock cards at or below their minimum at the last scan.",
	})
	registerer.MustRegister(runs, failures, duration, overdueCount, overdueAmount, notifications, lowStock)
	return &Metrics{
		runs:          runs,
		failures:      failures,
		duration:      duration,
		overdueCount:  overdueCount,
		overdueAmount: overdueAmount,
		notifications: notifications,
		lowStock:      lowStock,
	}
}
