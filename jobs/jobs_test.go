package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/ap"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/inventory"
	jobmetrics "github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/jobs"
)

func newMetrics(t *testing.T) (*jobmetrics.Metrics, func() string) {
	t.Helper()
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	scrape := func() string {
		rr := httptest.NewRecorder()
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return rr.Body.String()
	}
	return metrics, scrape
}

func sampleNotice() ap.PaymentNotice {
	return ap.PaymentNotice{
		VoucherID: "bkk-1",
		Number:    "BKK-001/2025",
		Supplier:  "PT. Supplier Maju",
		Invoice:   "INV-2025-001",
		Amount:    decimal.NewFromInt(5000000),
		Method:    ap.MethodTransfer,
		Reference: "TRF-20250617",
		PaidAt:    time.Date(2025, 6, 17, 9, 0, 0, 0, time.UTC),
	}
}

type recordingSender struct {
	supplier, subject, body string
	err                     error
}

func (s *recordingSender) Send(_ context.Context, supplier, subject, body string) error {
	s.supplier, s.subject, s.body = supplier, subject, body
	return s.err
}

func TestFormatRupiahUsesIndonesianGrouping(t *testing.T) {
	require.Equal(t, "Rp5.000.000", FormatRupiah(decimal.NewFromInt(5000000)))
	require.Contains(t, FormatRupiah(decimal.RequireFromString("1250.5")), "1.250,5")
}

func TestPaymentNotifyJobDeliversNotice(t *testing.T) {
	metrics, scrape := newMetrics(t)
	sender := &recordingSender{}
	job := NewPaymentNotifyJob(nil, metrics, sender)

	task, err := NewPaymentNotifyTask(sampleNotice())
	require.NoError(t, err)
	require.Equal(t, TaskPaymentNotify, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, "PT. Supplier Maju", sender.supplier)
	require.Contains(t, sender.subject, "BKK-001/2025")
	require.Contains(t, sender.body, "Rp5.000.000")
	require.Contains(t, sender.body, "TRF-20250617")
	require.Contains(t, sender.body, "17-06-2025")

	body := scrape()
	require.Contains(t, body, `pembelian_payment_notifications_total{method="transfer"} 1`)
	require.Contains(t, body, `pembelian_jobs_total{job="payment:notify",status="success"} 1`)
}

func TestPaymentNotifyJobSkipsRetryOnBadPayload(t *testing.T) {
	metrics, scrape := newMetrics(t)
	job := NewPaymentNotifyJob(nil, metrics, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskPaymentNotify, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskPaymentNotify, []byte(`{"bkkId":""}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	require.Contains(t, scrape(), `pembelian_jobs_failures_total{job="payment:notify"} 2`)
}

func TestPaymentNotifyJobRetriesSenderFailure(t *testing.T) {
	metrics, scrape := newMetrics(t)
	job := NewPaymentNotifyJob(nil, metrics, &recordingSender{err: errors.New("smtp down")})

	task, err := NewPaymentNotifyTask(sampleNotice())
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
	require.NotContains(t, scrape(), "pembelian_payment_notifications_total{")
}

type overdueStub struct {
	vouchers []ap.Voucher
	err      error
}

func (s overdueStub) Overdue(context.Context) ([]ap.Voucher, error) { return s.vouchers, s.err }

func TestOverdueScanPublishesGauges(t *testing.T) {
	metrics, scrape := newMetrics(t)
	job := &OverdueScanJob{
		Source: overdueStub{vouchers: []ap.Voucher{
			{Number: "BKK-001/2025", TotalValue: decimal.NewFromInt(1000000)},
			{Number: "BKK-002/2025", TotalValue: decimal.NewFromInt(500000)},
		}},
		Metrics: metrics,
	}
	require.NoError(t, job.Handle(context.Background(), NewOverdueScanTask()))

	body := scrape()
	require.Contains(t, body, "pembelian_bkk_overdue 2")
	require.Contains(t, body, "pembelian_bkk_overdue_amount_rupiah 1.5e+06")
}

func TestOverdueScanPropagatesSourceError(t *testing.T) {
	metrics, scrape := newMetrics(t)
	job := &OverdueScanJob{Source: overdueStub{err: errors.New("db down")}, Metrics: metrics}
	require.Error(t, job.Handle(context.Background(), NewOverdueScanTask()))
	require.Contains(t, scrape(), `pembelian_jobs_total{job="bkk:overdue-scan",status="failure"} 1`)
}

type lowStockStub []inventory.StockCard

func (s lowStockStub) LowStock(context.Context) ([]inventory.StockCard, error) { return s, nil }

func TestLowStockScanPublishesGauge(t *testing.T) {
	metrics, scrape := newMetrics(t)
	job := &LowStockScanJob{
		Source: lowStockStub{
			{ItemCode: "BRG002", Closing: decimal.NewFromInt(80), MinStock: decimal.NewFromInt(100), Status: inventory.StatusLow},
		},
		Metrics: metrics,
	}
	require.NoError(t, job.Handle(context.Background(), NewLowStockScanTask()))
	require.Contains(t, scrape(), "pembelian_stock_low_items 1")
}

func TestClientQueuesPaymentNoticeOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	info, err := client.EnqueuePaymentNotice(context.Background(), sampleNotice())
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, QueueCritical, info.Queue)
	require.Equal(t, "payment:bkk-1", info.ID)

	var notifier ap.Notifier = client
	require.NoError(t, notifier.NotifyPayment(context.Background(), sampleNotice()))
}

func TestHealthWithoutInspectorReportsEmptyQueues(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var rows []queueHealth
	require.NoError(t, json.NewDecoder(strings.NewReader(rr.Body.String())).Decode(&rows))
	require.Len(t, rows, 2)
	require.Equal(t, QueueCritical, rows[0].Queue)
	require.Zero(t, rows[1].Pending)
}
