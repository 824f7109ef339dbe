package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/ap"
	jobmetrics "github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/jobs"
)

// Sender delivers a rendered notice to a supplier.
type Sender interface {
	Send(ctx context.Context, supplier, subject, body string) error
}

// PaymentNotifyJob renders and delivers payment notices.
type PaymentNotifyJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Sender  Sender
}

// NewPaymentNotifyJob builds the job. A nil sender only logs the notice.
func NewPaymentNotifyJob(logger *slog.Logger, metrics *jobmetrics.Metrics, sender Sender) *PaymentNotifyJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentNotifyJob{Logger: logger, Metrics: metrics, Sender: sender}
}

// Handle processes TaskPaymentNotify tasks.
func (j *PaymentNotifyJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	tracker := j.Metrics.Track(TaskPaymentNotify)
	defer func() { err = tracker.End(err) }()

	var notice ap.PaymentNotice
	if err := json.Unmarshal(t.Payload(), &notice); err != nil {
		return fmt.Errorf("decode payment notice: %v: %w", err, asynq.SkipRetry)
	}
	if notice.VoucherID == "" || notice.Supplier == "" {
		return fmt.Errorf("payment notice without voucher or supplier: %w", asynq.SkipRetry)
	}

	subject, body := RenderNotice(notice)
	if j.Sender != nil {
		if err := j.Sender.Send(ctx, notice.Supplier, subject, body); err != nil {
			return err
		}
	}
	j.Logger.Info("payment notice delivered",
		slog.String("nomor", notice.Number),
		slog.String("supplier", notice.Supplier),
		slog.String("jumlah", FormatRupiah(notice.Amount)),
		slog.String("metode", string(notice.Method)))
	j.Metrics.AddNotification(string(notice.Method))
	return nil
}

// RenderNotice produces the subject and body sent to the supplier.
func RenderNotice(notice ap.PaymentNotice) (string, string) {
	p := message.NewPrinter(language.Indonesian)
	subject := p.Sprintf("Pembayaran %s untuk faktur %s", notice.Number, notice.Invoice)
	body := p.Sprintf("Kepada %s,\n\nPembayaran sebesar %s telah dilakukan melalui %s dengan referensi %s pada %s.\n",
		notice.Supplier,
		FormatRupiah(notice.Amount),
		notice.Method,
		notice.Reference,
		notice.PaidAt.Format("02-01-2006"))
	return subject, body
}

// FormatRupiah formats an amount with Indonesian digit grouping.
func FormatRupiah(amount decimal.Decimal) string {
	p := message.NewPrinter(language.Indonesian)
	return p.Sprintf("Rp%v", number.Decimal(amount.InexactFloat64(), number.MaxFractionDigits(2)))
}
