package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/ap"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/inventory"
	jobmetrics "github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/jobs"
)

// OverdueSource lists vouchers past their due date.
type OverdueSource interface {
	Overdue(ctx context.Context) ([]ap.Voucher, error)
}

// OverdueScanJob publishes the overdue voucher count and value.
type OverdueScanJob struct {
	Source  OverdueSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Clock   func() time.Time
}

// Handle processes TaskOverdueScan tasks.
func (j *OverdueScanJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	tracker := j.Metrics.Track(TaskOverdueScan)
	defer func() { err = tracker.End(err) }()

	vouchers, err := j.Source.Overdue(ctx)
	if err != nil {
		return err
	}
	total := decimal.Zero
	for _, v := range vouchers {
		total = total.Add(v.TotalValue)
	}
	j.Metrics.SetOverdue(len(vouchers), total.InexactFloat64())
	if len(vouchers) > 0 && j.Logger != nil {
		j.Logger.Warn("overdue vouchers",
			slog.Int("count", len(vouchers)),
			slog.String("total", FormatRupiah(total)),
			slog.Time("scanned_at", j.now()))
	}
	return nil
}

func (j *OverdueScanJob) now() time.Time {
	if j.Clock != nil {
		return j.Clock()
	}
	return time.Now().UTC()
}

// LowStockSource lists stock cards classified low or empty.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]inventory.StockCard, error)
}

// LowStockScanJob publishes how many cards need replenishment.
type LowStockScanJob struct {
	Source  LowStockSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() { err = tracker.End(err) }()

	cards, err := j.Source.LowStock(ctx)
	if err != nil {
		return err
	}
	j.Metrics.SetLowStock(len(cards))
	if j.Logger != nil {
		for _, card := range cards {
			j.Logger.Info("stock below minimum",
				slog.String("kodeBarang", card.ItemCode),
				slog.String("saldoAkhir", card.Closing.String()),
				slog.String("minStock", card.MinStock.String()),
				slog.String("status", string(card.Status)))
		}
	}
	return nil
}
