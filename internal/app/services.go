package app

import (
	"log/slog"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/ap"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/inventory"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/procurement"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/shared"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/workflow"
)

// Infrastructure carries the backing pieces the services run on. Idempotency
// and Notifier are optional.
type Infrastructure struct {
	Backend     *store.Backend
	Numbers     shared.Sequencer
	Idempotency ap.IdempotencyGuard
	Notifier    ap.Notifier
	Observer    workflow.Observer
}

// Services bundles the document services of the purchasing flow.
type Services struct {
	Procurement *procurement.Service
	Inventory   *inventory.Service
	AP          *ap.Service
}

// NewServices opens every collection on the backend and wires the services
// into one SPP → SOPb → LPB → kartu gudang → BKK chain.
func NewServices(cfg *Config, infra Infrastructure, logger *slog.Logger) *Services {
	if cfg == nil {
		cfg = &Config{DefaultPaymentTerms: "Net 30"}
	}
	backend := infra.Backend
	if backend == nil {
		backend = store.NewMemoryBackend()
	}
	numbers := infra.Numbers
	if numbers == nil {
		numbers = shared.NewMemorySequencer()
	}

	stock := inventory.NewService(
		store.Open[inventory.StockCard](backend, "kartu_gudang"),
		store.Open[inventory.StockMovement](backend, "transaksi_gudang", store.NewestFirst()),
		logger,
	)
	purchasing := procurement.NewService(procurement.Collections{
		Suppliers: store.Open[procurement.Supplier](backend, "supplier"),
		Requests:  store.Open[procurement.PurchaseRequest](backend, "spp", store.NewestFirst()),
		Orders:    store.Open[procurement.PurchaseOrder](backend, "sopb", store.NewestFirst()),
		Receipts:  store.Open[procurement.GoodsReceipt](backend, "lpb", store.NewestFirst()),
	}, stock, numbers, infra.Observer, logger, procurement.ServiceConfig{
		GuardReferencedDeletes: cfg.GuardReferencedDeletes,
		DefaultPaymentTerms:    cfg.DefaultPaymentTerms,
	})
	payables := ap.NewService(ap.Collections{
		Invoices: store.Open[ap.Invoice](backend, "faktur"),
		Vouchers: store.Open[ap.Voucher](backend, "bkk", store.NewestFirst()),
	}, purchasing, numbers, infra.Observer, logger, ap.ServiceConfig{
		PaymentDelay: cfg.PaymentProcessingDelay,
	})
	purchasing.GuardReceiptReferences(payables.ReceiptReferenced)
	if infra.Notifier != nil {
		payables.SetNotifier(infra.Notifier)
	}
	if infra.Idempotency != nil {
		payables.SetIdempotency(infra.Idempotency)
	}
	return &Services{Procurement: purchasing, Inventory: stock, AP: payables}
}
