package ap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/procurement"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/shared"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/workflow"
)

// DocumentSource loads the purchasing documents a voucher is matched against.
type DocumentSource interface {
	GetOrder(ctx context.Context, id string) (procurement.PurchaseOrder, error)
	GetReceipt(ctx context.Context, id string) (procurement.GoodsReceipt, error)
}

// Notifier is told about settled vouchers.
type Notifier interface {
	NotifyPayment(ctx context.Context, notice PaymentNotice) error
}

// IdempotencyGuard rejects replays of an already processed request.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Collections groups the stores used by Service.
type Collections struct {
	Invoices store.Collection[Invoice]
	Vouchers store.Collection[Voucher]
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	PaymentDelay time.Duration
}

// Service handles invoices, vouchers and payments.
type Service struct {
	mu       sync.Mutex
	invoices store.Collection[Invoice]
	vouchers store.Collection[Voucher]
	docs     DocumentSource
	numbers  shared.Sequencer
	observer workflow.Observer
	logger   *slog.Logger
	cfg      ServiceConfig
	now      func() time.Time

	notifier    Notifier
	idempotency IdempotencyGuard
	reports     singleflight.Group

	flightMu sync.Mutex
	flights  map[string]*paymentFlight
}

// NewService constructs the payables service.
func NewService(cols Collections, docs DocumentSource, numbers shared.Sequencer, observer workflow.Observer, logger *slog.Logger, cfg ServiceConfig) *Service {
	if observer == nil {
		observer = workflow.NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if numbers == nil {
		numbers = shared.NewMemorySequencer()
	}
	return &Service{
		invoices: cols.Invoices,
		vouchers: cols.Vouchers,
		docs:     docs,
		numbers:  numbers,
		observer: observer,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		flights:  map[string]*paymentFlight{},
	}
}

// SetNotifier installs the payment notification hook.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetIdempotency installs the replay guard used by Pay.
func (s *Service) SetIdempotency(g IdempotencyGuard) {
	s.idempotency = g
}

// CreateInvoiceInput records a supplier invoice.
type CreateInvoiceInput struct {
	Number       string             `json:"nomor" validate:"required"`
	SOPbID       string             `json:"sopbId" validate:"required"`
	Date         *time.Time         `json:"tanggal,omitempty"`
	Supplier     string             `json:"supplier"`
	PaymentTerms string             `json:"syaratPembayaran"`
	Items        []InvoiceLineInput `json:"items" validate:"dive"`
}

// InvoiceLineInput is one billed item.
type InvoiceLineInput struct {
	ItemCode  string          `json:"kodeBarang" validate:"required"`
	Name      string          `json:"namaBarang"`
	Spec      string          `json:"spesifikasi"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"satuan"`
	UnitPrice decimal.Decimal `json:"hargaSatuan"`
}

// CreateInvoice stores a supplier invoice against a purchase order. Without
// items the invoice bills the order as placed.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	number := strings.TrimSpace(input.Number)
	if number == "" {
		return Invoice{}, validationError("nomor is required")
	}
	order, err := s.docs.GetOrder(ctx, input.SOPbID)
	if err != nil {
		return Invoice{}, fmt.Errorf("load sopb: %w", err)
	}
	supplier := strings.TrimSpace(input.Supplier)
	if supplier == "" {
		supplier = order.Supplier.Name
	}
	invoice := Invoice{
		Number:       number,
		Date:         s.now(),
		Supplier:     supplier,
		SOPbID:       order.ID,
		PaymentTerms: strings.TrimSpace(input.PaymentTerms),
	}
	if input.Date != nil && !input.Date.IsZero() {
		invoice.Date = *input.Date
	}
	if invoice.PaymentTerms == "" {
		invoice.PaymentTerms = order.PaymentTerms
	}
	if len(input.Items) == 0 {
		for _, line := range order.Items {
			invoice.Items = append(invoice.Items, InvoiceLine{
				ItemCode: line.ItemCode, Name: line.Name, Spec: line.Spec,
				Quantity: line.Quantity, Unit: line.Unit, UnitPrice: line.UnitPrice,
			})
		}
	}
	seen := make(map[string]struct{}, len(input.Items))
	for _, item := range input.Items {
		key := codeKey(item.ItemCode)
		if key == "" {
			return Invoice{}, validationError("kodeBarang is required")
		}
		if _, dup := seen[key]; dup {
			return Invoice{}, validationError("duplicate kodeBarang %s", item.ItemCode)
		}
		seen[key] = struct{}{}
		if item.Quantity.IsNegative() || item.UnitPrice.IsNegative() {
			return Invoice{}, validationError("quantity and hargaSatuan of %s must not be negative", item.ItemCode)
		}
		invoice.Items = append(invoice.Items, InvoiceLine{
			ItemCode:  strings.TrimSpace(item.ItemCode),
			Name:      item.Name,
			Spec:      item.Spec,
			Quantity:  item.Quantity,
			Unit:      item.Unit,
			UnitPrice: item.UnitPrice,
		})
	}
	invoice.Recalculate()

	s.mu.Lock()
	defer s.mu.Unlock()
	dups, err := store.Filter(ctx, s.invoices, func(i Invoice) bool {
		return strings.EqualFold(i.Number, number) && strings.EqualFold(i.Supplier, supplier)
	})
	if err != nil {
		return Invoice{}, err
	}
	if len(dups) > 0 {
		return Invoice{}, fmt.Errorf("%w: %s", ErrDuplicateInvoice, number)
	}
	created, err := s.invoices.Create(ctx, invoice)
	if err != nil {
		return Invoice{}, err
	}
	s.logger.Info("faktur recorded", slog.String("nomor", created.Number), slog.String("sopb", order.Number))
	return created, nil
}

// ListInvoices returns every invoice.
func (s *Service) ListInvoices(ctx context.Context) ([]Invoice, error) {
	return s.invoices.List(ctx)
}

// GetInvoice returns one invoice.
func (s *Service) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	return s.invoices.Get(ctx, id)
}

// MatchInput names the documents of a three-way match.
type MatchInput struct {
	SOPbID    string `json:"sopbId" validate:"required"`
	LPBID     string `json:"lpbId" validate:"required"`
	InvoiceID string `json:"fakturId" validate:"required"`
}

type matchDocs struct {
	order   procurement.PurchaseOrder
	receipt procurement.GoodsReceipt
	invoice Invoice
}

func (s *Service) loadMatch(ctx context.Context, in MatchInput) (matchDocs, error) {
	order, err := s.docs.GetOrder(ctx, in.SOPbID)
	if err != nil {
		return matchDocs{}, fmt.Errorf("load sopb: %w", err)
	}
	receipt, err := s.docs.GetReceipt(ctx, in.LPBID)
	if err != nil {
		return matchDocs{}, fmt.Errorf("load lpb: %w", err)
	}
	invoice, err := s.invoices.Get(ctx, in.InvoiceID)
	if err != nil {
		return matchDocs{}, fmt.Errorf("load faktur: %w", err)
	}
	if receipt.SOPbID != order.ID {
		return matchDocs{}, fmt.Errorf("%w: lpb %s belongs to another sopb", ErrDocumentMismatch, receipt.Number)
	}
	if invoice.SOPbID != order.ID {
		return matchDocs{}, fmt.Errorf("%w: faktur %s belongs to another sopb", ErrDocumentMismatch, invoice.Number)
	}
	return matchDocs{order: order, receipt: receipt, invoice: invoice}, nil
}

// PreviewMatch runs the three-way match without creating a voucher.
func (s *Service) PreviewMatch(ctx context.Context, in MatchInput) (MatchResult, error) {
	docs, err := s.loadMatch(ctx, in)
	if err != nil {
		return MatchResult{}, err
	}
	result := Reconcile(docs.order.Items, docs.receipt.Items, docs.invoice.Items)
	s.observer.ObserveReconciliation(result.AllMatch(), len(result.Lines))
	return result, nil
}

// CreateVoucherInput requests a voucher for matched documents.
type CreateVoucherInput struct {
	MatchInput
	CreatedBy string `json:"dibuatOleh"`
}

// CreateVoucher matches order, receipt and invoice and, when every line
// agrees, stores a verified voucher. A failed match returns *MatchError and
// stores nothing.
func (s *Service) CreateVoucher(ctx context.Context, input CreateVoucherInput) (Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loadMatch(ctx, input.MatchInput)
	if err != nil {
		return Voucher{}, err
	}
	if docs.receipt.Status == procurement.ReceiptDraft {
		return Voucher{}, &workflow.PreconditionError{Document: voucherMachine.Document(), Trigger: "create", Reason: "lpb " + docs.receipt.Number + " is not verified"}
	}
	existing, err := store.Filter(ctx, s.vouchers, func(v Voucher) bool { return v.LPBID == docs.receipt.ID })
	if err != nil {
		return Voucher{}, err
	}
	if len(existing) > 0 {
		return Voucher{}, fmt.Errorf("%w: %s", ErrAlreadyVouchered, existing[0].Number)
	}

	result := Reconcile(docs.order.Items, docs.receipt.Items, docs.invoice.Items)
	s.observer.ObserveReconciliation(result.AllMatch(), len(result.Lines))
	if !result.AllMatch() {
		s.logger.Warn("three-way match failed",
			slog.String("sopb", docs.order.Number),
			slog.String("lpb", docs.receipt.Number),
			slog.String("faktur", docs.invoice.Number),
			slog.Int("discrepancies", len(result.Discrepancies())))
		return Voucher{}, &MatchError{Lines: result.Discrepancies()}
	}

	now := s.now()
	terms := docs.invoice.PaymentTerms
	if terms == "" {
		terms = docs.order.PaymentTerms
	}
	draft := Voucher{
		Date:          now,
		InvoiceNumber: docs.invoice.Number,
		Supplier:      docs.order.Supplier.Name,
		SOPbID:        docs.order.ID,
		LPBID:         docs.receipt.ID,
		InvoiceID:     docs.invoice.ID,
		Items:         result.Lines,
		TotalValue:    result.Total(),
		PaymentTerms:  terms,
		DueDate:       DueDate(now, terms),
		Status:        VoucherDraft,
		CreatedBy:     shared.ActorOr(ctx, input.CreatedBy, "Staff Akuntansi"),
	}
	verified, _, err := draft.Apply(TriggerVerify, workflow.Input{}, now)
	s.observer.ObserveTransition(voucherMachine.Document(), TriggerVerify, err)
	if err != nil {
		return Voucher{}, err
	}
	verified.Number, err = s.numbers.Next(ctx, shared.PrefixBKK, now)
	if err != nil {
		return Voucher{}, err
	}
	created, err := s.vouchers.Create(ctx, verified)
	if err != nil {
		return Voucher{}, err
	}
	s.logger.Info("bkk created", slog.String("nomor", created.Number), slog.String("total", created.TotalValue.String()))
	return created, nil
}

// ListVouchers returns every voucher.
func (s *Service) ListVouchers(ctx context.Context) ([]Voucher, error) {
	return s.vouchers.List(ctx)
}

// GetVoucher returns one voucher.
func (s *Service) GetVoucher(ctx context.Context, id string) (Voucher, error) {
	return s.vouchers.Get(ctx, id)
}

// AuthorizeInput names the authorizer.
type AuthorizeInput struct {
	AuthorizedBy string `json:"diotorisasiOleh"`
}

// AuthorizeVoucher moves a verified voucher to authorized.
func (s *Service) AuthorizeVoucher(ctx context.Context, id string, input AuthorizeInput) (Voucher, error) {
	actor := shared.ActorOr(ctx, input.AuthorizedBy, DefaultAuthorizer)
	return s.transition(ctx, id, TriggerAuthorize, workflow.Input{Actor: actor}, s.now())
}

func (s *Service) transition(ctx context.Context, id string, trigger workflow.Trigger, in workflow.Input, at time.Time) (Voucher, error) {
	updated, err := s.vouchers.Update(ctx, id, func(v *Voucher) error {
		next, _, err := v.Apply(trigger, in, at)
		if err != nil {
			return err
		}
		*v = next
		return nil
	})
	s.observer.ObserveTransition(voucherMachine.Document(), trigger, err)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("bkk transition rejected", slog.String("id", id), slog.String("trigger", string(trigger)), slog.Any("error", err))
	}
	return updated, err
}

// Summary totals outstanding and overdue balances as of now. Concurrent
// callers share one computation.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	ch := s.reports.DoChan("summary", func() (any, error) {
		return s.summary(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Summary{}, res.Err
		}
		return res.Val.(Summary), nil
	}
}

func (s *Service) summary(ctx context.Context) (Summary, error) {
	vouchers, err := s.vouchers.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	now := s.now()
	sum := Summary{Count: len(vouchers), Outstanding: decimal.Zero, Overdue: decimal.Zero, Paid: decimal.Zero}
	for _, v := range vouchers {
		if v.IsOutstanding(now) {
			sum.OutstandingCount++
			sum.Outstanding = sum.Outstanding.Add(v.TotalValue)
		}
		if v.IsOverdue(now) {
			sum.OverdueCount++
			sum.Overdue = sum.Overdue.Add(v.TotalValue)
		}
		if v.Status == VoucherPaid {
			sum.Paid = sum.Paid.Add(v.TotalValue)
		}
	}
	return sum, nil
}

// Overdue lists unpaid vouchers past their due date.
func (s *Service) Overdue(ctx context.Context) ([]Voucher, error) {
	now := s.now()
	return store.Filter(ctx, s.vouchers, func(v Voucher) bool { return v.IsOverdue(now) })
}

// Aging buckets every unpaid voucher by days past due as of asOf.
func (s *Service) Aging(ctx context.Context, asOf time.Time) (AgingReport, error) {
	vouchers, err := s.vouchers.List(ctx)
	if err != nil {
		return AgingReport{}, err
	}
	report := AgingReport{AsOf: asOf, Totals: zeroBucket()}
	bySupplier := map[string]*SupplierAging{}
	for _, v := range vouchers {
		if v.Status == VoucherPaid {
			continue
		}
		daysOverdue := v.DaysOverdue(asOf)
		report.Totals.add(daysOverdue, v.TotalValue)
		row, ok := bySupplier[v.Supplier]
		if !ok {
			row = &SupplierAging{Supplier: v.Supplier, AgingBucket: zeroBucket(), Total: decimal.Zero}
			bySupplier[v.Supplier] = row
		}
		row.add(daysOverdue, v.TotalValue)
		row.Total = row.Total.Add(v.TotalValue)
	}
	report.Suppliers = make([]SupplierAging, 0, len(bySupplier))
	for _, row := range bySupplier {
		report.Suppliers = append(report.Suppliers, *row)
	}
	sort.Slice(report.Suppliers, func(i, j int) bool {
		return report.Suppliers[i].Supplier < report.Suppliers[j].Supplier
	})
	return report, nil
}

func zeroBucket() AgingBucket {
	return AgingBucket{Current: decimal.Zero, Bucket30: decimal.Zero, Bucket60: decimal.Zero, Bucket90: decimal.Zero, Bucket120: decimal.Zero}
}

// ReceiptReferenced reports whether a voucher points at the receipt.
func (s *Service) ReceiptReferenced(ctx context.Context, receiptID string) (bool, error) {
	refs, err := store.Filter(ctx, s.vouchers, func(v Voucher) bool { return v.LPBID == receiptID })
	if err != nil {
		return false, err
	}
	return len(refs) > 0, nil
}
