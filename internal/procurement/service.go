package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/inventory"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/shared"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/workflow"
)

// InventoryPort exposes required inventory integration.
type InventoryPort interface {
	ApplyReceipt(ctx context.Context, input inventory.ReceiptInput) ([]inventory.StockCard, error)
}

// ReferenceCheck reports whether a document is referenced outside this package.
type ReferenceCheck func(ctx context.Context, id string) (bool, error)

// Collections groups the document collections used by Service.
type Collections struct {
	Suppliers store.Collection[Supplier]
	Requests  store.Collection[PurchaseRequest]
	Orders    store.Collection[PurchaseOrder]
	Receipts  store.Collection[GoodsReceipt]
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	GuardReferencedDeletes bool
	DefaultPaymentTerms    string
	DeliveryLeadTime       time.Duration
}

// Service orchestrates procurement flows.
type Service struct {
	mu        sync.Mutex
	suppliers store.Collection[Supplier]
	requests  store.Collection[PurchaseRequest]
	orders    store.Collection[PurchaseOrder]
	receipts  store.Collection[GoodsReceipt]
	inventory InventoryPort
	numbers   shared.Sequencer
	observer  workflow.Observer
	logger    *slog.Logger
	cfg       ServiceConfig
	now       func() time.Time

	receiptReferenced ReferenceCheck
}

// NewService constructs procurement service.
func NewService(cols Collections, inventory InventoryPort, numbers shared.Sequencer, observer workflow.Observer, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.DefaultPaymentTerms == "" {
		cfg.DefaultPaymentTerms = "Net 30"
	}
	if cfg.DeliveryLeadTime <= 0 {
		cfg.DeliveryLeadTime = 7 * 24 * time.Hour
	}
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
		suppliers: cols.Suppliers,
		requests:  cols.Requests,
		orders:    cols.Orders,
		receipts:  cols.Receipts,
		inventory: inventory,
		numbers:   numbers,
		observer:  observer,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// GuardReceiptReferences installs the check used before deleting a receipt.
func (s *Service) GuardReceiptReferences(check ReferenceCheck) {
	s.receiptReferenced = check
}

// CreateRequestInput describes creation payload.
type CreateRequestInput struct {
	Division    string             `json:"divisi" validate:"required"`
	RequestedBy string             `json:"dibuatOleh" validate:"required"`
	Date        *time.Time         `json:"tanggal,omitempty"`
	Items       []RequestLineInput `json:"items" validate:"dive"`
}

// RequestLineInput describes request line.
type RequestLineInput struct {
	ItemCode string          `json:"kodeBarang" validate:"required"`
	Name     string          `json:"namaBarang" validate:"required"`
	Spec     string          `json:"spesifikasi"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"satuan"`
	Purpose  string          `json:"keperluan"`
}

func (in RequestLineInput) toLine() (RequestLine, error) {
	if strings.TrimSpace(in.ItemCode) == "" || strings.TrimSpace(in.Name) == "" {
		return RequestLine{}, validationError("kodeBarang and namaBarang are required")
	}
	if !in.Quantity.IsPositive() {
		return RequestLine{}, validationError("quantity for %s must be positive", in.ItemCode)
	}
	return RequestLine{
		ID:       uuid.NewString(),
		ItemCode: strings.TrimSpace(in.ItemCode),
		Name:     strings.TrimSpace(in.Name),
		Spec:     in.Spec,
		Quantity: in.Quantity,
		Unit:     defaultString(in.Unit, DefaultUnit),
		Purpose:  in.Purpose,
	}, nil
}

// CreateRequest persists a draft SPP.
func (s *Service) CreateRequest(ctx context.Context, input CreateRequestInput) (PurchaseRequest, error) {
	if strings.TrimSpace(input.Division) == "" || strings.TrimSpace(input.RequestedBy) == "" {
		return PurchaseRequest{}, validationError("divisi and dibuatOleh are required")
	}
	lines := make([]RequestLine, 0, len(input.Items))
	codes := make([]string, 0, len(input.Items))
	for _, item := range input.Items {
		line, err := item.toLine()
		if err != nil {
			return PurchaseRequest{}, err
		}
		lines = append(lines, line)
		codes = append(codes, line.ItemCode)
	}
	if err := checkUniqueCodes(codes); err != nil {
		return PurchaseRequest{}, err
	}
	now := s.now()
	number, err := s.numbers.Next(ctx, shared.PrefixSPP, now)
	if err != nil {
		return PurchaseRequest{}, err
	}
	date := now
	if input.Date != nil && !input.Date.IsZero() {
		date = *input.Date
	}
	created, err := s.requests.Create(ctx, PurchaseRequest{
		Number:      number,
		Date:        date,
		RequestedBy: strings.TrimSpace(input.RequestedBy),
		Division:    strings.TrimSpace(input.Division),
		Items:       lines,
		Status:      RequestDraft,
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	s.logger.Info("spp created", slog.String("nomor", created.Number), slog.String("id", created.ID))
	return created, nil
}

// ListRequests returns every SPP.
func (s *Service) ListRequests(ctx context.Context) ([]PurchaseRequest, error) {
	return s.requests.List(ctx)
}

// GetRequest returns one SPP.
func (s *Service) GetRequest(ctx context.Context, id string) (PurchaseRequest, error) {
	return s.requests.Get(ctx, id)
}

// UpdateRequest merges header fields into a draft SPP.
func (s *Service) UpdateRequest(ctx context.Context, id string, patch []byte) (PurchaseRequest, error) {
	merge := store.MergeJSON[PurchaseRequest](patch, "divisi", "dibuatOleh", "tanggal")
	return s.requests.Update(ctx, id, func(p *PurchaseRequest) error {
		if p.Status != RequestDraft {
			return ErrNotEditable
		}
		return merge(p)
	})
}

// AddRequestLine appends an item to a draft SPP.
func (s *Service) AddRequestLine(ctx context.Context, id string, input RequestLineInput) (PurchaseRequest, error) {
	line, err := input.toLine()
	if err != nil {
		return PurchaseRequest{}, err
	}
	return s.requests.Update(ctx, id, func(p *PurchaseRequest) error {
		if p.Status != RequestDraft {
			return ErrNotEditable
		}
		codes := []string{line.ItemCode}
		for _, existing := range p.Items {
			codes = append(codes, existing.ItemCode)
		}
		if err := checkUniqueCodes(codes); err != nil {
			return err
		}
		p.Items = append(p.Items, line)
		return nil
	})
}

// RemoveRequestLine deletes an item from a draft SPP.
func (s *Service) RemoveRequestLine(ctx context.Context, id, lineID string) (PurchaseRequest, error) {
	return s.requests.Update(ctx, id, func(p *PurchaseRequest) error {
		if p.Status != RequestDraft {
			return ErrNotEditable
		}
		for i, line := range p.Items {
			if line.ID == lineID {
				p.Items = append(p.Items[:i], p.Items[i+1:]...)
				return nil
			}
		}
		return ErrLineNotFound
	})
}

// SubmitRequest transitions the SPP to submitted.
func (s *Service) SubmitRequest(ctx context.Context, id string) (PurchaseRequest, error) {
	return s.transitionRequest(ctx, id, TriggerSubmit)
}

// DeleteRequest removes an SPP.
func (s *Service) DeleteRequest(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.GuardReferencedDeletes {
		refs, err := store.Filter(ctx, s.orders, func(o PurchaseOrder) bool { return o.SPPID == id })
		if err != nil {
			return false, err
		}
		if len(refs) > 0 {
			return false, fmt.Errorf("%w: spp used by %s", ErrReferenced, refs[0].Number)
		}
	}
	return s.requests.Delete(ctx, id)
}

func (s *Service) transitionRequest(ctx context.Context, id string, trigger workflow.Trigger) (PurchaseRequest, error) {
	now := s.now()
	updated, err := s.requests.Update(ctx, id, func(p *PurchaseRequest) error {
		next, _, err := p.Apply(trigger, now)
		if err != nil {
			return err
		}
		*p = next
		return nil
	})
	s.observer.ObserveTransition(requestMachine.Document(), trigger, err)
	return updated, err
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
