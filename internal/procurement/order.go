package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/shared"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/workflow"
)

// CreateOrderInput defines data to create SOPb from SPP.
type CreateOrderInput struct {
	SPPID        string     `json:"sppId" validate:"required"`
	SupplierID   string     `json:"supplierId" validate:"required"`
	PaymentTerms string     `json:"syaratPembayaran,omitempty"`
	DeliveryDate *time.Time `json:"tanggalKirim,omitempty"`
}

// SetPriceInput carries a negotiated unit price.
type SetPriceInput struct {
	UnitPrice decimal.Decimal `json:"hargaSatuan"`
}

// CreateOrderFromRequest converts a submitted SPP to a draft SOPb with zero
// prices and marks the SPP processed.
func (s *Service) CreateOrderFromRequest(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spp, err := s.requests.Get(ctx, input.SPPID)
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("load spp: %w", err)
	}
	if !requestMachine.Can(spp.Status, TriggerProcess) {
		err := &workflow.TransitionError{Document: requestMachine.Document(), From: string(spp.Status), Trigger: TriggerProcess}
		s.observer.ObserveTransition(requestMachine.Document(), TriggerProcess, err)
		return PurchaseOrder{}, err
	}
	supplier, err := s.suppliers.Get(ctx, input.SupplierID)
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("load supplier: %w", err)
	}

	now := s.now()
	number, err := s.numbers.Next(ctx, shared.PrefixSOPb, now)
	if err != nil {
		return PurchaseOrder{}, err
	}
	delivery := now.Add(s.cfg.DeliveryLeadTime)
	if input.DeliveryDate != nil && !input.DeliveryDate.IsZero() {
		delivery = *input.DeliveryDate
	}
	order := PurchaseOrder{
		Number:       number,
		Date:         now,
		SPPID:        spp.ID,
		SPPNumber:    spp.Number,
		SupplierID:   supplier.ID,
		Supplier:     supplier,
		PaymentTerms: defaultString(input.PaymentTerms, s.cfg.DefaultPaymentTerms),
		DeliveryDate: delivery,
		Status:       OrderDraft,
	}
	for _, line := range spp.Items {
		order.Items = append(order.Items, OrderLine{
			ID:        uuid.NewString(),
			ItemCode:  line.ItemCode,
			Name:      line.Name,
			Spec:      line.Spec,
			Quantity:  line.Quantity,
			Unit:      line.Unit,
			UnitPrice: decimal.Zero,
		})
	}
	order.Recalculate()

	created, err := s.orders.Create(ctx, order)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if _, err := s.transitionRequest(ctx, spp.ID, TriggerProcess); err != nil {
		if _, rbErr := s.orders.Delete(ctx, created.ID); rbErr != nil {
			s.logger.Error("rollback sopb", slog.Any("error", rbErr), slog.String("id", created.ID))
		}
		return PurchaseOrder{}, err
	}
	s.logger.Info("sopb created", slog.String("nomor", created.Number), slog.String("spp", spp.Number))
	return created, nil
}

// ListOrders returns every SOPb.
func (s *Service) ListOrders(ctx context.Context) ([]PurchaseOrder, error) {
	return s.orders.List(ctx)
}

// GetOrder returns one SOPb.
func (s *Service) GetOrder(ctx context.Context, id string) (PurchaseOrder, error) {
	return s.orders.Get(ctx, id)
}

// UpdateOrder merges header fields into a draft SOPb.
func (s *Service) UpdateOrder(ctx context.Context, id string, patch []byte) (PurchaseOrder, error) {
	merge := store.MergeJSON[PurchaseOrder](patch, "syaratPembayaran", "tanggalKirim")
	return s.orders.Update(ctx, id, func(o *PurchaseOrder) error {
		if o.Status != OrderDraft {
			return ErrNotEditable
		}
		return merge(o)
	})
}

// SetUnitPrice fills the price of one line while the SOPb is draft.
func (s *Service) SetUnitPrice(ctx context.Context, orderID, lineID string, input SetPriceInput) (PurchaseOrder, error) {
	if input.UnitPrice.IsNegative() {
		return PurchaseOrder{}, validationError("hargaSatuan must not be negative")
	}
	return s.orders.Update(ctx, orderID, func(o *PurchaseOrder) error {
		if o.Status != OrderDraft {
			return ErrNotEditable
		}
		for i := range o.Items {
			if o.Items[i].ID == lineID || strings.EqualFold(o.Items[i].ItemCode, lineID) {
				o.Items[i].UnitPrice = input.UnitPrice
				o.Recalculate()
				return nil
			}
		}
		return ErrLineNotFound
	})
}

// ApproveOrder moves a priced SOPb from draft to submitted.
func (s *Service) ApproveOrder(ctx context.Context, id string) (PurchaseOrder, error) {
	return s.transitionOrder(ctx, id, TriggerApprove)
}

// SendOrder marks the SOPb as sent to the supplier.
func (s *Service) SendOrder(ctx context.Context, id string) (PurchaseOrder, error) {
	return s.transitionOrder(ctx, id, TriggerSend)
}

// DeleteOrder removes a SOPb.
func (s *Service) DeleteOrder(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.GuardReferencedDeletes {
		refs, err := store.Filter(ctx, s.receipts, func(g GoodsReceipt) bool { return g.SOPbID == id })
		if err != nil {
			return false, err
		}
		if len(refs) > 0 {
			return false, fmt.Errorf("%w: sopb used by %s", ErrReferenced, refs[0].Number)
		}
	}
	return s.orders.Delete(ctx, id)
}

func (s *Service) transitionOrder(ctx context.Context, id string, trigger workflow.Trigger) (PurchaseOrder, error) {
	now := s.now()
	updated, err := s.orders.Update(ctx, id, func(o *PurchaseOrder) error {
		next, _, err := o.Apply(trigger, now)
		if err != nil {
			return err
		}
		*o = next
		return nil
	})
	s.observer.ObserveTransition(orderMachine.Document(), trigger, err)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("sopb transition rejected", slog.String("id", id), slog.String("trigger", string(trigger)), slog.Any("error", err))
	}
	return updated, err
}
