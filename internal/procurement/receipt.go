package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/inventory"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/shared"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/workflow"
)

// CreateReceiptInput describes LPB creation.
type CreateReceiptInput struct {
	SOPbID       string `json:"sopbId" validate:"required"`
	DeliveryNote string `json:"suratJalan" validate:"required"`
	ReceivedBy   string `json:"diterimaOleh"`
}

// ReceiptLineInput records what arrived for one line.
type ReceiptLineInput struct {
	Received    *decimal.Decimal `json:"quantityDiterima,omitempty"`
	Quality     *Quality         `json:"kualitas,omitempty"`
	QualityNote *string          `json:"catatanKualitas,omitempty"`
}

// CreateReceipt opens a draft LPB for a sent SOPb. Every line defaults to the
// ordered quantity in good condition.
func (s *Service) CreateReceipt(ctx context.Context, input CreateReceiptInput) (GoodsReceipt, error) {
	if strings.TrimSpace(input.DeliveryNote) == "" {
		return GoodsReceipt{}, validationError("suratJalan is required")
	}
	order, err := s.orders.Get(ctx, input.SOPbID)
	if err != nil {
		return GoodsReceipt{}, fmt.Errorf("load sopb: %w", err)
	}
	if order.Status != OrderSent && order.Status != OrderReceived {
		return GoodsReceipt{}, &workflow.PreconditionError{Document: "lpb", Trigger: "create", Reason: "sopb " + order.Number + " has not been sent"}
	}

	now := s.now()
	number, err := s.numbers.Next(ctx, shared.PrefixLPB, now)
	if err != nil {
		return GoodsReceipt{}, err
	}
	receipt := GoodsReceipt{
		Number:       number,
		Date:         now,
		SOPbID:       order.ID,
		SOPbNumber:   order.Number,
		Supplier:     order.Supplier.Name,
		DeliveryNote: strings.TrimSpace(input.DeliveryNote),
		ReceivedBy:   strings.TrimSpace(input.ReceivedBy),
		Status:       ReceiptDraft,
	}
	for _, line := range order.Items {
		receipt.Items = append(receipt.Items, ReceiptLine{
			ID:          uuid.NewString(),
			OrderLineID: line.ID,
			ItemCode:    line.ItemCode,
			Name:        line.Name,
			Spec:        line.Spec,
			Ordered:     line.Quantity,
			Received:    line.Quantity,
			Unit:        line.Unit,
			Quality:     QualityGood,
		})
	}
	receipt.Recalculate()
	created, err := s.receipts.Create(ctx, receipt)
	if err != nil {
		return GoodsReceipt{}, err
	}
	s.logger.Info("lpb created", slog.String("nomor", created.Number), slog.String("sopb", order.Number))
	return created, nil
}

// ListReceipts returns every LPB.
func (s *Service) ListReceipts(ctx context.Context) ([]GoodsReceipt, error) {
	return s.receipts.List(ctx)
}

// GetReceipt returns one LPB.
func (s *Service) GetReceipt(ctx context.Context, id string) (GoodsReceipt, error) {
	return s.receipts.Get(ctx, id)
}

// UpdateReceipt merges header fields into a draft LPB.
func (s *Service) UpdateReceipt(ctx context.Context, id string, patch []byte) (GoodsReceipt, error) {
	merge := store.MergeJSON[GoodsReceipt](patch, "suratJalan", "diterimaOleh")
	return s.receipts.Update(ctx, id, func(g *GoodsReceipt) error {
		if g.Status != ReceiptDraft {
			return ErrNotEditable
		}
		if err := merge(g); err != nil {
			return err
		}
		if strings.TrimSpace(g.DeliveryNote) == "" {
			return validationError("suratJalan is required")
		}
		return nil
	})
}

// RecordReceiptLine updates received quantity and quality of a draft LPB line.
func (s *Service) RecordReceiptLine(ctx context.Context, receiptID, lineID string, input ReceiptLineInput) (GoodsReceipt, error) {
	if input.Received != nil && input.Received.IsNegative() {
		return GoodsReceipt{}, validationError("quantityDiterima must not be negative")
	}
	if input.Quality != nil && !input.Quality.Valid() {
		return GoodsReceipt{}, validationError("unknown kualitas %q", *input.Quality)
	}
	return s.receipts.Update(ctx, receiptID, func(g *GoodsReceipt) error {
		if g.Status != ReceiptDraft {
			return ErrNotEditable
		}
		for i := range g.Items {
			line := &g.Items[i]
			if line.ID != lineID && !strings.EqualFold(line.ItemCode, lineID) {
				continue
			}
			if input.Received != nil {
				line.Received = *input.Received
			}
			if input.Quality != nil {
				line.Quality = *input.Quality
			}
			if input.QualityNote != nil {
				line.QualityNote = *input.QualityNote
			}
			g.Recalculate()
			return nil
		}
		return ErrLineNotFound
	})
}

// VerifyReceipt moves the LPB to verified and marks a sent SOPb received.
func (s *Service) VerifyReceipt(ctx context.Context, id string) (GoodsReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	verified, err := s.transitionReceipt(ctx, id, TriggerVerify)
	if err != nil {
		return GoodsReceipt{}, err
	}
	order, err := s.orders.Get(ctx, verified.SOPbID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("lpb references missing sopb", slog.String("lpb", verified.Number), slog.String("sopb", verified.SOPbID))
			return verified, nil
		}
		return verified, err
	}
	if orderMachine.Can(order.Status, TriggerReceive) {
		if _, err := s.transitionOrder(ctx, order.ID, TriggerReceive); err != nil {
			return verified, err
		}
	}
	return verified, nil
}

// SubmitReceiptToWarehouse posts a verified LPB to the stock ledger and then
// marks it submitted.
func (s *Service) SubmitReceiptToWarehouse(ctx context.Context, id string) (GoodsReceipt, error) {
	if s.inventory == nil {
		return GoodsReceipt{}, errors.New("procurement: inventory integration not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, err := s.receipts.Get(ctx, id)
	if err != nil {
		return GoodsReceipt{}, err
	}
	if !receiptMachine.Can(receipt.Status, TriggerSubmitToWarehouse) {
		err := &workflow.TransitionError{Document: receiptMachine.Document(), From: string(receipt.Status), Trigger: TriggerSubmitToWarehouse}
		s.observer.ObserveTransition(receiptMachine.Document(), TriggerSubmitToWarehouse, err)
		return GoodsReceipt{}, err
	}
	input := inventory.ReceiptInput{Number: receipt.Number}
	for _, line := range receipt.Items {
		input.Lines = append(input.Lines, inventory.ReceiptLine{
			ItemCode: line.ItemCode,
			Name:     line.Name,
			Spec:     line.Spec,
			Unit:     line.Unit,
			Quantity: line.Received,
		})
	}
	if _, err := s.inventory.ApplyReceipt(ctx, input); err != nil {
		return GoodsReceipt{}, fmt.Errorf("post lpb %s to ledger: %w", receipt.Number, err)
	}
	return s.transitionReceipt(ctx, id, TriggerSubmitToWarehouse)
}

// DeleteReceipt removes an LPB.
func (s *Service) DeleteReceipt(ctx context.Context, id string) (bool, error) {
	if s.cfg.GuardReferencedDeletes && s.receiptReferenced != nil {
		referenced, err := s.receiptReferenced(ctx, id)
		if err != nil {
			return false, err
		}
		if referenced {
			return false, fmt.Errorf("%w: lpb used by a payment voucher", ErrReferenced)
		}
	}
	return s.receipts.Delete(ctx, id)
}

func (s *Service) transitionReceipt(ctx context.Context, id string, trigger workflow.Trigger) (GoodsReceipt, error) {
	now := s.now()
	updated, err := s.receipts.Update(ctx, id, func(g *GoodsReceipt) error {
		next, _, err := g.Apply(trigger, now)
		if err != nil {
			return err
		}
		*g = next
		return nil
	})
	s.observer.ObserveTransition(receiptMachine.Document(), trigger, err)
	return updated, err
}
