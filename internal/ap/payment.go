package ap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/shared"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/workflow"
)

const paymentModule = "payment"

// PaymentInput settles an authorized voucher.
type PaymentInput struct {
	VoucherID string        `json:"bkkId" validate:"required"`
	Method    PaymentMethod `json:"metodePembayaran" validate:"required,oneof=transfer cek tunai"`
	Reference string        `json:"referensiPembayaran" validate:"required"`
	PaidAt    *time.Time    `json:"tanggalBayar,omitempty"`
	PaidBy    string        `json:"dibayarOleh"`
}

// PaymentResult echoes the settled payment.
type PaymentResult struct {
	VoucherID   string          `json:"bkkId"`
	Number      string          `json:"nomor"`
	Method      PaymentMethod   `json:"metodePembayaran"`
	Reference   string          `json:"referensiPembayaran"`
	PaidAt      time.Time       `json:"tanggalBayar"`
	PaidBy      string          `json:"dibayarOleh"`
	Amount      decimal.Decimal `json:"jumlah"`
	Status      VoucherStatus   `json:"status"`
	ProcessedAt time.Time       `json:"processedAt"`
}

// PaymentNotice is handed to the Notifier after settlement.
type PaymentNotice struct {
	VoucherID string          `json:"bkkId"`
	Number    string          `json:"nomor"`
	Supplier  string          `json:"supplier"`
	Invoice   string          `json:"fakturNomor"`
	Amount    decimal.Decimal `json:"jumlah"`
	Method    PaymentMethod   `json:"metodePembayaran"`
	Reference string          `json:"referensiPembayaran"`
	PaidAt    time.Time       `json:"tanggalBayar"`
}

// settleTimeout bounds a settlement once it no longer follows a request context.
const settleTimeout = 30 * time.Second

// paymentFlight is one settlement shared by every caller submitting the same
// reference for a voucher. It is cancelled only when all callers have gone.
type paymentFlight struct {
	reference string
	waiters   int
	cancel    context.CancelFunc
	done      chan struct{}
	result    PaymentResult
	err       error
}

// Pay waits the processing delay, then settles the voucher. Concurrent
// submissions of the same reference share one settlement; a different
// reference is rejected while it runs, and a replay of a settled payment is
// rejected by the idempotency guard.
func (s *Service) Pay(ctx context.Context, input PaymentInput) (PaymentResult, error) {
	if strings.TrimSpace(input.VoucherID) == "" {
		return PaymentResult{}, validationError("bkkId is required")
	}
	flight, err := s.joinFlight(ctx, input)
	if err != nil {
		return PaymentResult{}, err
	}
	select {
	case <-flight.done:
		return flight.result, flight.err
	case <-ctx.Done():
		s.leaveFlight(flight)
		return PaymentResult{}, ctx.Err()
	}
}

func (s *Service) joinFlight(ctx context.Context, input PaymentInput) (*paymentFlight, error) {
	reference := strings.TrimSpace(input.Reference)
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	if flight, ok := s.flights[input.VoucherID]; ok && flight.waiters > 0 {
		if flight.reference != reference {
			return nil, ErrPaymentInProgress
		}
		flight.waiters++
		return flight, nil
	}
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PaymentDelay+settleTimeout)
	flight := &paymentFlight{reference: reference, waiters: 1, cancel: cancel, done: make(chan struct{})}
	s.flights[input.VoucherID] = flight
	go func() {
		flight.result, flight.err = s.settle(settleCtx, input)
		cancel()
		s.flightMu.Lock()
		if s.flights[input.VoucherID] == flight {
			delete(s.flights, input.VoucherID)
		}
		s.flightMu.Unlock()
		close(flight.done)
	}()
	return flight, nil
}

func (s *Service) leaveFlight(flight *paymentFlight) {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	flight.waiters--
	if flight.waiters == 0 {
		flight.cancel()
	}
}

func (s *Service) settle(ctx context.Context, input PaymentInput) (PaymentResult, error) {
	key := input.VoucherID + ":" + strings.TrimSpace(input.Reference)
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, paymentModule); err != nil {
			return PaymentResult{}, err
		}
	}
	result, err := s.process(ctx, input)
	if err != nil && s.idempotency != nil {
		if delErr := s.idempotency.Delete(context.WithoutCancel(ctx), key, paymentModule); delErr != nil {
			s.logger.Warn("release idempotency key", slog.Any("error", delErr))
		}
	}
	return result, err
}

func (s *Service) process(ctx context.Context, input PaymentInput) (PaymentResult, error) {
	if s.cfg.PaymentDelay > 0 {
		timer := time.NewTimer(s.cfg.PaymentDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return PaymentResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	paidAt := s.now()
	if input.PaidAt != nil && !input.PaidAt.IsZero() {
		paidAt = *input.PaidAt
	}
	in := workflow.Input{
		Actor:     shared.ActorOr(ctx, input.PaidBy, "Kasir"),
		Method:    string(input.Method),
		Reference: input.Reference,
	}
	voucher, err := s.transition(ctx, input.VoucherID, TriggerPay, in, paidAt)
	if err != nil {
		return PaymentResult{}, err
	}
	result := PaymentResult{
		VoucherID:   voucher.ID,
		Number:      voucher.Number,
		Method:      voucher.Method,
		Reference:   voucher.Reference,
		PaidAt:      paidAt,
		PaidBy:      voucher.PaidBy,
		Amount:      voucher.TotalValue,
		Status:      voucher.Status,
		ProcessedAt: s.now(),
	}
	s.logger.Info("bkk paid", slog.String("nomor", voucher.Number), slog.String("metode", string(voucher.Method)))

	if s.notifier != nil {
		notice := PaymentNotice{
			VoucherID: voucher.ID,
			Number:    voucher.Number,
			Supplier:  voucher.Supplier,
			Invoice:   voucher.InvoiceNumber,
			Amount:    voucher.TotalValue,
			Method:    voucher.Method,
			Reference: voucher.Reference,
			PaidAt:    paidAt,
		}
		if err := s.notifier.NotifyPayment(context.WithoutCancel(ctx), notice); err != nil {
			s.logger.Warn("payment notification not queued", slog.String("nomor", voucher.Number), slog.Any("error", err))
		}
	}
	return result, nil
}

// IsReplay reports whether err is a rejected duplicate payment.
func IsReplay(err error) bool {
	return errors.Is(err, shared.ErrIdempotencyConflict)
}
