package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
)

// Service coordinates stock cards and their movement log.
type Service struct {
	mu        sync.Mutex
	cards     store.Collection[StockCard]
	movements store.Collection[StockMovement]
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service.
func NewService(cards store.Collection[StockCard], movements store.Collection[StockMovement], logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cards: cards, movements: movements, logger: logger, now: time.Now}
}

// ApplyReceipt posts every line of a submitted goods receipt as an inbound movement.
// Missing cards are opened with the default location and threshold.
func (s *Service) ApplyReceipt(ctx context.Context, input ReceiptInput) ([]StockCard, error) {
	if strings.TrimSpace(input.Number) == "" || len(input.Lines) == 0 {
		return nil, ErrInvalidReceipt
	}
	for _, line := range input.Lines {
		if strings.TrimSpace(line.ItemCode) == "" {
			return nil, fmt.Errorf("%w: item code required", ErrInvalidReceipt)
		}
		if line.Quantity.IsNegative() {
			return nil, ErrInvalidQuantity
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := mergeLines(input.Lines)
	posted := make([]StockCard, 0, len(lines))
	for _, line := range lines {
		card, err := s.postInbound(ctx, input.Number, line)
		if err != nil {
			return posted, err
		}
		posted = append(posted, card)
	}
	s.logger.Info("receipt posted to ledger", slog.String("receipt", input.Number), slog.Int("lines", len(posted)))
	return posted, nil
}

// mergeLines sums repeated item codes so each card moves once per receipt.
func mergeLines(lines []ReceiptLine) []ReceiptLine {
	merged := make([]ReceiptLine, 0, len(lines))
	for _, line := range lines {
		line.ItemCode = strings.TrimSpace(line.ItemCode)
		found := false
		for i := range merged {
			if sameItem(merged[i].ItemCode, line.ItemCode) {
				merged[i].Quantity = merged[i].Quantity.Add(line.Quantity)
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, line)
		}
	}
	return merged
}

// postInbound is safe to repeat for the same receipt: the card records the
// receipt number in the same write that adds the quantity, and the movement is
// only written when missing.
func (s *Service) postInbound(ctx context.Context, receipt string, line ReceiptLine) (StockCard, error) {
	existing, err := s.findCard(ctx, line.ItemCode)
	var card StockCard
	switch {
	case err == nil && existing.hasReceipt(receipt):
		card = existing
		s.logger.Debug("receipt line already on card", slog.String("receipt", receipt), slog.String("kodeBarang", card.ItemCode))
	case err == nil:
		card, err = s.cards.Update(ctx, existing.ID, func(c *StockCard) error {
			if c.hasReceipt(receipt) {
				return nil
			}
			c.Inflow = c.Inflow.Add(line.Quantity)
			c.PostedReceipts = append(c.PostedReceipts, receipt)
			c.Recompute()
			return nil
		})
		if err != nil {
			return StockCard{}, err
		}
	case errors.Is(err, ErrCardNotFound):
		card, err = s.cards.Create(ctx, StockCard{
			ItemCode:       line.ItemCode,
			Name:           line.Name,
			Spec:           line.Spec,
			Unit:           defaultString(line.Unit, DefaultUnit),
			Opening:        decimal.Zero,
			Inflow:         line.Quantity,
			Outflow:        decimal.Zero,
			Closing:        line.Quantity,
			Location:       DefaultLocation,
			MinStock:       DefaultMinStock,
			Status:         StatusSufficient,
			PostedReceipts: []string{receipt},
		})
		if err != nil {
			return StockCard{}, err
		}
	default:
		return StockCard{}, err
	}

	_, err = store.First(ctx, s.movements, func(m StockMovement) bool {
		return m.Direction == DirectionIn && m.Reference == receipt && sameItem(m.ItemCode, card.ItemCode)
	})
	switch {
	case err == nil:
		return card, nil
	case !errors.Is(err, store.ErrNotFound):
		return StockCard{}, err
	}
	_, err = s.movements.Create(ctx, StockMovement{
		Date:      s.now(),
		ItemCode:  card.ItemCode,
		Name:      card.Name,
		Direction: DirectionIn,
		Quantity:  line.Quantity,
		Unit:      card.Unit,
		Reference: receipt,
		Note:      fmt.Sprintf("Penerimaan dari LPB %s", receipt),
	})
	if err != nil {
		return StockCard{}, err
	}
	return card, nil
}

// PostOutbound issues stock from an existing card.
func (s *Service) PostOutbound(ctx context.Context, input OutboundInput) (StockCard, error) {
	if !input.Quantity.IsPositive() {
		return StockCard{}, ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.findCard(ctx, input.ItemCode)
	if err != nil {
		return StockCard{}, err
	}
	card, err := s.cards.Update(ctx, existing.ID, func(c *StockCard) error {
		if c.Closing.LessThan(input.Quantity) {
			return ErrNegativeStock
		}
		c.Outflow = c.Outflow.Add(input.Quantity)
		c.Recompute()
		return nil
	})
	if err != nil {
		return StockCard{}, err
	}
	note := input.Note
	if note == "" {
		note = fmt.Sprintf("Pengeluaran untuk %s", input.Reference)
	}
	if _, err := s.movements.Create(ctx, StockMovement{
		Date:      s.now(),
		ItemCode:  card.ItemCode,
		Name:      card.Name,
		Direction: DirectionOut,
		Quantity:  input.Quantity,
		Unit:      card.Unit,
		Reference: input.Reference,
		Note:      note,
	}); err != nil {
		return StockCard{}, err
	}
	return card, nil
}

// CreateCard opens a card with an opening balance.
func (s *Service) CreateCard(ctx context.Context, input CreateCardInput) (StockCard, error) {
	if input.Opening.IsNegative() || input.MinStock.IsNegative() {
		return StockCard{}, ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.findCard(ctx, input.ItemCode); err == nil {
		return StockCard{}, ErrDuplicateCard
	} else if !errors.Is(err, ErrCardNotFound) {
		return StockCard{}, err
	}
	card := StockCard{
		ItemCode: strings.TrimSpace(input.ItemCode),
		Name:     input.Name,
		Spec:     input.Spec,
		Unit:     defaultString(input.Unit, DefaultUnit),
		Opening:  input.Opening,
		Location: defaultString(input.Location, DefaultLocation),
		MinStock: input.MinStock,
	}
	card.Recompute()
	return s.cards.Create(ctx, card)
}

// UpdateCard edits location and minimum stock, reclassifying the card.
func (s *Service) UpdateCard(ctx context.Context, id string, patch CardPatch) (StockCard, error) {
	if patch.MinStock != nil && patch.MinStock.IsNegative() {
		return StockCard{}, ErrInvalidQuantity
	}
	return s.cards.Update(ctx, id, func(c *StockCard) error {
		if patch.Location != nil {
			c.Location = strings.TrimSpace(*patch.Location)
		}
		if patch.MinStock != nil {
			c.MinStock = *patch.MinStock
		}
		c.Recompute()
		return nil
	})
}

// DeleteCard removes a card. Its movements stay in the log.
func (s *Service) DeleteCard(ctx context.Context, id string) (bool, error) {
	return s.cards.Delete(ctx, id)
}

// GetCard returns a card by identifier.
func (s *Service) GetCard(ctx context.Context, id string) (StockCard, error) {
	return s.cards.Get(ctx, id)
}

// CardByItemCode returns the card of an item code.
func (s *Service) CardByItemCode(ctx context.Context, code string) (StockCard, error) {
	return s.findCard(ctx, code)
}

// ListCards returns all cards in creation order.
func (s *Service) ListCards(ctx context.Context) ([]StockCard, error) {
	return s.cards.List(ctx)
}

// LowStock lists cards classified low or out.
func (s *Service) LowStock(ctx context.Context) ([]StockCard, error) {
	return store.Filter(ctx, s.cards, func(c StockCard) bool {
		return c.Status != StatusSufficient
	})
}

// ListMovements returns the movement log newest first, optionally for one item.
func (s *Service) ListMovements(ctx context.Context, itemCode string) ([]StockMovement, error) {
	if itemCode == "" {
		return s.movements.List(ctx)
	}
	return store.Filter(ctx, s.movements, func(m StockMovement) bool {
		return sameItem(m.ItemCode, itemCode)
	})
}

func (s *Service) findCard(ctx context.Context, code string) (StockCard, error) {
	card, err := store.First(ctx, s.cards, func(c StockCard) bool {
		return sameItem(c.ItemCode, code)
	})
	if errors.Is(err, store.ErrNotFound) {
		return StockCard{}, ErrCardNotFound
	}
	return card, err
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
