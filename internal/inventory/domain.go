package inventory

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/shared"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
)

// CardStatus classifies the closing balance of a stock card.
type CardStatus string

const (
	StatusSufficient CardStatus = "cukup"
	StatusLow        CardStatus = "rendah"
	StatusOut        CardStatus = "habis"
)

// Direction of a stock movement.
type Direction string

const (
	DirectionIn  Direction = "masuk"
	DirectionOut Direction = "keluar"
)

// Defaults for cards opened by a goods receipt.
const (
	DefaultLocation = "Rak Baru"
	DefaultUnit     = "Unit"
)

// DefaultMinStock is the minimum-stock threshold of cards opened by a receipt.
var DefaultMinStock = decimal.NewFromInt(100)

// StockCard is the per-item ledger card (kartu gudang).
type StockCard struct {
	store.Meta
	ItemCode string          `json:"kodeBarang"`
	Name     string          `json:"namaBarang"`
	Spec     string          `json:"spesifikasi"`
	Unit     string          `json:"satuan"`
	Opening  decimal.Decimal `json:"saldoAwal"`
	Inflow   decimal.Decimal `json:"pemasukan"`
	Outflow  decimal.Decimal `json:"pengeluaran"`
	Closing  decimal.Decimal `json:"saldoAkhir"`
	Location string          `json:"lokasi"`
	MinStock decimal.Decimal `json:"minStock"`
	Status   CardStatus      `json:"status"`
	// PostedReceipts lists the LPB numbers already counted in Inflow.
	PostedReceipts []string `json:"lpbDiposting,omitempty"`
}

func (c StockCard) hasReceipt(number string) bool {
	return slices.Contains(c.PostedReceipts, number)
}

// sameItem compares item codes the way documents do: trimmed and
// case-insensitive.
func sameItem(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Classify derives the card status. A balance equal to the minimum is low.
func Classify(closing, minStock decimal.Decimal) CardStatus {
	switch {
	case closing.IsZero():
		return StatusOut
	case closing.GreaterThan(minStock):
		return StatusSufficient
	default:
		return StatusLow
	}
}

// Recompute refreshes the closing balance and status from the running totals.
func (c *StockCard) Recompute() {
	c.Closing = c.Opening.Add(c.Inflow).Sub(c.Outflow)
	c.Status = Classify(c.Closing, c.MinStock)
}

// StockMovement is an immutable ledger entry.
type StockMovement struct {
	store.Meta
	Date      time.Time       `json:"tanggal"`
	ItemCode  string          `json:"kodeBarang"`
	Name      string          `json:"namaBarang"`
	Direction Direction       `json:"jenis"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"satuan"`
	Reference string          `json:"referensi"`
	Note      string          `json:"keterangan"`
}

// ReceiptInput is a submitted goods receipt applied to the ledger.
type ReceiptInput struct {
	Number string
	Lines  []ReceiptLine
}

// ReceiptLine is one received item.
type ReceiptLine struct {
	ItemCode string
	Name     string
	Spec     string
	Unit     string
	Quantity decimal.Decimal
}

// OutboundInput issues stock from a card.
type OutboundInput struct {
	ItemCode  string          `json:"kodeBarang" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Reference string          `json:"referensi" validate:"required"`
	Note      string          `json:"keterangan"`
}

// CreateCardInput opens a card explicitly.
type CreateCardInput struct {
	ItemCode string          `json:"kodeBarang" validate:"required"`
	Name     string          `json:"namaBarang" validate:"required"`
	Spec     string          `json:"spesifikasi"`
	Unit     string          `json:"satuan"`
	Opening  decimal.Decimal `json:"saldoAwal"`
	Location string          `json:"lokasi"`
	MinStock decimal.Decimal `json:"minStock"`
}

// CardPatch edits the mutable attributes of a card.
type CardPatch struct {
	Location *string          `json:"lokasi,omitempty"`
	MinStock *decimal.Decimal `json:"minStock,omitempty"`
}

var (
	// ErrNegativeStock triggered when movement would result negative qty.
	ErrNegativeStock = fmt.Errorf("inventory: negative stock not allowed: %w", shared.ErrUnprocessable)
	// ErrInvalidQuantity indicates invalid qty.
	ErrInvalidQuantity = fmt.Errorf("inventory: quantity must be positive: %w", shared.ErrValidation)
	// ErrDuplicateCard indicates a second card for the same item code.
	ErrDuplicateCard = fmt.Errorf("inventory: item code already has a stock card: %w", shared.ErrConflict)
	// ErrCardNotFound indicates no card exists for an item code.
	ErrCardNotFound = fmt.Errorf("inventory: stock card not found: %w", shared.ErrNotFound)
	// ErrInvalidReceipt indicates a receipt without number or lines.
	ErrInvalidReceipt = fmt.Errorf("inventory: receipt requires number and lines: %w", shared.ErrValidation)
)
