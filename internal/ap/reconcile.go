package ap

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/procurement"
)

// Match annotations.
const (
	NoteMatch       = "Match"
	NoteDiscrepancy = "Discrepancy present"
)

// MatchLine compares one ordered item against its receipt and invoice lines.
type MatchLine struct {
	ID               string          `json:"id"`
	ItemCode         string          `json:"kodeBarang"`
	Name             string          `json:"namaBarang"`
	Spec             string          `json:"spesifikasi"`
	OrderedQuantity  decimal.Decimal `json:"quantitySOPb"`
	ReceivedQuantity decimal.Decimal `json:"quantityLPB"`
	InvoicedQuantity decimal.Decimal `json:"quantityFaktur"`
	UnitPrice        decimal.Decimal `json:"hargaSatuan"`
	InvoicePrice     decimal.Decimal `json:"hargaFaktur"`
	OrderTotal       decimal.Decimal `json:"totalSOPb"`
	ReceiptTotal     decimal.Decimal `json:"totalLPB"`
	InvoiceTotal     decimal.Decimal `json:"totalFaktur"`
	QuantityMatch    bool            `json:"quantityMatch"`
	PriceMatch       bool            `json:"priceMatch"`
	IsMatch          bool            `json:"isMatch"`
	Note             string          `json:"catatan"`
}

// MatchResult is the outcome of a three-way match.
type MatchResult struct {
	Lines     []MatchLine `json:"items"`
	Unmatched []string    `json:"unmatched,omitempty"`
}

// AllMatch reports whether every line matched. An empty order never matches.
func (r MatchResult) AllMatch() bool {
	if len(r.Lines) == 0 {
		return false
	}
	for _, line := range r.Lines {
		if !line.IsMatch {
			return false
		}
	}
	return true
}

// Discrepancies returns the lines that did not match.
func (r MatchResult) Discrepancies() []MatchLine {
	var out []MatchLine
	for _, line := range r.Lines {
		if !line.IsMatch {
			out = append(out, line)
		}
	}
	return out
}

// Total sums the order totals of every line.
func (r MatchResult) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range r.Lines {
		total = total.Add(line.OrderTotal)
	}
	return total
}

// Reconcile joins order, receipt and invoice lines by item code. Order lines
// drive iteration; a code missing from the receipt or invoice counts as zero.
// Codes billed or received but never ordered are listed in Unmatched only.
func Reconcile(order []procurement.OrderLine, receipt []procurement.ReceiptLine, invoice []InvoiceLine) MatchResult {
	received := make(map[string]procurement.ReceiptLine, len(receipt))
	for _, line := range receipt {
		key := codeKey(line.ItemCode)
		if _, ok := received[key]; !ok {
			received[key] = line
		}
	}
	billed := make(map[string]InvoiceLine, len(invoice))
	for _, line := range invoice {
		key := codeKey(line.ItemCode)
		if _, ok := billed[key]; !ok {
			billed[key] = line
		}
	}

	result := MatchResult{Lines: make([]MatchLine, 0, len(order))}
	ordered := make(map[string]struct{}, len(order))
	for _, line := range order {
		key := codeKey(line.ItemCode)
		ordered[key] = struct{}{}
		rcv := received[key]
		inv := billed[key]

		m := MatchLine{
			ID:               line.ID,
			ItemCode:         line.ItemCode,
			Name:             line.Name,
			Spec:             line.Spec,
			OrderedQuantity:  line.Quantity,
			ReceivedQuantity: rcv.Received,
			InvoicedQuantity: inv.Quantity,
			UnitPrice:        line.UnitPrice,
			InvoicePrice:     inv.UnitPrice,
			OrderTotal:       line.Total,
			ReceiptTotal:     rcv.Received.Mul(line.UnitPrice),
			InvoiceTotal:     inv.Total,
		}
		m.QuantityMatch = line.Quantity.Equal(rcv.Received) && line.Quantity.Equal(inv.Quantity)
		m.PriceMatch = line.UnitPrice.Equal(inv.UnitPrice)
		m.IsMatch = m.QuantityMatch && m.PriceMatch
		m.Note = NoteDiscrepancy
		if m.IsMatch {
			m.Note = NoteMatch
		}
		result.Lines = append(result.Lines, m)
	}

	seen := map[string]struct{}{}
	for _, code := range unorderedCodes(receipt, invoice) {
		key := codeKey(code)
		if _, ok := ordered[key]; ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result.Unmatched = append(result.Unmatched, code)
	}
	return result
}

func unorderedCodes(receipt []procurement.ReceiptLine, invoice []InvoiceLine) []string {
	codes := make([]string, 0, len(receipt)+len(invoice))
	for _, line := range receipt {
		codes = append(codes, line.ItemCode)
	}
	for _, line := range invoice {
		codes = append(codes, line.ItemCode)
	}
	return codes
}

func codeKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// MatchError reports a failed match together with the disagreeing lines.
type MatchError struct {
	Lines []MatchLine
}

func (e *MatchError) Error() string {
	codes := make([]string, 0, len(e.Lines))
	for _, line := range e.Lines {
		codes = append(codes, line.ItemCode)
	}
	if len(codes) == 0 {
		return "ap: nothing to match"
	}
	return fmt.Sprintf("ap: discrepancy on %s", strings.Join(codes, ", "))
}

// Unwrap exposes ErrMatchFailed to errors.Is.
func (e *MatchError) Unwrap() error {
	return ErrMatchFailed
}

// ErrorData returns the discrepant lines for the response body.
func (e *MatchError) ErrorData() any {
	return e.Lines
}
