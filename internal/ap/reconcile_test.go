package ap

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/procurement"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func orderLine(code string, qty, price int64) procurement.OrderLine {
	return procurement.OrderLine{ID: "sopb-" + code, ItemCode: code, Name: "Barang " + code, Quantity: dec(qty), UnitPrice: dec(price), Total: dec(qty * price)}
}

func receiptLine(code string, qty int64) procurement.ReceiptLine {
	return procurement.ReceiptLine{ItemCode: code, Ordered: dec(qty), Received: dec(qty), Quality: procurement.QualityGood}
}

func invoiceLine(code string, qty, price int64) InvoiceLine {
	return InvoiceLine{ItemCode: code, Quantity: dec(qty), UnitPrice: dec(price), Total: dec(qty * price)}
}

func TestReconcileCleanMatch(t *testing.T) {
	result := Reconcile(
		[]procurement.OrderLine{orderLine("BRG001", 100, 50000)},
		[]procurement.ReceiptLine{receiptLine("BRG001", 100)},
		[]InvoiceLine{invoiceLine("BRG001", 100, 50000)},
	)
	require.True(t, result.AllMatch())
	require.Len(t, result.Lines, 1)
	line := result.Lines[0]
	require.True(t, line.QuantityMatch)
	require.True(t, line.PriceMatch)
	require.True(t, line.IsMatch)
	require.Equal(t, NoteMatch, line.Note)
	want := dec(5000000)
	require.True(t, line.OrderTotal.Equal(want))
	require.True(t, line.ReceiptTotal.Equal(want))
	require.True(t, line.InvoiceTotal.Equal(want))
	require.Empty(t, result.Discrepancies())
	require.True(t, result.Total().Equal(want))
}

func TestReconcileQuantityMismatch(t *testing.T) {
	result := Reconcile(
		[]procurement.OrderLine{orderLine("BRG001", 100, 50000)},
		[]procurement.ReceiptLine{receiptLine("BRG001", 100)},
		[]InvoiceLine{invoiceLine("BRG001", 90, 50000)},
	)
	require.False(t, result.AllMatch())
	line := result.Lines[0]
	require.False(t, line.QuantityMatch)
	require.True(t, line.PriceMatch)
	require.False(t, line.IsMatch)
	require.Equal(t, NoteDiscrepancy, line.Note)
	require.Len(t, result.Discrepancies(), 1)
}

func TestReconcilePriceMismatch(t *testing.T) {
	result := Reconcile(
		[]procurement.OrderLine{orderLine("BRG001", 10, 50000)},
		[]procurement.ReceiptLine{receiptLine("BRG001", 10)},
		[]InvoiceLine{invoiceLine("BRG001", 10, 50001)},
	)
	require.True(t, result.Lines[0].QuantityMatch)
	require.False(t, result.Lines[0].PriceMatch)
	require.False(t, result.AllMatch())
}

func TestReconcileMissingLinesCountAsZero(t *testing.T) {
	result := Reconcile(
		[]procurement.OrderLine{orderLine("BRG001", 10, 1000), orderLine("BRG002", 5, 2000)},
		[]procurement.ReceiptLine{receiptLine("BRG001", 10)},
		[]InvoiceLine{invoiceLine("BRG001", 10, 1000)},
	)
	require.True(t, result.Lines[0].IsMatch)
	missing := result.Lines[1]
	require.True(t, missing.ReceivedQuantity.IsZero())
	require.True(t, missing.InvoicedQuantity.IsZero())
	require.True(t, missing.ReceiptTotal.IsZero())
	require.False(t, missing.IsMatch)
	require.Equal(t, []MatchLine{missing}, result.Discrepancies())
}

func TestReconcileReportsUnorderedCodesWithoutChangingVerdict(t *testing.T) {
	result := Reconcile(
		[]procurement.OrderLine{orderLine("BRG001", 10, 1000)},
		[]procurement.ReceiptLine{receiptLine("BRG001", 10), receiptLine("BRG777", 3)},
		[]InvoiceLine{invoiceLine("BRG001", 10, 1000), invoiceLine("BRG777", 3, 10), invoiceLine("BRG888", 1, 10)},
	)
	require.True(t, result.AllMatch())
	require.Len(t, result.Lines, 1)
	require.Equal(t, []string{"BRG777", "BRG888"}, result.Unmatched)
}

func TestReconcileUsesExactDecimalEquality(t *testing.T) {
	order := orderLine("BRG001", 3, 0)
	order.UnitPrice = decimal.RequireFromString("0.1")
	order.Total = order.Quantity.Mul(order.UnitPrice)
	inv := InvoiceLine{ItemCode: "BRG001", Quantity: dec(3), UnitPrice: decimal.RequireFromString("0.10")}
	inv.Total = decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2"))

	result := Reconcile([]procurement.OrderLine{order}, []procurement.ReceiptLine{receiptLine("BRG001", 3)}, []InvoiceLine{inv})
	require.True(t, result.AllMatch())
	require.True(t, result.Lines[0].InvoiceTotal.Equal(decimal.RequireFromString("0.3")))
}

func TestEmptyOrderNeverMatches(t *testing.T) {
	require.False(t, Reconcile(nil, nil, nil).AllMatch())
}

func TestMatchErrorCarriesLines(t *testing.T) {
	result := Reconcile(
		[]procurement.OrderLine{orderLine("BRG001", 100, 50000)},
		nil,
		[]InvoiceLine{invoiceLine("BRG001", 100, 50000)},
	)
	err := &MatchError{Lines: result.Discrepancies()}
	require.ErrorIs(t, err, ErrMatchFailed)
	require.Contains(t, err.Error(), "BRG001")
	lines, ok := err.ErrorData().([]MatchLine)
	require.True(t, ok)
	require.Len(t, lines, 1)
}
