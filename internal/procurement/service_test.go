package procurement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/inventory"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/shared"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/workflow"
)

type fixture struct {
	svc      *Service
	stock    *inventory.Service
	supplier Supplier
}

func newFixture(t *testing.T, cfg ServiceConfig) fixture {
	t.Helper()
	backend := store.NewMemoryBackend()
	stock := inventory.NewService(
		store.Open[inventory.StockCard](backend, "kartu_gudang"),
		store.Open[inventory.StockMovement](backend, "transaksi_gudang", store.NewestFirst()),
		nil,
	)
	svc := NewService(Collections{
		Suppliers: store.Open[Supplier](backend, "supplier"),
		Requests:  store.Open[PurchaseRequest](backend, "spp", store.NewestFirst()),
		Orders:    store.Open[PurchaseOrder](backend, "sopb", store.NewestFirst()),
		Receipts:  store.Open[GoodsReceipt](backend, "lpb", store.NewestFirst()),
	}, stock, shared.NewMemorySequencer(), nil, nil, cfg)
	svc.now = func() time.Time { return time.Date(2025, 6, 17, 9, 0, 0, 0, time.UTC) }

	supplier, err := svc.CreateSupplier(context.Background(), SupplierInput{Name: "PT. Supplier Maju", Email: "sales@suppliermaju.co.id"})
	require.NoError(t, err)
	return fixture{svc: svc, stock: stock, supplier: supplier}
}

func qty(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func (f fixture) submittedRequest(t *testing.T) PurchaseRequest {
	t.Helper()
	ctx := context.Background()
	spp, err := f.svc.CreateRequest(ctx, CreateRequestInput{
		Division:    "Produksi",
		RequestedBy: "Kepala Produksi",
		Items: []RequestLineInput{
			{ItemCode: "BRG001", Name: "Bahan Baku A", Quantity: qty(100), Unit: "Kg"},
			{ItemCode: "BRG003", Name: "Bahan Baku C", Quantity: qty(20)},
		},
	})
	require.NoError(t, err)
	spp, err = f.svc.SubmitRequest(ctx, spp.ID)
	require.NoError(t, err)
	return spp
}

func (f fixture) sentOrder(t *testing.T) PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	spp := f.submittedRequest(t)
	order, err := f.svc.CreateOrderFromRequest(ctx, CreateOrderInput{SPPID: spp.ID, SupplierID: f.supplier.ID})
	require.NoError(t, err)
	_, err = f.svc.SetUnitPrice(ctx, order.ID, "BRG001", SetPriceInput{UnitPrice: qty(50000)})
	require.NoError(t, err)
	_, err = f.svc.SetUnitPrice(ctx, order.ID, order.Items[1].ID, SetPriceInput{UnitPrice: qty(12500)})
	require.NoError(t, err)
	_, err = f.svc.ApproveOrder(ctx, order.ID)
	require.NoError(t, err)
	order, err = f.svc.SendOrder(ctx, order.ID)
	require.NoError(t, err)
	return order
}

func TestCreateRequestNumbersAndDefaults(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	first, err := f.svc.CreateRequest(ctx, CreateRequestInput{
		Division:    "Produksi",
		RequestedBy: "Kepala Produksi",
		Items:       []RequestLineInput{{ItemCode: "BRG001", Name: "Bahan Baku A", Quantity: qty(10)}},
	})
	require.NoError(t, err)
	require.Equal(t, "SPP-001/2025", first.Number)
	require.Equal(t, RequestDraft, first.Status)
	require.Equal(t, DefaultUnit, first.Items[0].Unit)
	require.NotEmpty(t, first.Items[0].ID)

	second, err := f.svc.CreateRequest(ctx, CreateRequestInput{Division: "Produksi", RequestedBy: "Kepala Produksi"})
	require.NoError(t, err)
	require.Equal(t, "SPP-002/2025", second.Number)
}

func TestCreateRequestRejectsBadLines(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	_, err := f.svc.CreateRequest(ctx, CreateRequestInput{
		Division:    "Produksi",
		RequestedBy: "Kepala Produksi",
		Items: []RequestLineInput{
			{ItemCode: "BRG001", Name: "A", Quantity: qty(1)},
			{ItemCode: "brg001", Name: "A lagi", Quantity: qty(2)},
		},
	})
	require.ErrorIs(t, err, ErrDuplicateItemCode)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.CreateRequest(ctx, CreateRequestInput{
		Division:    "Produksi",
		RequestedBy: "Kepala Produksi",
		Items:       []RequestLineInput{{ItemCode: "BRG001", Name: "A", Quantity: qty(0)}},
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateRequest(ctx, CreateRequestInput{Division: " "})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSubmitEmptyRequestFailsPrecondition(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	spp, err := f.svc.CreateRequest(ctx, CreateRequestInput{Division: "Produksi", RequestedBy: "Kepala Produksi"})
	require.NoError(t, err)

	_, err = f.svc.SubmitRequest(ctx, spp.ID)
	require.ErrorIs(t, err, workflow.ErrPrecondition)

	stored, err := f.svc.GetRequest(ctx, spp.ID)
	require.NoError(t, err)
	require.Equal(t, RequestDraft, stored.Status)
	require.Nil(t, stored.SubmittedAt)
}

func TestRequestLineEditsOnlyWhileDraft(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	spp, err := f.svc.CreateRequest(ctx, CreateRequestInput{Division: "Produksi", RequestedBy: "Kepala Produksi"})
	require.NoError(t, err)

	spp, err = f.svc.AddRequestLine(ctx, spp.ID, RequestLineInput{ItemCode: "BRG002", Name: "Bahan Baku B", Quantity: qty(5)})
	require.NoError(t, err)
	require.Len(t, spp.Items, 1)

	_, err = f.svc.AddRequestLine(ctx, spp.ID, RequestLineInput{ItemCode: "BRG002", Name: "dup", Quantity: qty(1)})
	require.ErrorIs(t, err, ErrDuplicateItemCode)

	_, err = f.svc.RemoveRequestLine(ctx, spp.ID, "missing")
	require.ErrorIs(t, err, ErrLineNotFound)

	spp, err = f.svc.SubmitRequest(ctx, spp.ID)
	require.NoError(t, err)
	require.NotNil(t, spp.SubmittedAt)

	_, err = f.svc.AddRequestLine(ctx, spp.ID, RequestLineInput{ItemCode: "BRG009", Name: "late", Quantity: qty(1)})
	require.ErrorIs(t, err, ErrNotEditable)
	_, err = f.svc.UpdateRequest(ctx, spp.ID, []byte(`{"divisi":"Gudang"}`))
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestUpdateRequestHonoursAllowList(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	spp, err := f.svc.CreateRequest(ctx, CreateRequestInput{Division: "Produksi", RequestedBy: "Kepala Produksi"})
	require.NoError(t, err)

	updated, err := f.svc.UpdateRequest(ctx, spp.ID, []byte(`{"divisi":"Maintenance"}`))
	require.NoError(t, err)
	require.Equal(t, "Maintenance", updated.Division)
	require.Equal(t, spp.Number, updated.Number)

	_, err = f.svc.UpdateRequest(ctx, spp.ID, []byte(`{"status":"processed"}`))
	require.ErrorIs(t, err, store.ErrInvalidPatch)
}

func TestCreateOrderCopiesLinesAndProcessesRequest(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	spp := f.submittedRequest(t)

	order, err := f.svc.CreateOrderFromRequest(ctx, CreateOrderInput{SPPID: spp.ID, SupplierID: f.supplier.ID})
	require.NoError(t, err)
	require.Equal(t, "SOPb-001/2025", order.Number)
	require.Equal(t, spp.Number, order.SPPNumber)
	require.Equal(t, "PT. Supplier Maju", order.Supplier.Name)
	require.Equal(t, "Net 30", order.PaymentTerms)
	require.Equal(t, f.svc.now().Add(7*24*time.Hour), order.DeliveryDate)
	require.Len(t, order.Items, 2)
	for _, line := range order.Items {
		require.True(t, line.UnitPrice.IsZero())
	}
	require.True(t, order.TotalValue.IsZero())

	stored, err := f.svc.GetRequest(ctx, spp.ID)
	require.NoError(t, err)
	require.Equal(t, RequestProcessed, stored.Status)

	_, err = f.svc.CreateOrderFromRequest(ctx, CreateOrderInput{SPPID: spp.ID, SupplierID: f.supplier.ID})
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)
	orders, err := f.svc.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
}

func TestCreateOrderRequiresSubmittedRequest(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	spp, err := f.svc.CreateRequest(ctx, CreateRequestInput{
		Division:    "Produksi",
		RequestedBy: "Kepala Produksi",
		Items:       []RequestLineInput{{ItemCode: "BRG001", Name: "A", Quantity: qty(1)}},
	})
	require.NoError(t, err)

	_, err = f.svc.CreateOrderFromRequest(ctx, CreateOrderInput{SPPID: spp.ID, SupplierID: f.supplier.ID})
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)

	_, err = f.svc.CreateOrderFromRequest(ctx, CreateOrderInput{SPPID: "missing", SupplierID: f.supplier.ID})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrderTotalsFollowPrices(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	spp := f.submittedRequest(t)
	order, err := f.svc.CreateOrderFromRequest(ctx, CreateOrderInput{SPPID: spp.ID, SupplierID: f.supplier.ID})
	require.NoError(t, err)

	_, err = f.svc.ApproveOrder(ctx, order.ID)
	require.ErrorIs(t, err, workflow.ErrPrecondition)

	order, err = f.svc.SetUnitPrice(ctx, order.ID, "BRG001", SetPriceInput{UnitPrice: qty(50000)})
	require.NoError(t, err)
	require.True(t, order.Items[0].Total.Equal(qty(5000000)))
	require.True(t, order.TotalValue.Equal(qty(5000000)))

	order, err = f.svc.SetUnitPrice(ctx, order.ID, "BRG003", SetPriceInput{UnitPrice: decimal.RequireFromString("12500.50")})
	require.NoError(t, err)
	sum := decimal.Zero
	for _, line := range order.Items {
		require.True(t, line.Total.Equal(line.Quantity.Mul(line.UnitPrice)))
		sum = sum.Add(line.Total)
	}
	require.True(t, order.TotalValue.Equal(sum))
	require.True(t, order.TotalValue.Equal(decimal.RequireFromString("5250010")))

	_, err = f.svc.SetUnitPrice(ctx, order.ID, "BRG001", SetPriceInput{UnitPrice: qty(-1)})
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.SetUnitPrice(ctx, order.ID, "NOPE", SetPriceInput{UnitPrice: qty(1)})
	require.ErrorIs(t, err, ErrLineNotFound)

	order, err = f.svc.ApproveOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderSubmitted, order.Status)

	_, err = f.svc.SetUnitPrice(ctx, order.ID, "BRG001", SetPriceInput{UnitPrice: qty(1)})
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestIllegalOrderTransitionLeavesDocumentUnchanged(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	spp := f.submittedRequest(t)
	order, err := f.svc.CreateOrderFromRequest(ctx, CreateOrderInput{SPPID: spp.ID, SupplierID: f.supplier.ID})
	require.NoError(t, err)

	_, err = f.svc.SendOrder(ctx, order.ID)
	var terr *workflow.TransitionError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, "draft", terr.From)

	stored, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderDraft, stored.Status)
	require.True(t, stored.UpdatedAt.Equal(order.UpdatedAt))
}

func TestCreateReceiptRequiresSentOrder(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	spp := f.submittedRequest(t)
	order, err := f.svc.CreateOrderFromRequest(ctx, CreateOrderInput{SPPID: spp.ID, SupplierID: f.supplier.ID})
	require.NoError(t, err)

	_, err = f.svc.CreateReceipt(ctx, CreateReceiptInput{SOPbID: order.ID, DeliveryNote: "SJ-1"})
	require.ErrorIs(t, err, workflow.ErrPrecondition)

	_, err = f.svc.CreateReceipt(ctx, CreateReceiptInput{SOPbID: order.ID})
	require.ErrorIs(t, err, ErrValidation)
}

func TestReceiptFlowPostsStockAndMarksOrderReceived(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	_, err := f.stock.CreateCard(ctx, inventory.CreateCardInput{ItemCode: "BRG001", Name: "Bahan Baku A", Unit: "Kg", Opening: qty(500), Location: "Rak A-1", MinStock: qty(100)})
	require.NoError(t, err)
	order := f.sentOrder(t)

	receipt, err := f.svc.CreateReceipt(ctx, CreateReceiptInput{SOPbID: order.ID, DeliveryNote: "SJ-2025-001", ReceivedBy: "Staff Gudang"})
	require.NoError(t, err)
	require.Equal(t, "LPB-001/2025", receipt.Number)
	require.Equal(t, "PT. Supplier Maju", receipt.Supplier)
	require.Len(t, receipt.Items, 2)
	require.True(t, receipt.TotalReceived.Equal(qty(120)))
	require.Equal(t, QualityGood, receipt.Items[0].Quality)

	received := qty(90)
	damaged := QualityDamaged
	note := "10 karung sobek"
	receipt, err = f.svc.RecordReceiptLine(ctx, receipt.ID, "BRG001", ReceiptLineInput{Received: &received, Quality: &damaged, QualityNote: &note})
	require.NoError(t, err)
	require.True(t, receipt.TotalReceived.Equal(qty(110)))
	require.Equal(t, note, receipt.Items[0].QualityNote)

	_, err = f.svc.SubmitReceiptToWarehouse(ctx, receipt.ID)
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)
	movements, err := f.stock.ListMovements(ctx, "")
	require.NoError(t, err)
	require.Empty(t, movements)

	receipt, err = f.svc.VerifyReceipt(ctx, receipt.ID)
	require.NoError(t, err)
	require.Equal(t, ReceiptVerified, receipt.Status)
	stored, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderReceived, stored.Status)

	receipt, err = f.svc.SubmitReceiptToWarehouse(ctx, receipt.ID)
	require.NoError(t, err)
	require.Equal(t, ReceiptSubmitted, receipt.Status)

	card, err := f.stock.CardByItemCode(ctx, "BRG001")
	require.NoError(t, err)
	require.True(t, card.Inflow.Equal(qty(90)))
	require.True(t, card.Closing.Equal(qty(590)))

	newCard, err := f.stock.CardByItemCode(ctx, "BRG003")
	require.NoError(t, err)
	require.True(t, newCard.Closing.Equal(qty(20)))

	movements, err = f.stock.ListMovements(ctx, "")
	require.NoError(t, err)
	require.Len(t, movements, 2)
	require.Equal(t, receipt.Number, movements[0].Reference)

	_, err = f.svc.SubmitReceiptToWarehouse(ctx, receipt.ID)
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)
	movements, err = f.stock.ListMovements(ctx, "")
	require.NoError(t, err)
	require.Len(t, movements, 2)
}

func TestRecordReceiptLineValidates(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	order := f.sentOrder(t)
	receipt, err := f.svc.CreateReceipt(ctx, CreateReceiptInput{SOPbID: order.ID, DeliveryNote: "SJ-9"})
	require.NoError(t, err)

	negative := qty(-1)
	_, err = f.svc.RecordReceiptLine(ctx, receipt.ID, receipt.Items[0].ID, ReceiptLineInput{Received: &negative})
	require.ErrorIs(t, err, ErrValidation)

	unknown := Quality("hilang")
	_, err = f.svc.RecordReceiptLine(ctx, receipt.ID, receipt.Items[0].ID, ReceiptLineInput{Quality: &unknown})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.UpdateReceipt(ctx, receipt.ID, []byte(`{"suratJalan":""}`))
	require.ErrorIs(t, err, ErrValidation)
	stored, err := f.svc.GetReceipt(ctx, receipt.ID)
	require.NoError(t, err)
	require.Equal(t, "SJ-9", stored.DeliveryNote)
}

func TestGuardedDeletes(t *testing.T) {
	f := newFixture(t, ServiceConfig{GuardReferencedDeletes: true})
	ctx := context.Background()
	order := f.sentOrder(t)
	receipt, err := f.svc.CreateReceipt(ctx, CreateReceiptInput{SOPbID: order.ID, DeliveryNote: "SJ-3"})
	require.NoError(t, err)

	_, err = f.svc.DeleteRequest(ctx, order.SPPID)
	require.ErrorIs(t, err, ErrReferenced)
	require.ErrorIs(t, err, shared.ErrConflict)
	_, err = f.svc.DeleteOrder(ctx, order.ID)
	require.ErrorIs(t, err, ErrReferenced)

	f.svc.GuardReceiptReferences(func(_ context.Context, id string) (bool, error) {
		return id == receipt.ID, nil
	})
	_, err = f.svc.DeleteReceipt(ctx, receipt.ID)
	require.ErrorIs(t, err, ErrReferenced)
}

func TestUnguardedDeletesCascadeNothing(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	order := f.sentOrder(t)

	removed, err := f.svc.DeleteRequest(ctx, order.SPPID)
	require.NoError(t, err)
	require.True(t, removed)

	stored, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.Number, stored.Number)

	removed, err = f.svc.DeleteRequest(ctx, order.SPPID)
	require.NoError(t, err)
	require.False(t, removed)
}
