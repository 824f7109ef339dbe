package procurement

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/shared"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
)

// Purchase request (SPP) lifecycle statuses.
type RequestStatus string

const (
	RequestDraft     RequestStatus = "draft"
	RequestSubmitted RequestStatus = "submitted"
	RequestProcessed RequestStatus = "processed"
)

// Purchase order (SOPb) lifecycle statuses.
type OrderStatus string

const (
	OrderDraft     OrderStatus = "draft"
	OrderSubmitted OrderStatus = "submitted"
	OrderSent      OrderStatus = "sent"
	OrderReceived  OrderStatus = "received"
)

// Goods receipt (LPB) statuses.
type ReceiptStatus string

const (
	ReceiptDraft     ReceiptStatus = "draft"
	ReceiptVerified  ReceiptStatus = "verified"
	ReceiptSubmitted ReceiptStatus = "submitted"
)

// Quality grade of a received line.
type Quality string

const (
	QualityGood          Quality = "baik"
	QualityDamaged       Quality = "rusak"
	QualityNonconforming Quality = "tidak_sesuai"
)

// Valid reports whether q is a known grade.
func (q Quality) Valid() bool {
	switch q {
	case QualityGood, QualityDamaged, QualityNonconforming:
		return true
	}
	return false
}

// DefaultUnit is used when a request line omits its unit.
const DefaultUnit = "Unit"

// Supplier is a vendor purchase orders are issued to.
type Supplier struct {
	store.Meta
	Name    string `json:"nama"`
	Address string `json:"alamat"`
	Phone   string `json:"telepon"`
	Email   string `json:"email"`
	Contact string `json:"kontak"`
}

// PurchaseRequest (SPP) is raised by production.
type PurchaseRequest struct {
	store.Meta
	Number      string        `json:"nomor"`
	Date        time.Time     `json:"tanggal"`
	RequestedBy string        `json:"dibuatOleh"`
	Division    string        `json:"divisi"`
	Items       []RequestLine `json:"items"`
	Status      RequestStatus `json:"status"`
	SubmittedAt *time.Time    `json:"tanggalSubmit,omitempty"`
}

// RequestLine is a requested item.
type RequestLine struct {
	ID       string          `json:"id"`
	ItemCode string          `json:"kodeBarang"`
	Name     string          `json:"namaBarang"`
	Spec     string          `json:"spesifikasi"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"satuan"`
	Purpose  string          `json:"keperluan"`
}

// PurchaseOrder (SOPb) is issued to one supplier for one request.
type PurchaseOrder struct {
	store.Meta
	Number       string          `json:"nomor"`
	Date         time.Time       `json:"tanggal"`
	SPPID        string          `json:"sppId"`
	SPPNumber    string          `json:"sppNomor"`
	SupplierID   string          `json:"supplierId"`
	Supplier     Supplier        `json:"supplier"`
	Items        []OrderLine     `json:"items"`
	PaymentTerms string          `json:"syaratPembayaran"`
	DeliveryDate time.Time       `json:"tanggalKirim"`
	Status       OrderStatus     `json:"status"`
	TotalValue   decimal.Decimal `json:"totalNilai"`
}

// OrderLine carries the agreed unit price.
type OrderLine struct {
	ID        string          `json:"id"`
	ItemCode  string          `json:"kodeBarang"`
	Name      string          `json:"namaBarang"`
	Spec      string          `json:"spesifikasi"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"satuan"`
	UnitPrice decimal.Decimal `json:"hargaSatuan"`
	Total     decimal.Decimal `json:"total"`
}

// Recalculate sets every line total to quantity × unit price and the order
// total to their sum.
func (o *PurchaseOrder) Recalculate() {
	total := decimal.Zero
	for i := range o.Items {
		o.Items[i].Total = o.Items[i].Quantity.Mul(o.Items[i].UnitPrice)
		total = total.Add(o.Items[i].Total)
	}
	o.TotalValue = total
}

// GoodsReceipt (LPB) records a delivery against a purchase order.
type GoodsReceipt struct {
	store.Meta
	Number        string          `json:"nomor"`
	Date          time.Time       `json:"tanggal"`
	SOPbID        string          `json:"sopbId"`
	SOPbNumber    string          `json:"sopbNomor"`
	Supplier      string          `json:"supplier"`
	DeliveryNote  string          `json:"suratJalan"`
	Items         []ReceiptLine   `json:"items"`
	ReceivedBy    string          `json:"diterimaOleh"`
	Status        ReceiptStatus   `json:"status"`
	TotalReceived decimal.Decimal `json:"totalItemDiterima"`
}

// ReceiptLine records ordered and received quantities of one item.
type ReceiptLine struct {
	ID          string          `json:"id"`
	OrderLineID string          `json:"sopbItemId"`
	ItemCode    string          `json:"kodeBarang"`
	Name        string          `json:"namaBarang"`
	Spec        string          `json:"spesifikasi"`
	Ordered     decimal.Decimal `json:"quantityDipesan"`
	Received    decimal.Decimal `json:"quantityDiterima"`
	Unit        string          `json:"satuan"`
	Quality     Quality         `json:"kualitas"`
	QualityNote string          `json:"catatanKualitas"`
}

// Recalculate refreshes the total received quantity.
func (g *GoodsReceipt) Recalculate() {
	total := decimal.Zero
	for _, line := range g.Items {
		total = total.Add(line.Received)
	}
	g.TotalReceived = total
}

var (
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("procurement: invalid input: %w", shared.ErrValidation)
	// ErrDuplicateItemCode indicates an item code listed twice in one document.
	ErrDuplicateItemCode = fmt.Errorf("procurement: duplicate item code: %w", shared.ErrValidation)
	// ErrNotEditable indicates an edit on a document past draft.
	ErrNotEditable = fmt.Errorf("procurement: document is no longer editable: %w", shared.ErrConflict)
	// ErrLineNotFound indicates an unknown line identifier.
	ErrLineNotFound = fmt.Errorf("procurement: line not found: %w", shared.ErrNotFound)
	// ErrReferenced indicates a delete blocked by dependent documents.
	ErrReferenced = fmt.Errorf("procurement: document is referenced by other documents: %w", shared.ErrConflict)
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func checkUniqueCodes(codes []string) error {
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		key := strings.ToUpper(strings.TrimSpace(code))
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateItemCode, code)
		}
		seen[key] = struct{}{}
	}
	return nil
}
