package ap

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/shared"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
)

// VoucherStatus tracks the BKK lifecycle.
type VoucherStatus string

const (
	VoucherDraft      VoucherStatus = "draft"
	VoucherVerified   VoucherStatus = "verified"
	VoucherAuthorized VoucherStatus = "authorized"
	VoucherPaid       VoucherStatus = "paid"
)

// PaymentMethod enumerates accepted settlement channels.
type PaymentMethod string

const (
	MethodTransfer PaymentMethod = "transfer"
	MethodCheque   PaymentMethod = "cek"
	MethodCash     PaymentMethod = "tunai"
)

// Valid reports whether m is an accepted method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodTransfer, MethodCheque, MethodCash:
		return true
	}
	return false
}

// DefaultAuthorizer signs vouchers when the caller does not identify itself.
const DefaultAuthorizer = "Manajer Akuntansi"

// DefaultTermDays applies when payment terms carry no day count.
const DefaultTermDays = 30

// Invoice (Faktur) is the supplier's bill for a purchase order.
type Invoice struct {
	store.Meta
	Number       string          `json:"nomor"`
	Date         time.Time       `json:"tanggal"`
	Supplier     string          `json:"supplier"`
	SOPbID       string          `json:"sopbId"`
	PaymentTerms string          `json:"syaratPembayaran"`
	Items        []InvoiceLine   `json:"items"`
	TotalValue   decimal.Decimal `json:"totalNilai"`
}

// InvoiceLine is one billed item.
type InvoiceLine struct {
	ItemCode  string          `json:"kodeBarang"`
	Name      string          `json:"namaBarang"`
	Spec      string          `json:"spesifikasi"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"satuan"`
	UnitPrice decimal.Decimal `json:"hargaSatuan"`
	Total     decimal.Decimal `json:"total"`
}

// Recalculate sets line totals and the invoice total.
func (i *Invoice) Recalculate() {
	total := decimal.Zero
	for idx := range i.Items {
		i.Items[idx].Total = i.Items[idx].Quantity.Mul(i.Items[idx].UnitPrice)
		total = total.Add(i.Items[idx].Total)
	}
	i.TotalValue = total
}

// Voucher (BKK) is the cash disbursement voucher issued after a clean match.
type Voucher struct {
	store.Meta
	Number        string          `json:"nomor"`
	Date          time.Time       `json:"tanggal"`
	InvoiceNumber string          `json:"fakturNomor"`
	Supplier      string          `json:"supplier"`
	SOPbID        string          `json:"sopbId"`
	LPBID         string          `json:"lpbId"`
	InvoiceID     string          `json:"fakturId"`
	Items         []MatchLine     `json:"items"`
	TotalValue    decimal.Decimal `json:"totalNilai"`
	PaymentTerms  string          `json:"syaratPembayaran"`
	DueDate       time.Time       `json:"tanggalJatuhTempo"`
	Status        VoucherStatus   `json:"status"`
	CreatedBy     string          `json:"dibuatOleh"`
	AuthorizedBy  string          `json:"diotorisasiOleh,omitempty"`
	PaidBy        string          `json:"dibayarOleh,omitempty"`
	PaidAt        *time.Time      `json:"tanggalBayar,omitempty"`
	Method        PaymentMethod   `json:"metodePembayaran,omitempty"`
	Reference     string          `json:"referensiPembayaran,omitempty"`
}

// IsOverdue reports whether the voucher is past due and unpaid at now.
func (v Voucher) IsOverdue(now time.Time) bool {
	return v.Status != VoucherPaid && v.DueDate.Before(now)
}

// IsOutstanding reports whether the voucher counts toward the unpaid balance.
func (v Voucher) IsOutstanding(now time.Time) bool {
	return v.Status == VoucherAuthorized || v.IsOverdue(now)
}

// DaysUntilDue rounds up partial days; negative values mean overdue.
func (v Voucher) DaysUntilDue(now time.Time) int {
	return int(math.Ceil(v.DueDate.Sub(now).Hours() / 24))
}

// DaysOverdue is zero unless IsOverdue holds; partial days round up, so an
// overdue voucher is always at least one day late.
func (v Voucher) DaysOverdue(now time.Time) int {
	if !v.IsOverdue(now) {
		return 0
	}
	return int(math.Ceil(now.Sub(v.DueDate).Hours() / 24))
}

var termDays = regexp.MustCompile(`(\d+)`)

// TermDays extracts the day count from terms such as "Net 30".
func TermDays(terms string) int {
	m := termDays.FindString(terms)
	if m == "" {
		return DefaultTermDays
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 0 {
		return DefaultTermDays
	}
	return n
}

// DueDate returns issue plus the day count of terms.
func DueDate(issued time.Time, terms string) time.Time {
	return issued.AddDate(0, 0, TermDays(terms))
}

// Summary aggregates voucher balances.
type Summary struct {
	Count            int             `json:"jumlahBkk"`
	OutstandingCount int             `json:"jumlahOutstanding"`
	Outstanding      decimal.Decimal `json:"totalOutstanding"`
	OverdueCount     int             `json:"jumlahJatuhTempo"`
	Overdue          decimal.Decimal `json:"totalJatuhTempo"`
	Paid             decimal.Decimal `json:"totalDibayar"`
}

// AgingBucket splits unpaid voucher totals by days past due.
type AgingBucket struct {
	Current   decimal.Decimal `json:"current"`
	Bucket30  decimal.Decimal `json:"1_30"`
	Bucket60  decimal.Decimal `json:"31_60"`
	Bucket90  decimal.Decimal `json:"61_90"`
	Bucket120 decimal.Decimal `json:"over_90"`
}

// SupplierAging is the aging breakdown for one supplier.
type SupplierAging struct {
	Supplier string `json:"supplier"`
	AgingBucket
	Total decimal.Decimal `json:"total"`
}

// AgingReport is the aging of every unpaid voucher as of a date.
type AgingReport struct {
	AsOf      time.Time       `json:"asOf"`
	Totals    AgingBucket     `json:"totals"`
	Suppliers []SupplierAging `json:"suppliers"`
}

func (b *AgingBucket) add(daysOverdue int, amount decimal.Decimal) {
	switch {
	case daysOverdue <= 0:
		b.Current = b.Current.Add(amount)
	case daysOverdue <= 30:
		b.Bucket30 = b.Bucket30.Add(amount)
	case daysOverdue <= 60:
		b.Bucket60 = b.Bucket60.Add(amount)
	case daysOverdue <= 90:
		b.Bucket90 = b.Bucket90.Add(amount)
	default:
		b.Bucket120 = b.Bucket120.Add(amount)
	}
}

var (
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("ap: invalid input: %w", shared.ErrValidation)
	// ErrMatchFailed indicates a three-way match with discrepant lines.
	ErrMatchFailed = fmt.Errorf("ap: three-way match failed: %w", shared.ErrUnprocessable)
	// ErrDocumentMismatch indicates documents that do not belong together.
	ErrDocumentMismatch = fmt.Errorf("ap: documents do not refer to the same order: %w", shared.ErrValidation)
	// ErrAlreadyVouchered indicates a receipt that already has a voucher.
	ErrAlreadyVouchered = fmt.Errorf("ap: receipt already has a payment voucher: %w", shared.ErrConflict)
	// ErrDuplicateInvoice indicates a repeated supplier invoice number.
	ErrDuplicateInvoice = fmt.Errorf("ap: invoice number already recorded: %w", shared.ErrConflict)
	// ErrPaymentInProgress indicates another reference is already settling the voucher.
	ErrPaymentInProgress = fmt.Errorf("ap: a different payment for this voucher is in progress: %w", shared.ErrConflict)
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
