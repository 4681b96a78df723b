// Package sales defines the invoice-line records as they move through the
// consolidation pipeline: source -> unified -> cleaned -> labeled.
package sales

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical column names of the unified relation.
const (
	ColBranch            = "branch"
	ColTechnicianName    = "technician_name"
	ColVehicleType       = "vehicle_type"
	ColItemCode          = "item_code"
	ColItemName          = "item_name"
	ColItemGroup         = "item_group"
	ColDescription       = "description"
	ColInvoiceID         = "invoice_id"
	ColPostingDate       = "posting_date"
	ColCustomerGroup     = "customer_group"
	ColCustomerID        = "customer_id"
	ColCustomerName      = "customer_name"
	ColReceivableAccount = "receivable_account"
	ColCompany           = "company"
	ColIncomeAccount     = "income_account"
	ColCostCenter        = "cost_center"
	ColPaymentMode       = "payment_mode"
	ColStockQty          = "stock_qty"
	ColStockUOM          = "stock_uom"
	ColRate              = "rate"
	ColAmount            = "amount"
	ColCGSTRate          = "cgst_rate"
	ColCGSTAmount        = "cgst_amount"
	ColSGSTRate          = "sgst_rate"
	ColSGSTAmount        = "sgst_amount"
	ColTotalTax          = "total_tax"
	ColOtherCharges      = "other_charges"
	ColTotal             = "total"
)

// CanonicalColumns lists the unified schema in output order.
var CanonicalColumns = []string{
	ColBranch, ColTechnicianName, ColVehicleType,
	ColItemCode, ColItemName, ColItemGroup, ColDescription,
	ColInvoiceID, ColPostingDate,
	ColCustomerGroup, ColCustomerID, ColCustomerName,
	ColReceivableAccount, ColCompany, ColIncomeAccount, ColCostCenter,
	ColPaymentMode,
	ColStockQty, ColStockUOM,
	ColRate, ColAmount,
	ColCGSTRate, ColCGSTAmount, ColSGSTRate, ColSGSTAmount,
	ColTotalTax, ColOtherCharges, ColTotal,
}

// IsCanonical reports whether col belongs to the unified schema.
func IsCanonical(col string) bool {
	for _, c := range CanonicalColumns {
		if c == col {
			return true
		}
	}
	return false
}

// Category is the derived item classification.
type Category string

const (
	CategoryService   Category = "Service"
	CategorySparePart Category = "SparePart"
)

// Valid reports whether c is one of the two known categories.
func (c Category) Valid() bool {
	return c == CategoryService || c == CategorySparePart
}

// --- Source ---

// SourceRow is one raw row of a branch table. Values align with the owning
// table's Columns; nil means SQL NULL.
type SourceRow struct {
	// Ref identifies the physical row in the source store (ctid for PostgreSQL).
	Ref    string
	Values []*string
}

// SourceTable is an immutable snapshot of one branch table.
type SourceTable struct {
	Name    string
	Columns []string
	Rows    []SourceRow

	// Renames maps a source column to the canonical column it carries, for
	// columns whose source name differs or collides with another meaning.
	Renames map[string]string
}

// Len returns the number of rows.
func (t SourceTable) Len() int { return len(t.Rows) }

// --- Unified ---

// UnifiedRecord has exactly one entry per canonical column; columns missing
// from the record's source are present with a nil value.
type UnifiedRecord struct {
	Source string
	LineNo int // 1-based position within the source snapshot
	Ref    string
	Values map[string]*string
}

// Get returns the raw value of a canonical column.
func (u UnifiedRecord) Get(col string) *string {
	return u.Values[col]
}

// IsBlank reports whether v is nil or whitespace-only.
func IsBlank(v *string) bool {
	return v == nil || strings.TrimSpace(*v) == ""
}

// --- Cleaned ---

// CleanedRecord is a unified record with a strict date and typed numerics.
// Monetary fields carry exactly two fractional digits.
type CleanedRecord struct {
	Source string
	LineNo int
	Ref    string

	Branch            *string
	TechnicianName    *string
	VehicleType       *string
	ItemCode          *string
	ItemName          *string
	ItemGroup         *string
	Description       *string
	InvoiceID         *string
	PostingDate       time.Time
	CustomerGroup     *string
	CustomerID        *string
	CustomerName      *string
	ReceivableAccount *string
	Company           *string
	IncomeAccount     *string
	CostCenter        *string
	PaymentMode       *string

	StockQty decimal.NullDecimal
	StockUOM *string

	Rate       decimal.Decimal
	Amount     decimal.Decimal
	CGSTRate   decimal.NullDecimal
	CGSTAmount decimal.NullDecimal
	SGSTRate   decimal.NullDecimal
	SGSTAmount decimal.NullDecimal

	TotalTax     decimal.Decimal
	OtherCharges decimal.Decimal
	Total        decimal.Decimal
}

// --- Labeled ---

// LabeledRecord is the final row shape exposed to reporting.
type LabeledRecord struct {
	CleanedRecord

	// BranchLabel is the branch with blanks replaced by the counter-sale sentinel.
	BranchLabel  string
	ItemCategory Category
}

// Month returns the YYYY-MM bucket of the posting date.
func (r LabeledRecord) Month() string {
	return r.PostingDate.Format("2006-01")
}

// Invoice returns the invoice id or "" when the line has none.
func (r LabeledRecord) Invoice() string {
	if r.InvoiceID == nil {
		return ""
	}
	return *r.InvoiceID
}

// StrPtr is a small helper for building records in code and tests.
func StrPtr(s string) *string { return &s }
