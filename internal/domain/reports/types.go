// Package reports provides the revenue aggregates computed over labeled sales lines.
package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"salesbi/internal/core/apperror"
	"salesbi/internal/core/id"
	"salesbi/internal/domain/sales"
)

// DefaultTopN is the invoice ranking size when none is requested.
const DefaultTopN = 10

// MaxTopN caps ranking requests.
const MaxTopN = 1000

// DefaultBucketEdges are the lower bounds of the invoice value distribution.
var DefaultBucketEdges = []decimal.Decimal{
	decimal.NewFromInt(0),
	decimal.NewFromInt(1000),
	decimal.NewFromInt(5000),
	decimal.NewFromInt(10000),
	decimal.NewFromInt(50000),
}

// --- Filter ---

// Filter restricts the lines a report is computed over.
type Filter struct {
	// RunID selects a persisted run; nil means the latest one.
	RunID *id.ID

	// Period (inclusive, by posting date)
	FromDate *time.Time
	ToDate   *time.Time

	// Branch labels to keep; empty keeps all
	Branches []string

	// TopN limits the invoice ranking; 0 returns every invoice
	TopN int
}

// Validate checks the filter for contradictions.
func (f Filter) Validate() error {
	if f.FromDate != nil && f.ToDate != nil && f.FromDate.After(*f.ToDate) {
		return apperror.NewValidation("fromDate must not be after toDate")
	}
	if f.TopN < 0 {
		return apperror.NewValidation("top must not be negative")
	}
	return nil
}

// Match reports whether a labeled line passes the filter.
func (f Filter) Match(r sales.LabeledRecord) bool {
	if f.FromDate != nil && r.PostingDate.Before(dateOnly(*f.FromDate)) {
		return false
	}
	if f.ToDate != nil && r.PostingDate.After(dateOnly(*f.ToDate)) {
		return false
	}
	if len(f.Branches) > 0 {
		for _, b := range f.Branches {
			if b == r.BranchLabel {
				return true
			}
		}
		return false
	}
	return true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// --- Results ---

// GrandTotals is the ungrouped summary.
type GrandTotals struct {
	Invoices int             `json:"invoices" db:"invoices"`
	Lines    int             `json:"lines" db:"lines"`
	Revenue  decimal.Decimal `json:"revenue" db:"revenue"`
	Quantity decimal.Decimal `json:"quantity" db:"quantity"`
	// AverageInvoiceValue is undefined when there are no invoices.
	AverageInvoiceValue decimal.NullDecimal `json:"averageInvoiceValue" db:"average_invoice_value"`
}

// MonthlyRevenue is revenue per YYYY-MM bucket.
type MonthlyRevenue struct {
	Month    string          `json:"month" db:"month"`
	Revenue  decimal.Decimal `json:"revenue" db:"revenue"`
	Invoices int             `json:"invoices" db:"invoices"`
	Lines    int             `json:"lines" db:"lines"`
}

// GroupBreakdown carries the metrics of one branch or category.
type GroupBreakdown struct {
	Key               string              `json:"key" db:"key"`
	Revenue           decimal.Decimal     `json:"revenue" db:"revenue"`
	Invoices          int                 `json:"invoices" db:"invoices"`
	Lines             int                 `json:"lines" db:"lines"`
	RevenuePerInvoice decimal.NullDecimal `json:"revenuePerInvoice" db:"revenue_per_invoice"`
	SharePct          decimal.NullDecimal `json:"sharePct" db:"share_pct"`
}

// InvoiceRevenue is the summed revenue of one invoice.
// Lines without an invoice id are grouped under an empty InvoiceID.
type InvoiceRevenue struct {
	InvoiceID string              `json:"invoiceId" db:"invoice_id"`
	Revenue   decimal.Decimal     `json:"revenue" db:"revenue"`
	Lines     int                 `json:"lines" db:"lines"`
	SharePct  decimal.NullDecimal `json:"sharePct" db:"share_pct"`
}

// DistributionBucket counts invoices whose value lies in [Lower, Upper).
// A null Lower is the underflow bucket, a null Upper is open-ended.
type DistributionBucket struct {
	Lower    decimal.NullDecimal `json:"lower" db:"lower_bound"`
	Upper    decimal.NullDecimal `json:"upper" db:"upper_bound"`
	Invoices int                 `json:"invoices" db:"invoices"`
	Revenue  decimal.Decimal     `json:"revenue" db:"revenue"`
	SharePct decimal.NullDecimal `json:"sharePct" db:"share_pct"`
}

// Label renders the bucket range, e.g. "1000-5000" or "50000+".
func (b DistributionBucket) Label() string {
	switch {
	case !b.Lower.Valid:
		return "<" + b.Upper.Decimal.String()
	case !b.Upper.Valid:
		return b.Lower.Decimal.String() + "+"
	default:
		return b.Lower.Decimal.String() + "-" + b.Upper.Decimal.String()
	}
}

// Report bundles every aggregate for one filter.
type Report struct {
	Totals       GrandTotals          `json:"totals"`
	Monthly      []MonthlyRevenue     `json:"monthly"`
	Branches     []GroupBreakdown     `json:"branches"`
	Categories   []GroupBreakdown     `json:"categories"`
	TopInvoices  []InvoiceRevenue     `json:"topInvoices"`
	InvoiceShare []InvoiceRevenue     `json:"invoiceShare"`
	Distribution []DistributionBucket `json:"distribution"`
}
