package dto

import (
	"time"

	"salesbi/internal/core/apperror"
	"salesbi/internal/core/id"
	"salesbi/internal/domain/reports"
)

// DateLayout is the format of the from/to query parameters.
const DateLayout = "2006-01-02"

// ReportRequest holds the query parameters shared by every report endpoint.
type ReportRequest struct {
	RunID    string   `form:"runId"`
	From     string   `form:"from"`
	To       string   `form:"to"`
	Branches []string `form:"branch"`
	Top      int      `form:"top" binding:"omitempty,min=1,max=1000"`
}

// ToFilter converts the request to a domain filter.
func (r ReportRequest) ToFilter() (reports.Filter, error) {
	filter := reports.Filter{Branches: r.Branches, TopN: r.Top}

	if r.RunID != "" {
		runID, err := id.Parse(r.RunID)
		if err != nil {
			return filter, apperror.NewValidation("invalid runId").WithDetail("runId", r.RunID)
		}
		filter.RunID = &runID
	}

	var err error
	if filter.FromDate, err = parseDate("from", r.From); err != nil {
		return filter, err
	}
	if filter.ToDate, err = parseDate("to", r.To); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseDate(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return nil, apperror.NewValidation("invalid "+name+" date, expected YYYY-MM-DD").WithDetail(name, v)
	}
	return &t, nil
}

// --- Responses ---

// TotalsResponse represents grand totals.
type TotalsResponse struct {
	Invoices            int     `json:"invoices"`
	Lines               int     `json:"lines"`
	Revenue             string  `json:"revenue"`
	Quantity            string  `json:"quantity"`
	AverageInvoiceValue *string `json:"averageInvoiceValue"`
}

// FromTotals converts domain totals to response DTO.
func FromTotals(t *reports.GrandTotals) TotalsResponse {
	return TotalsResponse{
		Invoices:            t.Invoices,
		Lines:               t.Lines,
		Revenue:             Money(t.Revenue),
		Quantity:            t.Quantity.String(),
		AverageInvoiceValue: NullMoney(t.AverageInvoiceValue),
	}
}

// MonthlyResponse represents one month of revenue.
type MonthlyResponse struct {
	Month    string `json:"month"`
	Revenue  string `json:"revenue"`
	Invoices int    `json:"invoices"`
	Lines    int    `json:"lines"`
}

// FromMonthly converts the monthly series.
func FromMonthly(rows []reports.MonthlyRevenue) []MonthlyResponse {
	out := make([]MonthlyResponse, len(rows))
	for i, m := range rows {
		out[i] = MonthlyResponse{Month: m.Month, Revenue: Money(m.Revenue), Invoices: m.Invoices, Lines: m.Lines}
	}
	return out
}

// BreakdownResponse represents one branch or category.
type BreakdownResponse struct {
	Key               string  `json:"key"`
	Revenue           string  `json:"revenue"`
	Invoices          int     `json:"invoices"`
	Lines             int     `json:"lines"`
	RevenuePerInvoice *string `json:"revenuePerInvoice"`
	SharePct          *string `json:"sharePct"`
}

// FromBreakdown converts a branch or category breakdown.
func FromBreakdown(rows []reports.GroupBreakdown) []BreakdownResponse {
	out := make([]BreakdownResponse, len(rows))
	for i, g := range rows {
		out[i] = BreakdownResponse{
			Key:               g.Key,
			Revenue:           Money(g.Revenue),
			Invoices:          g.Invoices,
			Lines:             g.Lines,
			RevenuePerInvoice: NullMoney(g.RevenuePerInvoice),
			SharePct:          NullMoney(g.SharePct),
		}
	}
	return out
}

// InvoiceResponse represents one invoice.
type InvoiceResponse struct {
	InvoiceID string  `json:"invoiceId"`
	Revenue   string  `json:"revenue"`
	Lines     int     `json:"lines"`
	SharePct  *string `json:"sharePct"`
}

// FromInvoices converts an invoice ranking or share listing.
func FromInvoices(rows []reports.InvoiceRevenue) []InvoiceResponse {
	out := make([]InvoiceResponse, len(rows))
	for i, inv := range rows {
		out[i] = InvoiceResponse{InvoiceID: inv.InvoiceID, Revenue: Money(inv.Revenue), Lines: inv.Lines, SharePct: NullMoney(inv.SharePct)}
	}
	return out
}

// BucketResponse represents one distribution bucket.
type BucketResponse struct {
	Bucket   string  `json:"bucket"`
	Lower    *string `json:"lower"`
	Upper    *string `json:"upper"`
	Invoices int     `json:"invoices"`
	Revenue  string  `json:"revenue"`
	SharePct *string `json:"sharePct"`
}

// FromDistribution converts the invoice value distribution.
func FromDistribution(rows []reports.DistributionBucket) []BucketResponse {
	out := make([]BucketResponse, len(rows))
	for i, b := range rows {
		out[i] = BucketResponse{
			Bucket:   b.Label(),
			Lower:    NullMoney(b.Lower),
			Upper:    NullMoney(b.Upper),
			Invoices: b.Invoices,
			Revenue:  Money(b.Revenue),
			SharePct: NullMoney(b.SharePct),
		}
	}
	return out
}
