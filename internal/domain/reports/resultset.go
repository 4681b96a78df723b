package reports

import (
	"strconv"

	"salesbi/internal/core/types"
	"salesbi/internal/domain/sales"
)

// ResultSet is a tabular rendering of one aggregate for downstream tools.
// Undefined ratios render as empty cells.
type ResultSet struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ResultSets renders every aggregate of the report.
func (r *Report) ResultSets() []ResultSet {
	return []ResultSet{
		TotalsResultSet(r.Totals),
		MonthlyResultSet(r.Monthly),
		BreakdownResultSet("branch_breakdown", "branch", r.Branches),
		BreakdownResultSet("category_breakdown", "item_category", r.Categories),
		InvoicesResultSet("top_invoices", r.TopInvoices),
		InvoicesResultSet("invoice_share", r.InvoiceShare),
		DistributionResultSet(r.Distribution),
	}
}

func money(d types.Money) string { return d.StringFixed(types.MoneyScale) }

// TotalsResultSet renders grand totals as a single row.
func TotalsResultSet(t GrandTotals) ResultSet {
	return ResultSet{
		Name:    "grand_totals",
		Columns: []string{"invoices", "lines", "revenue", "quantity", "average_invoice_value"},
		Rows: [][]string{{
			strconv.Itoa(t.Invoices),
			strconv.Itoa(t.Lines),
			money(t.Revenue),
			t.Quantity.String(),
			types.FormatNull(t.AverageInvoiceValue),
		}},
	}
}

// MonthlyResultSet renders the time series.
func MonthlyResultSet(rows []MonthlyRevenue) ResultSet {
	rs := ResultSet{
		Name:    "monthly_revenue",
		Columns: []string{"month", "revenue", "invoices", "lines"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, m := range rows {
		rs.Rows = append(rs.Rows, []string{m.Month, money(m.Revenue), strconv.Itoa(m.Invoices), strconv.Itoa(m.Lines)})
	}
	return rs
}

// BreakdownResultSet renders a branch or category breakdown.
func BreakdownResultSet(name, keyColumn string, rows []GroupBreakdown) ResultSet {
	rs := ResultSet{
		Name:    name,
		Columns: []string{keyColumn, "revenue", "invoices", "lines", "revenue_per_invoice", "share_pct"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, g := range rows {
		rs.Rows = append(rs.Rows, []string{
			g.Key,
			money(g.Revenue),
			strconv.Itoa(g.Invoices),
			strconv.Itoa(g.Lines),
			types.FormatNull(g.RevenuePerInvoice),
			types.FormatNull(g.SharePct),
		})
	}
	return rs
}

// InvoicesResultSet renders an invoice ranking or share listing.
func InvoicesResultSet(name string, rows []InvoiceRevenue) ResultSet {
	rs := ResultSet{
		Name:    name,
		Columns: []string{"invoice_id", "revenue", "lines", "share_pct"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, inv := range rows {
		rs.Rows = append(rs.Rows, []string{inv.InvoiceID, money(inv.Revenue), strconv.Itoa(inv.Lines), types.FormatNull(inv.SharePct)})
	}
	return rs
}

// DistributionResultSet renders the invoice value distribution.
func DistributionResultSet(rows []DistributionBucket) ResultSet {
	rs := ResultSet{
		Name:    "invoice_distribution",
		Columns: []string{"bucket", "invoices", "revenue", "share_pct"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, b := range rows {
		rs.Rows = append(rs.Rows, []string{b.Label(), strconv.Itoa(b.Invoices), money(b.Revenue), types.FormatNull(b.SharePct)})
	}
	return rs
}

// LinesColumns is the column order of the final relation.
var LinesColumns = append(append([]string{}, sales.CanonicalColumns...), "item_category")

// LinesResultSet renders labeled lines in the final relation shape.
func LinesResultSet(records []sales.LabeledRecord) ResultSet {
	rs := ResultSet{
		Name:    "sales_lines",
		Columns: LinesColumns,
		Rows:    make([][]string, 0, len(records)),
	}
	for _, r := range records {
		rs.Rows = append(rs.Rows, []string{
			r.BranchLabel,
			text(r.TechnicianName),
			text(r.VehicleType),
			text(r.ItemCode),
			text(r.ItemName),
			text(r.ItemGroup),
			text(r.Description),
			text(r.InvoiceID),
			r.PostingDate.Format("2006-01-02"),
			text(r.CustomerGroup),
			text(r.CustomerID),
			text(r.CustomerName),
			text(r.ReceivableAccount),
			text(r.Company),
			text(r.IncomeAccount),
			text(r.CostCenter),
			text(r.PaymentMode),
			nullText(r.StockQty),
			text(r.StockUOM),
			money(r.Rate),
			money(r.Amount),
			nullText(r.CGSTRate),
			types.FormatNull(r.CGSTAmount),
			nullText(r.SGSTRate),
			types.FormatNull(r.SGSTAmount),
			money(r.TotalTax),
			money(r.OtherCharges),
			money(r.Total),
			string(r.ItemCategory),
		})
	}
	return rs
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullText(d types.NullMoney) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
