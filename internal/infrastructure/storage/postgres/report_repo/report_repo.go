// Package report_repo provides the PostgreSQL implementation of the report
// repository over persisted sales lines.
package report_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"salesbi/internal/domain/reports"
	"salesbi/internal/infrastructure/storage/postgres"
)

const linesTable = "sales_lines"

// Shared aggregate expressions. Rounding uses ROUND(numeric, 2), which rounds
// halves away from zero like the in-memory engine.
const (
	revenueExpr  = "COALESCE(SUM(total), 0)"
	invoicesExpr = "COUNT(DISTINCT invoice_id)"
	perInvoice   = "ROUND(COALESCE(SUM(total), 0) / NULLIF(COUNT(DISTINCT invoice_id), 0), 2)"
	shareExpr    = "ROUND(100 * SUM(total) / NULLIF(SUM(SUM(total)) OVER (), 0), 2)"
	invoiceKey   = "COALESCE(invoice_id, '')"
	latestRunSQL = "run_id = (SELECT id FROM sales_runs WHERE status = ? ORDER BY finished_at DESC LIMIT 1)"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ reports.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a new report repository.
func NewReportRepo(txManager *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// scope restricts a query to the filter's run, period and branches.
func scope(q squirrel.SelectBuilder, f reports.Filter) squirrel.SelectBuilder {
	if f.RunID != nil {
		q = q.Where(squirrel.Eq{"run_id": *f.RunID})
	} else {
		q = q.Where(latestRunSQL, "completed")
	}
	if f.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"posting_date": f.FromDate.Format("2006-01-02")})
	}
	if f.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"posting_date": f.ToDate.Format("2006-01-02")})
	}
	if len(f.Branches) > 0 {
		q = q.Where(squirrel.Eq{"branch": f.Branches})
	}
	return q
}

func (r *ReportRepo) selectAll(ctx context.Context, dest any, q squirrel.SelectBuilder, name string) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s query: %w", name, err)
	}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), dest, query, args...); err != nil {
		return fmt.Errorf("%s report: %w", name, err)
	}
	return nil
}

func (r *ReportRepo) totalsQuery(f reports.Filter) squirrel.SelectBuilder {
	return scope(r.builder.Select(
		invoicesExpr+" AS invoices",
		"COUNT(*) AS lines",
		revenueExpr+" AS revenue",
		"COALESCE(SUM(stock_qty), 0) AS quantity",
		perInvoice+" AS average_invoice_value",
	).From(linesTable), f)
}

// GetTotals implements reports.Repository.
func (r *ReportRepo) GetTotals(ctx context.Context, filter reports.Filter) (*reports.GrandTotals, error) {
	query, args, err := r.totalsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build totals query: %w", err)
	}

	var totals reports.GrandTotals
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &totals, query, args...); err != nil {
		return nil, fmt.Errorf("totals report: %w", err)
	}
	return &totals, nil
}

func (r *ReportRepo) monthlyQuery(f reports.Filter) squirrel.SelectBuilder {
	return scope(r.builder.Select(
		"to_char(posting_date, 'YYYY-MM') AS month",
		revenueExpr+" AS revenue",
		invoicesExpr+" AS invoices",
		"COUNT(*) AS lines",
	).From(linesTable), f).
		GroupBy("1").
		OrderBy("1")
}

// GetMonthly implements reports.Repository.
func (r *ReportRepo) GetMonthly(ctx context.Context, filter reports.Filter) ([]reports.MonthlyRevenue, error) {
	var rows []reports.MonthlyRevenue
	if err := r.selectAll(ctx, &rows, r.monthlyQuery(filter), "monthly"); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ReportRepo) breakdownQuery(keyColumn string, f reports.Filter) squirrel.SelectBuilder {
	return scope(r.builder.Select(
		keyColumn+" AS key",
		revenueExpr+" AS revenue",
		invoicesExpr+" AS invoices",
		"COUNT(*) AS lines",
		perInvoice+" AS revenue_per_invoice",
		shareExpr+" AS share_pct",
	).From(linesTable), f).
		GroupBy(keyColumn).
		OrderBy("revenue DESC", keyColumn+` COLLATE "C"`)
}

// GetBranches implements reports.Repository.
func (r *ReportRepo) GetBranches(ctx context.Context, filter reports.Filter) ([]reports.GroupBreakdown, error) {
	var rows []reports.GroupBreakdown
	if err := r.selectAll(ctx, &rows, r.breakdownQuery("branch", filter), "branch"); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetCategories implements reports.Repository.
func (r *ReportRepo) GetCategories(ctx context.Context, filter reports.Filter) ([]reports.GroupBreakdown, error) {
	var rows []reports.GroupBreakdown
	if err := r.selectAll(ctx, &rows, r.breakdownQuery("item_category", filter), "category"); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ReportRepo) invoiceQuery(f reports.Filter) squirrel.SelectBuilder {
	q := scope(r.builder.Select(
		invoiceKey+" AS invoice_id",
		revenueExpr+" AS revenue",
		"COUNT(*) AS lines",
		shareExpr+" AS share_pct",
	).From(linesTable), f).
		GroupBy(invoiceKey).
		OrderBy("revenue DESC", invoiceKey+` COLLATE "C"`)
	if f.TopN > 0 {
		q = q.Limit(uint64(f.TopN))
	}
	return q
}

// GetInvoiceRanking implements reports.Repository.
func (r *ReportRepo) GetInvoiceRanking(ctx context.Context, filter reports.Filter) ([]reports.InvoiceRevenue, error) {
	var rows []reports.InvoiceRevenue
	if err := r.selectAll(ctx, &rows, r.invoiceQuery(filter), "invoice ranking"); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetInvoiceShare implements reports.Repository.
func (r *ReportRepo) GetInvoiceShare(ctx context.Context, filter reports.Filter) ([]reports.InvoiceRevenue, error) {
	filter.TopN = 0
	var rows []reports.InvoiceRevenue
	if err := r.selectAll(ctx, &rows, r.invoiceQuery(filter), "invoice share"); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ReportRepo) distributionQuery(f reports.Filter, edges []decimal.Decimal) squirrel.SelectBuilder {
	bounds := make([]string, len(edges))
	for i, e := range edges {
		bounds[i] = e.String()
	}

	invoices := scope(r.builder.Select(
		invoiceKey+" AS invoice_id",
		"SUM(total) AS revenue",
	).From(linesTable), f).
		GroupBy(invoiceKey)

	return r.builder.
		Select().
		Column(squirrel.Expr("width_bucket(inv.revenue, ?::text[]::numeric[]) AS bucket", bounds)).
		Column("COUNT(*) AS invoices").
		Column("SUM(inv.revenue) AS revenue").
		FromSelect(invoices, "inv").
		GroupBy("1").
		OrderBy("1")
}

// GetDistribution implements reports.Repository.
func (r *ReportRepo) GetDistribution(ctx context.Context, filter reports.Filter, edges []decimal.Decimal) ([]reports.DistributionBucket, error) {
	var tallies []reports.BucketTally
	if err := r.selectAll(ctx, &tallies, r.distributionQuery(filter, edges), "distribution"); err != nil {
		return nil, err
	}
	return reports.BuildDistribution(edges, tallies), nil
}
