package reports

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesbi/internal/core/types"
	"salesbi/internal/domain/sales"
)

func line(branch, invoice, date, total string, cat sales.Category) sales.LabeledRecord {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return sales.LabeledRecord{
		CleanedRecord: sales.CleanedRecord{
			InvoiceID:   sales.StrPtr(invoice),
			PostingDate: d,
			Total:       decimal.RequireFromString(total),
			StockQty:    decimal.NewNullDecimal(decimal.NewFromInt(1)),
		},
		BranchLabel:  branch,
		ItemCategory: cat,
	}
}

func fixture() []sales.LabeledRecord {
	return []sales.LabeledRecord{
		line("Muttathara", "M-1", "2025-07-01", "100.00", sales.CategoryService),
		line("Muttathara", "M-1", "2025-07-01", "33.33", sales.CategorySparePart),
		line("Muttathara", "M-2", "2025-07-15", "50.00", sales.CategorySparePart),
		line("Palayam", "P-1", "2025-08-02", "66.67", sales.CategoryService),
		line("Counter Sale", "C-1", "2025-08-20", "12000.00", sales.CategorySparePart),
	}
}

func TestEngine_EndToEndShape(t *testing.T) {
	svc := NewService(NewMemoryRepository([]sales.LabeledRecord{
		line("Muttathara", "INV-1", "2025-07-01", "100.00", sales.CategoryService),
		line("Muttathara", "INV-2", "2025-07-15", "50.00", sales.CategorySparePart),
	}), nil)

	report, err := svc.Build(context.Background(), Filter{})
	require.NoError(t, err)

	assert.Equal(t, "150.00", report.Totals.Revenue.StringFixed(2))
	assert.Equal(t, 2, report.Totals.Invoices)
	assert.Equal(t, 2, report.Totals.Lines)
	assert.Equal(t, "75.00", report.Totals.AverageInvoiceValue.Decimal.StringFixed(2))

	require.Len(t, report.Monthly, 1)
	assert.Equal(t, "2025-07", report.Monthly[0].Month)
	assert.Equal(t, "150.00", report.Monthly[0].Revenue.StringFixed(2))

	require.Len(t, report.Categories, 2)
	assert.Equal(t, "Service", report.Categories[0].Key)
	assert.Equal(t, "100.00", report.Categories[0].Revenue.StringFixed(2))
	assert.Equal(t, 1, report.Categories[0].Invoices)
	assert.Equal(t, "66.67", report.Categories[0].SharePct.Decimal.StringFixed(2))
	assert.Equal(t, "SparePart", report.Categories[1].Key)
	assert.Equal(t, "50.00", report.Categories[1].Revenue.StringFixed(2))
	assert.Equal(t, "33.33", report.Categories[1].SharePct.Decimal.StringFixed(2))
}

func TestEngine_AggregationConsistency(t *testing.T) {
	repo := NewMemoryRepository(fixture())
	ctx := context.Background()

	totals, err := repo.GetTotals(ctx, Filter{})
	require.NoError(t, err)

	for name, get := range map[string]func(context.Context, Filter) ([]GroupBreakdown, error){
		"branches":   repo.GetBranches,
		"categories": repo.GetCategories,
	} {
		t.Run(name, func(t *testing.T) {
			groups, err := get(ctx, Filter{})
			require.NoError(t, err)

			sum, share := decimal.Zero, decimal.Zero
			for _, g := range groups {
				sum = sum.Add(g.Revenue)
				share = share.Add(g.SharePct.Decimal)
			}
			assert.True(t, sum.Equal(totals.Revenue), "sum %s != total %s", sum, totals.Revenue)

			tolerance := decimal.NewFromFloat(0.01).Mul(decimal.NewFromInt(int64(len(groups))))
			assert.True(t, share.Sub(decimal.NewFromInt(100)).Abs().LessThanOrEqual(tolerance), "shares sum to %s", share)
		})
	}

	monthly, err := repo.GetMonthly(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, monthly, 2)
	assert.Equal(t, "2025-07", monthly[0].Month)
	assert.Equal(t, "2025-08", monthly[1].Month)
}

func TestEngine_BranchOrderingAndRatios(t *testing.T) {
	branches, err := NewMemoryRepository(fixture()).GetBranches(context.Background(), Filter{})
	require.NoError(t, err)

	require.Len(t, branches, 3)
	assert.Equal(t, "Counter Sale", branches[0].Key)
	assert.Equal(t, "Muttathara", branches[1].Key)
	assert.Equal(t, 2, branches[1].Invoices)
	assert.Equal(t, 3, branches[1].Lines)
	assert.Equal(t, "91.67", branches[1].RevenuePerInvoice.Decimal.StringFixed(2), "183.33 / 2 rounded half-up")
}

func TestEngine_TopNRankingIsStable(t *testing.T) {
	records := []sales.LabeledRecord{
		line("B", "D", "2025-07-01", "100", sales.CategoryService),
		line("B", "C", "2025-07-01", "300", sales.CategoryService),
		line("B", "A", "2025-07-01", "500", sales.CategoryService),
		line("B", "B", "2025-07-01", "300", sales.CategoryService),
	}
	svc := NewService(NewMemoryRepository(records), nil)

	first, err := svc.GetTopInvoices(context.Background(), Filter{TopN: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "500", first[0].Revenue.String())
	assert.Equal(t, "300", first[1].Revenue.String())
	assert.Equal(t, "B", first[1].InvoiceID, "ties break by invoice id")

	for i := 0; i < 5; i++ {
		again, err := svc.GetTopInvoices(context.Background(), Filter{TopN: 2})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	all, err := svc.GetAllInvoices(context.Background(), Filter{TopN: 2})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestService_DefaultTopN(t *testing.T) {
	var records []sales.LabeledRecord
	for i := 0; i < 15; i++ {
		records = append(records, line("B", string(rune('a'+i)), "2025-07-01", "1", sales.CategoryService))
	}

	top, err := NewService(NewMemoryRepository(records), nil).GetTopInvoices(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, top, DefaultTopN)
}

func TestEngine_EmptyInputHasUndefinedRatios(t *testing.T) {
	svc := NewService(NewMemoryRepository(nil), nil)

	report, err := svc.Build(context.Background(), Filter{})
	require.NoError(t, err)

	assert.True(t, report.Totals.Revenue.IsZero())
	assert.False(t, report.Totals.AverageInvoiceValue.Valid, "no invoices means undefined, not zero")
	assert.Empty(t, report.Branches)
	for _, b := range report.Distribution {
		assert.False(t, b.SharePct.Valid)
	}
}

func TestEngine_LinesWithoutInvoiceHaveUndefinedRevenuePerInvoice(t *testing.T) {
	rec := line("B", "", "2025-07-01", "10", sales.CategoryService)
	rec.InvoiceID = nil

	groups, err := NewMemoryRepository([]sales.LabeledRecord{rec}).GetBranches(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 0, groups[0].Invoices)
	assert.False(t, groups[0].RevenuePerInvoice.Valid)
	assert.Equal(t, "100.00", groups[0].SharePct.Decimal.StringFixed(2))
}

func TestEngine_NullAndEmptyInvoiceShareOneGroup(t *testing.T) {
	ctx := context.Background()
	noInvoice := line("Counter Sale", "", "2025-07-02", "20.00", sales.CategorySparePart)
	noInvoice.InvoiceID = nil
	repo := NewMemoryRepository([]sales.LabeledRecord{
		line("Muttathara", "INV-1", "2025-07-01", "150.00", sales.CategoryService),
		noInvoice,
		line("Counter Sale", "", "2025-07-03", "30.00", sales.CategorySparePart),
	})

	totals, err := repo.GetTotals(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Invoices, "empty id counts as an invoice, null does not")
	assert.Equal(t, 3, totals.Lines)
	assert.Equal(t, "200.00", totals.Revenue.StringFixed(2))

	share, err := repo.GetInvoiceShare(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, share, 2)
	assert.Equal(t, "INV-1", share[0].InvoiceID)
	assert.Equal(t, "", share[1].InvoiceID)
	assert.Equal(t, "50.00", share[1].Revenue.StringFixed(2), "null and empty ids merge under the empty key")
	assert.Equal(t, 2, share[1].Lines)
	assert.Equal(t, "25.00", share[1].SharePct.Decimal.StringFixed(2))

	branches, err := repo.GetBranches(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "Counter Sale", branches[1].Key)
	assert.Equal(t, 1, branches[1].Invoices)
	assert.Equal(t, "50.00", types.FormatNull(branches[1].RevenuePerInvoice))
}

func TestEngine_Distribution(t *testing.T) {
	dist, err := NewService(NewMemoryRepository(fixture()), nil).GetDistribution(context.Background(), Filter{})
	require.NoError(t, err)

	require.Len(t, dist, len(DefaultBucketEdges), "no underflow bucket without negative invoices")
	assert.Equal(t, "0-1000", dist[0].Label())
	assert.Equal(t, 3, dist[0].Invoices)
	assert.Equal(t, "10000-50000", dist[3].Label())
	assert.Equal(t, 1, dist[3].Invoices)
	assert.Equal(t, "50000+", dist[4].Label())
	assert.Equal(t, 0, dist[4].Invoices)
}

func TestBucketIndex(t *testing.T) {
	edges := DefaultBucketEdges
	assert.Equal(t, 0, BucketIndex(edges, decimal.NewFromInt(-5)))
	assert.Equal(t, 1, BucketIndex(edges, decimal.Zero))
	assert.Equal(t, 2, BucketIndex(edges, decimal.NewFromInt(1000)))
	assert.Equal(t, 5, BucketIndex(edges, decimal.NewFromInt(50000)))
}

func TestFilter(t *testing.T) {
	from := time.Date(2025, 8, 1, 15, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository(fixture())

	totals, err := repo.GetTotals(context.Background(), Filter{FromDate: &from})
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Lines, "from bound is inclusive by day")

	totals, err = repo.GetTotals(context.Background(), Filter{Branches: []string{"Palayam"}})
	require.NoError(t, err)
	assert.Equal(t, "66.67", totals.Revenue.StringFixed(2))

	to := from.AddDate(0, -1, 0)
	_, err = NewService(repo, nil).GetTotals(context.Background(), Filter{FromDate: &from, ToDate: &to})
	assert.Error(t, err)
}

func TestReport_ResultSets(t *testing.T) {
	report, err := NewService(NewMemoryRepository(fixture()), nil).Build(context.Background(), Filter{})
	require.NoError(t, err)

	sets := report.ResultSets()
	require.Len(t, sets, 7)
	for _, rs := range sets {
		for _, row := range rs.Rows {
			assert.Len(t, row, len(rs.Columns), "result set %s", rs.Name)
		}
	}
	assert.Equal(t, []string{"4", "5", "12250.00", "5", "3062.50"}, sets[0].Rows[0])

	lines := LinesResultSet(fixture())
	assert.Len(t, lines.Columns, len(sales.CanonicalColumns)+1)
	assert.Equal(t, "Muttathara", lines.Rows[0][0])
	assert.Equal(t, "Service", lines.Rows[0][len(lines.Columns)-1])
}
