package report_repo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesbi/internal/core/id"
	"salesbi/internal/core/types"
	"salesbi/internal/domain/pipeline"
	"salesbi/internal/domain/reports"
	"salesbi/internal/domain/sales"
	"salesbi/internal/infrastructure/storage/postgres"
	"salesbi/internal/infrastructure/storage/postgres/artifact_repo"
	"salesbi/internal/infrastructure/storage/postgres/run_repo"
)

// testDSNEnv points the database tests at a disposable PostgreSQL.
const testDSNEnv = "SALESBI_TEST_DATABASE_URL"

func line(source string, no int, branch string, invoice *string, date, total string, cat sales.Category) sales.LabeledRecord {
	d, _ := time.Parse("2006-01-02", date)
	amount := decimal.RequireFromString(total)
	return sales.LabeledRecord{
		CleanedRecord: sales.CleanedRecord{
			Source:       source,
			LineNo:       no,
			InvoiceID:    invoice,
			PostingDate:  d,
			Rate:         amount,
			Amount:       amount,
			TotalTax:     decimal.Zero,
			OtherCharges: decimal.Zero,
			Total:        amount,
		},
		BranchLabel:  branch,
		ItemCategory: cat,
	}
}

func fixtureLines() []sales.LabeledRecord {
	return []sales.LabeledRecord{
		line("muttathara", 1, "Muttathara", sales.StrPtr("INV-1"), "2025-07-01", "100.00", sales.CategoryService),
		line("muttathara", 2, "Muttathara", sales.StrPtr("INV-1"), "2025-07-01", "50.00", sales.CategorySparePart),
		line("muttathara", 3, "Muttathara", sales.StrPtr("INV-3"), "2025-07-20", "300.00", sales.CategorySparePart),
		line("palayam", 1, "Palayam", sales.StrPtr("INV-2"), "2025-07-15", "300.00", sales.CategoryService),
		line("palayam", 2, "Counter Sale", nil, "2025-08-02", "20.00", sales.CategorySparePart),
		line("palayam", 3, "Counter Sale", sales.StrPtr(""), "2025-08-03", "30.00", sales.CategorySparePart),
		line("palayam", 4, "Palayam", sales.StrPtr("INV-4"), "2025-08-05", "6000.00", sales.CategoryService),
	}
}

// persistRun writes lines under a fresh completed run and returns its id.
func persistRun(t *testing.T, ctx context.Context, txm *postgres.TxManager, lines []sales.LabeledRecord) id.ID {
	t.Helper()

	codec, err := postgres.NewPayloadCodec(postgres.DefaultCompressThreshold)
	require.NoError(t, err)
	runs := run_repo.NewRunRepo(txm, codec)
	artifacts := artifact_repo.NewArtifactRepo(txm)

	now := time.Now().UTC()
	run := &pipeline.Run{
		ID:         id.New(),
		StartedAt:  now,
		FinishedAt: now,
		Status:     pipeline.StatusCompleted,
		Predicate:  "test",
		Policy:     "halt",
	}

	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := artifacts.WriteLines(ctx, run.ID, lines)
		if err != nil {
			return err
		}
		if n != int64(len(lines)) {
			return fmt.Errorf("wrote %d of %d lines", n, len(lines))
		}
		return runs.Create(ctx, run)
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = txm.GetQuerier(context.Background()).Exec(context.Background(),
			"DELETE FROM sales_runs WHERE id = $1", run.ID)
	})
	return run.ID
}

func openDB(t *testing.T) (context.Context, *postgres.TxManager) {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.CreateSchema(ctx, pool))
	return ctx, postgres.NewTxManager(pool)
}

func fixed(d decimal.Decimal) string { return d.StringFixed(2) }

func breakdownRows(in []reports.GroupBreakdown) []string {
	out := make([]string, len(in))
	for i, g := range in {
		out[i] = fmt.Sprintf("%s|%s|%d|%d|%s|%s", g.Key, fixed(g.Revenue), g.Invoices, g.Lines,
			types.FormatNull(g.RevenuePerInvoice), types.FormatNull(g.SharePct))
	}
	return out
}

func invoiceRows(in []reports.InvoiceRevenue) []string {
	out := make([]string, len(in))
	for i, r := range in {
		out[i] = fmt.Sprintf("%q|%s|%d|%s", r.InvoiceID, fixed(r.Revenue), r.Lines, types.FormatNull(r.SharePct))
	}
	return out
}

func TestReportRepo_MatchesMemoryEngine(t *testing.T) {
	ctx, txm := openDB(t)

	lines := fixtureLines()
	runID := persistRun(t, ctx, txm, lines)

	db := NewReportRepo(txm)
	mem := reports.NewMemoryRepository(lines)
	filter := reports.Filter{RunID: &runID}

	t.Run("totals", func(t *testing.T) {
		want, err := mem.GetTotals(ctx, filter)
		require.NoError(t, err)
		got, err := db.GetTotals(ctx, filter)
		require.NoError(t, err)

		assert.Equal(t, want.Invoices, got.Invoices)
		assert.Equal(t, want.Lines, got.Lines)
		assert.Equal(t, fixed(want.Revenue), fixed(got.Revenue))
		assert.Equal(t, types.FormatNull(want.AverageInvoiceValue), types.FormatNull(got.AverageInvoiceValue))
	})

	t.Run("monthly", func(t *testing.T) {
		want, err := mem.GetMonthly(ctx, filter)
		require.NoError(t, err)
		got, err := db.GetMonthly(ctx, filter)
		require.NoError(t, err)

		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Month, got[i].Month)
			assert.Equal(t, fixed(want[i].Revenue), fixed(got[i].Revenue))
			assert.Equal(t, want[i].Invoices, got[i].Invoices)
			assert.Equal(t, want[i].Lines, got[i].Lines)
		}
	})

	t.Run("branches", func(t *testing.T) {
		want, err := mem.GetBranches(ctx, filter)
		require.NoError(t, err)
		got, err := db.GetBranches(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, breakdownRows(want), breakdownRows(got))
	})

	t.Run("categories", func(t *testing.T) {
		want, err := mem.GetCategories(ctx, filter)
		require.NoError(t, err)
		got, err := db.GetCategories(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, breakdownRows(want), breakdownRows(got))
	})

	t.Run("invoice ranking with ties", func(t *testing.T) {
		top := filter
		top.TopN = 3

		want, err := mem.GetInvoiceRanking(ctx, top)
		require.NoError(t, err)
		got, err := db.GetInvoiceRanking(ctx, top)
		require.NoError(t, err)

		assert.Equal(t, invoiceRows(want), invoiceRows(got))
		require.Len(t, got, 3)
		assert.Equal(t, "INV-2", got[1].InvoiceID, "equal revenue ranks by invoice id")
		assert.Equal(t, "INV-3", got[2].InvoiceID)
	})

	t.Run("invoice share", func(t *testing.T) {
		want, err := mem.GetInvoiceShare(ctx, filter)
		require.NoError(t, err)
		got, err := db.GetInvoiceShare(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, invoiceRows(want), invoiceRows(got))
	})

	t.Run("distribution", func(t *testing.T) {
		edges := reports.DefaultBucketEdges
		want, err := mem.GetDistribution(ctx, filter, edges)
		require.NoError(t, err)
		got, err := db.GetDistribution(ctx, filter, edges)
		require.NoError(t, err)

		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Label(), got[i].Label())
			assert.Equal(t, want[i].Invoices, got[i].Invoices)
			assert.Equal(t, fixed(want[i].Revenue), fixed(got[i].Revenue))
			assert.Equal(t, types.FormatNull(want[i].SharePct), types.FormatNull(got[i].SharePct))
		}
	})

	t.Run("latest completed run by default", func(t *testing.T) {
		got, err := db.GetTotals(ctx, reports.Filter{})
		require.NoError(t, err)
		assert.Equal(t, len(lines), got.Lines)
	})
}
