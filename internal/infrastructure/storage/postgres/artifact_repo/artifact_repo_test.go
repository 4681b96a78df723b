package artifact_repo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesbi/internal/core/id"
	"salesbi/internal/domain/reports"
	"salesbi/internal/domain/sales"
	"salesbi/internal/infrastructure/storage/postgres"
)

func TestColumns_MatchFinalRelation(t *testing.T) {
	assert.Equal(t, []string{"run_id", "source", "line_no"}, Columns[:3])
	assert.Equal(t, reports.LinesColumns, Columns[3:], "artifact columns follow the final relation order")
}

func TestToRow(t *testing.T) {
	runID := id.New()
	line := sales.LabeledRecord{
		CleanedRecord: sales.CleanedRecord{
			Source:      "Palayam",
			LineNo:      4,
			Branch:      nil,
			InvoiceID:   sales.StrPtr("P-9"),
			PostingDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			Rate:        decimal.RequireFromString("10.00"),
			Amount:      decimal.RequireFromString("20.00"),
			TotalTax:    decimal.RequireFromString("3.60"),
			Total:       decimal.RequireFromString("23.60"),
		},
		BranchLabel:  "Counter Sale",
		ItemCategory: sales.CategorySparePart,
	}

	row, err := toRow(runID, line)
	require.NoError(t, err)

	values := postgres.StructValues(row, Columns)
	require.Len(t, values, len(Columns))
	assert.Equal(t, runID, values[0])
	assert.Equal(t, "Palayam", values[1])
	assert.Equal(t, 4, values[2])
	assert.Equal(t, "Counter Sale", row.Branch)
	assert.True(t, row.Total.Valid)
	assert.True(t, row.OtherCharges.Valid, "zero other charges is a value, not NULL")
	assert.False(t, row.CGSTRate.Valid)
	assert.Equal(t, "SparePart", row.ItemCategory)
}
