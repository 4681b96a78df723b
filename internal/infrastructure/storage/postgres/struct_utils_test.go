package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"salesbi/internal/core/id"
)

type MockKey struct {
	RunID  id.ID `db:"run_id"`
	LineNo int   `db:"line_no"`
}

type mockRow struct {
	MockKey
	Branch  string  `db:"branch" json:"branch"`
	Payment *string `db:"payment_mode"`
	Ignored string  `db:"-"`
	NoTag   string
}

func TestExtractDBColumns_EmbeddedFields(t *testing.T) {
	cols := ExtractDBColumns[mockRow]()

	assert.Equal(t, []string{"run_id", "line_no", "branch", "payment_mode"}, cols)
}

func TestStructToMap_EmbeddedFields(t *testing.T) {
	runID := id.New()
	row := mockRow{
		MockKey: MockKey{RunID: runID, LineNo: 7},
		Branch:  "Palayam",
		Ignored: "x",
	}

	m := StructToMap(row)

	assert.Equal(t, runID, m["run_id"])
	assert.Equal(t, 7, m["line_no"])
	assert.Equal(t, "Palayam", m["branch"])
	assert.Nil(t, m["payment_mode"])
	assert.NotContains(t, m, "-")
	assert.Len(t, m, 4)
}

func TestStructValues_FollowsColumnOrder(t *testing.T) {
	row := &mockRow{MockKey: MockKey{LineNo: 3}, Branch: "Muttathara"}

	values := StructValues(row, []string{"branch", "line_no", "unknown"})

	assert.Equal(t, []any{"Muttathara", 3, nil}, values)
}
