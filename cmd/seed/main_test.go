package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceFlags(t *testing.T) {
	f := sourceFlags{}
	require.NoError(t, f.Set("muttathara=exports/m.xlsx"))
	require.NoError(t, f.Set("palayam=exports/p=1.csv"))

	assert.Equal(t, "exports/m.xlsx", f["muttathara"])
	assert.Equal(t, "exports/p=1.csv", f["palayam"], "only the first = separates")

	for _, bad := range []string{"muttathara", "=x.csv", "palayam="} {
		assert.Error(t, f.Set(bad), bad)
	}
}

func TestTextRow_EmptyCellsAreNull(t *testing.T) {
	row := textRow([]string{"2025-07-01", "", " "})
	assert.Equal(t, []any{"2025-07-01", nil, " "}, row)
}
