package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesbi/internal/domain/sales"
)

func TestClassifier_Defaults(t *testing.T) {
	c, err := NewClassifier(nil)
	require.NoError(t, err)

	tests := []struct {
		group *string
		want  sales.Category
	}{
		{sales.StrPtr("Labour Charge"), sales.CategoryService},
		{sales.StrPtr("GENERAL SERVICE"), sales.CategoryService},
		{sales.StrPtr("Brake Pad"), sales.CategorySparePart},
		{sales.StrPtr(""), sales.CategorySparePart},
		{nil, sales.CategorySparePart},
	}

	for _, tt := range tests {
		name := "<nil>"
		if tt.group != nil {
			name = *tt.group
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.group))
		})
	}
}

func TestClassifier_FirstMatchWins(t *testing.T) {
	c, err := NewClassifier([]Rule{
		{Contains: "Labour-Free", Category: sales.CategorySparePart},
		{Contains: "labour", Category: sales.CategoryService},
	})
	require.NoError(t, err)

	assert.Equal(t, sales.CategorySparePart, c.Classify(sales.StrPtr("labour-free kit")))
	assert.Equal(t, sales.CategoryService, c.Classify(sales.StrPtr("labour")))
}

func TestClassifier_InvalidRules(t *testing.T) {
	_, err := NewClassifier([]Rule{{Contains: " ", Category: sales.CategoryService}})
	assert.Error(t, err)

	_, err = NewClassifier([]Rule{{Contains: "x", Category: "Other"}})
	assert.Error(t, err)
}

func TestClassifier_DeriveIsTotal(t *testing.T) {
	c, err := NewClassifier(nil)
	require.NoError(t, err)

	in := []sales.CleanedRecord{
		{ItemGroup: sales.StrPtr("Labour Charge")},
		{ItemGroup: nil},
		{ItemGroup: sales.StrPtr("Oil Filter")},
	}
	out := c.Derive(in)

	require.Len(t, out, len(in))
	for _, rec := range out {
		assert.True(t, rec.ItemCategory.Valid())
	}
	assert.Equal(t, sales.CategoryService, out[0].ItemCategory)
}
