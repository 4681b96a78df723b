package branch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"salesbi/internal/domain/sales"
)

func TestLabeler_LabelOf(t *testing.T) {
	l := NewLabeler("")

	tests := []struct {
		name   string
		branch *string
		want   string
	}{
		{"null", nil, DefaultSentinel},
		{"empty", sales.StrPtr(""), DefaultSentinel},
		{"whitespace", sales.StrPtr(" \t "), DefaultSentinel},
		{"named", sales.StrPtr("Muttathara"), "Muttathara"},
		{"padded kept verbatim", sales.StrPtr(" Palayam "), " Palayam "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.LabelOf(tt.branch))
		})
	}
}

func TestLabeler_LabelIsTotal(t *testing.T) {
	l := NewLabeler("Walk-in")
	in := []sales.LabeledRecord{
		{CleanedRecord: sales.CleanedRecord{Branch: nil}},
		{CleanedRecord: sales.CleanedRecord{Branch: sales.StrPtr("Palayam")}},
	}

	out := l.Label(in)

	assert.Equal(t, "Walk-in", out[0].BranchLabel)
	assert.Equal(t, "Palayam", out[1].BranchLabel)
	assert.Empty(t, in[0].BranchLabel, "input is not modified")
	for _, rec := range out {
		assert.NotEmpty(t, rec.BranchLabel)
	}
}
