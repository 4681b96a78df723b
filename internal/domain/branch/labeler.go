// Package branch fills in the branch of lines sold over the counter.
package branch

import (
	"salesbi/internal/domain/sales"
)

// DefaultSentinel labels lines whose branch is missing or blank.
const DefaultSentinel = "Counter Sale"

// Labeler replaces missing branches with a sentinel.
type Labeler struct {
	sentinel string
}

// NewLabeler creates a labeler; an empty sentinel selects DefaultSentinel.
func NewLabeler(sentinel string) *Labeler {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	return &Labeler{sentinel: sentinel}
}

// Sentinel returns the label used for missing branches.
func (l *Labeler) Sentinel() string { return l.sentinel }

// LabelOf returns the branch label for a raw branch value.
// Non-blank values are kept exactly, surrounding whitespace included.
func (l *Labeler) LabelOf(branch *string) string {
	if sales.IsBlank(branch) {
		return l.sentinel
	}
	return *branch
}

// Label returns a copy of records with BranchLabel set.
func (l *Labeler) Label(records []sales.LabeledRecord) []sales.LabeledRecord {
	out := make([]sales.LabeledRecord, len(records))
	for i, rec := range records {
		rec.BranchLabel = l.LabelOf(rec.Branch)
		out[i] = rec
	}
	return out
}
