// Package pipeline runs the consolidation batch: snapshot the branch tables,
// unify, sanitize, derive, label, persist the labeled artifact and report.
package pipeline

import (
	"time"

	"github.com/shopspring/decimal"

	"salesbi/internal/core/id"
	"salesbi/internal/domain/feature"
	"salesbi/internal/domain/normalizer"
	"salesbi/internal/domain/reports"
	"salesbi/internal/domain/sales"
	"salesbi/internal/domain/sanitizer"
)

// Status is the outcome of a run.
type Status string

const (
	// StatusCompleted runs persisted their labeled lines.
	StatusCompleted Status = "completed"
	// StatusHalted runs stopped on unparsable values; nothing but the summary was written.
	StatusHalted Status = "halted"
)

// SourceSpec names one branch table and the renames that align it.
type SourceSpec struct {
	Name    string            `yaml:"name" validate:"required"`
	Table   string            `yaml:"table" validate:"required"`
	Renames map[string]string `yaml:"renames"`
}

// Options controls a single run.
type Options struct {
	// DryRun computes everything but writes nothing.
	DryRun bool
	// PurgeSources deletes non-transactional rows from the branch tables
	// after the artifact is persisted.
	PurgeSources bool
	// Filter applies to the returned report only; the artifact is unfiltered.
	Filter reports.Filter
}

// RemovedRow identifies a source row classified as non-transactional.
type RemovedRow struct {
	Source string  `json:"source"`
	LineNo int     `json:"lineNo"`
	Ref    string  `json:"ref"`
	Total  *string `json:"total"`
}

// Summary is the detailed review document stored with each run.
type Summary struct {
	Schema         normalizer.SchemaReport        `json:"schema"`
	Completeness   []sanitizer.ColumnCompleteness `json:"completeness"`
	AnomalyCounts  map[string]int                 `json:"anomalyCounts"`
	Anomalies      []sanitizer.Anomaly            `json:"anomalies"`
	Removed        []RemovedRow                   `json:"removed"`
	Rules          []feature.Rule                 `json:"rules"`
	BranchSentinel string                         `json:"branchSentinel"`
}

// Run is the persisted record of one pipeline execution.
type Run struct {
	ID         id.ID     `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Status     Status    `json:"status"`
	DryRun     bool      `json:"dryRun"`

	Predicate string `json:"predicate"`
	Policy    string `json:"policy"`

	SourceCounts     map[string]int  `json:"sourceCounts"`
	UnifiedCount     int             `json:"unifiedCount"`
	RemovedCount     int             `json:"removedCount"`
	QuarantinedCount int             `json:"quarantinedCount"`
	AnomalyCount     int             `json:"anomalyCount"`
	CleanedCount     int             `json:"cleanedCount"`
	PurgedCount      int64           `json:"purgedCount"`
	Revenue          decimal.Decimal `json:"revenue"`

	Summary *Summary `json:"summary,omitempty"`
}

// Result is everything a run produced.
type Result struct {
	Run      *Run
	Labeled  []sales.LabeledRecord
	Sanitize *sanitizer.Result
	Report   *reports.Report
}
