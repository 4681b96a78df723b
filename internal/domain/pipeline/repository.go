package pipeline

import (
	"context"

	"salesbi/internal/core/id"
	"salesbi/internal/domain/sales"
)

// SourceRepository reads and, when purging, deletes branch-table rows.
type SourceRepository interface {
	// ReadTable returns every row of table with all values as text.
	ReadTable(ctx context.Context, table string) (sales.SourceTable, error)
	// DeleteRows removes rows by their reference and returns how many were deleted.
	DeleteRows(ctx context.Context, table string, refs []string) (int64, error)
}

// ArtifactRepository stores labeled lines tagged with a run.
type ArtifactRepository interface {
	WriteLines(ctx context.Context, runID id.ID, lines []sales.LabeledRecord) (int64, error)
}

// RunRepository stores run records.
type RunRepository interface {
	Create(ctx context.Context, run *Run) error
	GetByID(ctx context.Context, runID id.ID) (*Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
}

// Metrics observes run outcomes.
type Metrics interface {
	ObserveStage(stage string, seconds float64)
	ObserveRun(run *Run)
}

type nopMetrics struct{}

func (nopMetrics) ObserveStage(string, float64) {}
func (nopMetrics) ObserveRun(*Run)              {}
