package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"salesbi/internal/core/apperror"
	appctx "salesbi/internal/core/context"
	"salesbi/internal/core/id"
	"salesbi/internal/core/tx"
	"salesbi/internal/domain/branch"
	"salesbi/internal/domain/feature"
	"salesbi/internal/domain/normalizer"
	"salesbi/internal/domain/reports"
	"salesbi/internal/domain/sales"
	"salesbi/internal/domain/sanitizer"
	"salesbi/pkg/logger"
)

var tracer = otel.Tracer("salesbi/pipeline")

// Deps are the collaborators of a Service.
type Deps struct {
	TxManager  tx.SnapshotManager
	Sources    SourceRepository
	Artifacts  ArtifactRepository
	Runs       RunRepository
	Sanitizer  *sanitizer.Sanitizer
	Classifier *feature.Classifier
	Labeler    *branch.Labeler
	Metrics    Metrics

	// BucketEdges configure the invoice value distribution of the run report.
	BucketEdges []decimal.Decimal
}

// Service orchestrates pipeline runs. Runs are sequential; the service holds
// no per-run state.
type Service struct {
	specs []SourceSpec
	deps  Deps
	now   func() time.Time
}

// NewService creates a pipeline service over the given branch tables.
func NewService(specs []SourceSpec, deps Deps) *Service {
	if deps.Sanitizer == nil {
		deps.Sanitizer = sanitizer.New(sanitizer.Config{})
	}
	if deps.Labeler == nil {
		deps.Labeler = branch.NewLabeler("")
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	return &Service{
		specs: specs,
		deps:  deps,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one batch. When sanitization halts on unparsable values the
// returned Result still carries the run and the sanitizer findings for review.
func (s *Service) Run(ctx context.Context, opts Options) (*Result, error) {
	if len(s.specs) == 0 {
		return nil, apperror.NewValidation("no source tables configured")
	}
	if s.deps.Classifier == nil {
		return nil, apperror.NewValidation("item classifier is required")
	}

	run := &Run{
		ID:        id.New(),
		StartedAt: s.now(),
		DryRun:    opts.DryRun,
		Predicate: s.deps.Sanitizer.Predicate().String(),
		Policy:    string(s.deps.Sanitizer.Policy()),
	}

	ctx = withRunTrace(ctx, run.ID)
	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", run.ID.String()),
		attribute.Bool("run.dry_run", opts.DryRun),
	))
	defer span.End()

	logger.Info(ctx, "pipeline run started",
		"sources", len(s.specs),
		"dry_run", opts.DryRun,
		"purge_sources", opts.PurgeSources,
	)

	var tables []sales.SourceTable
	err := s.stage(ctx, "snapshot", func(ctx context.Context) error {
		var err error
		tables, err = s.snapshot(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	var unified *normalizer.Result
	err = s.stage(ctx, "normalize", func(context.Context) error {
		var err error
		unified, err = normalizer.Normalize(tables...)
		return err
	})
	if err != nil {
		return nil, err
	}
	run.SourceCounts = unified.Report.SourceCounts
	run.UnifiedCount = unified.Report.UnifiedCount

	var cleaned *sanitizer.Result
	var haltErr error
	err = s.stage(ctx, "sanitize", func(context.Context) error {
		cleaned, haltErr = s.deps.Sanitizer.Sanitize(unified.Records)
		if haltErr != nil && cleaned == nil {
			return haltErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	run.RemovedCount = len(cleaned.Removed)
	run.QuarantinedCount = len(cleaned.Quarantined)
	run.AnomalyCount = len(cleaned.Anomalies)
	run.CleanedCount = len(cleaned.Cleaned)

	logger.Info(ctx, "non-transactional rows classified",
		"matched", run.RemovedCount,
		"predicate", run.Predicate,
		"by_source", countBySource(cleaned.Removed),
	)
	if run.AnomalyCount > 0 {
		logger.Warn(ctx, "unparsable values found",
			"anomalies", run.AnomalyCount,
			"rows", run.QuarantinedCount,
			"by_column", cleaned.AnomalyCounts(),
			"policy", run.Policy,
		)
	}

	if haltErr != nil {
		run.Status = StatusHalted
		run.Summary = s.summary(unified, cleaned)
		run.FinishedAt = s.now()
		if !opts.DryRun {
			if err := s.deps.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
				return s.deps.Runs.Create(ctx, run)
			}); err != nil {
				return nil, fmt.Errorf("record halted run: %w", err)
			}
		}
		s.deps.Metrics.ObserveRun(run)
		return &Result{Run: run, Sanitize: cleaned}, haltErr
	}

	var labeled []sales.LabeledRecord
	_ = s.stage(ctx, "label", func(context.Context) error {
		labeled = s.deps.Labeler.Label(s.deps.Classifier.Derive(cleaned.Cleaned))
		return nil
	})

	run.Revenue = decimal.Zero
	for _, l := range labeled {
		run.Revenue = run.Revenue.Add(l.Total)
	}
	run.Status = StatusCompleted
	run.Summary = s.summary(unified, cleaned)

	if !opts.DryRun {
		err = s.stage(ctx, "persist", func(ctx context.Context) error {
			return s.deps.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
				return s.persist(ctx, run, labeled, cleaned.Removed, opts.PurgeSources)
			})
		})
		if err != nil {
			return nil, err
		}
	}

	var report *reports.Report
	err = s.stage(ctx, "report", func(ctx context.Context) error {
		var err error
		svc := reports.NewService(reports.NewMemoryRepository(labeled), s.deps.BucketEdges)
		report, err = svc.Build(ctx, opts.Filter)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.ObserveRun(run)

	logger.Info(ctx, "pipeline run finished",
		"status", run.Status,
		"unified", run.UnifiedCount,
		"removed", run.RemovedCount,
		"cleaned", run.CleanedCount,
		"purged", run.PurgedCount,
		"revenue", run.Revenue.StringFixed(2),
	)

	return &Result{Run: run, Labeled: labeled, Sanitize: cleaned, Report: report}, nil
}

// snapshot reads every configured table inside one repeatable-read transaction.
func (s *Service) snapshot(ctx context.Context) ([]sales.SourceTable, error) {
	tables := make([]sales.SourceTable, 0, len(s.specs))
	err := s.deps.TxManager.Snapshot(ctx, func(ctx context.Context) error {
		for _, spec := range s.specs {
			t, err := s.deps.Sources.ReadTable(ctx, spec.Table)
			if err != nil {
				return fmt.Errorf("read source %s: %w", spec.Name, err)
			}
			t.Name = spec.Name
			t.Renames = spec.Renames
			tables = append(tables, t)

			logger.Debug(ctx, "source snapshot read", "source", spec.Name, "table", spec.Table, "rows", t.Len())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// persist writes lines, optionally purges sources, then records the run.
// The run row is written last so it reflects the purge count; the lines'
// foreign key is checked at commit.
func (s *Service) persist(ctx context.Context, run *Run, lines []sales.LabeledRecord, removed []sales.UnifiedRecord, purge bool) error {
	written, err := s.deps.Artifacts.WriteLines(ctx, run.ID, lines)
	if err != nil {
		return fmt.Errorf("write sales lines: %w", err)
	}
	if written != int64(len(lines)) {
		return apperror.NewRowCountMismatch(len(lines), int(written))
	}

	if purge && len(removed) > 0 {
		purged, err := s.purge(ctx, removed)
		if err != nil {
			return err
		}
		run.PurgedCount = purged
	}

	run.FinishedAt = s.now()
	if err := s.deps.Runs.Create(ctx, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func (s *Service) purge(ctx context.Context, removed []sales.UnifiedRecord) (int64, error) {
	refs := make(map[string][]string)
	for _, r := range removed {
		refs[r.Source] = append(refs[r.Source], r.Ref)
	}

	var total int64
	for _, spec := range s.specs {
		list := refs[spec.Name]
		if len(list) == 0 {
			continue
		}

		logger.Warn(ctx, "deleting non-transactional source rows",
			"source", spec.Name,
			"table", spec.Table,
			"rows", len(list),
		)

		n, err := s.deps.Sources.DeleteRows(ctx, spec.Table, list)
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", spec.Name, err)
		}
		total += n
	}
	return total, nil
}

func (s *Service) summary(unified *normalizer.Result, cleaned *sanitizer.Result) *Summary {
	removed := make([]RemovedRow, 0, len(cleaned.Removed))
	for _, r := range cleaned.Removed {
		removed = append(removed, RemovedRow{
			Source: r.Source,
			LineNo: r.LineNo,
			Ref:    r.Ref,
			Total:  r.Get(sales.ColTotal),
		})
	}

	return &Summary{
		Schema:         unified.Report,
		Completeness:   cleaned.Completeness,
		AnomalyCounts:  cleaned.AnomalyCounts(),
		Anomalies:      cleaned.Anomalies,
		Removed:        removed,
		Rules:          s.deps.Classifier.Rules(),
		BranchSentinel: s.deps.Labeler.Sentinel(),
	}
}

// stage runs fn inside a span and records its duration.
func (s *Service) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.deps.Metrics.ObserveStage(name, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		logger.Error(ctx, "pipeline stage failed", "stage", name, "error", err)
	}
	return err
}

func withRunTrace(ctx context.Context, runID id.ID) context.Context {
	tc := appctx.NewTraceContext()
	if existing := appctx.GetTrace(ctx); existing != nil {
		copied := *existing
		tc = &copied
	}
	tc.RunID = runID.String()
	return appctx.WithTrace(ctx, tc)
}

func countBySource(records []sales.UnifiedRecord) map[string]int {
	out := make(map[string]int)
	for _, r := range records {
		out[r.Source]++
	}
	return out
}
