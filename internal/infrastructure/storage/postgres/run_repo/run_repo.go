// Package run_repo stores pipeline run records.
package run_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"salesbi/internal/core/apperror"
	"salesbi/internal/core/id"
	"salesbi/internal/domain/pipeline"
	"salesbi/internal/infrastructure/storage/postgres"
)

// TableName is the run log table.
const TableName = "sales_runs"

// runRow is the database shape of pipeline.Run.
type runRow struct {
	ID               id.ID           `db:"id"`
	StartedAt        time.Time       `db:"started_at"`
	FinishedAt       time.Time       `db:"finished_at"`
	Status           string          `db:"status"`
	DryRun           bool            `db:"dry_run"`
	Predicate        string          `db:"predicate"`
	Policy           string          `db:"anomaly_policy"`
	SourceCounts     map[string]int  `db:"source_counts"`
	UnifiedCount     int             `db:"unified_count"`
	RemovedCount     int             `db:"removed_count"`
	QuarantinedCount int             `db:"quarantined_count"`
	AnomalyCount     int             `db:"anomaly_count"`
	CleanedCount     int             `db:"cleaned_count"`
	PurgedCount      int64           `db:"purged_count"`
	Revenue          decimal.Decimal `db:"revenue"`

	postgres.Payload
}

var (
	// Columns of the full row, payload included.
	Columns = postgres.ExtractDBColumns[runRow]()
	// listColumns omit the payload.
	listColumns = Columns[:len(Columns)-3]
)

// RunRepo implements pipeline.RunRepository.
type RunRepo struct {
	txManager *postgres.TxManager
	codec     *postgres.PayloadCodec
	builder   squirrel.StatementBuilderType
}

var _ pipeline.RunRepository = (*RunRepo)(nil)

// NewRunRepo creates a new run repository.
func NewRunRepo(txManager *postgres.TxManager, codec *postgres.PayloadCodec) *RunRepo {
	return &RunRepo{
		txManager: txManager,
		codec:     codec,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a run with its summary.
func (r *RunRepo) Create(ctx context.Context, run *pipeline.Run) error {
	row, err := r.toRow(run)
	if err != nil {
		return err
	}

	values := postgres.StructToMap(row)
	// numeric columns go through pgtype so the driver never guesses a text format
	if values["revenue"], err = postgres.Numeric(run.Revenue); err != nil {
		return apperror.NewInternal(err)
	}

	query, args, err := r.builder.Insert(TableName).SetMap(values).ToSql()
	if err != nil {
		return fmt.Errorf("build insert run: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return apperror.NewDatabase("insert run", err)
	}
	return nil
}

// GetByID returns a run with its decoded summary.
func (r *RunRepo) GetByID(ctx context.Context, runID id.ID) (*pipeline.Run, error) {
	query, args, err := r.builder.
		Select(Columns...).
		From(TableName).
		Where(squirrel.Eq{"id": runID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get run: %w", err)
	}

	var row runRow
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &row, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("run", runID)
		}
		return nil, apperror.NewDatabase("get run", err)
	}

	return r.fromRow(row, true)
}

// List returns the most recent runs without their summaries.
func (r *RunRepo) List(ctx context.Context, limit int) ([]pipeline.Run, error) {
	query, args, err := r.listQuery(limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list runs: %w", err)
	}

	var rows []runRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, query, args...); err != nil {
		return nil, apperror.NewDatabase("list runs", err)
	}

	out := make([]pipeline.Run, 0, len(rows))
	for _, row := range rows {
		run, err := r.fromRow(row, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, nil
}

func (r *RunRepo) listQuery(limit int) squirrel.SelectBuilder {
	return r.builder.
		Select(listColumns...).
		From(TableName).
		OrderBy("started_at DESC").
		Limit(uint64(limit))
}

// Latest returns the id of the most recent completed run.
func (r *RunRepo) Latest(ctx context.Context) (id.ID, error) {
	query, args, err := LatestCompleted(r.builder).ToSql()
	if err != nil {
		return id.Nil(), fmt.Errorf("build latest run: %w", err)
	}

	var runID id.ID
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, query, args...).Scan(&runID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return id.Nil(), apperror.NewNotFound("run", "latest")
		}
		return id.Nil(), apperror.NewDatabase("get latest run", err)
	}
	return runID, nil
}

// LatestCompleted selects the id of the most recent completed run.
func LatestCompleted(b squirrel.StatementBuilderType) squirrel.SelectBuilder {
	return b.
		Select("id").
		From(TableName).
		Where(squirrel.Eq{"status": string(pipeline.StatusCompleted)}).
		OrderBy("finished_at DESC").
		Limit(1)
}

func (r *RunRepo) toRow(run *pipeline.Run) (*runRow, error) {
	row := &runRow{
		ID:               run.ID,
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
		Status:           string(run.Status),
		DryRun:           run.DryRun,
		Predicate:        run.Predicate,
		Policy:           run.Policy,
		SourceCounts:     run.SourceCounts,
		UnifiedCount:     run.UnifiedCount,
		RemovedCount:     run.RemovedCount,
		QuarantinedCount: run.QuarantinedCount,
		AnomalyCount:     run.AnomalyCount,
		CleanedCount:     run.CleanedCount,
		PurgedCount:      run.PurgedCount,
		Revenue:          run.Revenue,
	}
	if row.SourceCounts == nil {
		row.SourceCounts = map[string]int{}
	}

	row.Payload = postgres.Payload{Algo: postgres.CompressionNone}
	if run.Summary != nil {
		payload, err := r.codec.Pack(run.Summary)
		if err != nil {
			return nil, apperror.NewInternal(err)
		}
		row.Payload = payload
	}
	return row, nil
}

func (r *RunRepo) fromRow(row runRow, withSummary bool) (*pipeline.Run, error) {
	run := &pipeline.Run{
		ID:               row.ID,
		StartedAt:        row.StartedAt,
		FinishedAt:       row.FinishedAt,
		Status:           pipeline.Status(row.Status),
		DryRun:           row.DryRun,
		Predicate:        row.Predicate,
		Policy:           row.Policy,
		SourceCounts:     row.SourceCounts,
		UnifiedCount:     row.UnifiedCount,
		RemovedCount:     row.RemovedCount,
		QuarantinedCount: row.QuarantinedCount,
		AnomalyCount:     row.AnomalyCount,
		CleanedCount:     row.CleanedCount,
		PurgedCount:      row.PurgedCount,
		Revenue:          row.Revenue,
	}

	if withSummary && (len(row.Raw) > 0 || len(row.Compressed) > 0) {
		var summary pipeline.Summary
		if err := r.codec.Unpack(row.Payload, &summary); err != nil {
			return nil, apperror.NewInternal(err).WithDetail("run", row.ID.String())
		}
		run.Summary = &summary
	}
	return run, nil
}
