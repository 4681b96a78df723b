// Package source_repo reads the raw branch tables.
package source_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"salesbi/internal/core/apperror"
	"salesbi/internal/domain/pipeline"
	"salesbi/internal/domain/sales"
	"salesbi/internal/infrastructure/storage/postgres"
)

// refColumn carries the physical row reference in every snapshot row.
const refColumn = "ctid"

// SourceRepo implements pipeline.SourceRepository.
type SourceRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ pipeline.SourceRepository = (*SourceRepo)(nil)

// NewSourceRepo creates a new source repository.
func NewSourceRepo(txManager *postgres.TxManager) *SourceRepo {
	return &SourceRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Columns returns the table's columns in ordinal order.
func (r *SourceRepo) Columns(ctx context.Context, table string) ([]string, error) {
	query, args, err := r.builder.
		Select("column_name").
		From("information_schema.columns").
		Where("table_schema = current_schema()").
		Where(squirrel.Eq{"table_name": table}).
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build columns query: %w", err)
	}

	var columns []string
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &columns, query, args...); err != nil {
		return nil, apperror.NewDatabase("list source columns", err)
	}
	if len(columns) == 0 {
		return nil, apperror.NewNotFound("source table", table)
	}
	return columns, nil
}

// ReadTable returns every row of table with each value cast to text.
// Rows are ordered by physical position so line numbers are reproducible
// within one snapshot.
func (r *SourceRepo) ReadTable(ctx context.Context, table string) (sales.SourceTable, error) {
	columns, err := r.Columns(ctx, table)
	if err != nil {
		return sales.SourceTable{}, err
	}

	query, args, err := r.selectText(table, columns).ToSql()
	if err != nil {
		return sales.SourceTable{}, fmt.Errorf("build snapshot query: %w", err)
	}

	rows, err := r.txManager.GetQuerier(ctx).Query(ctx, query, args...)
	if err != nil {
		return sales.SourceTable{}, apperror.NewDatabase("read source table", err)
	}
	defer rows.Close()

	out := sales.SourceTable{Name: table, Columns: columns}
	for rows.Next() {
		var ref string
		values := make([]*string, len(columns))

		dest := make([]any, 0, len(columns)+1)
		dest = append(dest, &ref)
		for i := range values {
			dest = append(dest, &values[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return sales.SourceTable{}, fmt.Errorf("scan %s row: %w", table, err)
		}
		out.Rows = append(out.Rows, sales.SourceRow{Ref: ref, Values: values})
	}
	if err := rows.Err(); err != nil {
		return sales.SourceTable{}, apperror.NewDatabase("read source table", err)
	}

	return out, nil
}

func (r *SourceRepo) selectText(table string, columns []string) squirrel.SelectBuilder {
	exprs := make([]string, 0, len(columns)+1)
	exprs = append(exprs, refColumn+"::text")
	for _, col := range columns {
		exprs = append(exprs, pgx.Identifier{col}.Sanitize()+"::text")
	}
	return r.builder.
		Select(exprs...).
		From(pgx.Identifier{table}.Sanitize()).
		OrderBy(refColumn)
}

// DeleteRows deletes rows by ctid. Refs already gone are ignored, so
// repeating a purge deletes nothing.
func (r *SourceRepo) DeleteRows(ctx context.Context, table string, refs []string) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}

	query, args, err := r.deleteByRef(table, refs).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge query: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return 0, apperror.NewDatabase("purge source rows", err)
	}
	return tag.RowsAffected(), nil
}

func (r *SourceRepo) deleteByRef(table string, refs []string) squirrel.DeleteBuilder {
	return r.builder.
		Delete(pgx.Identifier{table}.Sanitize()).
		Where(refColumn+" = ANY(?::text[]::tid[])", refs)
}

// Count returns the number of rows in table.
func (r *SourceRepo) Count(ctx context.Context, table string) (int64, error) {
	query, args, err := r.builder.Select("count(*)").From(pgx.Identifier{table}.Sanitize()).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var n int64
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperror.NewDatabase("count source rows", err)
	}
	return n, nil
}
