package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// salesSchemaSQL creates the run log and the labeled-lines artifact.
const salesSchemaSQL = `
CREATE TABLE IF NOT EXISTS sales_runs (
    id                 UUID PRIMARY KEY,
    started_at         TIMESTAMPTZ NOT NULL,
    finished_at        TIMESTAMPTZ NOT NULL,
    status             TEXT NOT NULL CHECK (status IN ('completed', 'halted')),
    dry_run            BOOLEAN NOT NULL DEFAULT FALSE,
    predicate          TEXT NOT NULL,
    anomaly_policy     TEXT NOT NULL,
    source_counts      JSONB NOT NULL DEFAULT '{}',
    unified_count      INTEGER NOT NULL,
    removed_count      INTEGER NOT NULL,
    quarantined_count  INTEGER NOT NULL,
    anomaly_count      INTEGER NOT NULL,
    cleaned_count      INTEGER NOT NULL,
    purged_count       BIGINT NOT NULL DEFAULT 0,
    revenue            NUMERIC(14,2) NOT NULL DEFAULT 0,
    payload            JSONB,
    payload_compressed BYTEA,
    compression_algo   TEXT NOT NULL DEFAULT 'none'
);

CREATE INDEX IF NOT EXISTS idx_sales_runs_finished ON sales_runs (status, finished_at DESC);

CREATE TABLE IF NOT EXISTS sales_lines (
    run_id             UUID NOT NULL REFERENCES sales_runs (id) ON DELETE CASCADE DEFERRABLE INITIALLY DEFERRED,
    source             TEXT NOT NULL,
    line_no            INTEGER NOT NULL,
    branch             TEXT NOT NULL,
    technician_name    TEXT,
    vehicle_type       TEXT,
    item_code          TEXT,
    item_name          TEXT,
    item_group         TEXT,
    description        TEXT,
    invoice_id         TEXT,
    posting_date       DATE NOT NULL,
    customer_group     TEXT,
    customer_id        TEXT,
    customer_name      TEXT,
    receivable_account TEXT,
    company            TEXT,
    income_account     TEXT,
    cost_center        TEXT,
    payment_mode       TEXT,
    stock_qty          NUMERIC(15,4),
    stock_uom          TEXT,
    rate               NUMERIC(10,2) NOT NULL,
    amount             NUMERIC(12,2) NOT NULL,
    cgst_rate          NUMERIC(15,4),
    cgst_amount        NUMERIC(12,2),
    sgst_rate          NUMERIC(15,4),
    sgst_amount        NUMERIC(12,2),
    total_tax          NUMERIC(12,2) NOT NULL,
    other_charges      NUMERIC(12,2) NOT NULL,
    total              NUMERIC(12,2) NOT NULL,
    item_category      TEXT NOT NULL CHECK (item_category IN ('Service', 'SparePart')),
    PRIMARY KEY (run_id, source, line_no)
);

CREATE INDEX IF NOT EXISTS idx_sales_lines_run_date ON sales_lines (run_id, posting_date);
`

// CreateSchema creates the pipeline tables if they do not exist.
func CreateSchema(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, salesSchemaSQL); err != nil {
		return fmt.Errorf("create sales schema: %w", err)
	}
	return nil
}

// CreateSourceTable creates a branch table whose columns are all text, the way
// spreadsheet exports land in the database before cleaning.
func CreateSourceTable(ctx context.Context, q Querier, table string, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("source table %s: no columns", table)
	}

	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = pgx.Identifier{col}.Sanitize() + " TEXT"
	}

	sql := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		pgx.Identifier{table}.Sanitize(), strings.Join(defs, ", "))
	if _, err := q.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create source table %s: %w", table, err)
	}
	return nil
}
