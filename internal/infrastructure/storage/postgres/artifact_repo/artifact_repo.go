// Package artifact_repo persists labeled sales lines for a run.
package artifact_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"salesbi/internal/core/apperror"
	"salesbi/internal/core/id"
	"salesbi/internal/domain/pipeline"
	"salesbi/internal/domain/sales"
	"salesbi/internal/infrastructure/storage/postgres"
)

// TableName is the artifact table.
const TableName = "sales_lines"

// LineKey identifies one line of one run.
type LineKey struct {
	RunID  id.ID  `db:"run_id"`
	Source string `db:"source"`
	LineNo int    `db:"line_no"`
}

// lineRow is the database shape of a labeled line.
type lineRow struct {
	LineKey

	Branch            string    `db:"branch"`
	TechnicianName    *string   `db:"technician_name"`
	VehicleType       *string   `db:"vehicle_type"`
	ItemCode          *string   `db:"item_code"`
	ItemName          *string   `db:"item_name"`
	ItemGroup         *string   `db:"item_group"`
	Description       *string   `db:"description"`
	InvoiceID         *string   `db:"invoice_id"`
	PostingDate       time.Time `db:"posting_date"`
	CustomerGroup     *string   `db:"customer_group"`
	CustomerID        *string   `db:"customer_id"`
	CustomerName      *string   `db:"customer_name"`
	ReceivableAccount *string   `db:"receivable_account"`
	Company           *string   `db:"company"`
	IncomeAccount     *string   `db:"income_account"`
	CostCenter        *string   `db:"cost_center"`
	PaymentMode       *string   `db:"payment_mode"`

	StockQty pgtype.Numeric `db:"stock_qty"`
	StockUOM *string        `db:"stock_uom"`

	Rate       pgtype.Numeric `db:"rate"`
	Amount     pgtype.Numeric `db:"amount"`
	CGSTRate   pgtype.Numeric `db:"cgst_rate"`
	CGSTAmount pgtype.Numeric `db:"cgst_amount"`
	SGSTRate   pgtype.Numeric `db:"sgst_rate"`
	SGSTAmount pgtype.Numeric `db:"sgst_amount"`

	TotalTax     pgtype.Numeric `db:"total_tax"`
	OtherCharges pgtype.Numeric `db:"other_charges"`
	Total        pgtype.Numeric `db:"total"`

	ItemCategory string `db:"item_category"`
}

// Columns is the COPY column list, derived once from lineRow.
var Columns = postgres.ExtractDBColumns[lineRow]()

// ArtifactRepo implements pipeline.ArtifactRepository.
type ArtifactRepo struct {
	inserter *postgres.BatchInserter
}

var _ pipeline.ArtifactRepository = (*ArtifactRepo)(nil)

// NewArtifactRepo creates a new artifact repository.
func NewArtifactRepo(txManager *postgres.TxManager) *ArtifactRepo {
	return &ArtifactRepo{inserter: postgres.NewBatchInserter(txManager)}
}

// WriteLines copies lines into sales_lines. Must run inside a transaction.
func (r *ArtifactRepo) WriteLines(ctx context.Context, runID id.ID, lines []sales.LabeledRecord) (int64, error) {
	if len(lines) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		row, err := toRow(runID, l)
		if err != nil {
			return 0, apperror.NewInternal(fmt.Errorf("convert line %s:%d: %w", l.Source, l.LineNo, err)).
				WithDetail("source", l.Source).
				WithDetail("line", l.LineNo)
		}
		rows = append(rows, postgres.StructValues(row, Columns))
	}

	n, err := r.inserter.CopyFromSlice(ctx, TableName, Columns, rows)
	if err != nil {
		return n, apperror.NewDatabase("copy sales lines", err)
	}
	return n, nil
}

func toRow(runID id.ID, l sales.LabeledRecord) (*lineRow, error) {
	row := &lineRow{
		LineKey: LineKey{RunID: runID, Source: l.Source, LineNo: l.LineNo},

		Branch:            l.BranchLabel,
		TechnicianName:    l.TechnicianName,
		VehicleType:       l.VehicleType,
		ItemCode:          l.ItemCode,
		ItemName:          l.ItemName,
		ItemGroup:         l.ItemGroup,
		Description:       l.Description,
		InvoiceID:         l.InvoiceID,
		PostingDate:       l.PostingDate,
		CustomerGroup:     l.CustomerGroup,
		CustomerID:        l.CustomerID,
		CustomerName:      l.CustomerName,
		ReceivableAccount: l.ReceivableAccount,
		Company:           l.Company,
		IncomeAccount:     l.IncomeAccount,
		CostCenter:        l.CostCenter,
		PaymentMode:       l.PaymentMode,
		StockUOM:          l.StockUOM,
		ItemCategory:      string(l.ItemCategory),
	}

	var err error
	if row.Rate, err = postgres.Numeric(l.Rate); err != nil {
		return nil, err
	}
	if row.Amount, err = postgres.Numeric(l.Amount); err != nil {
		return nil, err
	}
	if row.TotalTax, err = postgres.Numeric(l.TotalTax); err != nil {
		return nil, err
	}
	if row.OtherCharges, err = postgres.Numeric(l.OtherCharges); err != nil {
		return nil, err
	}
	if row.Total, err = postgres.Numeric(l.Total); err != nil {
		return nil, err
	}
	if row.StockQty, err = postgres.NullNumeric(l.StockQty); err != nil {
		return nil, err
	}
	if row.CGSTRate, err = postgres.NullNumeric(l.CGSTRate); err != nil {
		return nil, err
	}
	if row.CGSTAmount, err = postgres.NullNumeric(l.CGSTAmount); err != nil {
		return nil, err
	}
	if row.SGSTRate, err = postgres.NullNumeric(l.SGSTRate); err != nil {
		return nil, err
	}
	if row.SGSTAmount, err = postgres.NullNumeric(l.SGSTAmount); err != nil {
		return nil, err
	}

	return row, nil
}
