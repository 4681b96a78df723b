// Package spreadsheet writes report result sets as xlsx workbooks and CSV
// files and reads branch sheets for seeding.
package spreadsheet

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"salesbi/internal/domain/reports"
)

// WorkbookFile is the workbook name used by WriteDir.
const WorkbookFile = "report.xlsx"

// ContentTypeXLSX is the MIME type of a workbook.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// numericColumns are written as numbers; everything else stays text so that
// identifiers like "007" keep their leading zeros.
var numericColumns = map[string]bool{
	"invoices": true, "lines": true, "revenue": true, "quantity": true,
	"average_invoice_value": true, "revenue_per_invoice": true, "share_pct": true,
	"stock_qty": true, "rate": true, "amount": true, "cgst_rate": true, "cgst_amount": true,
	"sgst_rate": true, "sgst_amount": true, "total_tax": true, "other_charges": true, "total": true,
}

// NewWorkbook renders each result set on its own sheet, in order.
// The caller must Close the returned file.
func NewWorkbook(sets []reports.ResultSet) (*excelize.File, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("no result sets to export")
	}

	f := excelize.NewFile()
	for i, rs := range sets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), rs.Name); err != nil {
				f.Close()
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(rs.Name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", rs.Name, err)
		}

		if err := writeSheet(f, rs); err != nil {
			f.Close()
			return nil, fmt.Errorf("write sheet %s: %w", rs.Name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, rs reports.ResultSet) error {
	header := make([]any, len(rs.Columns))
	for i, c := range rs.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(rs.Name, "A1", &header); err != nil {
		return err
	}

	for r, row := range rs.Rows {
		cells := make([]any, len(row))
		for c, v := range row {
			cells[c] = cellValue(rs.Columns[c], v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(rs.Name, cell, &cells); err != nil {
			return err
		}
	}

	return f.SetPanes(rs.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func cellValue(column, v string) any {
	if v == "" || !numericColumns[column] {
		return v
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}

// WriteWorkbook streams the workbook to w.
func WriteWorkbook(w io.Writer, sets []reports.ResultSet) error {
	f, err := NewWorkbook(sets)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
