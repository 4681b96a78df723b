package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet is a header row plus data rows padded to the header width.
type Sheet struct {
	Header []string
	Rows   [][]string
}

// ReadFile reads the first sheet of an .xlsx file or a .csv file.
func ReadFile(path string) (*Sheet, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return ReadXLSX(in)
	case ".csv":
		return ReadCSV(in)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return newSheet(rows)
}

// ReadCSV reads a comma separated file.
func ReadCSV(r io.Reader) (*Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return newSheet(rows)
}

func newSheet(rows [][]string) (*Sheet, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet has no header row")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
		if header[i] == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
	}

	s := &Sheet{Header: header, Rows: make([][]string, 0, len(rows)-1)}
	for n, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		if len(row) > len(header) {
			return nil, fmt.Errorf("row %d has %d cells, header has %d", n+2, len(row), len(header))
		}
		padded := make([]string, len(header))
		copy(padded, row)
		s.Rows = append(s.Rows, padded)
	}
	return s, nil
}
