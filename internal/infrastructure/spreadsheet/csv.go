package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"salesbi/internal/domain/reports"
)

// WriteCSV writes one result set with a header row.
func WriteCSV(w io.Writer, rs reports.ResultSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(rs.Rows); err != nil {
		return fmt.Errorf("write %s: %w", rs.Name, err)
	}
	return nil
}

// WriteDir writes the workbook plus one CSV file per result set into dir
// and returns the written paths.
func WriteDir(dir string, sets []reports.ResultSet) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	f, err := NewWorkbook(sets)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	workbook := filepath.Join(dir, WorkbookFile)
	if err := f.SaveAs(workbook); err != nil {
		return nil, fmt.Errorf("save workbook: %w", err)
	}
	paths := []string{workbook}

	for _, rs := range sets {
		path := filepath.Join(dir, rs.Name+".csv")
		if err := writeCSVFile(path, rs); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSVFile(path string, rs reports.ResultSet) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return WriteCSV(out, rs)
}
