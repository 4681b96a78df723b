// Package normalizer aligns differently shaped branch tables into one
// relation whose columns are the canonical sales schema.
package normalizer

import (
	"fmt"
	"sort"

	"salesbi/internal/core/apperror"
	"salesbi/internal/domain/sales"
)

// ColumnProvenance documents where one unified column comes from.
type ColumnProvenance struct {
	Column string `json:"column"`
	// SuppliedBy lists sources that carry the column.
	SuppliedBy []string `json:"suppliedBy"`
	// NullFilledFor lists sources that lack it; their rows hold NULL.
	NullFilledFor []string `json:"nullFilledFor,omitempty"`
	// RenamedFrom maps source name to the original column name when a rename applied.
	RenamedFrom map[string]string `json:"renamedFrom,omitempty"`
}

// SchemaReport describes the unified schema and row accounting.
type SchemaReport struct {
	Columns      []ColumnProvenance `json:"columns"`
	SourceCounts map[string]int     `json:"sourceCounts"`
	UnifiedCount int                `json:"unifiedCount"`
}

// Divergent returns the columns that at least one source null-fills.
func (r SchemaReport) Divergent() []ColumnProvenance {
	var out []ColumnProvenance
	for _, c := range r.Columns {
		if len(c.NullFilledFor) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Result is the unified relation plus its schema report.
type Result struct {
	Records []sales.UnifiedRecord
	Report  SchemaReport
}

// sourcePlan maps a source's positional columns onto canonical columns.
type sourcePlan struct {
	table     sales.SourceTable
	positions map[string]int // canonical column -> index in table.Columns
	renamed   map[string]string
}

// Normalize unions the given sources into the canonical schema.
// Values are carried verbatim. It fails rather than merge a column it cannot place.
func Normalize(sources ...sales.SourceTable) (*Result, error) {
	if len(sources) == 0 {
		return nil, apperror.NewValidation("at least one source table is required")
	}

	seen := make(map[string]bool, len(sources))
	plans := make([]sourcePlan, 0, len(sources))
	for _, src := range sources {
		if src.Name == "" {
			return nil, apperror.NewValidation("source table name is required")
		}
		if seen[src.Name] {
			return nil, apperror.NewValidation(fmt.Sprintf("duplicate source %q", src.Name))
		}
		seen[src.Name] = true

		plan, err := planSource(src)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	expected := 0
	counts := make(map[string]int, len(plans))
	for _, p := range plans {
		expected += p.table.Len()
		counts[p.table.Name] = p.table.Len()
	}

	records := make([]sales.UnifiedRecord, 0, expected)
	for _, p := range plans {
		for i, row := range p.table.Rows {
			if len(row.Values) != len(p.table.Columns) {
				return nil, apperror.NewValidation("row width does not match source columns").
					WithDetail("source", p.table.Name).
					WithDetail("line", i+1).
					WithDetail("columns", len(p.table.Columns)).
					WithDetail("values", len(row.Values))
			}

			values := make(map[string]*string, len(sales.CanonicalColumns))
			for _, col := range sales.CanonicalColumns {
				if pos, ok := p.positions[col]; ok {
					values[col] = row.Values[pos]
				} else {
					values[col] = nil
				}
			}

			records = append(records, sales.UnifiedRecord{
				Source: p.table.Name,
				LineNo: i + 1,
				Ref:    row.Ref,
				Values: values,
			})
		}
	}

	if len(records) != expected {
		return nil, apperror.NewRowCountMismatch(expected, len(records))
	}

	return &Result{
		Records: records,
		Report: SchemaReport{
			Columns:      provenance(plans),
			SourceCounts: counts,
			UnifiedCount: len(records),
		},
	}, nil
}

func planSource(src sales.SourceTable) (sourcePlan, error) {
	plan := sourcePlan{
		table:     src,
		positions: make(map[string]int, len(src.Columns)),
		renamed:   make(map[string]string),
	}

	for from, to := range src.Renames {
		if !sales.IsCanonical(to) {
			return plan, apperror.NewSchemaMismatch(src.Name, from,
				fmt.Sprintf("rename target %q is not a unified column", to))
		}
	}

	for i, col := range src.Columns {
		target := col
		if to, ok := src.Renames[col]; ok {
			target = to
			plan.renamed[to] = col
		}

		if !sales.IsCanonical(target) {
			return plan, apperror.NewSchemaMismatch(src.Name, col,
				fmt.Sprintf("column %q has no place in the unified schema; add a rename or extend the schema", col))
		}
		if prev, dup := plan.positions[target]; dup {
			return plan, apperror.NewSchemaMismatch(src.Name, col,
				fmt.Sprintf("columns %q and %q both map to %q", src.Columns[prev], col, target))
		}
		plan.positions[target] = i
	}

	return plan, nil
}

func provenance(plans []sourcePlan) []ColumnProvenance {
	out := make([]ColumnProvenance, 0, len(sales.CanonicalColumns))
	for _, col := range sales.CanonicalColumns {
		cp := ColumnProvenance{Column: col}
		for _, p := range plans {
			if _, ok := p.positions[col]; ok {
				cp.SuppliedBy = append(cp.SuppliedBy, p.table.Name)
				if orig, ok := p.renamed[col]; ok {
					if cp.RenamedFrom == nil {
						cp.RenamedFrom = make(map[string]string)
					}
					cp.RenamedFrom[p.table.Name] = orig
				}
			} else {
				cp.NullFilledFor = append(cp.NullFilledFor, p.table.Name)
			}
		}
		sort.Strings(cp.SuppliedBy)
		sort.Strings(cp.NullFilledFor)
		out = append(out, cp)
	}
	return out
}
