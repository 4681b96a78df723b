package sanitizer

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"salesbi/internal/domain/sales"
)

// RowPredicate decides whether a unified row is a non-transactional artifact
// (a summary or corrupted line) rather than a sale.
type RowPredicate interface {
	Match(rec sales.UnifiedRecord) (bool, error)
	String() string
}

// DefaultPredicate matches rows that carry a total but no usable posting date.
type DefaultPredicate struct{}

// Match implements RowPredicate.
func (DefaultPredicate) Match(rec sales.UnifiedRecord) (bool, error) {
	return rec.Get(sales.ColTotal) != nil && sales.IsBlank(rec.Get(sales.ColPostingDate)), nil
}

func (DefaultPredicate) String() string {
	return "total IS NOT NULL AND (posting_date IS NULL OR TRIM(posting_date) = '')"
}

// DefaultExpression is the CEL form of DefaultPredicate.
const DefaultExpression = `has(row.total) && (!has(row.posting_date) || row.posting_date.matches('^\\s*$'))`

// CELPredicate evaluates a boolean CEL expression against the variable
// `row`, a map of the record's non-null canonical columns.
type CELPredicate struct {
	expr    string
	program cel.Program
}

// NewCELPredicate compiles expr. The expression must evaluate to bool.
func NewCELPredicate(expr string) (*CELPredicate, error) {
	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile predicate %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("predicate %q must return bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build predicate program: %w", err)
	}

	return &CELPredicate{expr: expr, program: prg}, nil
}

// Match implements RowPredicate.
func (p *CELPredicate) Match(rec sales.UnifiedRecord) (bool, error) {
	row := make(map[string]string, len(rec.Values))
	for col, v := range rec.Values {
		if v != nil {
			row[col] = *v
		}
	}

	out, _, err := p.program.Eval(map[string]any{"row": row})
	if err != nil {
		return false, fmt.Errorf("evaluate predicate on %s line %d: %w", rec.Source, rec.LineNo, err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("predicate returned %T, want bool", out.Value())
	}
	return matched, nil
}

func (p *CELPredicate) String() string {
	return p.expr
}

// NewPredicate returns the built-in predicate for an empty expression and a
// compiled CEL predicate otherwise.
func NewPredicate(expr string) (RowPredicate, error) {
	if expr == "" {
		return DefaultPredicate{}, nil
	}
	return NewCELPredicate(expr)
}
