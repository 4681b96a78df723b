package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Numeric converts a decimal into a value pgx can send over COPY in binary form.
func Numeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("convert %s to numeric: %w", d, err)
	}
	return n, nil
}

// NullNumeric converts a nullable decimal; invalid values become SQL NULL.
func NullNumeric(d decimal.NullDecimal) (pgtype.Numeric, error) {
	if !d.Valid {
		return pgtype.Numeric{}, nil
	}
	return Numeric(d.Decimal)
}
