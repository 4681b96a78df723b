// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"github.com/shopspring/decimal"

	"salesbi/internal/core/types"
)

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// NewListResponse never renders items as null.
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

// ErrorResponse documents the body rendered by middleware.ErrorHandler.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Money renders an amount with two fractional digits.
func Money(d decimal.Decimal) string {
	return d.StringFixed(types.MoneyScale)
}

// NullMoney renders an undefined ratio as JSON null.
func NullMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := Money(d.Decimal)
	return &s
}
