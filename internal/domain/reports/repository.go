package reports

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines report data access interface.
// Implemented in memory over one run's labeled lines and in PostgreSQL over
// persisted runs; both must return identical results for the same lines.
type Repository interface {
	GetTotals(ctx context.Context, filter Filter) (*GrandTotals, error)
	GetMonthly(ctx context.Context, filter Filter) ([]MonthlyRevenue, error)

	// Group breakdowns, ordered by revenue descending
	GetBranches(ctx context.Context, filter Filter) ([]GroupBreakdown, error)
	GetCategories(ctx context.Context, filter Filter) ([]GroupBreakdown, error)

	// Invoice level; ranking honours filter.TopN
	GetInvoiceRanking(ctx context.Context, filter Filter) ([]InvoiceRevenue, error)
	GetInvoiceShare(ctx context.Context, filter Filter) ([]InvoiceRevenue, error)
	GetDistribution(ctx context.Context, filter Filter, edges []decimal.Decimal) ([]DistributionBucket, error)
}
