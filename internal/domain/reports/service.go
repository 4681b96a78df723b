package reports

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Service provides report generation operations.
type Service struct {
	repo  Repository
	edges []decimal.Decimal
}

// NewService creates a new reports service. Empty edges select DefaultBucketEdges.
func NewService(repo Repository, edges []decimal.Decimal) *Service {
	if len(edges) == 0 {
		edges = DefaultBucketEdges
	}
	sorted := make([]decimal.Decimal, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	return &Service{repo: repo, edges: sorted}
}

// GetTotals returns grand totals.
func (s *Service) GetTotals(ctx context.Context, filter Filter) (*GrandTotals, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	totals, err := s.repo.GetTotals(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get totals: %w", err)
	}
	return totals, nil
}

// GetMonthly returns revenue per month in chronological order.
func (s *Service) GetMonthly(ctx context.Context, filter Filter) ([]MonthlyRevenue, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.repo.GetMonthly(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get monthly revenue: %w", err)
	}
	return rows, nil
}

// GetBranches returns the branch breakdown.
func (s *Service) GetBranches(ctx context.Context, filter Filter) ([]GroupBreakdown, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.repo.GetBranches(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get branch breakdown: %w", err)
	}
	return rows, nil
}

// GetCategories returns the category breakdown with revenue share.
func (s *Service) GetCategories(ctx context.Context, filter Filter) ([]GroupBreakdown, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.repo.GetCategories(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get category breakdown: %w", err)
	}
	return rows, nil
}

// GetTopInvoices returns the top-N invoices by revenue (DefaultTopN when unset).
func (s *Service) GetTopInvoices(ctx context.Context, filter Filter) ([]InvoiceRevenue, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if filter.TopN == 0 {
		filter.TopN = DefaultTopN
	}
	if filter.TopN > MaxTopN {
		filter.TopN = MaxTopN
	}
	rows, err := s.repo.GetInvoiceRanking(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get invoice ranking: %w", err)
	}
	return rows, nil
}

// GetAllInvoices enumerates every invoice by revenue.
func (s *Service) GetAllInvoices(ctx context.Context, filter Filter) ([]InvoiceRevenue, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	filter.TopN = 0
	rows, err := s.repo.GetInvoiceRanking(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get invoice ranking: %w", err)
	}
	return rows, nil
}

// GetInvoiceShare returns each invoice's share of the grand total.
func (s *Service) GetInvoiceShare(ctx context.Context, filter Filter) ([]InvoiceRevenue, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.repo.GetInvoiceShare(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get invoice share: %w", err)
	}
	return rows, nil
}

// GetDistribution returns the invoice value distribution.
func (s *Service) GetDistribution(ctx context.Context, filter Filter) ([]DistributionBucket, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.repo.GetDistribution(ctx, filter, s.edges)
	if err != nil {
		return nil, fmt.Errorf("get invoice distribution: %w", err)
	}
	return rows, nil
}

// Build computes every report for the filter.
func (s *Service) Build(ctx context.Context, filter Filter) (*Report, error) {
	var (
		report Report
		err    error
	)

	totals, err := s.GetTotals(ctx, filter)
	if err != nil {
		return nil, err
	}
	report.Totals = *totals

	if report.Monthly, err = s.GetMonthly(ctx, filter); err != nil {
		return nil, err
	}
	if report.Branches, err = s.GetBranches(ctx, filter); err != nil {
		return nil, err
	}
	if report.Categories, err = s.GetCategories(ctx, filter); err != nil {
		return nil, err
	}
	if report.TopInvoices, err = s.GetTopInvoices(ctx, filter); err != nil {
		return nil, err
	}
	if report.InvoiceShare, err = s.GetInvoiceShare(ctx, filter); err != nil {
		return nil, err
	}
	if report.Distribution, err = s.GetDistribution(ctx, filter); err != nil {
		return nil, err
	}

	return &report, nil
}
