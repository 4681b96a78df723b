package reports

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"salesbi/internal/core/types"
	"salesbi/internal/domain/sales"
)

// MemoryRepository implements Repository over an in-memory set of labeled
// lines, typically the output of a single pipeline run.
type MemoryRepository struct {
	records []sales.LabeledRecord
}

// NewMemoryRepository creates a repository over records. The slice is not copied
// and must not be modified afterwards.
func NewMemoryRepository(records []sales.LabeledRecord) *MemoryRepository {
	return &MemoryRepository{records: records}
}

func (m *MemoryRepository) lines(filter Filter) []sales.LabeledRecord {
	out := make([]sales.LabeledRecord, 0, len(m.records))
	for _, r := range m.records {
		if filter.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// GetTotals implements Repository.
func (m *MemoryRepository) GetTotals(_ context.Context, filter Filter) (*GrandTotals, error) {
	lines := m.lines(filter)

	totals := GrandTotals{Revenue: decimal.Zero, Quantity: decimal.Zero}
	invoices := make(map[string]struct{})
	for _, r := range lines {
		totals.Lines++
		totals.Revenue = totals.Revenue.Add(r.Total)
		if r.StockQty.Valid {
			totals.Quantity = totals.Quantity.Add(r.StockQty.Decimal)
		}
		if r.InvoiceID != nil {
			invoices[*r.InvoiceID] = struct{}{}
		}
	}
	totals.Invoices = len(invoices)
	totals.AverageInvoiceValue = types.Ratio(totals.Revenue, int64(totals.Invoices))

	return &totals, nil
}

// GetMonthly implements Repository.
func (m *MemoryRepository) GetMonthly(_ context.Context, filter Filter) ([]MonthlyRevenue, error) {
	groups := group(m.lines(filter), sales.LabeledRecord.Month)

	out := make([]MonthlyRevenue, 0, len(groups))
	for _, g := range groups {
		out = append(out, MonthlyRevenue{
			Month:    g.key,
			Revenue:  g.revenue,
			Invoices: len(g.invoices),
			Lines:    g.lines,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// GetBranches implements Repository.
func (m *MemoryRepository) GetBranches(_ context.Context, filter Filter) ([]GroupBreakdown, error) {
	return breakdown(m.lines(filter), func(r sales.LabeledRecord) string {
		return r.BranchLabel
	}), nil
}

// GetCategories implements Repository.
func (m *MemoryRepository) GetCategories(_ context.Context, filter Filter) ([]GroupBreakdown, error) {
	return breakdown(m.lines(filter), func(r sales.LabeledRecord) string {
		return string(r.ItemCategory)
	}), nil
}

// GetInvoiceRanking implements Repository.
func (m *MemoryRepository) GetInvoiceRanking(_ context.Context, filter Filter) ([]InvoiceRevenue, error) {
	ranked := invoiceRevenue(m.lines(filter))
	if filter.TopN > 0 && len(ranked) > filter.TopN {
		ranked = ranked[:filter.TopN]
	}
	return ranked, nil
}

// GetInvoiceShare implements Repository.
func (m *MemoryRepository) GetInvoiceShare(_ context.Context, filter Filter) ([]InvoiceRevenue, error) {
	return invoiceRevenue(m.lines(filter)), nil
}

// GetDistribution implements Repository.
func (m *MemoryRepository) GetDistribution(_ context.Context, filter Filter, edges []decimal.Decimal) ([]DistributionBucket, error) {
	tallies := make(map[int]BucketTally)
	for _, inv := range invoiceRevenue(m.lines(filter)) {
		idx := BucketIndex(edges, inv.Revenue)
		t := tallies[idx]
		t.Index = idx
		t.Invoices++
		t.Revenue = t.Revenue.Add(inv.Revenue)
		tallies[idx] = t
	}

	list := make([]BucketTally, 0, len(tallies))
	for _, t := range tallies {
		list = append(list, t)
	}
	return BuildDistribution(edges, list), nil
}

// --- grouping helpers ---

type groupAgg struct {
	key      string
	revenue  decimal.Decimal
	lines    int
	invoices map[string]struct{}
}

// group aggregates lines by key, preserving first-seen order.
func group(lines []sales.LabeledRecord, key func(sales.LabeledRecord) string) []*groupAgg {
	index := make(map[string]*groupAgg)
	var order []*groupAgg
	for _, r := range lines {
		k := key(r)
		g, ok := index[k]
		if !ok {
			g = &groupAgg{key: k, revenue: decimal.Zero, invoices: make(map[string]struct{})}
			index[k] = g
			order = append(order, g)
		}
		g.revenue = g.revenue.Add(r.Total)
		g.lines++
		if r.InvoiceID != nil {
			g.invoices[*r.InvoiceID] = struct{}{}
		}
	}
	return order
}

func breakdown(lines []sales.LabeledRecord, key func(sales.LabeledRecord) string) []GroupBreakdown {
	groups := group(lines, key)

	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.revenue)
	}

	out := make([]GroupBreakdown, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupBreakdown{
			Key:               g.key,
			Revenue:           g.revenue,
			Invoices:          len(g.invoices),
			Lines:             g.lines,
			RevenuePerInvoice: types.Ratio(g.revenue, int64(len(g.invoices))),
			SharePct:          types.Percent(g.revenue, total),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// invoiceRevenue sums lines per invoice, ordered by revenue descending and
// invoice id ascending on ties.
func invoiceRevenue(lines []sales.LabeledRecord) []InvoiceRevenue {
	groups := group(lines, sales.LabeledRecord.Invoice)

	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.revenue)
	}

	out := make([]InvoiceRevenue, 0, len(groups))
	for _, g := range groups {
		out = append(out, InvoiceRevenue{
			InvoiceID: g.key,
			Revenue:   g.revenue,
			Lines:     g.lines,
			SharePct:  types.Percent(g.revenue, total),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].InvoiceID < out[j].InvoiceID
	})
	return out
}

// --- distribution ---

// BucketTally is the aggregate of one distribution bucket. Index follows
// PostgreSQL width_bucket over the sorted edges: 0 is below the first edge,
// i covers [edges[i-1], edges[i]) and len(edges) is open-ended.
type BucketTally struct {
	Index    int             `db:"bucket"`
	Invoices int             `db:"invoices"`
	Revenue  decimal.Decimal `db:"revenue"`
}

// BucketIndex returns the bucket index of v over sorted edges.
func BucketIndex(edges []decimal.Decimal, v decimal.Decimal) int {
	return sort.Search(len(edges), func(i int) bool { return edges[i].GreaterThan(v) })
}

// BuildDistribution expands tallies into one bucket per edge. The underflow
// bucket appears only when it holds invoices.
func BuildDistribution(edges []decimal.Decimal, tallies []BucketTally) []DistributionBucket {
	byIndex := make(map[int]BucketTally, len(tallies))
	total := decimal.Zero
	for _, t := range tallies {
		byIndex[t.Index] = t
		total = total.Add(t.Revenue)
	}

	out := make([]DistributionBucket, 0, len(edges)+1)
	for idx := 0; idx <= len(edges); idx++ {
		t, ok := byIndex[idx]
		if idx == 0 && (!ok || t.Invoices == 0) {
			continue
		}

		b := DistributionBucket{Invoices: t.Invoices, Revenue: t.Revenue}
		if idx > 0 {
			b.Lower = decimal.NewNullDecimal(edges[idx-1])
		}
		if idx < len(edges) {
			b.Upper = decimal.NewNullDecimal(edges[idx])
		}
		b.SharePct = types.Percent(t.Revenue, total)
		out = append(out, b)
	}
	return out
}
