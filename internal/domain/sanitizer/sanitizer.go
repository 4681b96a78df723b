// Package sanitizer removes non-transactional rows from the unified relation
// and coerces its text fields into typed values.
package sanitizer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salesbi/internal/core/apperror"
	"salesbi/internal/core/types"
	"salesbi/internal/domain/sales"
)

// DateLayout is the only accepted posting-date format.
const DateLayout = "2006-01-02"

// AnomalyPolicy selects what happens to rows with unparsable values.
type AnomalyPolicy string

const (
	// PolicyHalt stops the stage with UNPARSABLE_VALUE for manual review.
	PolicyHalt AnomalyPolicy = "halt"
	// PolicyQuarantine sets anomalous rows aside and continues.
	PolicyQuarantine AnomalyPolicy = "quarantine"
)

// Anomaly is one value that could not be coerced.
type Anomaly struct {
	Source string  `json:"source"`
	LineNo int     `json:"lineNo"`
	Column string  `json:"column"`
	Value  *string `json:"value"`
	Reason string  `json:"reason"`
}

// ColumnCompleteness reports how many kept rows carry a value for a column.
type ColumnCompleteness struct {
	Column  string              `json:"column"`
	Present int                 `json:"present"`
	Total   int                 `json:"total"`
	Percent decimal.NullDecimal `json:"percent"`
}

// Result holds the typed rows plus everything that was set aside.
type Result struct {
	InputCount   int
	Cleaned      []sales.CleanedRecord
	Removed      []sales.UnifiedRecord
	Quarantined  []sales.UnifiedRecord
	Anomalies    []Anomaly
	Completeness []ColumnCompleteness
}

// AnomalyCounts returns the number of anomalies per column.
func (r *Result) AnomalyCounts() map[string]int {
	counts := make(map[string]int)
	for _, a := range r.Anomalies {
		counts[a.Column]++
	}
	return counts
}

// Config configures a Sanitizer.
type Config struct {
	Predicate RowPredicate
	Policy    AnomalyPolicy
}

// Sanitizer is stateless; one instance may be reused across runs.
type Sanitizer struct {
	predicate RowPredicate
	policy    AnomalyPolicy
}

// New creates a Sanitizer, defaulting to the built-in predicate and PolicyHalt.
func New(cfg Config) *Sanitizer {
	if cfg.Predicate == nil {
		cfg.Predicate = DefaultPredicate{}
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyHalt
	}
	return &Sanitizer{predicate: cfg.Predicate, policy: cfg.Policy}
}

// Predicate returns the configured non-transactional predicate.
func (s *Sanitizer) Predicate() RowPredicate { return s.predicate }

// Policy returns the configured anomaly policy.
func (s *Sanitizer) Policy() AnomalyPolicy { return s.policy }

// RemoveNonTransactional splits records into kept and removed rows.
// Applying it to its own kept output removes nothing.
func (s *Sanitizer) RemoveNonTransactional(records []sales.UnifiedRecord) (kept, removed []sales.UnifiedRecord, err error) {
	kept = make([]sales.UnifiedRecord, 0, len(records))
	for _, rec := range records {
		match, err := s.predicate.Match(rec)
		if err != nil {
			return nil, nil, apperror.NewValidation("non-transactional predicate failed").
				WithDetail("predicate", s.predicate.String()).
				WithCause(err)
		}
		if match {
			removed = append(removed, rec)
			continue
		}
		kept = append(kept, rec)
	}
	return kept, removed, nil
}

// Sanitize removes non-transactional rows and coerces the rest.
// Under PolicyHalt any anomaly yields UNPARSABLE_VALUE together with the
// result, so the caller can report exactly what failed.
func (s *Sanitizer) Sanitize(records []sales.UnifiedRecord) (*Result, error) {
	kept, removed, err := s.RemoveNonTransactional(records)
	if err != nil {
		return nil, err
	}

	res := &Result{
		InputCount: len(records),
		Removed:    removed,
		Cleaned:    make([]sales.CleanedRecord, 0, len(kept)),
	}

	for _, rec := range kept {
		cleaned, anomalies := coerce(rec)
		if len(anomalies) > 0 {
			res.Anomalies = append(res.Anomalies, anomalies...)
			res.Quarantined = append(res.Quarantined, rec)
			continue
		}
		res.Cleaned = append(res.Cleaned, cleaned)
	}

	res.Completeness = completeness(kept)

	if len(res.Anomalies) > 0 && s.policy == PolicyHalt {
		return res, apperror.NewUnparsableValue(len(res.Anomalies), res.AnomalyCounts()).
			WithDetail("rows", len(res.Quarantined))
	}
	return res, nil
}

// coercer accumulates anomalies while converting one record.
type coercer struct {
	rec       sales.UnifiedRecord
	anomalies []Anomaly
}

func (c *coercer) fail(col, reason string) {
	c.anomalies = append(c.anomalies, Anomaly{
		Source: c.rec.Source,
		LineNo: c.rec.LineNo,
		Column: col,
		Value:  c.rec.Get(col),
		Reason: reason,
	})
}

func (c *coercer) date(col string) time.Time {
	v := c.rec.Get(col)
	if sales.IsBlank(v) {
		c.fail(col, "missing date")
		return time.Time{}
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(*v))
	if err != nil {
		c.fail(col, fmt.Sprintf("not a %s date", "YYYY-MM-DD"))
		return time.Time{}
	}
	return t
}

// required parses a mandatory fixed-point value.
func (c *coercer) required(col string, p types.Precision) decimal.Decimal {
	v := c.rec.Get(col)
	if sales.IsBlank(v) {
		c.fail(col, "missing value")
		return decimal.Zero
	}
	d, err := types.ParseFixed(*v, p)
	if err != nil {
		c.fail(col, err.Error())
		return decimal.Zero
	}
	return d
}

// zeroDefault parses a value whose blank form means zero.
func (c *coercer) zeroDefault(col string, p types.Precision) decimal.Decimal {
	if sales.IsBlank(c.rec.Get(col)) {
		return decimal.Zero
	}
	return c.required(col, p)
}

// optional parses a nullable value; blank stays null.
func (c *coercer) optional(col string, p types.Precision) decimal.NullDecimal {
	v := c.rec.Get(col)
	if sales.IsBlank(v) {
		return decimal.NullDecimal{}
	}
	d, err := types.ParseFixed(*v, p)
	if err != nil {
		c.fail(col, err.Error())
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func coerce(rec sales.UnifiedRecord) (sales.CleanedRecord, []Anomaly) {
	c := &coercer{rec: rec}

	out := sales.CleanedRecord{
		Source: rec.Source,
		LineNo: rec.LineNo,
		Ref:    rec.Ref,

		Branch:            rec.Get(sales.ColBranch),
		TechnicianName:    rec.Get(sales.ColTechnicianName),
		VehicleType:       rec.Get(sales.ColVehicleType),
		ItemCode:          rec.Get(sales.ColItemCode),
		ItemName:          rec.Get(sales.ColItemName),
		ItemGroup:         rec.Get(sales.ColItemGroup),
		Description:       rec.Get(sales.ColDescription),
		InvoiceID:         rec.Get(sales.ColInvoiceID),
		CustomerGroup:     rec.Get(sales.ColCustomerGroup),
		CustomerID:        rec.Get(sales.ColCustomerID),
		CustomerName:      rec.Get(sales.ColCustomerName),
		ReceivableAccount: rec.Get(sales.ColReceivableAccount),
		Company:           rec.Get(sales.ColCompany),
		IncomeAccount:     rec.Get(sales.ColIncomeAccount),
		CostCenter:        rec.Get(sales.ColCostCenter),
		PaymentMode:       rec.Get(sales.ColPaymentMode),
		StockUOM:          rec.Get(sales.ColStockUOM),

		PostingDate: c.date(sales.ColPostingDate),

		StockQty:   c.optional(sales.ColStockQty, types.Measure),
		CGSTRate:   c.optional(sales.ColCGSTRate, types.Measure),
		CGSTAmount: c.optional(sales.ColCGSTAmount, types.Amount),
		SGSTRate:   c.optional(sales.ColSGSTRate, types.Measure),
		SGSTAmount: c.optional(sales.ColSGSTAmount, types.Amount),

		Rate:         c.required(sales.ColRate, types.Rate),
		Amount:       c.required(sales.ColAmount, types.Amount),
		TotalTax:     c.required(sales.ColTotalTax, types.Amount),
		OtherCharges: c.zeroDefault(sales.ColOtherCharges, types.Amount),
		Total:        c.required(sales.ColTotal, types.Amount),
	}

	return out, c.anomalies
}

func completeness(records []sales.UnifiedRecord) []ColumnCompleteness {
	present := make(map[string]int, len(sales.CanonicalColumns))
	for _, rec := range records {
		for _, col := range sales.CanonicalColumns {
			if !sales.IsBlank(rec.Get(col)) {
				present[col]++
			}
		}
	}

	out := make([]ColumnCompleteness, 0, len(sales.CanonicalColumns))
	for _, col := range sales.CanonicalColumns {
		out = append(out, ColumnCompleteness{
			Column:  col,
			Present: present[col],
			Total:   len(records),
			Percent: types.Percent(decimal.NewFromInt(int64(present[col])), decimal.NewFromInt(int64(len(records)))),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Present < out[j].Present
	})
	return out
}
