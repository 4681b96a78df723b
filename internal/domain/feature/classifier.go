// Package feature derives the item category of each cleaned sales line.
package feature

import (
	"fmt"
	"strings"

	"salesbi/internal/domain/sales"
)

// Rule maps item groups containing Contains (case-insensitive) to Category.
type Rule struct {
	Contains string         `yaml:"contains" json:"contains" validate:"required"`
	Category sales.Category `yaml:"category" json:"category" validate:"required,oneof=Service SparePart"`
}

// DefaultRules classify labour and service groups as Service.
var DefaultRules = []Rule{
	{Contains: "labour", Category: sales.CategoryService},
	{Contains: "service", Category: sales.CategoryService},
}

// Classifier applies an ordered rule table; the first matching rule wins and
// anything unmatched, including a missing item group, is a spare part.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier. An empty table selects DefaultRules.
func NewClassifier(rules []Rule) (*Classifier, error) {
	if len(rules) == 0 {
		rules = DefaultRules
	}

	normalized := make([]Rule, 0, len(rules))
	for i, r := range rules {
		pattern := strings.ToLower(strings.TrimSpace(r.Contains))
		if pattern == "" {
			return nil, fmt.Errorf("rule %d: empty pattern", i)
		}
		if !r.Category.Valid() {
			return nil, fmt.Errorf("rule %d: unknown category %q", i, r.Category)
		}
		normalized = append(normalized, Rule{Contains: pattern, Category: r.Category})
	}

	return &Classifier{rules: normalized}, nil
}

// Rules returns a copy of the normalized rule table.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns the category of one item group.
func (c *Classifier) Classify(itemGroup *string) sales.Category {
	if itemGroup == nil {
		return sales.CategorySparePart
	}
	group := strings.ToLower(*itemGroup)
	for _, r := range c.rules {
		if strings.Contains(group, r.Contains) {
			return r.Category
		}
	}
	return sales.CategorySparePart
}

// Derive attaches a category to every record. The input is not modified.
func (c *Classifier) Derive(records []sales.CleanedRecord) []sales.LabeledRecord {
	out := make([]sales.LabeledRecord, len(records))
	for i, rec := range records {
		out[i] = sales.LabeledRecord{
			CleanedRecord: rec,
			ItemCategory:  c.Classify(rec.ItemGroup),
		}
	}
	return out
}
