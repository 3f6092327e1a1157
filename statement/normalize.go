/*
normalize.go - Price table and crate normalization

PURPOSE:
  Converts raw per-category purchase counts into a single normalized
  "crate" figure, and owns the per-run price table the statement's price
  tokens render from.

PRICE TABLE:
  Built from the distinct unit prices observed on the run's purchase
  rows - historical prices, never the current catalogue. A name sold at
  more than one price keeps ALL its prices; they render as a
  slash-separated set. A run with no purchases at all falls back to the
  configured default table.

CRATE CONVERSION:
  crate = count(base) + Σ (price(secondary) / price(base)) × count(secondary)

  applied for each configured secondary category that appears in the
  member's counts. When a name has several prices the smallest is used
  for the ratio, which keeps the conversion deterministic. A zero or
  missing base price cannot be normalized and is fatal for the run.
*/
package statement

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/klubkasse/statement-engine/ledger"
)

// =============================================================================
// PRICE TABLE
// =============================================================================

// PriceTable maps a category name to its distinct unit prices this run,
// sorted ascending.
type PriceTable map[string][]decimal.Decimal

// BuildPriceTable groups observed prices by name. When the run has no
// purchases at all, the default table is substituted.
func BuildPriceTable(observed, defaults []ledger.CategoryPrice) PriceTable {
	if len(observed) == 0 {
		observed = defaults
	}
	table := make(PriceTable)
	for _, cp := range observed {
		table[cp.Name] = append(table[cp.Name], cp.UnitPrice)
	}
	for name, prices := range table {
		sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })
		distinct := prices[:0]
		for i, p := range prices {
			if i == 0 || !p.Equal(prices[i-1]) {
				distinct = append(distinct, p)
			}
		}
		table[name] = distinct
	}
	return table
}

// Prices returns the distinct prices for a name, empty when unknown.
func (pt PriceTable) Prices(name string) []decimal.Decimal {
	return pt[name]
}

// ratio returns price(name) / price(base) using the smallest observed
// price on each side.
func (pt PriceTable) ratio(member ledger.MemberID, name, base string) (decimal.Decimal, error) {
	numerator, ok := pt.first(name)
	if !ok {
		return decimal.Zero, &ledger.ComputationError{
			Member:   member,
			Category: name,
			Reason:   "no price observed for purchased category",
		}
	}
	denominator, ok := pt.first(base)
	if !ok {
		return decimal.Zero, &ledger.ComputationError{
			Member:   member,
			Category: base,
			Reason:   "no price for the base crate category",
		}
	}
	if denominator.IsZero() {
		return decimal.Zero, &ledger.ComputationError{
			Member:   member,
			Category: base,
			Reason:   "base crate category priced at zero",
		}
	}
	return numerator.Div(denominator), nil
}

func (pt PriceTable) first(name string) (decimal.Decimal, bool) {
	prices := pt[name]
	if len(prices) == 0 {
		return decimal.Zero, false
	}
	return prices[0], true
}

// =============================================================================
// CRATE NORMALIZATION
// =============================================================================

// NormalizeCrates folds a member's per-category counts into the crate
// unit. Secondary categories the member never touched are skipped; a
// secondary that appears (even with count zero) requires a valid ratio.
func NormalizeCrates(member ledger.MemberID, counts map[string]decimal.Decimal, pt PriceTable, cfg CrateConfig) (decimal.Decimal, error) {
	total := counts[cfg.Base]
	for _, secondary := range cfg.Secondaries {
		count, ok := counts[secondary]
		if !ok {
			continue
		}
		r, err := pt.ratio(member, secondary, cfg.Base)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(r.Mul(count))
	}
	return total, nil
}
