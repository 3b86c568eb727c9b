// Package margin holds the unit margin and markdown cost formulas. The same
// functions back the grouped-row edit, the bulk edit and the per-invoice
// child edit, so displayed totals always agree with the detail rows.
package margin

import "github.com/shopspring/decimal"

var (
	hundred  = decimal.NewFromInt(100)
	minusOne = decimal.NewFromInt(-1)
)

// Unit computes the margin percentage for a unit cost and sale price:
// ((cost/price) - 1) * -1 * 100. A zero price yields a zero margin rather
// than a division error.
func Unit(cost, price decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	return cost.Div(price).Sub(decimal.NewFromInt(1)).Mul(minusOne).Mul(hundred)
}

// CostAfterMarkdown returns the average cost reduced by the markdown value.
func CostAfterMarkdown(averageCost, markdown decimal.Decimal) decimal.Decimal {
	return averageCost.Sub(markdown)
}

// AfterMarkdown computes the margin that results from applying a markdown
// to the average cost at the given sale price.
func AfterMarkdown(averageCost, markdown, price decimal.Decimal) decimal.Decimal {
	return Unit(CostAfterMarkdown(averageCost, markdown), price)
}
