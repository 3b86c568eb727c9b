// Package grouping reduces flat demote line items into the three aggregate
// shapes the back office works with: ledger movement candidates, the
// compact by-product view and the full report view.
//
// All groupings are stable: aggregates come out in the order their key was
// first seen in the input, and an empty input yields an empty output.
package grouping

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mercantil/demote-service/internal/types"
)

const keySep = "\x1f"

// nullable key fields use a marker that cannot collide with a real value,
// so a missing condition never groups with condition 0.
const nullKey = "\x00"

func int64Key(v int64) string {
	return strconv.FormatInt(v, 10)
}

func int64PtrKey(v *int64) string {
	if v == nil {
		return nullKey
	}
	return strconv.FormatInt(*v, 10)
}

func decimalPtrKey(v *decimal.Decimal) string {
	if v == nil {
		return nullKey
	}
	return v.String()
}

// Movements groups line items by branch, supplier and typist and derives
// one ledger movement candidate per group. The movement value is the
// absolute sum of the group's markdown differences; the movement is a
// debit when that sum is strictly positive and a credit otherwise.
func Movements(items []types.LineItem) []types.LedgerMovement {
	order := make([]string, 0)
	groups := make(map[string]*types.LedgerMovement)
	sums := make(map[string]decimal.Decimal)

	for _, item := range items {
		typist := types.NormalizeTypist(item.TypistName)
		key := strings.Join([]string{
			int64Key(item.BranchID),
			int64Key(item.SupplierID),
			typist,
		}, keySep)

		mv, ok := groups[key]
		if !ok {
			mv = &types.LedgerMovement{
				BranchID:   item.BranchID,
				SupplierID: item.SupplierID,
				TypistName: typist,
			}
			groups[key] = mv
			sums[key] = decimal.Zero
			order = append(order, key)
		}
		mv.Items = append(mv.Items, item)
		sums[key] = sums[key].Add(item.MarkdownDifference)
	}

	out := make([]types.LedgerMovement, 0, len(order))
	for _, key := range order {
		mv := groups[key]
		sum := sums[key]
		if sum.IsPositive() {
			mv.MovementType = types.MovementTypeDebit
		} else {
			mv.MovementType = types.MovementTypeCredit
		}
		mv.MovementValue = sum.Abs()
		out = append(out, *mv)
	}
	return out
}

// Compact groups line items by branch, supplier and product. Only the
// markdown difference is totalled; every other field passes through from
// the first row of the group, and the constituent rows are kept as
// children.
func Compact(items []types.LineItem) []types.CompactAggregate {
	order := make([]string, 0)
	groups := make(map[string]*types.CompactAggregate)

	for _, item := range items {
		key := strings.Join([]string{
			int64Key(item.BranchID),
			item.BranchName,
			int64Key(item.SupplierID),
			item.SupplierName,
			int64Key(item.ProductID),
			item.ProductName,
		}, keySep)

		agg, ok := groups[key]
		if !ok {
			first := item
			agg = &types.CompactAggregate{LineItem: first}
			agg.MarkdownDifference = decimal.Zero
			groups[key] = agg
			order = append(order, key)
		}
		agg.MarkdownDifference = agg.MarkdownDifference.Add(item.MarkdownDifference)
		agg.Items = append(agg.Items, item)
	}

	out := make([]types.CompactAggregate, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	return out
}

// Report groups line items by branch, client state, supplier, product,
// condition and supplier balance. Quantities and monetary line totals are
// summed, per-unit values and margins are averaged over the group, and
// display names come from the first row.
func Report(items []types.LineItem) []types.ReportAggregate {
	order := make([]string, 0)
	groups := make(map[string]*types.ReportAggregate)
	counts := make(map[string]int64)

	for _, item := range items {
		key := strings.Join([]string{
			int64Key(item.BranchID),
			item.ClientState,
			int64Key(item.SupplierID),
			int64Key(item.ProductID),
			int64PtrKey(item.ConditionID),
			decimalPtrKey(item.SupplierBalance),
		}, keySep)

		agg, ok := groups[key]
		if !ok {
			first := item
			agg = &types.ReportAggregate{LineItem: first}
			groups[key] = agg
			counts[key] = 0
			order = append(order, key)
		} else {
			agg.Quantity = agg.Quantity.Add(item.Quantity)
			agg.SalePrice = agg.SalePrice.Add(item.SalePrice)
			agg.ProductCost = agg.ProductCost.Add(item.ProductCost)
			agg.AverageCost = agg.AverageCost.Add(item.AverageCost)
			agg.MarkdownValue = agg.MarkdownValue.Add(item.MarkdownValue)
			agg.MarkdownCost = agg.MarkdownCost.Add(item.MarkdownCost)

			agg.SalePriceUnit = agg.SalePriceUnit.Add(item.SalePriceUnit)
			agg.ProductCostUnit = agg.ProductCostUnit.Add(item.ProductCostUnit)
			agg.AverageCostUnit = agg.AverageCostUnit.Add(item.AverageCostUnit)
			agg.MarkdownValueUnit = agg.MarkdownValueUnit.Add(item.MarkdownValueUnit)
			agg.MarkdownCostUnit = agg.MarkdownCostUnit.Add(item.MarkdownCostUnit)
			agg.CurrentMargin = agg.CurrentMargin.Add(item.CurrentMargin)
			agg.NewMargin = agg.NewMargin.Add(item.NewMargin)
		}
		counts[key]++
		agg.Items = append(agg.Items, item)
	}

	out := make([]types.ReportAggregate, 0, len(order))
	for _, key := range order {
		agg := groups[key]
		n := decimal.NewFromInt(counts[key])

		agg.SalePriceUnit = agg.SalePriceUnit.Div(n)
		agg.ProductCostUnit = agg.ProductCostUnit.Div(n)
		agg.AverageCostUnit = agg.AverageCostUnit.Div(n)
		agg.MarkdownValueUnit = agg.MarkdownValueUnit.Div(n)
		agg.MarkdownCostUnit = agg.MarkdownCostUnit.Div(n)
		agg.CurrentMargin = agg.CurrentMargin.Div(n)
		agg.NewMargin = agg.NewMargin.Div(n)

		out = append(out, *agg)
	}
	return out
}
