// Package bestoffer reduces a procurement's vendor offer ledger to a single
// winning vendor and a profit figure. All computation here is pure and
// deterministic: the same inputs, in any order, produce the same result.
//
// Two distinct per-item price rules coexist and must not be merged:
//
//   - final-round: the price from the highest negotiation round wins,
//     whether or not it is lower than earlier rounds. This is the rule the
//     approval pipeline uses to decide the extra sign-off tier.
//   - lowest-price: the minimum price across rounds wins, ties broken toward
//     the later round. Used by the lowest-price-by-round report.
package bestoffer

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/armada-ops/be-proc-approvals/internal/errors"
)

// OfferLine is one vendor price submission for a line item in one round.
type OfferLine struct {
	VendorID   string
	LineItemID string
	Round      int
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	TripFactor decimal.Decimal
}

// RevenueLine carries the tariff inputs for one procurement line item.
type RevenueLine struct {
	BaseTariff decimal.Decimal
	AddTariff  decimal.Decimal
	KmFactor   decimal.Decimal
	Quantity   decimal.Decimal
}

// Result is the winning vendor with its aggregate and per-item totals.
type Result struct {
	VendorID    string
	Total       decimal.Decimal
	PerLineItem map[string]decimal.Decimal
}

// ProfitSummary compares total revenue against the winning vendor cost.
type ProfitSummary struct {
	Revenue       decimal.Decimal
	Cost          decimal.Decimal
	Profit        decimal.Decimal
	ProfitPercent decimal.Decimal
}

// priceRule selects the effective offer among all rounds a vendor submitted
// for one line item. Lines are guaranteed non-empty.
type priceRule func(lines []OfferLine) OfferLine

// finalRound picks the offer from the highest round number.
func finalRound(lines []OfferLine) OfferLine {
	best := lines[0]
	for _, l := range lines[1:] {
		if l.Round > best.Round {
			best = l
		}
	}
	return best
}

// lowestPrice picks the minimum price, preferring the later round on ties.
func lowestPrice(lines []OfferLine) OfferLine {
	best := lines[0]
	for _, l := range lines[1:] {
		switch l.Price.Cmp(best.Price) {
		case -1:
			best = l
		case 0:
			if l.Round > best.Round {
				best = l
			}
		}
	}
	return best
}

// lineTotal is price × quantity × max(tripFactor, 1).
func lineTotal(l OfferLine) decimal.Decimal {
	trip := l.TripFactor
	if trip.LessThan(decimal.NewFromInt(1)) {
		trip = decimal.NewFromInt(1)
	}
	return l.Price.Mul(l.Quantity).Mul(trip)
}

// selectBest applies a price rule per (vendor, item), disqualifies vendors
// missing any required item, and returns the vendor with the lowest total.
// Equal totals break toward the lexicographically smaller vendor ID so the
// selection stays deterministic regardless of input order.
func selectBest(lines []OfferLine, requiredItemIDs []string, rule priceRule) (*Result, error) {
	// Group by vendor, then line item.
	byVendor := make(map[string]map[string][]OfferLine)
	for _, l := range lines {
		items, ok := byVendor[l.VendorID]
		if !ok {
			items = make(map[string][]OfferLine)
			byVendor[l.VendorID] = items
		}
		items[l.LineItemID] = append(items[l.LineItemID], l)
	}

	vendors := make([]string, 0, len(byVendor))
	for v := range byVendor {
		vendors = append(vendors, v)
	}
	sort.Strings(vendors)

	var winner *Result
	for _, vendorID := range vendors {
		items := byVendor[vendorID]

		perItem := make(map[string]decimal.Decimal, len(requiredItemIDs))
		total := decimal.Zero
		qualified := true
		for _, itemID := range requiredItemIDs {
			offers := items[itemID]
			if len(offers) == 0 {
				qualified = false
				break
			}
			t := lineTotal(rule(offers))
			perItem[itemID] = t
			total = total.Add(t)
		}
		if !qualified {
			continue
		}

		if winner == nil || total.LessThan(winner.Total) {
			winner = &Result{VendorID: vendorID, Total: total, PerLineItem: perItem}
		}
	}

	if winner == nil {
		return nil, errors.New(errors.ErrCodeNoCompleteOffer,
			"no vendor priced every required line item")
	}
	return winner, nil
}

// SelectBestVendor picks the winning vendor using the final-round rule.
// This is the selection the gate flow generator consults for the extra-tier
// decision.
func SelectBestVendor(lines []OfferLine, requiredItemIDs []string) (*Result, error) {
	return selectBest(lines, requiredItemIDs, finalRound)
}

// SelectBestVendorLowestPrice picks the winning vendor using the
// lowest-price-by-round rule. Report-only; never feeds the extra-tier check.
func SelectBestVendorLowestPrice(lines []OfferLine, requiredItemIDs []string) (*Result, error) {
	return selectBest(lines, requiredItemIDs, lowestPrice)
}

// Revenue totals (baseTariff + addTariff × kmFactor) × quantity across items.
func Revenue(items []RevenueLine) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		unit := it.BaseTariff.Add(it.AddTariff.Mul(it.KmFactor))
		total = total.Add(unit.Mul(it.Quantity))
	}
	return total
}

// ProfitOf derives the profit summary from revenue and winning cost.
// ProfitPercent is zero when revenue is zero.
func ProfitOf(revenue, cost decimal.Decimal) ProfitSummary {
	profit := revenue.Sub(cost)
	percent := decimal.Zero
	if !revenue.IsZero() {
		percent = profit.Div(revenue).Mul(decimal.NewFromInt(100))
	}
	return ProfitSummary{
		Revenue:       revenue,
		Cost:          cost,
		Profit:        profit,
		ProfitPercent: percent,
	}
}
