// Package reconcile diffs the supplier feed against the live catalog. It is
// a pure pass over two in-memory snapshots: no I/O, no persistence. Staged
// updates are applied by the caller through the catalog batch writers.
package reconcile

import (
	"github.com/puntogamer/gamestore/internal/catalog"
	"github.com/puntogamer/gamestore/internal/pricing"
	"github.com/puntogamer/gamestore/internal/sheet"
)

// ForeignCostThreshold drives the currency guess for feed rows: the feed
// carries no currency column, so a cost below this value is read as USD and
// anything at or above it as pesos. Kept at the historical value for
// behavioral compatibility; a USD cost of 2000 or more would be
// misclassified, the real fix is an explicit currency column in the feed.
const ForeignCostThreshold = 2000

// Candidate is a feed row with no catalog counterpart: a creation candidate
// for bulk import. CostPrice is 0 when the price text did not parse; the raw
// text is preserved so an operator can correct it.
type Candidate struct {
	SKU       string
	Name      string
	CostPrice float64
	Currency  pricing.Currency
	Platform  string
	PriceText string
}

// Result classifies every catalog item and every feed row exactly once.
type Result struct {
	// Updates are staged writes: repriced matches and newly missing items.
	Updates []catalog.Update
	// Missing are feed rows absent from the catalog.
	Missing []Candidate
	// Matched counts catalog items found in the feed.
	Matched int
	// Failed counts matched rows whose price text did not parse; those
	// items keep their previous cost and price.
	Failed int
}

// InferCurrency applies the threshold heuristic to a parsed feed cost.
func InferCurrency(cost float64) pricing.Currency {
	if cost < ForeignCostThreshold {
		return pricing.CurrencyForeign
	}
	return pricing.CurrencyLocal
}

// Run reconciles the feed rows against the catalog snapshot.
//
// Matched items are repriced from the feed cost (stock forced back on).
// Items missing from the feed are marked out of stock, but only when they
// are currently in stock, so a second run over the same feed stages no
// further stock writes. Items without a sku are left alone entirely. Feed
// rows with no catalog counterpart come back as creation candidates; the
// engine never creates products or invents skus on its own.
func Run(rows []sheet.Row, items []catalog.Product, s pricing.Settings) Result {
	// First occurrence wins on duplicate identifiers.
	index := make(map[string]sheet.Row, len(rows))
	for _, row := range rows {
		if _, ok := index[row.ExternalID]; !ok {
			index[row.ExternalID] = row
		}
	}

	knownSKUs := make(map[string]bool, len(items))
	for _, item := range items {
		if item.SKU != "" {
			knownSKUs[item.SKU] = true
		}
	}

	var res Result
	for _, item := range items {
		if item.SKU == "" {
			continue
		}

		row, found := index[item.SKU]
		if !found {
			if item.Stock {
				res.Updates = append(res.Updates, catalog.Update{
					ProductID: item.ID,
					Kind:      catalog.UpdateOutOfStock,
				})
			}
			continue
		}

		res.Matched++
		cost, err := sheet.ParsePrice(row.PriceText)
		if err != nil {
			res.Failed++
			continue
		}

		currency := InferCurrency(cost)
		input := item.PricingInput()
		input.CostPrice = cost
		input.Currency = currency
		quote := pricing.Compute(input, s)

		res.Updates = append(res.Updates, catalog.Update{
			ProductID: item.ID,
			Kind:      catalog.UpdateReprice,
			CostPrice: cost,
			Currency:  currency,
			BasePrice: quote.BasePrice,
			Price:     quote.FinalPrice,
		})
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if knownSKUs[row.ExternalID] || seen[row.ExternalID] {
			continue
		}
		seen[row.ExternalID] = true

		candidate := Candidate{
			SKU:       row.ExternalID,
			Name:      row.Name,
			Platform:  sheet.GuessPlatform(row.Category),
			PriceText: row.PriceText,
		}
		if cost, err := sheet.ParsePrice(row.PriceText); err == nil {
			candidate.CostPrice = cost
			candidate.Currency = InferCurrency(cost)
		}
		res.Missing = append(res.Missing, candidate)
	}

	return res
}
