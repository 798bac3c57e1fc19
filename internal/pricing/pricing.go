package pricing

import "math"

// Currency identifies the denomination of a supplier cost.
type Currency string

const (
	// CurrencyLocal is the store currency (Argentine peso).
	CurrencyLocal Currency = "ARS"
	// CurrencyForeign is the supplier currency converted via the exchange rate.
	CurrencyForeign Currency = "USD"
)

// RoundingUnit is the granularity of every displayed price, in pesos.
// Prices round UP to the next multiple, never down.
const RoundingUnit = 100.0

// Settings holds the store-wide pricing parameters shared by every
// calculation. Callers pass a snapshot; one operation never re-reads it.
type Settings struct {
	GlobalMargin    float64 // percent, used when an item has no custom margin
	VATRate         float64 // percent
	EnableVATGlobal bool    // when true, VAT applies to every computed base price
	ExchangeRate    float64 // pesos per unit of foreign currency
}

// ItemInput carries the per-item pricing fields. Optional overrides are
// pointers: nil means "not set", which is distinct from an explicit zero.
type ItemInput struct {
	CostPrice          float64
	Currency           Currency
	CustomMargin       *float64
	DiscountPercentage float64
	ManualPrice        *float64
}

// Quote is the computed price pair. BasePrice is the pre-discount "was"
// price; FinalPrice is what the customer pays. FinalPrice <= BasePrice.
type Quote struct {
	BasePrice  float64
	FinalPrice float64
}

// Compute derives the displayed prices for one item.
//
// Foreign costs are converted to pesos first. A manual price > 0 replaces
// the cost+margin computation entirely (no margin, no VAT); otherwise the
// margin (custom, falling back to global) and then VAT compound
// multiplicatively in that order. The base price is ceiling-rounded to the
// next RoundingUnit, the discount applies to that rounded base, and the
// result is ceiling-rounded again.
//
// Pure and total: malformed numeric inputs are coerced to 0 instead of
// failing, and identical inputs always yield identical output.
func Compute(item ItemInput, s Settings) Quote {
	cost := sanitize(item.CostPrice)
	if item.Currency == CurrencyForeign {
		cost *= sanitize(s.ExchangeRate)
	}

	var baseRaw float64
	if item.ManualPrice != nil && *item.ManualPrice > 0 {
		baseRaw = *item.ManualPrice
	} else {
		margin := s.GlobalMargin
		if item.CustomMargin != nil {
			margin = *item.CustomMargin
		}
		baseRaw = cost * (1 + margin/100)
		if s.EnableVATGlobal {
			baseRaw *= 1 + s.VATRate/100
		}
	}

	base := roundUp(baseRaw)
	final := base
	if d := sanitize(item.DiscountPercentage); d > 0 {
		final = roundUp(base * (1 - d/100))
	}

	return Quote{BasePrice: base, FinalPrice: final}
}

func roundUp(v float64) float64 {
	return math.Ceil(v/RoundingUnit) * RoundingUnit
}

func sanitize(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
