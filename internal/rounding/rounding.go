// Package rounding is the canonical normalization for every monetary and
// percentage value in the system. Fiscal filings require deterministic
// round-half-up to two decimals; banker's rounding is never acceptable.
package rounding

import "github.com/shopspring/decimal"

const currencyPlaces = 2

// Currency rounds a monetary amount to two decimal places, half away from zero.
func Currency(x decimal.Decimal) decimal.Decimal {
	return x.Round(currencyPlaces)
}

// Percentage rounds a percentage value to two decimal places, half away from zero.
func Percentage(x decimal.Decimal) decimal.Decimal {
	return x.Round(currencyPlaces)
}

// Sum adds the items at full precision and rounds the total once. Aggregating
// already-rounded partials drifts by whole cents over large rosters, so every
// total in the system must come through here.
func Sum(items []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item)
	}
	return Currency(total)
}
