package domain

import "github.com/shopspring/decimal"

var oneHundred = decimal.NewFromInt(100)

// Percent returns part/whole expressed as a percentage, or zero when the
// denominator is not positive. This is the division-guard convention used
// everywhere percentages are computed in this system; no unguarded division
// by a potentially-zero denominator is permitted in the analytics path.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return part.Div(whole).Mul(oneHundred)
}

// Ratio returns part/whole as a fraction with the same zero-denominator guard
func Ratio(part, whole decimal.Decimal) decimal.Decimal {
	if whole.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return part.Div(whole)
}

// PortfolioState holds the derived per-asset position after replaying the
// simulated schedule and the manual ledger. It is recomputed on each request,
// never stored.
type PortfolioState struct {
	Held        decimal.Decimal // asset units held
	InvestedUSD decimal.Decimal // cumulative net cost basis
}
