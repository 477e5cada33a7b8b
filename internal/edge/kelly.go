package edge

import "github.com/shopspring/decimal"

// KellyFraction returns the full-Kelly bankroll fraction f* = (b·p − q)/b
// for a wager with the given edge at a decimal price.
func KellyFraction(edge, price float64) float64 {
	b := price - 1.0
	if b <= 0 {
		return 0
	}
	p := (edge + 1.0) / price
	q := 1.0 - p
	return (b*p - q) / b
}

// Stake sizes a wager: fractional Kelly of bankroll, scaled by multiplier
// and clamped to the max-percent-of-bankroll ceiling. Rounded to cents.
func Stake(edge, price, fraction, bankroll, maxPct, multiplier float64) float64 {
	f := KellyFraction(edge, price)
	if f <= 0 {
		return 0
	}
	stake := f * fraction * bankroll * multiplier
	if ceiling := maxPct * bankroll; stake > ceiling {
		stake = ceiling
	}
	return roundCents(stake)
}

func roundCents(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
