package oddsmath

import (
	"fmt"
	"math"
)

// AmericanToDecimal converts American odds to decimal odds
// American +150 → Decimal 2.50
// American -150 → Decimal 1.67
func AmericanToDecimal(american int) (float64, error) {
	if american == 0 || (american > -100 && american < 100) {
		return 0, fmt.Errorf("invalid American odds %d: magnitude must be at least 100", american)
	}

	if american > 0 {
		return float64(american)/100.0 + 1.0, nil
	}
	return 100.0/float64(-american) + 1.0, nil
}

// DecimalToAmerican converts decimal odds to American odds
// Decimal 2.50 → American +150
// Decimal 1.67 → American -149
func DecimalToAmerican(decimal float64) (int, error) {
	if !ValidPrice(decimal) {
		return 0, fmt.Errorf("invalid decimal odds %v: must be > 1.0", decimal)
	}

	if decimal >= 2.0 {
		return int(math.Round((decimal - 1.0) * 100.0)), nil
	}
	return int(math.Round(-100.0 / (decimal - 1.0))), nil
}

// ValidPrice reports whether a decimal price can be bet and reasoned about
func ValidPrice(decimal float64) bool {
	return !math.IsNaN(decimal) && !math.IsInf(decimal, 0) && decimal > 1.0
}

// ImpliedProbability converts decimal odds to the market-implied probability
// Decimal 2.00 → 0.50
func ImpliedProbability(decimal float64) (float64, error) {
	if !ValidPrice(decimal) {
		return 0, fmt.Errorf("invalid decimal odds %v: must be > 1.0", decimal)
	}
	return 1.0 / decimal, nil
}

// Edge is the expected value per unit staked at a decimal price
// given a win probability: p × price − 1.
func Edge(probability, decimal float64) float64 {
	return probability*decimal - 1.0
}

// CLVPercent is the closing line value of a price taken at open, in percent.
// Positive when the market moved toward the bet after it was placed.
func CLVPercent(open, closing float64) (float64, error) {
	if !ValidPrice(open) || !ValidPrice(closing) {
		return 0, fmt.Errorf("invalid prices open=%v close=%v", open, closing)
	}
	return (open - closing) / open * 100.0, nil
}

// MeanPrice averages the valid decimal prices in a slice.
// ok is false when no valid price was seen.
func MeanPrice(prices []float64) (mean float64, ok bool) {
	n := 0
	for _, p := range prices {
		if ValidPrice(p) {
			mean += p
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return mean / float64(n), true
}
