package analytics

import (
	"math"
	"time"

	"tokenrisk/internal/domain/token"
)

// Closes extracts close prices in sample order
func Closes(samples []token.PriceSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Close
	}
	return out
}

// Volatility returns the coefficient of variation sqrt(variance)/mean, or 0 when the mean is not positive
func Volatility(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	m := mean(prices)
	if m <= 0 {
		return 0
	}
	return math.Sqrt(populationVariance(prices)) / m
}

// StdDev returns the population standard deviation
func StdDev(prices []float64) float64 {
	return math.Sqrt(populationVariance(prices))
}

// Velocity returns transfers per minute from the earliest block time to now.
// The span is floored at one minute. Transfers without a block time count
// towards the total but do not move the earliest timestamp.
func Velocity(transfers []token.RawTransfer, now time.Time) float64 {
	if len(transfers) == 0 {
		return 0
	}

	nowSec := float64(now.UnixNano()) / float64(time.Second)
	earliest := nowSec
	for _, t := range transfers {
		if t.BlockTime > 0 && float64(t.BlockTime) < earliest {
			earliest = float64(t.BlockTime)
		}
	}

	minutes := math.Max(1, (nowSec-earliest)/60)
	return float64(len(transfers)) / minutes
}
