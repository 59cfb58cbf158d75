package analytics

import "tokenrisk/internal/domain/token"

// VWAP returns the volume-weighted average price, or 0 without volume
func VWAP(trades []token.TradeTick) float64 {
	var pv, vol float64
	for _, t := range trades {
		pv += t.Price * t.Size
		vol += t.Size
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}

// SMAPrice averages the price of the last window trades
func SMAPrice(trades []token.TradeTick, window int) float64 {
	if window <= 0 || len(trades) == 0 {
		return 0
	}
	if window > len(trades) {
		window = len(trades)
	}
	sum := 0.0
	for _, t := range trades[len(trades)-window:] {
		sum += t.Price
	}
	return sum / float64(window)
}

// ArbitrageSpread is VWAP(a) - VWAP(b) rounded to 6 decimals
func ArbitrageSpread(a, b []token.TradeTick) float64 {
	return Round(VWAP(a)-VWAP(b), 6)
}
