package analytics

import (
	"sort"

	"tokenrisk/internal/domain/token"
)

// Gini returns the Gini coefficient of the balances, clamped to [0,1].
// Empty or all-zero input yields 0.
func Gini(balances []float64) float64 {
	n := len(balances)
	if n == 0 {
		return 0
	}

	sorted := append([]float64(nil), balances...)
	sort.Float64s(sorted)

	total, cum := 0.0, 0.0
	for i, b := range sorted {
		total += b
		cum += b * float64(i+1)
	}
	if total == 0 {
		return 0
	}

	nf := float64(n)
	gini := (2*cum)/(nf*total) - (nf+1)/nf
	return clamp(gini, 0, 1)
}

// Balances extracts the balance column
func Balances(holders []token.HolderBalance) []float64 {
	out := make([]float64, len(holders))
	for i, h := range holders {
		out[i] = h.Balance
	}
	return out
}

// HolderStats describes a holder distribution
type HolderStats struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"` // population variance
	Gini     float64 `json:"gini"`
}

// DescribeHolders computes count, mean, variance and Gini of the balances
func DescribeHolders(holders []token.HolderBalance) HolderStats {
	balances := Balances(holders)
	return HolderStats{
		Count:    len(balances),
		Mean:     mean(balances),
		Variance: populationVariance(balances),
		Gini:     Gini(balances),
	}
}

// TopHolderShare returns the fraction of supply held by the n largest holders, in [0,1].
// A non-positive supply yields 0.
func TopHolderShare(holders []token.HolderBalance, n int, supply float64) float64 {
	if supply <= 0 || n <= 0 || len(holders) == 0 {
		return 0
	}
	balances := Balances(holders)
	sort.Sort(sort.Reverse(sort.Float64Slice(balances)))
	if n > len(balances) {
		n = len(balances)
	}
	held := 0.0
	for _, b := range balances[:n] {
		held += b
	}
	return clamp(held/supply, 0, 1)
}
