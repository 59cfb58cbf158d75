package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tokenrisk/internal/domain/token"
)

func TestGini(t *testing.T) {
	tests := []struct {
		name     string
		balances []float64
		want     float64
	}{
		{"equal balances", []float64{10, 10, 10, 10}, 0},
		{"one holder owns everything", []float64{0, 0, 0, 100}, 0.75},
		{"unsorted input", []float64{100, 0, 0, 0}, 0.75},
		{"empty", nil, 0},
		{"all zero", []float64{0, 0, 0}, 0},
		{"single holder", []float64{42}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Gini(tt.balances)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestGini_DoesNotReorderInput(t *testing.T) {
	balances := []float64{3, 1, 2}
	Gini(balances)
	assert.Equal(t, []float64{3, 1, 2}, balances)
}

func TestDescribeHolders(t *testing.T) {
	holders := []token.HolderBalance{
		{Owner: "a", Balance: 1},
		{Owner: "b", Balance: 2},
		{Owner: "c", Balance: 3},
		{Owner: "d", Balance: 4},
	}

	stats := DescribeHolders(holders)
	assert.Equal(t, 4, stats.Count)
	assert.InDelta(t, 2.5, stats.Mean, 1e-9)
	assert.InDelta(t, 1.25, stats.Variance, 1e-9)
	assert.InDelta(t, 0.25, stats.Gini, 1e-9)

	assert.Equal(t, HolderStats{}, DescribeHolders(nil))
}

func TestTopHolderShare(t *testing.T) {
	holders := []token.HolderBalance{
		{Owner: "a", Balance: 10},
		{Owner: "b", Balance: 50},
		{Owner: "c", Balance: 40},
	}

	assert.InDelta(t, 0.45, TopHolderShare(holders, 2, 200), 1e-9)
	assert.InDelta(t, 0.5, TopHolderShare(holders, 10, 200), 1e-9)
	assert.Equal(t, 1.0, TopHolderShare(holders, 3, 50))
	assert.Zero(t, TopHolderShare(holders, 2, 0))
	assert.Zero(t, TopHolderShare(nil, 2, 100))
}
