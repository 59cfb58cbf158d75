package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tokenrisk/internal/domain/token"
)

func TestTradeAverages(t *testing.T) {
	a := []token.TradeTick{{Price: 10, Size: 1}, {Price: 20, Size: 3}}
	b := []token.TradeTick{{Price: 10, Size: 1}}

	assert.InDelta(t, 17.5, VWAP(a), 1e-9)
	assert.Zero(t, VWAP(nil))
	assert.Zero(t, VWAP([]token.TradeTick{{Price: 10, Size: 0}}))

	assert.Equal(t, 7.5, ArbitrageSpread(a, b))
	assert.Equal(t, -7.5, ArbitrageSpread(b, a))

	prices := []token.TradeTick{{Price: 1}, {Price: 2}, {Price: 3}}
	assert.InDelta(t, 2.5, SMAPrice(prices, 2), 1e-9)
	assert.InDelta(t, 2.0, SMAPrice(prices, 20), 1e-9)
	assert.Zero(t, SMAPrice(nil, 20))
}
