package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tokenrisk/internal/domain/token"
)

func TestVolatility(t *testing.T) {
	assert.Zero(t, Volatility([]float64{5, 5, 5, 5}))
	assert.Zero(t, Volatility(nil))
	assert.Zero(t, Volatility([]float64{0, 0}))
	assert.InDelta(t, 0.5, Volatility([]float64{1, 3}), 1e-9)
}

func TestStdDev(t *testing.T) {
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
	assert.Zero(t, StdDev(nil))
}

func TestVelocity(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	t.Run("same second floors span at one minute", func(t *testing.T) {
		transfers := make([]token.RawTransfer, 5)
		for i := range transfers {
			transfers[i] = token.RawTransfer{BlockTime: now.Unix()}
		}
		assert.InDelta(t, 5.0, Velocity(transfers, now), 1e-9)
	})

	t.Run("ten transfers over ten minutes", func(t *testing.T) {
		transfers := make([]token.RawTransfer, 10)
		for i := range transfers {
			transfers[i] = token.RawTransfer{BlockTime: now.Add(-time.Duration(i) * time.Minute).Unix()}
		}
		transfers[9].BlockTime = now.Add(-10 * time.Minute).Unix()
		assert.InDelta(t, 1.0, Velocity(transfers, now), 1e-9)
	})

	t.Run("missing block time does not stretch the span", func(t *testing.T) {
		transfers := []token.RawTransfer{{BlockTime: 0}, {BlockTime: now.Unix()}}
		v := Velocity(transfers, now)
		assert.InDelta(t, 2.0, v, 1e-9)
		assert.False(t, math.IsInf(v, 0))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Zero(t, Velocity(nil, now))
	})
}

func TestCloses(t *testing.T) {
	samples := []token.PriceSample{{Hour: 1, Close: 2}, {Hour: 2, Close: 3}}
	assert.Equal(t, []float64{2, 3}, Closes(samples))
}
