package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenrisk/internal/domain/token"
)

func amounts(values ...float64) []token.RawTransfer {
	out := make([]token.RawTransfer, len(values))
	for i, v := range values {
		out[i] = token.RawTransfer{Amount: v}
	}
	return out
}

func TestDetectWhales(t *testing.T) {
	whales := DetectWhales(amounts(10, 100, 99.9, 500), 100)
	require.Len(t, whales, 2)
	assert.Equal(t, 100.0, whales[0].Amount)
	assert.Equal(t, 500.0, whales[1].Amount)

	assert.Empty(t, DetectWhales(nil, 1))
}

func TestDetectVolumeShift(t *testing.T) {
	tests := []struct {
		name      string
		transfers []token.RawTransfer
		wantOK    bool
		wantKind  ShiftKind
		wantPct   float64
	}{
		{"pump", amounts(30, 30, 10, 10), true, ShiftPump, 200},
		{"dump", amounts(5, 5, 10, 10), true, ShiftDump, -50},
		{"flat", amounts(11, 10, 10, 10), false, ShiftNone, 5},
		{"empty prior window", amounts(30, 30), false, ShiftNone, 0},
		{"zero prior volume", amounts(30, 30, 0, 0), false, ShiftNone, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shift, ok := DetectVolumeShift(tt.transfers, 2, DefaultShiftPct, DefaultShiftPct)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantKind, shift.Kind)
			assert.InDelta(t, tt.wantPct, shift.ChangePct, 1e-9)
		})
	}
}

func TestDetectSuspicious(t *testing.T) {
	t.Run("spike with two whales", func(t *testing.T) {
		event, ok := DetectSuspicious(amounts(200_000, 150_000, 100, 100), 2, DefaultSuspiciousSpikePct, DefaultWhaleThreshold)
		require.True(t, ok)
		assert.Equal(t, 2, event.WhaleCount)
		assert.Greater(t, event.SpikePct, 100.0)
	})

	t.Run("single whale", func(t *testing.T) {
		_, ok := DetectSuspicious(amounts(200_000, 10, 100, 100), 2, DefaultSuspiciousSpikePct, DefaultWhaleThreshold)
		assert.False(t, ok)
	})

	t.Run("too few transfers", func(t *testing.T) {
		_, ok := DetectSuspicious(amounts(200_000, 150_000, 100), 2, DefaultSuspiciousSpikePct, DefaultWhaleThreshold)
		assert.False(t, ok)
	})

	t.Run("no spike", func(t *testing.T) {
		_, ok := DetectSuspicious(amounts(200_000, 150_000, 200_000, 150_000), 2, DefaultSuspiciousSpikePct, DefaultWhaleThreshold)
		assert.False(t, ok)
	})
}
