package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tokenrisk/internal/domain/alert"
	"tokenrisk/pkg/errors"
)

// scriptedFeed returns the queued prices in order
type scriptedFeed struct {
	prices []float64
	err    error
}

func (f *scriptedFeed) SpotPrice(ctx context.Context, mint string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	p := f.prices[0]
	f.prices = f.prices[1:]
	return p, nil
}

func TestChangePct(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur float64
		want      float64
	}{
		{"rise", 1.0, 1.1234, 12.34},
		{"fall", 2.0, 1.5, -25},
		{"flat", 3, 3, 0},
		{"no previous price", 0, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChangePct(tt.prev, tt.cur))
		})
	}
}

func TestSurgeProbe_FirstProbeOnlyRecords(t *testing.T) {
	p := NewSurgeProbe(SurgeConfig{ThresholdPct: 10}, &scriptedFeed{prices: []float64{1.0}})

	_, fired, err := p.Probe(context.Background(), "MintA")
	require.NoError(t, err)
	assert.False(t, fired)

	last, ok := p.LastPrice("MintA")
	require.True(t, ok)
	assert.Equal(t, 1.0, last)
}

func TestSurgeProbe_FiresAtThreshold(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	pub := &mockPublisher{}
	pub.On("PublishSurge", mock.Anything, mock.MatchedBy(func(s alert.PriceSurge) bool {
		return s.Mint == "MintA" && s.ChangePct == 10
	})).Return(nil).Once()

	var handled []alert.PriceSurge
	p := NewSurgeProbe(SurgeConfig{ThresholdPct: 10}, &scriptedFeed{prices: []float64{2.0, 2.2, 2.3}},
		WithSurgePublisher(pub),
		WithSurgeHandler(func(s alert.PriceSurge) { handled = append(handled, s) }),
		WithSurgeClock(func() time.Time { return now }),
	)

	ctx := context.Background()
	_, _, err := p.Probe(ctx, "MintA")
	require.NoError(t, err)

	surge, fired, err := p.Probe(ctx, "MintA")
	require.NoError(t, err)
	require.True(t, fired)
	assert.Equal(t, 2.0, surge.PreviousPrice)
	assert.Equal(t, 2.2, surge.Price)
	assert.Equal(t, now, surge.DetectedAt)

	// 2.2 -> 2.3 is 4.55%, below threshold
	_, fired, err = p.Probe(ctx, "MintA")
	require.NoError(t, err)
	assert.False(t, fired)

	assert.Len(t, handled, 1)
	pub.AssertExpectations(t)
}

func TestSurgeProbe_DropsDoNotFire(t *testing.T) {
	p := NewSurgeProbe(SurgeConfig{ThresholdPct: 10}, &scriptedFeed{prices: []float64{10, 5}})

	ctx := context.Background()
	_, _, _ = p.Probe(ctx, "MintA")
	_, fired, err := p.Probe(ctx, "MintA")
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestSurgeProbe_Reset(t *testing.T) {
	p := NewSurgeProbe(SurgeConfig{ThresholdPct: 10}, &scriptedFeed{prices: []float64{1, 5}})

	ctx := context.Background()
	_, _, _ = p.Probe(ctx, "MintA")
	p.Reset("MintA")

	_, ok := p.LastPrice("MintA")
	assert.False(t, ok)

	// after a reset the next probe is a first probe again
	_, fired, err := p.Probe(ctx, "MintA")
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestSurgeProbe_RunReportsFeedErrors(t *testing.T) {
	p := NewSurgeProbe(SurgeConfig{Mints: []string{"A", "B"}}, &scriptedFeed{err: errors.NewUpstreamError("spot_price", 500)})

	err := p.Run(context.Background())
	require.Error(t, err)

	var multi *errors.MultiError
	require.True(t, errors.As(err, &multi))
	assert.Len(t, multi.Errors, 2)
	assert.Equal(t, DefaultSurgeThresholdPct, p.cfg.ThresholdPct)
}
