package sources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenrisk/internal/analytics"
	"tokenrisk/internal/cache"
	"tokenrisk/internal/domain/token"
	"tokenrisk/pkg/errors"
)

func TestPriceClient_Load(t *testing.T) {
	srv := newUpstream(t, map[string]string{
		bookPath: `{"pair":{"ohlcv":[
			[1700002800,"1","1","1","3","10","1h"],
			[1699999200,"1","1","1","2","10","1h"],
			[1699999300,"1","1","1","9","10","5m"],
			[1700002800000,"1","1","1","4","10","1h"],
			[1700006400,1,1,1,5,10,"1h"]
		]}}`,
	})

	client := NewPriceClient(testConfig(srv.URL), "solana", testFetcher(), cache.New(time.Minute))

	samples, err := client.Load(context.Background(), "MINT")
	require.NoError(t, err)
	assert.Equal(t, []token.PriceSample{
		{Hour: 472222, Close: 2},
		{Hour: 472223, Close: 4},
		{Hour: 472224, Close: 5},
	}, samples, "non-hourly rows dropped, one close per hour, ascending")

	assert.InDelta(t, 0.0, analytics.Volatility([]float64{4, 4, 4}), 1e-9)
	assert.Greater(t, analytics.Volatility(analytics.Closes(samples)), 0.0)
}

func TestPriceClient_RejectsShortRows(t *testing.T) {
	srv := newUpstream(t, map[string]string{
		bookPath: `{"pair":{"ohlcv":[[3600,"1","1","1","2"]]}}`,
	})
	client := NewPriceClient(testConfig(srv.URL), "solana", testFetcher(), cache.New(time.Minute))

	_, err := client.Load(context.Background(), "MINT")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestPriceClient_EmptySeries(t *testing.T) {
	srv := newUpstream(t, map[string]string{bookPath: `{"pair":{"ohlcv":[]}}`})
	client := NewPriceClient(testConfig(srv.URL), "solana", testFetcher(), cache.New(time.Minute))

	samples, err := client.Load(context.Background(), "MINT")
	require.NoError(t, err)
	assert.Empty(t, samples)
}
