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

const bookPath = "/latest/dex/pairs/solana/MINT"

func TestOrderBookClient_Load(t *testing.T) {
	srv := newUpstream(t, map[string]string{
		bookPath: `{"pair":{"book":{"depth":{
			"bids":[["99","1"],["100","2"],["98","4"]],
			"asks":[["102","3"],[101,1],["103","1"]]
		}}}}`,
	})

	c := cache.New(time.Minute)
	client := NewOrderBookClient(testConfig(srv.URL), "solana", testFetcher(), c)

	book, err := client.Load(context.Background(), "MINT", 2)
	require.NoError(t, err)

	assert.Equal(t, []token.OrderBookEntry{{Price: 100, Size: 2}, {Price: 99, Size: 1}}, book.Bids)
	assert.Equal(t, []token.OrderBookEntry{{Price: 101, Size: 1}, {Price: 102, Size: 3}}, book.Asks)
	assert.False(t, book.Timestamp.IsZero())

	m := analytics.Metrics(book, 2)
	assert.InDelta(t, 100.5, m.Mid, 1e-9)
	assert.InDelta(t, 706.0, m.TotalDepth(), 1e-9)
	assert.InDelta(t, -0.143, m.Imbalance, 1e-3)

	// cached under the same parameters
	_, err = client.Load(context.Background(), "MINT", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.count(bookPath))

	// a different level count is a different key
	deeper, err := client.Load(context.Background(), "MINT", 3)
	require.NoError(t, err)
	assert.Len(t, deeper.Bids, 3)
	assert.Equal(t, 2, srv.count(bookPath))
	assert.ElementsMatch(t, []string{"orderbook:MINT:2", "orderbook:MINT:3"}, c.Keys())
}

func TestOrderBookClient_RejectsBadLevels(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"non numeric price", `{"pair":{"book":{"depth":{"bids":[["abc","1"]],"asks":[]}}}}`},
		{"negative size", `{"pair":{"book":{"depth":{"bids":[["1","-1"]],"asks":[]}}}}`},
		{"short row", `{"pair":{"book":{"depth":{"bids":[["1"]],"asks":[]}}}}`},
		{"null size", `{"pair":{"book":{"depth":{"bids":[],"asks":[["1",null]]}}}}`},
		{"missing depth", `{"pair":{"book":{}}}`},
		{"missing pair", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newUpstream(t, map[string]string{bookPath: tt.body})
			c := cache.New(time.Minute)
			client := NewOrderBookClient(testConfig(srv.URL), "solana", testFetcher(), c)

			_, err := client.Load(context.Background(), "MINT", 10)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindValidation), "got %v", err)
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))
			assert.Equal(t, 1, srv.count(bookPath), "validation errors are not retried")
			assert.Zero(t, c.Len())
		})
	}
}

func TestOrderBookClient_MalformedBodyIsDecodeError(t *testing.T) {
	srv := newUpstream(t, map[string]string{bookPath: `{"pair":`})
	client := NewOrderBookClient(testConfig(srv.URL), "solana", testFetcher(), cache.New(time.Minute))

	_, err := client.Load(context.Background(), "MINT", 10)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDecode))
}

func TestOrderBookClient_DefaultLevels(t *testing.T) {
	srv := newUpstream(t, map[string]string{
		bookPath: `{"pair":{"book":{"depth":{"bids":[["1","1"]],"asks":[["2","1"]]}}}}`,
	})
	c := cache.New(time.Minute)
	client := NewOrderBookClient(testConfig(srv.URL), "solana", testFetcher(), c)

	_, err := client.Load(context.Background(), "MINT", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"orderbook:MINT:10"}, c.Keys())
}
