package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenrisk/internal/adapters/fetch"
	"tokenrisk/internal/cache"
	"tokenrisk/internal/domain/token"
	"tokenrisk/pkg/errors"
	"tokenrisk/pkg/logger"
)

type upstream struct {
	*httptest.Server
	hits sync.Map // path -> *int32
}

func newUpstream(t *testing.T, routes map[string]string) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter, _ := u.hits.LoadOrStore(r.URL.Path, new(int32))
		atomic.AddInt32(counter.(*int32), 1)

		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) count(path string) int {
	if v, ok := u.hits.Load(path); ok {
		return int(atomic.LoadInt32(v.(*int32)))
	}
	return 0
}

func testFetcher() *fetch.Fetcher {
	return fetch.New(
		fetch.WithLogger(logger.Nop()),
		fetch.WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
	)
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Policy:  fetch.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, AttemptTimeout: time.Second},
		TTL:     time.Minute,
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "orderbook:MINT:10", Key(SourceOrderBook, "MINT", 10))
	assert.Equal(t, "prices:MINT", Key(SourcePrices, "MINT"))
	assert.NotEqual(t, Key(SourceOrderBook, "MINT", 10), Key(SourceOrderBook, "MINT", 20))
}

func TestLoad_CollapsesConcurrentMisses(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_, _ = w.Write([]byte(`{"data":[{"signature":"s1","err":null,"blockTime":1,"tokenAmount":{"amount":"5"},"userAddress":"a","destination":"b"}]}`))
	}))
	defer srv.Close()

	client := NewTransferClient(testConfig(srv.URL), testFetcher(), cache.New(time.Minute))

	var wg sync.WaitGroup
	results := make([][]token.RawTransfer, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			transfers, err := client.Load(context.Background(), "MINT", 10)
			assert.NoError(t, err)
			results[i] = transfers
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		require.Len(t, r, 1)
		assert.Equal(t, "s1", r[0].Signature)
	}
}

func TestLoad_CancelledCallerDoesNotFailOthers(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_, _ = w.Write([]byte(`{"data":[{"signature":"s1","err":null,"blockTime":1,"tokenAmount":{"amount":"5"},"userAddress":"a","destination":"b"}]}`))
	}))
	defer srv.Close()

	client := NewTransferClient(testConfig(srv.URL), testFetcher(), cache.New(time.Minute))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := client.Load(firstCtx, "MINT", 10)
		firstErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	second := make(chan []token.RawTransfer, 1)
	go func() {
		transfers, err := client.Load(context.Background(), "MINT", 10)
		assert.NoError(t, err)
		second <- transfers
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	err := <-firstErr
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	close(release)
	transfers := <-second
	require.Len(t, transfers, 1)
	assert.Equal(t, "s1", transfers[0].Signature)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLoad_FailuresAreNotCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := cache.New(time.Minute)
	client := NewTransferClient(testConfig(srv.URL), testFetcher(), c)

	_, err := client.Load(context.Background(), "MINT", 10)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindExhausted))

	_, err = client.Load(context.Background(), "MINT", 10)
	require.Error(t, err)

	assert.Equal(t, int32(4), atomic.LoadInt32(&calls), "two loads with two attempts each")
	assert.Zero(t, c.Len())
}
