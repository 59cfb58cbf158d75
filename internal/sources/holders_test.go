package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tokenrisk/internal/cache"
	"tokenrisk/internal/domain/token"
	"tokenrisk/pkg/errors"
)

type mockSupply struct {
	mock.Mock
}

func (m *mockSupply) TokenSupply(ctx context.Context, mint string) (token.Supply, error) {
	args := m.Called(ctx, mint)
	return args.Get(0).(token.Supply), args.Error(1)
}

const holdersBody = `[
	{"ownerAddress":"a","tokenAmount":"10"},
	{"ownerAddress":"b","tokenAmount":50},
	{"ownerAddress":"a","tokenAmount":"30"},
	{"ownerAddress":"c","tokenAmount":"40"},
	{"ownerAddress":"b","tokenAmount":"5"}
]`

func holderServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token/holders", r.URL.Path)
		assert.Equal(t, "MINT", r.URL.Query().Get("tokenAddress"))
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHolderClient_Load(t *testing.T) {
	srv := holderServer(t, holdersBody)
	client := NewHolderClient(testConfig(srv.URL), testFetcher(), cache.New(time.Minute), nil)

	holders, err := client.Load(context.Background(), "MINT", 2)
	require.NoError(t, err)
	assert.Equal(t, []token.HolderBalance{
		{Owner: "b", Balance: 50},
		{Owner: "c", Balance: 40},
	}, holders)

	all, err := client.Load(context.Background(), "MINT", 100)
	require.NoError(t, err)
	require.Len(t, all, 3, "duplicate owners collapse to one entry")
	assert.Equal(t, token.HolderBalance{Owner: "a", Balance: 30}, all[2], "the larger balance wins")
}

func TestHolderClient_RejectsBadBalance(t *testing.T) {
	srv := holderServer(t, `[{"ownerAddress":"a","tokenAmount":"-3"}]`)
	client := NewHolderClient(testConfig(srv.URL), testFetcher(), cache.New(time.Minute), nil)

	_, err := client.Load(context.Background(), "MINT", 10)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestHolderClient_Concentration(t *testing.T) {
	srv := holderServer(t, holdersBody)

	supply := &mockSupply{}
	supply.On("TokenSupply", mock.Anything, "MINT").Return(token.Supply{Amount: 240, Decimals: 6}, nil)

	client := NewHolderClient(testConfig(srv.URL), testFetcher(), cache.New(time.Minute), supply)

	conc, err := client.Concentration(context.Background(), "MINT", 100)
	require.NoError(t, err)
	assert.Equal(t, 3, conc.Holders)
	assert.InDelta(t, 0.5, conc.TopShare, 1e-9)
	assert.Greater(t, conc.Gini, 0.0)
	assert.Equal(t, uint8(6), conc.Supply.Decimals)
	supply.AssertExpectations(t)
}

func TestHolderClient_ConcentrationWithoutSupply(t *testing.T) {
	srv := holderServer(t, holdersBody)
	client := NewHolderClient(testConfig(srv.URL), testFetcher(), cache.New(time.Minute), nil)

	conc, err := client.Concentration(context.Background(), "MINT", 100)
	require.NoError(t, err)
	assert.Zero(t, conc.TopShare)
	assert.Equal(t, 3, conc.Holders)
}

func TestHolderClient_ConcentrationSupplyError(t *testing.T) {
	srv := holderServer(t, holdersBody)

	supply := &mockSupply{}
	supply.On("TokenSupply", mock.Anything, "MINT").Return(token.Supply{}, errors.ErrUnavailable)

	client := NewHolderClient(testConfig(srv.URL), testFetcher(), cache.New(time.Minute), supply)

	_, err := client.Concentration(context.Background(), "MINT", 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}
