package redis

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenrisk/internal/adapters/config"
	domainRisk "tokenrisk/internal/domain/risk"
	"tokenrisk/pkg/errors"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set, skipping redis integration test")
	}
	port := 6379
	if p, err := strconv.Atoi(os.Getenv("REDIS_PORT")); err == nil {
		port = p
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := NewClient(ctx, config.RedisConfig{Host: host, Port: port, DB: 15})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestScoreKey(t *testing.T) {
	assert.Equal(t, "tokenrisk:score:So111", scoreKey("So111"))
}

func TestScoreRepository_RejectsMissingMint(t *testing.T) {
	repo := NewScoreRepository(nil)
	err := repo.Save(context.Background(), &domainRisk.Score{}, time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestScoreRepository_SaveAndLatest(t *testing.T) {
	repo := NewScoreRepository(newTestClient(t))
	ctx := context.Background()

	mint := "test-mint-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() { _ = repo.Forget(ctx, mint) })

	score := &domainRisk.Score{
		Mint:      mint,
		Score:     0.412,
		Factors:   domainRisk.Factors{Velocity: 2, Concentration: 0.5, Volatility: 0.1},
		Degraded:  []string{domainRisk.FactorVolatility},
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Save(ctx, score, time.Minute))

	got, err := repo.Latest(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, score.Score, got.Score)
	assert.Equal(t, score.Factors, got.Factors)
	assert.Equal(t, score.Degraded, got.Degraded)
	assert.True(t, score.Timestamp.Equal(got.Timestamp))
}

func TestScoreRepository_MissingIsNotFound(t *testing.T) {
	repo := NewScoreRepository(newTestClient(t))

	_, err := repo.Latest(context.Background(), "never-scored")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
