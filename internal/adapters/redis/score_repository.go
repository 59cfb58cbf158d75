package redis

import (
	"context"
	"time"

	domainRisk "tokenrisk/internal/domain/risk"
	"tokenrisk/pkg/errors"
)

const scoreKeyPrefix = "tokenrisk:score:"

// ScoreRepository keeps the latest composite score per mint so that
// several engine processes can share it
type ScoreRepository struct {
	client *Client
}

var _ domainRisk.Repository = (*ScoreRepository)(nil)

// NewScoreRepository creates a repository on top of client
func NewScoreRepository(client *Client) *ScoreRepository {
	return &ScoreRepository{client: client}
}

func scoreKey(mint string) string {
	return scoreKeyPrefix + mint
}

// Save overwrites the latest score of score.Mint; ttl <= 0 keeps it forever
func (r *ScoreRepository) Save(ctx context.Context, score *domainRisk.Score, ttl time.Duration) error {
	if score == nil || score.Mint == "" {
		return errors.NewValidationError("score.mint", "is required", nil)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, scoreKey(score.Mint), score, ttl); err != nil {
		return errors.Wrapf(err, "save score for %s", score.Mint)
	}
	return nil
}

// Latest returns the stored score of mint or ErrNotFound
func (r *ScoreRepository) Latest(ctx context.Context, mint string) (*domainRisk.Score, error) {
	var score domainRisk.Score
	if err := r.client.Get(ctx, scoreKey(mint), &score); err != nil {
		return nil, err
	}
	return &score, nil
}

// Forget removes the stored score of mint
func (r *ScoreRepository) Forget(ctx context.Context, mint string) error {
	return r.client.Delete(ctx, scoreKey(mint))
}
