package risk

import (
	"context"
	"time"
)

// Repository stores the latest computed score per mint
type Repository interface {
	Save(ctx context.Context, score *Score, ttl time.Duration) error
	Latest(ctx context.Context, mint string) (*Score, error)
}
