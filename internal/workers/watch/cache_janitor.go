package watch

import (
	"context"
	"time"

	"tokenrisk/internal/cache"
	"tokenrisk/internal/workers"
)

// CacheJanitor evicts expired result cache entries. Reads already ignore
// them; this only returns their memory.
type CacheJanitor struct {
	*workers.BaseWorker
	cache *cache.Cache
}

// NewCacheJanitor creates a janitor running every interval
func NewCacheJanitor(c *cache.Cache, interval time.Duration) *CacheJanitor {
	return &CacheJanitor{
		BaseWorker: workers.NewBaseWorker("cache_janitor", interval, interval > 0),
		cache:      c,
	}
}

// Run purges once
func (j *CacheJanitor) Run(ctx context.Context) error {
	if n := j.cache.Purge(); n > 0 {
		j.Log().Debugw("Purged expired cache entries", "removed", n, "remaining", j.cache.Len())
	}
	return nil
}
