// Package sources loads records from the upstream market and chain-index
// APIs and normalizes them into domain entities. Every load goes through the
// shared result cache first; concurrent misses on one key share one fetch.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"tokenrisk/internal/adapters/fetch"
	"tokenrisk/internal/cache"
	"tokenrisk/pkg/errors"
	"tokenrisk/pkg/logger"
)

// Source names, used as cache key prefixes, limiter keys and metric labels
const (
	SourceOrderBook = "orderbook"
	SourceTransfers = "transfers"
	SourceHolders   = "holders"
	SourcePrices    = "prices"
	SourceCandles   = "candles"
	SourceTrades    = "trades"
	SourceSpotPrice = "spot_price"
)

// Fetcher is the part of fetch.Fetcher the clients depend on
type Fetcher interface {
	FetchJSON(ctx context.Context, req fetch.Request, policy fetch.Policy, dest interface{}) error
}

// Config is shared by every client
type Config struct {
	BaseURL string
	Policy  fetch.Policy
	TTL     time.Duration // 0 uses the cache default
	Header  http.Header
}

type client struct {
	source  string
	cfg     Config
	fetcher Fetcher
	cache   *cache.Cache
	group   singleflight.Group
	log     *logger.Logger
	now     func() time.Time
}

func newClient(source string, cfg Config, f Fetcher, c *cache.Cache) *client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &client{
		source:  source,
		cfg:     cfg,
		fetcher: f,
		cache:   c,
		log:     logger.Get().With("component", "source", "source", source),
		now:     time.Now,
	}
}

// Key builds the cache key "source:mint:params"
func Key(source, mint string, params ...interface{}) string {
	parts := make([]string, 0, len(params)+2)
	parts = append(parts, source, mint)
	for _, p := range params {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, ":")
}

func (c *client) request(path string) fetch.Request {
	return fetch.Request{
		Source: c.source,
		URL:    c.cfg.BaseURL + path,
		Header: c.cfg.Header,
	}
}

func (c *client) fetchJSON(ctx context.Context, path string, dest interface{}) error {
	return c.fetcher.FetchJSON(ctx, c.request(path), c.cfg.Policy, dest)
}

// load returns the cached value for key or runs loadFn once for all concurrent
// callers. The shared load is detached from any single caller's cancellation
// and bounded by the policy budget; each caller still returns as soon as its
// own ctx is done.
func load[T any](ctx context.Context, c *client, key string, loadFn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := cache.Lookup[T](c.cache, key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		if v, ok := cache.Lookup[T](c.cache, key); ok {
			return v, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Policy.Budget())
		defer cancel()

		v, err := loadFn(loadCtx)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, v, c.cfg.TTL)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, errors.Wrap(ctx.Err(), "source load cancelled")
	case res := <-ch:
		if res.Err != nil {
			c.log.Debugw("Source load failed", "key", key, "shared", res.Shared, "error", res.Err)
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// parseAmount parses a JSON number or numeric string into a non-negative finite float
func (c *client) parseAmount(field string, raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, c.invalid(field, "missing value", nil)
	}
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			return 0, c.invalid(field, "not a string", s)
		}
		s = strings.TrimSpace(unquoted)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, c.invalid(field, "not a number", s)
	}
	if d.IsNegative() {
		return 0, c.invalid(field, "must be non-negative", s)
	}
	return c.checkFinite(field, d.InexactFloat64())
}

func (c *client) checkFinite(field string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, c.invalid(field, "not finite", v)
	}
	if v < 0 {
		return 0, c.invalid(field, "must be non-negative", v)
	}
	return v, nil
}

func (c *client) invalid(field, msg string, value interface{}) error {
	return errors.NewRecordError(c.source, errors.NewValidationError(field, msg, value))
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
