package watch

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"tokenrisk/internal/analytics"
	"tokenrisk/internal/domain/alert"
	"tokenrisk/internal/workers"
	"tokenrisk/pkg/errors"
)

// DefaultSurgeThresholdPct is the minimum upward move that counts as a surge
const DefaultSurgeThresholdPct = 10.0

// PriceFeed returns the current spot price of a mint
type PriceFeed interface {
	SpotPrice(ctx context.Context, mint string) (float64, error)
}

// SurgePublisher forwards surges downstream
type SurgePublisher interface {
	PublishSurge(ctx context.Context, s alert.PriceSurge) error
}

// SurgeConfig configures a SurgeProbe
type SurgeConfig struct {
	Mints        []string
	ThresholdPct float64
	Interval     time.Duration
	Enabled      bool
}

// SurgeProbe compares each spot price with the one seen on the previous probe
type SurgeProbe struct {
	*workers.BaseWorker
	cfg       SurgeConfig
	feed      PriceFeed
	publisher SurgePublisher
	onSurge   func(alert.PriceSurge)
	now       func() time.Time

	mu         sync.Mutex
	lastPrices map[string]float64
}

// SurgeOption configures a SurgeProbe
type SurgeOption func(*SurgeProbe)

// WithSurgePublisher publishes every surge
func WithSurgePublisher(p SurgePublisher) SurgeOption {
	return func(s *SurgeProbe) {
		s.publisher = p
	}
}

// WithSurgeHandler registers a callback for every surge
func WithSurgeHandler(fn func(alert.PriceSurge)) SurgeOption {
	return func(s *SurgeProbe) {
		s.onSurge = fn
	}
}

// WithSurgeClock replaces time.Now
func WithSurgeClock(now func() time.Time) SurgeOption {
	return func(s *SurgeProbe) {
		s.now = now
	}
}

// NewSurgeProbe creates a new surge probe
func NewSurgeProbe(cfg SurgeConfig, feed PriceFeed, opts ...SurgeOption) *SurgeProbe {
	if cfg.ThresholdPct <= 0 {
		cfg.ThresholdPct = DefaultSurgeThresholdPct
	}

	s := &SurgeProbe{
		BaseWorker: workers.NewBaseWorker("surge_probe", cfg.Interval, cfg.Enabled),
		cfg:        cfg,
		feed:       feed,
		now:        time.Now,
		lastPrices: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run probes every configured mint
func (s *SurgeProbe) Run(ctx context.Context) error {
	var errs errors.MultiError
	for _, mint := range s.cfg.Mints {
		if _, _, err := s.Probe(ctx, mint); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.Log().Warnw("Surge probe failed", "mint", mint, "error", err)
			errs.Add(errors.Wrapf(err, "probe %s", mint))
		}
	}
	return errs.ToError()
}

// Probe fetches the spot price of mint and reports whether it rose by at
// least the threshold since the previous probe. The first probe of a mint
// only records the price.
func (s *SurgeProbe) Probe(ctx context.Context, mint string) (alert.PriceSurge, bool, error) {
	price, err := s.feed.SpotPrice(ctx, mint)
	if err != nil {
		return alert.PriceSurge{}, false, err
	}

	s.mu.Lock()
	prev, known := s.lastPrices[mint]
	if !known {
		prev = price
	}
	s.lastPrices[mint] = price
	s.mu.Unlock()

	change := ChangePct(prev, price)
	if change < s.cfg.ThresholdPct {
		return alert.PriceSurge{}, false, nil
	}

	surge := alert.PriceSurge{
		Mint:          mint,
		PreviousPrice: prev,
		Price:         price,
		ChangePct:     change,
		Threshold:     s.cfg.ThresholdPct,
		DetectedAt:    s.now().UTC(),
	}

	s.Log().Infow("Price surge",
		"mint", mint,
		"change_pct", change,
		"price", humanize.FormatFloat("#,###.######", price),
	)

	if s.publisher != nil {
		if err := s.publisher.PublishSurge(ctx, surge); err != nil {
			s.Log().Errorw("Failed to publish surge", "mint", mint, "error", err)
		}
	}
	if s.onSurge != nil {
		s.onSurge(surge)
	}
	return surge, true, nil
}

// Reset forgets the remembered price of mint
func (s *SurgeProbe) Reset(mint string) {
	s.mu.Lock()
	delete(s.lastPrices, mint)
	s.mu.Unlock()
}

// LastPrice returns the price remembered for mint
func (s *SurgeProbe) LastPrice(mint string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lastPrices[mint]
	return p, ok
}

// ChangePct is the percent move from prev to cur rounded to 2 decimals; 0 when prev is not positive
func ChangePct(prev, cur float64) float64 {
	if prev <= 0 {
		return 0
	}
	return analytics.Round((cur-prev)/prev*100, 2)
}
