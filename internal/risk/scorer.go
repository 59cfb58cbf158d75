// Package risk combines velocity, holder concentration and price volatility
// into a bounded composite score per mint.
package risk

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tokenrisk/internal/analytics"
	domainRisk "tokenrisk/internal/domain/risk"
	"tokenrisk/internal/domain/token"
	"tokenrisk/internal/metrics"
	"tokenrisk/pkg/errors"
	"tokenrisk/pkg/logger"
)

// TransferSource loads recent transfers, newest first
type TransferSource interface {
	Load(ctx context.Context, mint string, limit int) ([]token.RawTransfer, error)
}

// HolderSource loads the holder distribution
type HolderSource interface {
	Load(ctx context.Context, mint string, topN int) ([]token.HolderBalance, error)
}

// PriceSource loads hourly close prices
type PriceSource interface {
	Load(ctx context.Context, mint string) ([]token.PriceSample, error)
}

// Publisher emits computed scores to downstream consumers
type Publisher interface {
	PublishRiskScore(ctx context.Context, score *domainRisk.Score) error
}

// Observer receives lifecycle callbacks; any field may be nil
type Observer struct {
	OnStart    func(mint string)
	OnComplete func(score *domainRisk.Score)
	OnFailure  func(mint, factor string, err error)
}

// Config is the scoring policy
type Config struct {
	Weights          domainRisk.Weights
	Threshold        float64
	TransferLimit    int
	HolderLimit      int
	BatchConcurrency int
	ScoreRetention   time.Duration
}

// DefaultConfig returns the default scoring policy
func DefaultConfig() Config {
	return Config{
		Weights:          domainRisk.DefaultWeights(),
		Threshold:        domainRisk.DefaultThreshold,
		TransferLimit:    60,
		HolderLimit:      1000,
		BatchConcurrency: 4,
		ScoreRetention:   time.Hour,
	}
}

// Scorer computes composite risk scores
type Scorer struct {
	cfg       Config
	transfers TransferSource
	holders   HolderSource
	prices    PriceSource
	repo      domainRisk.Repository
	publisher Publisher
	observer  Observer
	now       func() time.Time
	log       *logger.Logger
}

// Option configures a Scorer
type Option func(*Scorer)

// WithRepository persists every score
func WithRepository(repo domainRisk.Repository) Option {
	return func(s *Scorer) {
		s.repo = repo
	}
}

// WithPublisher publishes every score
func WithPublisher(p Publisher) Option {
	return func(s *Scorer) {
		s.publisher = p
	}
}

// WithObserver registers lifecycle callbacks
func WithObserver(o Observer) Option {
	return func(s *Scorer) {
		s.observer = o
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		s.now = now
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(s *Scorer) {
		s.log = log
	}
}

// NewScorer creates a new risk scorer
func NewScorer(cfg Config, transfers TransferSource, holders HolderSource, prices PriceSource, opts ...Option) *Scorer {
	s := &Scorer{
		cfg:       cfg,
		transfers: transfers,
		holders:   holders,
		prices:    prices,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().With("component", "risk_scorer")
	}
	return s
}

// Score computes the score of mint under the configured weights and threshold
func (s *Scorer) Score(ctx context.Context, mint string) (*domainRisk.Score, error) {
	return s.ScoreWith(ctx, mint, s.cfg.Weights, s.cfg.Threshold)
}

// IsRisky reports whether the score of mint reached the risk boundary
func (s *Scorer) IsRisky(ctx context.Context, mint string) (bool, error) {
	score, err := s.Score(ctx, mint)
	if err != nil {
		return false, err
	}
	return score.Risky(), nil
}

// ScoreWith computes the score of mint under explicit weights and threshold.
// The three factors are fetched concurrently; a factor whose fetch fails
// contributes 0 and is listed in Score.Degraded instead of failing the call.
func (s *Scorer) ScoreWith(ctx context.Context, mint string, w domainRisk.Weights, threshold float64) (*domainRisk.Score, error) {
	if err := validate(mint, w, threshold); err != nil {
		return nil, err
	}

	if s.observer.OnStart != nil {
		s.observer.OnStart(mint)
	}

	now := s.now()
	var (
		factors  domainRisk.Factors
		degraded []string
		mu       sync.Mutex
		g        errgroup.Group
	)

	// Siblings are not cancelled when one factor fails, so the group never sees an error.
	run := func(name string, compute func() (float64, error), assign func(float64)) {
		g.Go(func() error {
			v, err := compute()
			if err != nil {
				s.degrade(mint, name, err)
				mu.Lock()
				degraded = append(degraded, name)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			assign(v)
			mu.Unlock()
			return nil
		})
	}

	run(domainRisk.FactorVelocity, func() (float64, error) {
		transfers, err := s.transfers.Load(ctx, mint, s.cfg.TransferLimit)
		if err != nil {
			return 0, err
		}
		return analytics.Velocity(transfers, now), nil
	}, func(v float64) { factors.Velocity = v })

	run(domainRisk.FactorConcentration, func() (float64, error) {
		holders, err := s.holders.Load(ctx, mint, s.cfg.HolderLimit)
		if err != nil {
			return 0, err
		}
		return analytics.Gini(analytics.Balances(holders)), nil
	}, func(v float64) { factors.Concentration = v })

	run(domainRisk.FactorVolatility, func() (float64, error) {
		samples, err := s.prices.Load(ctx, mint)
		if err != nil {
			return 0, err
		}
		return analytics.Volatility(analytics.Closes(samples)), nil
	}, func(v float64) { factors.Volatility = v })

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "score %s", mint)
	}

	sort.Strings(degraded)
	score := &domainRisk.Score{
		Mint:      mint,
		Score:     Composite(factors, w, threshold),
		Factors:   factors,
		Degraded:  degraded,
		Timestamp: now,
	}

	metrics.RiskScore.WithLabelValues(mint).Set(score.Score)
	s.deliver(ctx, score)

	if s.observer.OnComplete != nil {
		s.observer.OnComplete(score)
	}
	return score, nil
}

// Composite returns min(max(raw/threshold, 0), 1) rounded to 3 decimals,
// where raw is the weighted sum of the factors
func Composite(f domainRisk.Factors, w domainRisk.Weights, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	raw := f.Velocity*w.Velocity + f.Concentration*w.Concentration + f.Volatility*w.Volatility
	normalized := raw / threshold
	if normalized > 1 {
		normalized = 1
	}
	if normalized < 0 {
		normalized = 0
	}
	return analytics.Round(normalized, 3)
}

// BatchResult is the outcome of one mint in ScoreMany
type BatchResult struct {
	Mint  string
	Score *domainRisk.Score
	Err   error
}

// ScoreMany scores mints concurrently with bounded parallelism. Results are
// in input order; a failing mint does not affect the others.
func (s *Scorer) ScoreMany(ctx context.Context, mints []string) ([]BatchResult, error) {
	results := make([]BatchResult, len(mints))

	var g errgroup.Group
	if s.cfg.BatchConcurrency > 0 {
		g.SetLimit(s.cfg.BatchConcurrency)
	}

	for i, mint := range mints {
		g.Go(func() error {
			score, err := s.Score(ctx, mint)
			results[i] = BatchResult{Mint: mint, Score: score, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, errors.Wrap(err, "batch scoring interrupted")
	}
	return results, nil
}

// Latest returns the most recently stored score for mint
func (s *Scorer) Latest(ctx context.Context, mint string) (*domainRisk.Score, error) {
	if s.repo == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "no score store configured for %s", mint)
	}
	return s.repo.Latest(ctx, mint)
}

func (s *Scorer) degrade(mint, factor string, err error) {
	metrics.RiskFactorFailures.WithLabelValues(factor).Inc()
	s.log.Warnw("Risk factor degraded to zero",
		"mint", mint,
		"factor", factor,
		"kind", errors.KindOf(err),
		"error", err,
	)
	if s.observer.OnFailure != nil {
		s.observer.OnFailure(mint, factor, err)
	}
}

// deliver hands the score to the optional sinks; their failures never fail the score
func (s *Scorer) deliver(ctx context.Context, score *domainRisk.Score) {
	if s.repo != nil {
		if err := s.repo.Save(ctx, score, s.cfg.ScoreRetention); err != nil {
			s.log.Errorw("Failed to store risk score", "mint", score.Mint, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRiskScore(ctx, score); err != nil {
			s.log.Errorw("Failed to publish risk score", "mint", score.Mint, "error", err)
		}
	}
}

func validate(mint string, w domainRisk.Weights, threshold float64) error {
	if mint == "" {
		return errors.NewValidationError("mint", "must not be empty", mint)
	}
	if threshold <= 0 {
		return errors.NewValidationError("threshold", "must be positive", threshold)
	}
	if w.Velocity < 0 || w.Concentration < 0 || w.Volatility < 0 {
		return errors.NewValidationError("weights", "must be non-negative", w)
	}
	return nil
}
