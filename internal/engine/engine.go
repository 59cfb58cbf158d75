// Package engine builds and owns every component of a token risk engine
// instance: cache, fetcher, data source clients, scorer, tracker and the
// optional Redis and Kafka sinks.
package engine

import (
	"context"
	"net/http"
	"time"

	"tokenrisk/internal/adapters/config"
	"tokenrisk/internal/adapters/fetch"
	"tokenrisk/internal/adapters/kafka"
	"tokenrisk/internal/adapters/onchain"
	"tokenrisk/internal/adapters/ratelimit"
	"tokenrisk/internal/adapters/redis"
	"tokenrisk/internal/behavior"
	"tokenrisk/internal/cache"
	domainRisk "tokenrisk/internal/domain/risk"
	"tokenrisk/internal/events"
	"tokenrisk/internal/risk"
	"tokenrisk/internal/sources"
	"tokenrisk/internal/workers"
	"tokenrisk/internal/workers/watch"
	"tokenrisk/pkg/errors"
	"tokenrisk/pkg/logger"
)

// Engine is one independently configured analytics instance
type Engine struct {
	cfg *config.Config

	Cache     *cache.Cache
	Limiters  *ratelimit.Registry
	Fetcher   *fetch.Fetcher
	OrderBook *sources.OrderBookClient
	Transfers *sources.TransferClient
	Holders   *sources.HolderClient
	Prices    *sources.PriceClient
	Market    *sources.MarketClient // nil without a market URL
	Chain     onchain.Querier       // nil when disabled
	Scorer    *risk.Scorer
	Tracker   *behavior.Tracker
	Publisher *events.Publisher // nil without Kafka

	httpClient *http.Client
	repo       domainRisk.Repository
	producer   events.Producer
	closers    []func() error
	now        func() time.Time
	log        *logger.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithHTTPClient replaces the HTTP client used by every data source
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		e.httpClient = client
	}
}

// WithQuerier replaces the Solana RPC querier
func WithQuerier(q onchain.Querier) Option {
	return func(e *Engine) {
		e.Chain = q
	}
}

// WithRepository stores scores in repo instead of Redis
func WithRepository(repo domainRisk.Repository) Option {
	return func(e *Engine) {
		e.repo = repo
	}
}

// WithProducer publishes events through p instead of Kafka
func WithProducer(p events.Producer) Option {
	return func(e *Engine) {
		e.producer = p
	}
}

// WithClock replaces time.Now for the cache, tracker and scorer
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New wires an engine from cfg. Redis and Kafka are connected only when
// enabled in cfg and not overridden by an option.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("config", "is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get().With("component", "engine")
	}
	if e.httpClient == nil {
		e.httpClient = &http.Client{}
	}

	e.Cache = cache.New(cfg.Cache.TTL, cache.WithClock(e.now))
	e.Limiters = ratelimit.NewRegistry(cfg.Fetch.RequestsPerMinute)
	e.Fetcher = fetch.New(
		fetch.WithHTTPClient(e.httpClient),
		fetch.WithLimiters(e.Limiters),
		fetch.WithLogger(e.log.With("component", "fetcher")),
	)

	if e.Chain == nil && cfg.Upstream.SolanaRPCURL != "" {
		e.Chain = onchain.NewRPCQuerier(cfg.Upstream.SolanaRPCURL, e.Limiters, cfg.Fetch.AttemptTimeout)
	}

	e.buildSources()

	if err := e.connectSinks(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}

	scorerOpts := []risk.Option{
		risk.WithClock(e.now),
		risk.WithLogger(e.log.With("component", "risk_scorer")),
	}
	if e.repo != nil {
		scorerOpts = append(scorerOpts, risk.WithRepository(e.repo))
	}
	if e.Publisher != nil {
		scorerOpts = append(scorerOpts, risk.WithPublisher(e.Publisher))
	}
	e.Scorer = risk.NewScorer(scorerConfig(cfg.Risk), e.Transfers, e.Holders, e.Prices, scorerOpts...)
	e.Tracker = behavior.NewTracker(behavior.WithClock(e.now))

	e.log.Infow("Engine ready",
		"redis", e.repo != nil,
		"kafka", e.Publisher != nil,
		"onchain", e.Chain != nil,
		"market", e.Market != nil,
	)
	return e, nil
}

func (e *Engine) buildSources() {
	up := e.cfg.Upstream
	sourceCfg := func(baseURL string) sources.Config {
		return sources.Config{
			BaseURL: baseURL,
			Policy:  fetchPolicy(e.cfg.Fetch),
			TTL:     e.cfg.Cache.TTL,
		}
	}

	var supply sources.SupplyProvider
	if e.Chain != nil {
		supply = e.Chain
	}

	e.OrderBook = sources.NewOrderBookClient(sourceCfg(up.OrderBookURL), up.Chain, e.Fetcher, e.Cache)
	e.Transfers = sources.NewTransferClient(sourceCfg(up.TransfersURL), e.Fetcher, e.Cache)
	e.Holders = sources.NewHolderClient(sourceCfg(up.HoldersURL), e.Fetcher, e.Cache, supply)
	e.Prices = sources.NewPriceClient(sourceCfg(up.PricesURL), up.Chain, e.Fetcher, e.Cache)
	if up.MarketURL != "" {
		e.Market = sources.NewMarketClient(sourceCfg(up.MarketURL), e.Fetcher, e.Cache)
	}
}

func (e *Engine) connectSinks(ctx context.Context) error {
	if e.repo == nil && e.cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, e.cfg.Redis)
		if err != nil {
			return errors.Wrap(err, "connect score store")
		}
		e.closers = append(e.closers, client.Close)
		e.repo = redis.NewScoreRepository(client)
	}

	if e.producer == nil && e.cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: e.cfg.Kafka.Brokers})
		e.closers = append(e.closers, producer.Close)
		e.producer = producer
	}
	if e.producer != nil {
		e.Publisher = events.NewPublisher(e.producer, e.cfg.App.Name)
	}
	return nil
}

// Workers returns the periodic tasks of this engine, ready to register with a scheduler
func (e *Engine) Workers() []workers.Worker {
	w := e.cfg.Watch

	whaleOpts := []watch.WhaleOption{watch.WithTracker(e.Tracker)}
	if e.Publisher != nil {
		whaleOpts = append(whaleOpts, watch.WithWhalePublisher(e.Publisher))
	}
	list := []workers.Worker{
		watch.NewWhaleWatcher(watch.WhaleConfig{
			Mints:     w.Mints,
			Threshold: w.WhaleThreshold,
			Limit:     w.WhaleLimit,
			Interval:  w.WhaleInterval,
			Enabled:   len(w.Mints) > 0,
		}, e.Transfers, whaleOpts...),
		watch.NewBehaviorPruner(e.Tracker, e.cfg.Behavior.Retention, e.cfg.Behavior.PruneInterval),
		watch.NewCacheJanitor(e.Cache, e.cfg.Cache.TTL),
	}

	if e.Market != nil {
		var surgeOpts []watch.SurgeOption
		if e.Publisher != nil {
			surgeOpts = append(surgeOpts, watch.WithSurgePublisher(e.Publisher))
		}
		list = append(list, watch.NewSurgeProbe(watch.SurgeConfig{
			Mints:        w.Mints,
			ThresholdPct: w.SurgeThreshold,
			Interval:     w.SurgeInterval,
			Enabled:      w.SurgeEnabled && len(w.Mints) > 0,
		}, e.Market, surgeOpts...))
	}

	if e.Chain != nil {
		var mintOpts []watch.MintScanOption
		if e.Publisher != nil {
			mintOpts = append(mintOpts, watch.WithMintPublisher(e.Publisher))
		}
		list = append(list, watch.NewMintScanner(watch.MintScanConfig{
			Limit:    w.MintScanLimit,
			Interval: w.MintScanInterval,
			Enabled:  w.MintScanEnabled,
		}, e.Chain, mintOpts...))
	}
	return list
}

// Close releases the sinks opened by New. Options supplied by the caller stay open.
func (e *Engine) Close() error {
	var errs errors.MultiError
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs.Add(e.closers[i]())
	}
	e.closers = nil
	if e.Cache != nil {
		e.Cache.InvalidateAll()
	}
	return errs.ToError()
}

func fetchPolicy(c config.FetchConfig) fetch.Policy {
	return fetch.Policy{
		MaxAttempts:    c.MaxAttempts,
		InitialDelay:   c.InitialDelay,
		AttemptTimeout: c.AttemptTimeout,
		MaxDelay:       c.MaxDelay,
	}
}

func scorerConfig(c config.RiskConfig) risk.Config {
	return risk.Config{
		Weights: domainRisk.Weights{
			Velocity:      c.VelocityWeight,
			Concentration: c.ConcentrationWeight,
			Volatility:    c.VolatilityWeight,
		},
		Threshold:        c.Threshold,
		TransferLimit:    c.TransferLimit,
		HolderLimit:      c.HolderLimit,
		BatchConcurrency: c.BatchConcurrency,
		ScoreRetention:   c.ScoreRetention,
	}
}
