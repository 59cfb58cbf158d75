package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"tokenrisk/pkg/errors"
)

type Config struct {
	App           AppConfig
	Upstream      UpstreamConfig
	Fetch         FetchConfig
	Cache         CacheConfig
	Risk          RiskConfig
	Behavior      BehaviorConfig
	Watch         WatchConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
	Metrics       MetricsConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"tokenrisk"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// UpstreamConfig holds the base URLs of every external data source
type UpstreamConfig struct {
	OrderBookURL string `envconfig:"UPSTREAM_ORDERBOOK_URL" default:"https://api.dexscreener.com"`
	TransfersURL string `envconfig:"UPSTREAM_TRANSFERS_URL" default:"https://public-api.solscan.io"`
	HoldersURL   string `envconfig:"UPSTREAM_HOLDERS_URL" default:"https://public-api.solscan.io"`
	PricesURL    string `envconfig:"UPSTREAM_PRICES_URL" default:"https://api.dexscreener.com"`
	MarketURL    string `envconfig:"UPSTREAM_MARKET_URL"`
	Chain        string `envconfig:"UPSTREAM_CHAIN" default:"solana"`
	SolanaRPCURL string `envconfig:"SOLANA_RPC_URL" default:"https://api.mainnet-beta.solana.com"`
}

// FetchConfig controls retry and rate limiting for every upstream call
type FetchConfig struct {
	MaxAttempts       int           `envconfig:"FETCH_MAX_ATTEMPTS" default:"3"`
	InitialDelay      time.Duration `envconfig:"FETCH_INITIAL_DELAY" default:"200ms"`
	MaxDelay          time.Duration `envconfig:"FETCH_MAX_DELAY" default:"5s"`
	AttemptTimeout    time.Duration `envconfig:"FETCH_ATTEMPT_TIMEOUT" default:"10s"`
	RequestsPerMinute int           `envconfig:"FETCH_REQUESTS_PER_MINUTE" default:"120"`
}

type CacheConfig struct {
	TTL time.Duration `envconfig:"CACHE_TTL" default:"60s"`
}

// RiskConfig holds the composite score policy
type RiskConfig struct {
	VelocityWeight      float64       `envconfig:"RISK_VELOCITY_WEIGHT" default:"0.03"`
	ConcentrationWeight float64       `envconfig:"RISK_CONCENTRATION_WEIGHT" default:"0.4"`
	VolatilityWeight    float64       `envconfig:"RISK_VOLATILITY_WEIGHT" default:"0.3"`
	Threshold           float64       `envconfig:"RISK_THRESHOLD" default:"1"`
	TransferLimit       int           `envconfig:"RISK_TRANSFER_LIMIT" default:"60"`
	HolderLimit         int           `envconfig:"RISK_HOLDER_LIMIT" default:"1000"`
	BatchConcurrency    int           `envconfig:"RISK_BATCH_CONCURRENCY" default:"4"`
	ScoreRetention      time.Duration `envconfig:"RISK_SCORE_RETENTION" default:"1h"`
}

type BehaviorConfig struct {
	Retention     time.Duration `envconfig:"BEHAVIOR_RETENTION" default:"24h"`
	PruneInterval time.Duration `envconfig:"BEHAVIOR_PRUNE_INTERVAL" default:"10m"`
}

// WatchConfig drives the periodic whale and surge probes
type WatchConfig struct {
	Mints          []string      `envconfig:"WATCH_MINTS"`
	WhaleThreshold float64       `envconfig:"WATCH_WHALE_THRESHOLD" default:"50000"`
	WhaleInterval  time.Duration `envconfig:"WATCH_WHALE_INTERVAL" default:"30s"`
	WhaleLimit     int           `envconfig:"WATCH_WHALE_LIMIT" default:"50"`
	SurgeThreshold float64       `envconfig:"WATCH_SURGE_THRESHOLD_PCT" default:"10"`
	SurgeInterval  time.Duration `envconfig:"WATCH_SURGE_INTERVAL" default:"1m"`
	SurgeEnabled   bool          `envconfig:"WATCH_SURGE_ENABLED" default:"false"`
	BurstLookback  int           `envconfig:"WATCH_BURST_LOOKBACK_HOURS" default:"24"`

	MintScanEnabled  bool          `envconfig:"WATCH_MINT_SCAN_ENABLED" default:"false"`
	MintScanInterval time.Duration `envconfig:"WATCH_MINT_SCAN_INTERVAL" default:"1m"`
	MintScanLimit    int           `envconfig:"WATCH_MINT_SCAN_LIMIT" default:"500"`
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
}

// Enabled reports whether any broker is configured
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings that would make the engine misbehave
func (c *Config) Validate() error {
	if c.Fetch.MaxAttempts < 1 {
		return errors.NewValidationError("FETCH_MAX_ATTEMPTS", "must be at least 1", c.Fetch.MaxAttempts)
	}
	if c.Fetch.AttemptTimeout <= 0 {
		return errors.NewValidationError("FETCH_ATTEMPT_TIMEOUT", "must be positive", c.Fetch.AttemptTimeout)
	}
	if c.Risk.Threshold <= 0 {
		return errors.NewValidationError("RISK_THRESHOLD", "must be positive", c.Risk.Threshold)
	}
	if c.Risk.VelocityWeight < 0 || c.Risk.ConcentrationWeight < 0 || c.Risk.VolatilityWeight < 0 {
		return errors.NewValidationError("RISK_*_WEIGHT", "weights must be non-negative", nil)
	}
	if c.Cache.TTL <= 0 {
		return errors.NewValidationError("CACHE_TTL", "must be positive", c.Cache.TTL)
	}
	return nil
}
