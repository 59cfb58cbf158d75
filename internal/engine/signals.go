package engine

import (
	"context"

	"tokenrisk/internal/analytics"
	"tokenrisk/internal/sources"
	"tokenrisk/pkg/errors"
)

// Single-source signals. Unlike the composite score these propagate
// upstream errors unchanged.

// transfersPerLookbackHour approximates how many transfers one hour of activity holds
const transfersPerLookbackHour = 50

// defaultMarketLimit is the candle and trade count loaded when the caller passes none
const defaultMarketLimit = 100

var errNoMarket = errors.Wrap(errors.ErrUnavailable, "market data source not configured")

// BookMetrics loads the order book of mint and summarizes its first levels
func (e *Engine) BookMetrics(ctx context.Context, mint string, levels int) (analytics.BookMetrics, error) {
	if levels <= 0 {
		levels = sources.DefaultBookLevels
	}
	book, err := e.OrderBook.Load(ctx, mint, levels)
	if err != nil {
		return analytics.BookMetrics{}, err
	}
	return analytics.Metrics(book, levels), nil
}

// Velocity returns transfers per minute over the recent transfer window
func (e *Engine) Velocity(ctx context.Context, mint string) (float64, error) {
	transfers, err := e.Transfers.Load(ctx, mint, e.cfg.Risk.TransferLimit)
	if err != nil {
		return 0, err
	}
	return analytics.Velocity(transfers, e.now()), nil
}

// Concentration returns the Gini coefficient of the holder distribution
func (e *Engine) Concentration(ctx context.Context, mint string) (float64, error) {
	holders, err := e.Holders.Load(ctx, mint, e.cfg.Risk.HolderLimit)
	if err != nil {
		return 0, err
	}
	return analytics.Gini(analytics.Balances(holders)), nil
}

// HolderConcentration adds the top holder share of supply when an on-chain querier is set
func (e *Engine) HolderConcentration(ctx context.Context, mint string, topN int) (sources.Concentration, error) {
	return e.Holders.Concentration(ctx, mint, topN)
}

// HolderStats describes the balance distribution of the largest holders
func (e *Engine) HolderStats(ctx context.Context, mint string) (analytics.HolderStats, error) {
	holders, err := e.Holders.Load(ctx, mint, e.cfg.Risk.HolderLimit)
	if err != nil {
		return analytics.HolderStats{}, err
	}
	return analytics.DescribeHolders(holders), nil
}

// PriceDeviation returns the population standard deviation of hourly closes
func (e *Engine) PriceDeviation(ctx context.Context, mint string) (float64, error) {
	samples, err := e.Prices.Load(ctx, mint)
	if err != nil {
		return 0, err
	}
	return analytics.StdDev(analytics.Closes(samples)), nil
}

// Volatility returns the coefficient of variation of hourly closes
func (e *Engine) Volatility(ctx context.Context, mint string) (float64, error) {
	samples, err := e.Prices.Load(ctx, mint)
	if err != nil {
		return 0, err
	}
	return analytics.Volatility(analytics.Closes(samples)), nil
}

// Entropy returns the Shannon entropy of the destinations of the latest limit transfers
func (e *Engine) Entropy(ctx context.Context, mint string, limit int) (float64, error) {
	transfers, err := e.Transfers.Load(ctx, mint, e.limit(limit))
	if err != nil {
		return 0, err
	}
	return analytics.Entropy(transfers), nil
}

// Activity summarizes the latest limit transfers
func (e *Engine) Activity(ctx context.Context, mint string, limit int) (analytics.ActivityStats, error) {
	transfers, err := e.Transfers.Load(ctx, mint, e.limit(limit))
	if err != nil {
		return analytics.ActivityStats{}, err
	}
	return analytics.Activity(transfers), nil
}

// Burst buckets roughly lookbackHours of transfers by UTC hour of day and
// checks whether the last bucket, the latest hour of day present, bursts
// above the average of the others. Buckets are ordered by hour of day, not
// by recency, so after midnight the last bucket may be from the day before.
func (e *Engine) Burst(ctx context.Context, mint string, lookbackHours int) (analytics.BurstEvent, bool, error) {
	if lookbackHours <= 0 {
		lookbackHours = e.cfg.Watch.BurstLookback
	}
	if lookbackHours <= 0 {
		return analytics.BurstEvent{}, false, errors.NewValidationError("lookbackHours", "must be positive", lookbackHours)
	}
	transfers, err := e.Transfers.Load(ctx, mint, lookbackHours*transfersPerLookbackHour)
	if err != nil {
		return analytics.BurstEvent{}, false, err
	}
	ev, ok := analytics.DetectBurst(analytics.Heatmap(transfers))
	return ev, ok, nil
}

// VolumeShift compares the volume of the newest window transfers with the window before
func (e *Engine) VolumeShift(ctx context.Context, mint string, window int) (analytics.VolumeShift, bool, error) {
	if window <= 0 {
		window = analytics.DefaultShiftWindow
	}
	transfers, err := e.Transfers.Load(ctx, mint, 2*window)
	if err != nil {
		return analytics.VolumeShift{}, false, err
	}
	shift, ok := analytics.DetectVolumeShift(transfers, window, analytics.DefaultShiftPct, analytics.DefaultShiftPct)
	return shift, ok, nil
}

// Suspicious flags a volume spike backed by several whale transfers
func (e *Engine) Suspicious(ctx context.Context, mint string) (analytics.SuspiciousActivity, bool, error) {
	window := analytics.DefaultShiftWindow
	transfers, err := e.Transfers.Load(ctx, mint, 2*window)
	if err != nil {
		return analytics.SuspiciousActivity{}, false, err
	}
	threshold := e.cfg.Watch.WhaleThreshold
	if threshold <= 0 {
		threshold = analytics.DefaultWhaleThreshold
	}
	s, ok := analytics.DetectSuspicious(transfers, window, analytics.DefaultSuspiciousSpikePct, threshold)
	return s, ok, nil
}

// Features extracts the moving-average feature vector of the latest transfers
func (e *Engine) Features(ctx context.Context, mint string, short, long int) (analytics.FeatureVector, error) {
	if short <= 0 || long <= short {
		return analytics.FeatureVector{}, errors.NewValidationError("window", "need 0 < short < long", [2]int{short, long})
	}
	transfers, err := e.Transfers.Load(ctx, mint, long)
	if err != nil {
		return analytics.FeatureVector{}, err
	}
	return analytics.ExtractFeatures(transfers, short, long, e.now()), nil
}

// Correlations returns the Pearson coefficients between amount, hour of day
// and day of week over the latest limit transfers
func (e *Engine) Correlations(ctx context.Context, mint string, limit int) ([]analytics.Correlation, error) {
	transfers, err := e.Transfers.Load(ctx, mint, e.limit(limit))
	if err != nil {
		return nil, err
	}
	return analytics.Correlate(transfers), nil
}

// CandlePatterns loads limit candles of symbol and runs every pattern detector over them
func (e *Engine) CandlePatterns(ctx context.Context, symbol string, limit int) ([]analytics.PatternSignal, error) {
	if e.Market == nil {
		return nil, errNoMarket
	}
	candles, err := e.Market.Candles(ctx, symbol, marketLimit(limit))
	if err != nil {
		return nil, err
	}
	return analytics.DetectCandlePatterns(candles), nil
}

// TradeStats summarizes recent trades of a market symbol
type TradeStats struct {
	Count int     `json:"count"`
	VWAP  float64 `json:"vwap"`
	SMA   float64 `json:"sma"` // simple average price of the last window trades
}

// TradeStats loads limit trades of symbol and returns their VWAP and price SMA
func (e *Engine) TradeStats(ctx context.Context, symbol string, limit, window int) (TradeStats, error) {
	if e.Market == nil {
		return TradeStats{}, errNoMarket
	}
	if window <= 0 {
		return TradeStats{}, errors.NewValidationError("window", "must be positive", window)
	}
	trades, err := e.Market.Trades(ctx, symbol, marketLimit(limit))
	if err != nil {
		return TradeStats{}, err
	}
	return TradeStats{
		Count: len(trades),
		VWAP:  analytics.VWAP(trades),
		SMA:   analytics.SMAPrice(trades, window),
	}, nil
}

// Arbitrage returns VWAP(a) - VWAP(b) over the latest limit trades of each symbol
func (e *Engine) Arbitrage(ctx context.Context, symbolA, symbolB string, limit int) (float64, error) {
	if e.Market == nil {
		return 0, errNoMarket
	}
	a, err := e.Market.Trades(ctx, symbolA, marketLimit(limit))
	if err != nil {
		return 0, err
	}
	b, err := e.Market.Trades(ctx, symbolB, marketLimit(limit))
	if err != nil {
		return 0, err
	}
	return analytics.ArbitrageSpread(a, b), nil
}

func marketLimit(n int) int {
	if n > 0 {
		return n
	}
	return defaultMarketLimit
}

func (e *Engine) limit(n int) int {
	if n > 0 {
		return n
	}
	return e.cfg.Risk.TransferLimit
}
