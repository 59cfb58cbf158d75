package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"tokenrisk/internal/cache"
	"tokenrisk/internal/domain/token"
)

// HourlyInterval is the only OHLCV interval used for volatility
const HourlyInterval = "1h"

// ohlcv row layout: [timestamp, open, high, low, close, volume, interval]
const (
	ohlcvTimestamp = 0
	ohlcvClose     = 4
	ohlcvInterval  = 6
)

type ohlcvResponse struct {
	Pair *struct {
		OHLCV [][]json.RawMessage `json:"ohlcv"`
	} `json:"pair"`
}

// PriceClient loads hourly close prices
type PriceClient struct {
	*client
	chain string
}

// NewPriceClient creates a price series client for the given chain id
func NewPriceClient(cfg Config, chain string, f Fetcher, c *cache.Cache) *PriceClient {
	return &PriceClient{client: newClient(SourcePrices, cfg, f, c), chain: chain}
}

// Load returns one close per hour bucket in ascending time order
func (c *PriceClient) Load(ctx context.Context, mint string) ([]token.PriceSample, error) {
	return load(ctx, c.client, Key(c.source, mint, HourlyInterval), func(ctx context.Context) ([]token.PriceSample, error) {
		var resp ohlcvResponse
		path := fmt.Sprintf("/latest/dex/pairs/%s/%s?include=ohlcv", url.PathEscape(c.chain), url.PathEscape(mint))
		if err := c.fetchJSON(ctx, path, &resp); err != nil {
			return nil, err
		}
		if resp.Pair == nil {
			return nil, c.invalid("pair", "missing", nil)
		}

		byHour := make(map[int64]float64)
		for i, row := range resp.Pair.OHLCV {
			if len(row) <= ohlcvInterval {
				return nil, c.invalid(fmt.Sprintf("ohlcv[%d]", i), "expected 7 columns", len(row))
			}

			var interval string
			if err := json.Unmarshal(row[ohlcvInterval], &interval); err != nil {
				return nil, c.invalid(fmt.Sprintf("ohlcv[%d].interval", i), "not a string", string(row[ohlcvInterval]))
			}
			if !strings.EqualFold(interval, HourlyInterval) {
				continue
			}

			ts, err := c.parseAmount(fmt.Sprintf("ohlcv[%d].timestamp", i), row[ohlcvTimestamp])
			if err != nil {
				return nil, err
			}
			closePrice, err := c.parseAmount(fmt.Sprintf("ohlcv[%d].close", i), row[ohlcvClose])
			if err != nil {
				return nil, err
			}

			// a later row for the same hour replaces the earlier one
			byHour[unixSeconds(int64(ts))/3600] = closePrice
		}

		samples := make([]token.PriceSample, 0, len(byHour))
		for hour, closePrice := range byHour {
			samples = append(samples, token.PriceSample{Hour: hour, Close: closePrice})
		}
		sort.Slice(samples, func(i, j int) bool { return samples[i].Hour < samples[j].Hour })
		return samples, nil
	})
}

// unixSeconds accepts both second and millisecond timestamps
func unixSeconds(ts int64) int64 {
	if ts > 1e12 {
		return ts / 1000
	}
	return ts
}
