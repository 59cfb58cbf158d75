package sources

import (
	"context"
	"fmt"
	"net/url"

	"tokenrisk/internal/cache"
	"tokenrisk/internal/domain/token"
)

type spotPriceResponse struct {
	PriceUSD *float64 `json:"priceUsd"`
}

// MarketClient loads candles, trades and spot prices from a market data API
type MarketClient struct {
	candles *client
	trades  *client
	spot    *client
}

// NewMarketClient creates a market data client
func NewMarketClient(cfg Config, f Fetcher, c *cache.Cache) *MarketClient {
	return &MarketClient{
		candles: newClient(SourceCandles, cfg, f, c),
		trades:  newClient(SourceTrades, cfg, f, c),
		spot:    newClient(SourceSpotPrice, cfg, f, c),
	}
}

// Candles returns at most limit OHLC bars for symbol
func (m *MarketClient) Candles(ctx context.Context, symbol string, limit int) ([]token.Candle, error) {
	c := m.candles
	return load(ctx, c, Key(c.source, symbol, limit), func(ctx context.Context) ([]token.Candle, error) {
		var candles []token.Candle
		path := fmt.Sprintf("/markets/%s/candles?limit=%d", url.PathEscape(symbol), limit)
		if err := c.fetchJSON(ctx, path, &candles); err != nil {
			return nil, err
		}
		for i, k := range candles {
			for _, v := range []float64{k.Open, k.High, k.Low, k.Close} {
				if _, err := c.checkFinite(fmt.Sprintf("[%d]", i), v); err != nil {
					return nil, err
				}
			}
			if k.High < k.Low {
				return nil, c.invalid(fmt.Sprintf("[%d].high", i), "below low", k.High)
			}
		}
		return truncate(candles, limit), nil
	})
}

// Trades returns at most limit executed trades for symbol
func (m *MarketClient) Trades(ctx context.Context, symbol string, limit int) ([]token.TradeTick, error) {
	c := m.trades
	return load(ctx, c, Key(c.source, symbol, limit), func(ctx context.Context) ([]token.TradeTick, error) {
		var trades []token.TradeTick
		path := fmt.Sprintf("/markets/%s/trades?limit=%d", url.PathEscape(symbol), limit)
		if err := c.fetchJSON(ctx, path, &trades); err != nil {
			return nil, err
		}
		for i, t := range trades {
			if _, err := c.checkFinite(fmt.Sprintf("[%d].price", i), t.Price); err != nil {
				return nil, err
			}
			if _, err := c.checkFinite(fmt.Sprintf("[%d].size", i), t.Size); err != nil {
				return nil, err
			}
			if t.Side != token.SideBuy && t.Side != token.SideSell {
				return nil, c.invalid(fmt.Sprintf("[%d].side", i), "must be buy or sell", t.Side)
			}
		}
		return truncate(trades, limit), nil
	})
}

// SpotPrice returns the current USD price of mint. It always hits the
// upstream so that consecutive probes observe fresh prices.
func (m *MarketClient) SpotPrice(ctx context.Context, mint string) (float64, error) {
	c := m.spot
	var resp spotPriceResponse
	if err := c.fetchJSON(ctx, "/price/"+url.PathEscape(mint), &resp); err != nil {
		return 0, err
	}
	if resp.PriceUSD == nil {
		return 0, c.invalid("priceUsd", "missing", nil)
	}
	return c.checkFinite("priceUsd", *resp.PriceUSD)
}
