package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"tokenrisk/internal/cache"
	"tokenrisk/internal/domain/token"
)

// DefaultBookLevels is used when a caller passes a non-positive level count
const DefaultBookLevels = 10

type orderBookResponse struct {
	Pair *struct {
		Book *struct {
			Depth *struct {
				Bids [][]json.RawMessage `json:"bids"`
				Asks [][]json.RawMessage `json:"asks"`
			} `json:"depth"`
		} `json:"book"`
	} `json:"pair"`
}

// OrderBookClient loads pair depth from a DEX aggregator
type OrderBookClient struct {
	*client
	chain string
}

// NewOrderBookClient creates an order book client for the given chain id
func NewOrderBookClient(cfg Config, chain string, f Fetcher, c *cache.Cache) *OrderBookClient {
	return &OrderBookClient{client: newClient(SourceOrderBook, cfg, f, c), chain: chain}
}

// Load returns the book with at most levels entries per side, bids descending and asks ascending
func (c *OrderBookClient) Load(ctx context.Context, mint string, levels int) (token.Level2Book, error) {
	if levels <= 0 {
		levels = DefaultBookLevels
	}
	return load(ctx, c.client, Key(c.source, mint, levels), func(ctx context.Context) (token.Level2Book, error) {
		var resp orderBookResponse
		path := fmt.Sprintf("/latest/dex/pairs/%s/%s", url.PathEscape(c.chain), url.PathEscape(mint))
		if err := c.fetchJSON(ctx, path, &resp); err != nil {
			return token.Level2Book{}, err
		}
		if resp.Pair == nil || resp.Pair.Book == nil || resp.Pair.Book.Depth == nil {
			return token.Level2Book{}, c.invalid("pair.book.depth", "missing", nil)
		}

		bids, err := c.parseLevels("bids", resp.Pair.Book.Depth.Bids)
		if err != nil {
			return token.Level2Book{}, err
		}
		asks, err := c.parseLevels("asks", resp.Pair.Book.Depth.Asks)
		if err != nil {
			return token.Level2Book{}, err
		}

		sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
		sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

		return token.Level2Book{
			Bids:      truncate(bids, levels),
			Asks:      truncate(asks, levels),
			Timestamp: c.now(),
		}, nil
	})
}

func (c *OrderBookClient) parseLevels(side string, rows [][]json.RawMessage) ([]token.OrderBookEntry, error) {
	entries := make([]token.OrderBookEntry, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, c.invalid(fmt.Sprintf("%s[%d]", side, i), "expected [price, size]", len(row))
		}
		price, err := c.parseAmount(fmt.Sprintf("%s[%d].price", side, i), row[0])
		if err != nil {
			return nil, err
		}
		size, err := c.parseAmount(fmt.Sprintf("%s[%d].size", side, i), row[1])
		if err != nil {
			return nil, err
		}
		entries = append(entries, token.OrderBookEntry{Price: price, Size: size})
	}
	return entries, nil
}
