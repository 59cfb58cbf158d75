package token

import "time"

// RawTransfer is a successful token transfer as reported by a transaction-history upstream
type RawTransfer struct {
	Signature   string  `json:"signature"`
	BlockTime   int64   `json:"block_time"` // unix seconds, 0 when the upstream omitted it
	Amount      float64 `json:"amount"`
	Source      string  `json:"source"`
	Destination string  `json:"destination"`
}

// OrderBookEntry is a single price level
type OrderBookEntry struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Notional returns price * size
func (e OrderBookEntry) Notional() float64 {
	return e.Price * e.Size
}

// Level2Book holds bids in descending and asks in ascending price order
type Level2Book struct {
	Bids      []OrderBookEntry `json:"bids"`
	Asks      []OrderBookEntry `json:"asks"`
	Timestamp time.Time        `json:"timestamp"`
}

// BestBid returns the highest bid, if any
func (b Level2Book) BestBid() (OrderBookEntry, bool) {
	if len(b.Bids) == 0 {
		return OrderBookEntry{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask, if any
func (b Level2Book) BestAsk() (OrderBookEntry, bool) {
	if len(b.Asks) == 0 {
		return OrderBookEntry{}, false
	}
	return b.Asks[0], true
}

// HolderBalance is one owner's balance of a mint
type HolderBalance struct {
	Owner   string  `json:"owner"`
	Balance float64 `json:"balance"`
}

// PriceSample is the close price of one hour bucket
type PriceSample struct {
	Hour  int64   `json:"hour"` // unix seconds / 3600
	Close float64 `json:"close"`
}

// Time returns the start of the sample's hour bucket
func (p PriceSample) Time() time.Time {
	return time.Unix(p.Hour*3600, 0).UTC()
}

// Candle is an OHLC bar
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
}

// Side of an executed trade
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeTick is a single executed trade
type TradeTick struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Side      Side    `json:"side"`
}

// Supply is the total supply of a mint as reported on-chain
type Supply struct {
	Amount   float64 `json:"amount"` // base units, comparable with holder balances
	UIAmount float64 `json:"ui_amount"`
	Decimals uint8   `json:"decimals"`
}
