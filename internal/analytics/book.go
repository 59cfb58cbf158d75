package analytics

import "tokenrisk/internal/domain/token"

// BookMetrics summarizes a level-2 order book
type BookMetrics struct {
	Mid       float64 `json:"mid"`
	Spread    float64 `json:"spread_pct"`
	Imbalance float64 `json:"imbalance"`
	BidDepth  float64 `json:"bid_depth"` // notional over the first N bid levels
	AskDepth  float64 `json:"ask_depth"` // notional over the first N ask levels
}

// TotalDepth is bid plus ask notional depth
func (m BookMetrics) TotalDepth() float64 {
	return m.BidDepth + m.AskDepth
}

// Mid returns the midpoint of best bid and best ask, or 0 if either side is empty
func Mid(book token.Level2Book) float64 {
	bid, okBid := book.BestBid()
	ask, okAsk := book.BestAsk()
	if !okBid || !okAsk {
		return 0
	}
	return (bid.Price + ask.Price) / 2
}

// Spread returns ((ask - bid) / mid) * 100, or 0 if either side is empty
func Spread(book token.Level2Book) float64 {
	bid, okBid := book.BestBid()
	ask, okAsk := book.BestAsk()
	if !okBid || !okAsk {
		return 0
	}
	mid := (bid.Price + ask.Price) / 2
	if mid == 0 {
		return 0
	}
	return (ask.Price - bid.Price) / mid * 100
}

// Imbalance returns (bidVolume - askVolume) / (bidVolume + askVolume) over every level in the book
func Imbalance(book token.Level2Book) float64 {
	bidVol := sumSize(book.Bids)
	askVol := sumSize(book.Asks)
	if bidVol+askVol == 0 {
		return 0
	}
	return (bidVol - askVol) / (bidVol + askVol)
}

// Depth returns the notional (price * size) of the first levels bids and asks, independently
func Depth(book token.Level2Book, levels int) (bid, ask float64) {
	return notional(book.Bids, levels), notional(book.Asks, levels)
}

// Metrics computes every book signal in one pass
func Metrics(book token.Level2Book, levels int) BookMetrics {
	bid, ask := Depth(book, levels)
	return BookMetrics{
		Mid:       Mid(book),
		Spread:    Spread(book),
		Imbalance: Imbalance(book),
		BidDepth:  bid,
		AskDepth:  ask,
	}
}

func sumSize(entries []token.OrderBookEntry) float64 {
	total := 0.0
	for _, e := range entries {
		total += e.Size
	}
	return total
}

func notional(entries []token.OrderBookEntry, levels int) float64 {
	if levels < 0 {
		levels = 0
	}
	if levels > len(entries) {
		levels = len(entries)
	}
	total := 0.0
	for _, e := range entries[:levels] {
		total += e.Notional()
	}
	return total
}
