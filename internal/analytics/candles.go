package analytics

import (
	"math"

	"tokenrisk/internal/domain/token"
)

// CandlePattern names a heuristic candlestick shape
type CandlePattern string

const (
	PatternHammer           CandlePattern = "hammer"
	PatternShootingStar     CandlePattern = "shooting_star"
	PatternBullishEngulfing CandlePattern = "bullish_engulfing"
	PatternBearishEngulfing CandlePattern = "bearish_engulfing"
	PatternDoji             CandlePattern = "doji"
)

// PatternSignal is a pattern matched on one candle with a confidence in (0,1]
type PatternSignal struct {
	Timestamp  int64         `json:"timestamp"`
	Pattern    CandlePattern `json:"pattern"`
	Confidence float64       `json:"confidence"`
}

// DetectCandlePatterns runs every heuristic over the candles in order.
// Engulfing patterns need the previous candle and are skipped for the first one.
func DetectCandlePatterns(candles []token.Candle) []PatternSignal {
	var signals []PatternSignal
	add := func(ts int64, p CandlePattern, conf float64) {
		if conf > 0 {
			signals = append(signals, PatternSignal{Timestamp: ts, Pattern: p, Confidence: conf})
		}
	}

	for i, c := range candles {
		add(c.Timestamp, PatternHammer, Hammer(c))
		add(c.Timestamp, PatternShootingStar, ShootingStar(c))
		if i > 0 {
			add(c.Timestamp, PatternBullishEngulfing, BullishEngulfing(candles[i-1], c))
			add(c.Timestamp, PatternBearishEngulfing, BearishEngulfing(candles[i-1], c))
		}
		add(c.Timestamp, PatternDoji, Doji(c))
	}
	return signals
}

// Hammer: body = |close-open|, wick = min(open,close) - low, r = wick/body
// (0 without a body). Confidence is min(r/3, 1) when r > 2 and
// body/(high-low) < 0.3, else 0.
func Hammer(c token.Candle) float64 {
	body := math.Abs(c.Close - c.Open)
	wick := math.Min(c.Open, c.Close) - c.Low
	return wickConfidence(body, wick, c.High-c.Low)
}

// ShootingStar mirrors Hammer with wick = high - max(open,close)
func ShootingStar(c token.Candle) float64 {
	body := math.Abs(c.Close - c.Open)
	wick := c.High - math.Max(c.Open, c.Close)
	return wickConfidence(body, wick, c.High-c.Low)
}

func wickConfidence(body, wick, rng float64) float64 {
	if body == 0 || rng == 0 {
		return 0
	}
	r := wick / body
	if r > 2 && body/rng < 0.3 {
		return math.Min(r/3, 1)
	}
	return 0
}

// BullishEngulfing: a green candle after a red one whose close is above the
// previous open and whose open is below the previous close. Confidence is
// min(body/prevBody, 1), or 0.8 when the previous body is empty.
func BullishEngulfing(prev, cur token.Candle) float64 {
	if !(cur.Close > cur.Open && prev.Close < prev.Open && cur.Close > prev.Open && cur.Open < prev.Close) {
		return 0
	}
	return engulfConfidence(prev, cur)
}

// BearishEngulfing: a red candle after a green one whose open is above the
// previous close and whose close is below the previous open. Same confidence
// as BullishEngulfing.
func BearishEngulfing(prev, cur token.Candle) float64 {
	if !(cur.Close < cur.Open && prev.Close > prev.Open && cur.Open > prev.Close && cur.Close < prev.Open) {
		return 0
	}
	return engulfConfidence(prev, cur)
}

func engulfConfidence(prev, cur token.Candle) float64 {
	b0 := math.Abs(prev.Close - prev.Open)
	b1 := math.Abs(cur.Close - cur.Open)
	if b0 == 0 {
		return 0.8
	}
	return math.Min(b1/b0, 1)
}

// Doji: r = body/range (1 when the range is empty); confidence 1 - 10r when r < 0.1
func Doji(c token.Candle) float64 {
	rng := c.High - c.Low
	body := math.Abs(c.Close - c.Open)
	r := 1.0
	if rng != 0 {
		r = body / rng
	}
	if r < 0.1 {
		return 1 - r*10
	}
	return 0
}
