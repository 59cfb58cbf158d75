package analytics

import (
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"tokenrisk/internal/domain/token"
)

// FeatureVector holds moving averages and momentum of transfer amounts
type FeatureVector struct {
	Timestamp time.Time `json:"timestamp"`
	SMAShort  float64   `json:"sma_short"`
	SMALong   float64   `json:"sma_long"`
	Momentum  float64   `json:"momentum"` // newest amount minus oldest amount
}

// ExtractFeatures averages the newest short and long windows of amounts.
// Input is newest first. The timestamp is the newest block time, or now if absent.
func ExtractFeatures(transfers []token.RawTransfer, short, long int, now time.Time) FeatureVector {
	fv := FeatureVector{Timestamp: now}
	if len(transfers) == 0 {
		return fv
	}

	amounts := make([]float64, len(transfers))
	for i, t := range transfers {
		amounts[i] = t.Amount
	}

	if transfers[0].BlockTime > 0 {
		fv.Timestamp = time.Unix(transfers[0].BlockTime, 0).UTC()
	}
	fv.SMAShort = headSMA(amounts, short)
	fv.SMALong = headSMA(amounts, long)
	fv.Momentum = amounts[0] - amounts[len(amounts)-1]
	return fv
}

// headSMA is the simple average of the first window values
func headSMA(values []float64, window int) float64 {
	if window <= 0 || len(values) == 0 {
		return 0
	}
	if window > len(values) {
		window = len(values)
	}
	sma := talib.Sma(values[:window], window)
	return sma[len(sma)-1]
}

// Correlation is the Pearson coefficient between two transfer attributes
type Correlation struct {
	X           string  `json:"x"`
	Y           string  `json:"y"`
	Coefficient float64 `json:"coefficient"`
}

// Correlate returns Pearson coefficients between amount, UTC hour of day and UTC day of week
func Correlate(transfers []token.RawTransfer) []Correlation {
	amounts := make([]float64, len(transfers))
	hours := make([]float64, len(transfers))
	days := make([]float64, len(transfers))
	for i, t := range transfers {
		ts := time.Unix(t.BlockTime, 0).UTC()
		amounts[i] = t.Amount
		hours[i] = float64(ts.Hour())
		days[i] = float64(ts.Weekday())
	}

	return []Correlation{
		{X: "amount", Y: "hour", Coefficient: Pearson(amounts, hours)},
		{X: "amount", Y: "day", Coefficient: Pearson(amounts, days)},
		{X: "hour", Y: "day", Coefficient: Pearson(hours, days)},
	}
}

// Pearson returns the correlation coefficient of x and y, or 0 when undefined
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n == 0 || len(y) != n {
		return 0
	}

	mx, my := mean(x), mean(y)
	var num, dx2, dy2 float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		num += dx * dy
		dx2 += dx * dx
		dy2 += dy * dy
	}

	denom := math.Sqrt(dx2 * dy2)
	if denom == 0 {
		return 0
	}
	return num / denom
}
