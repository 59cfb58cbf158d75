package analytics

import (
	"math"
	"sort"
	"time"

	"tokenrisk/internal/domain/token"
)

// Entropy returns the base-2 Shannon entropy of the destination distribution.
// Zero or one distinct destination yields 0.
func Entropy(transfers []token.RawTransfer) float64 {
	if len(transfers) == 0 {
		return 0
	}

	counts := make(map[string]int)
	for _, t := range transfers {
		counts[t.Destination]++
	}
	if len(counts) < 2 {
		return 0
	}

	n := float64(len(transfers))
	h := 0.0
	for _, c := range counts {
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}

// ActivityStats summarizes a transfer set
type ActivityStats struct {
	Count           int     `json:"count"`
	Volume          float64 `json:"volume"`
	UniqueSenders   int     `json:"unique_senders"`
	UniqueReceivers int     `json:"unique_receivers"`
}

// Activity computes count, volume and distinct counterparties
func Activity(transfers []token.RawTransfer) ActivityStats {
	senders := make(map[string]struct{})
	receivers := make(map[string]struct{})
	stats := ActivityStats{Count: len(transfers)}

	for _, t := range transfers {
		stats.Volume += t.Amount
		if t.Source != "" {
			senders[t.Source] = struct{}{}
		}
		if t.Destination != "" {
			receivers[t.Destination] = struct{}{}
		}
	}

	stats.UniqueSenders = len(senders)
	stats.UniqueReceivers = len(receivers)
	return stats
}

// HeatmapPoint is the number of transfers seen in one UTC hour of day
type HeatmapPoint struct {
	HourUTC int `json:"hour_utc"`
	Count   int `json:"count"`
}

// Heatmap buckets transfers by the UTC hour of their block time. Only
// non-empty buckets are returned, ordered by hour.
func Heatmap(transfers []token.RawTransfer) []HeatmapPoint {
	buckets := make(map[int]int)
	for _, t := range transfers {
		hour := time.Unix(t.BlockTime, 0).UTC().Hour()
		buckets[hour]++
	}

	points := make([]HeatmapPoint, 0, len(buckets))
	for hour, count := range buckets {
		points = append(points, HeatmapPoint{HourUTC: hour, Count: count})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].HourUTC < points[j].HourUTC
	})
	return points
}

// BurstThreshold is the ratio above which the last bucket counts as a burst
const BurstThreshold = 2.0

// BurstRatio divides the last bucket's count by the mean of all prior
// buckets, with the denominator floored at 1. Fewer than two buckets yields 0.
func BurstRatio(points []HeatmapPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	prior := points[:len(points)-1]
	sum := 0
	for _, p := range prior {
		sum += p.Count
	}
	avg := math.Max(1, float64(sum)/float64(len(prior)))
	return float64(points[len(points)-1].Count) / avg
}

// BurstEvent flags an hour whose activity exceeds the prior average
type BurstEvent struct {
	HourUTC int     `json:"hour_utc"`
	Ratio   float64 `json:"ratio"`
}

// DetectBurst reports a burst when the ratio exceeds BurstThreshold
func DetectBurst(points []HeatmapPoint) (BurstEvent, bool) {
	ratio := BurstRatio(points)
	if ratio <= BurstThreshold {
		return BurstEvent{}, false
	}
	return BurstEvent{
		HourUTC: points[len(points)-1].HourUTC,
		Ratio:   Round(ratio, 2),
	}, true
}
