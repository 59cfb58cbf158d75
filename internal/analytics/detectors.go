package analytics

import "tokenrisk/internal/domain/token"

// Default detector parameters
const (
	DefaultWhaleThreshold      = 100_000.0
	DefaultShiftWindow         = 50
	DefaultShiftPct            = 20.0
	DefaultSuspiciousSpikePct  = 100.0
	DefaultSuspiciousMinWhales = 2
)

// DetectWhales returns the transfers whose amount is at or above threshold, in input order
func DetectWhales(transfers []token.RawTransfer, threshold float64) []token.RawTransfer {
	var whales []token.RawTransfer
	for _, t := range transfers {
		if t.Amount >= threshold {
			whales = append(whales, t)
		}
	}
	return whales
}

// ShiftKind classifies a volume change between two windows
type ShiftKind string

const (
	ShiftNone ShiftKind = ""
	ShiftPump ShiftKind = "pump"
	ShiftDump ShiftKind = "dump"
)

// VolumeShift is the percent change of summed volume between the newest
// window and the window immediately before it
type VolumeShift struct {
	Kind      ShiftKind `json:"kind"`
	ChangePct float64   `json:"change_pct"`
}

func sumAmounts(transfers []token.RawTransfer) float64 {
	total := 0.0
	for _, t := range transfers {
		total += t.Amount
	}
	return total
}

// windows splits newest-first transfers into [0:w) and [w:2w)
func windows(transfers []token.RawTransfer, window int) (recent, prior []token.RawTransfer) {
	if window <= 0 {
		return nil, nil
	}
	n := len(transfers)
	if window > n {
		return transfers, nil
	}
	end := 2 * window
	if end > n {
		end = n
	}
	return transfers[:window], transfers[window:end]
}

// DetectVolumeShift compares the newest window of transfers (input is newest
// first) with the preceding one. A change >= pumpPct is a pump, <= -dumpPct a
// dump. An empty prior window gives no signal.
func DetectVolumeShift(transfers []token.RawTransfer, window int, pumpPct, dumpPct float64) (VolumeShift, bool) {
	recent, prior := windows(transfers, window)
	oldV := sumAmounts(prior)
	if oldV == 0 {
		return VolumeShift{}, false
	}

	change := (sumAmounts(recent) - oldV) / oldV * 100
	switch {
	case change >= pumpPct:
		return VolumeShift{Kind: ShiftPump, ChangePct: Round(change, 2)}, true
	case change <= -dumpPct:
		return VolumeShift{Kind: ShiftDump, ChangePct: Round(change, 2)}, true
	}
	return VolumeShift{Kind: ShiftNone, ChangePct: Round(change, 2)}, false
}

// SuspiciousActivity is a volume spike accompanied by several whale transfers
type SuspiciousActivity struct {
	SpikePct   float64 `json:"spike_pct"`
	WhaleCount int     `json:"whale_count"`
}

// DetectSuspicious requires at least 2*window transfers, a volume spike of
// spikePct or more, and at least two whales in the newest window.
func DetectSuspicious(transfers []token.RawTransfer, window int, spikePct, whaleThreshold float64) (SuspiciousActivity, bool) {
	if window <= 0 || len(transfers) < 2*window {
		return SuspiciousActivity{}, false
	}

	recent, prior := windows(transfers, window)
	oldV := sumAmounts(prior)
	if oldV == 0 {
		return SuspiciousActivity{}, false
	}

	spike := (sumAmounts(recent) - oldV) / oldV * 100
	whales := len(DetectWhales(recent, whaleThreshold))
	if spike < spikePct || whales < DefaultSuspiciousMinWhales {
		return SuspiciousActivity{}, false
	}

	return SuspiciousActivity{SpikePct: Round(spike, 2), WhaleCount: whales}, true
}
