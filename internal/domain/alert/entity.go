// Package alert holds the notifications raised by the periodic watchers.
package alert

import "time"

// WhaleAlert is a single transfer at or above the whale threshold
type WhaleAlert struct {
	Mint        string    `json:"mint"`
	Signature   string    `json:"signature"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Amount      float64   `json:"amount"`
	Threshold   float64   `json:"threshold"`
	BlockTime   time.Time `json:"block_time"`
}

// PriceSurge is a spot price move of at least the configured percentage between two probes
type PriceSurge struct {
	Mint          string    `json:"mint"`
	PreviousPrice float64   `json:"previous_price"`
	Price         float64   `json:"price"`
	ChangePct     float64   `json:"change_pct"` // signed, rounded to 2 decimals
	Threshold     float64   `json:"threshold"`
	DetectedAt    time.Time `json:"detected_at"`
}

// MintBirth is a newly initialized token mint seen on chain
type MintBirth struct {
	Mint          string    `json:"mint"`
	Creator       string    `json:"creator"`
	Signature     string    `json:"signature"`
	Slot          uint64    `json:"slot"`
	InitialSupply float64   `json:"initial_supply"` // base units, 0 when the lookup failed
	BlockTime     time.Time `json:"block_time"`
}
