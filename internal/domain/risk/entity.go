package risk

import "time"

// Factors are the individual, separately bounded inputs of a composite score
type Factors struct {
	Velocity      float64 `json:"velocity"`      // transfers per minute, >= 0
	Concentration float64 `json:"concentration"` // Gini coefficient in [0,1]
	Volatility    float64 `json:"volatility"`    // coefficient of variation, >= 0
}

// Factor names used for degraded-factor reporting and metric labels
const (
	FactorVelocity      = "velocity"
	FactorConcentration = "concentration"
	FactorVolatility    = "volatility"
)

// Score is a composite risk score for a mint
type Score struct {
	Mint      string    `json:"mint"`
	Score     float64   `json:"score"` // in [0,1], rounded to 3 decimals
	Factors   Factors   `json:"factors"`
	Degraded  []string  `json:"degraded,omitempty"` // factors that fell back to 0 after an upstream failure
	Timestamp time.Time `json:"timestamp"`
}

// Risky reports whether the score reached the configured boundary
func (s *Score) Risky() bool {
	return s.Score >= 1
}

// Weights are the per-factor multipliers of the composite score
type Weights struct {
	Velocity      float64 `json:"velocity"`
	Concentration float64 `json:"concentration"`
	Volatility    float64 `json:"volatility"`
}

// DefaultWeights scale velocity by 1/10 and weight it 0.3,
// then weight concentration 0.4 and volatility 0.3
func DefaultWeights() Weights {
	return Weights{
		Velocity:      0.03,
		Concentration: 0.4,
		Volatility:    0.3,
	}
}

// DefaultThreshold normalizes the raw score so that 1 is the risk boundary
const DefaultThreshold = 1.0
