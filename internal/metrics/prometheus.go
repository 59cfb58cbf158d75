package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fetch metrics
	FetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenrisk_fetch_attempts_total",
			Help: "Total number of upstream fetch attempts",
		},
		[]string{"source", "outcome"}, // outcome: success|network|timeout|upstream|decode
	)

	FetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokenrisk_fetch_attempt_latency_seconds",
			Help:    "Upstream fetch attempt latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	FetchExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenrisk_fetch_exhausted_total",
			Help: "Fetches that spent their whole retry budget",
		},
		[]string{"source"},
	)

	// Cache metrics
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenrisk_cache_lookups_total",
			Help: "Result cache lookups",
		},
		[]string{"result"}, // result: hit|miss|stale
	)

	// Risk metrics
	RiskScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tokenrisk_risk_score",
			Help: "Most recent composite risk score per mint",
		},
		[]string{"mint"},
	)

	RiskFactorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenrisk_risk_factor_failures_total",
			Help: "Factor fetches that degraded to zero",
		},
		[]string{"factor"},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenrisk_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokenrisk_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"worker"},
	)

	// Signal metrics
	WhaleAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenrisk_whale_alerts_total",
			Help: "Whale transfers detected",
		},
		[]string{"mint"},
	)

	MintBirths = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tokenrisk_mint_births_total",
			Help: "Newly initialized mints found by the scanner",
		},
	)

	BehaviorProfiles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tokenrisk_behavior_profiles",
			Help: "Tracked address behavior profiles",
		},
	)
)

var initOnce sync.Once

// Init registers all metrics with the default registry
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(FetchAttempts)
		prometheus.MustRegister(FetchLatency)
		prometheus.MustRegister(FetchExhausted)
		prometheus.MustRegister(CacheLookups)
		prometheus.MustRegister(RiskScore)
		prometheus.MustRegister(RiskFactorFailures)
		prometheus.MustRegister(WorkerExecutions)
		prometheus.MustRegister(WorkerDuration)
		prometheus.MustRegister(WhaleAlerts)
		prometheus.MustRegister(MintBirths)
		prometheus.MustRegister(BehaviorProfiles)
	})
}

// Handler returns the HTTP handler serving /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFetchAttempt records one upstream attempt; outcome is "success" or an error kind
func RecordFetchAttempt(source, outcome string, latency time.Duration) {
	FetchAttempts.WithLabelValues(source, outcome).Inc()
	FetchLatency.WithLabelValues(source).Observe(latency.Seconds())
}

// RecordWorkerExecution records a worker run
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
}
