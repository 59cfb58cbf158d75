// Package watch holds the engine's periodic tasks: the probes that poll
// upstreams for whale transfers and price surges, and the housekeeping
// that keeps in-memory state bounded.
package watch

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"tokenrisk/internal/analytics"
	"tokenrisk/internal/behavior"
	"tokenrisk/internal/domain/alert"
	"tokenrisk/internal/domain/token"
	"tokenrisk/internal/metrics"
	"tokenrisk/internal/workers"
	"tokenrisk/pkg/errors"
)

// DefaultWhaleLimit is how many recent transfers each poll inspects
const DefaultWhaleLimit = 50

// TransferLoader loads the newest transfers of a mint
type TransferLoader interface {
	Load(ctx context.Context, mint string, limit int) ([]token.RawTransfer, error)
}

// WhalePublisher forwards whale alerts downstream
type WhalePublisher interface {
	PublishWhaleAlert(ctx context.Context, a alert.WhaleAlert) error
}

// WhaleHandler is called once per poll and mint with the newly seen whales
type WhaleHandler func(mint string, whales []alert.WhaleAlert)

// WhaleConfig configures a WhaleWatcher
type WhaleConfig struct {
	Mints     []string
	Threshold float64
	Limit     int
	Interval  time.Duration
	Enabled   bool
}

// WhaleWatcher polls recent transfers and alerts on large ones.
// Each signature is reported at most once.
type WhaleWatcher struct {
	*workers.BaseWorker
	cfg       WhaleConfig
	transfers TransferLoader
	tracker   *behavior.Tracker
	publisher WhalePublisher
	onWhales  WhaleHandler

	// seen holds, per mint, the signatures of the previous poll. The upstream
	// returns the newest transfers only, so a signature that dropped out of
	// the window never comes back and can be forgotten.
	mu   sync.Mutex
	seen map[string]map[string]struct{}
}

// WhaleOption configures a WhaleWatcher
type WhaleOption func(*WhaleWatcher)

// WithWhalePublisher publishes every alert
func WithWhalePublisher(p WhalePublisher) WhaleOption {
	return func(w *WhaleWatcher) {
		w.publisher = p
	}
}

// WithWhaleHandler registers the OnWhales callback
func WithWhaleHandler(fn WhaleHandler) WhaleOption {
	return func(w *WhaleWatcher) {
		w.onWhales = fn
	}
}

// WithTracker records the sender of every new transfer
func WithTracker(t *behavior.Tracker) WhaleOption {
	return func(w *WhaleWatcher) {
		w.tracker = t
	}
}

// NewWhaleWatcher creates a new whale watcher
func NewWhaleWatcher(cfg WhaleConfig, transfers TransferLoader, opts ...WhaleOption) *WhaleWatcher {
	if cfg.Threshold <= 0 {
		cfg.Threshold = analytics.DefaultWhaleThreshold
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultWhaleLimit
	}

	w := &WhaleWatcher{
		BaseWorker: workers.NewBaseWorker("whale_watcher", cfg.Interval, cfg.Enabled),
		cfg:        cfg,
		transfers:  transfers,
		seen:       make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run executes one poll over every configured mint
func (w *WhaleWatcher) Run(ctx context.Context) error {
	total := 0
	var errs errors.MultiError

	for _, mint := range w.cfg.Mints {
		n, err := w.Check(ctx, mint)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log().Warnw("Whale check failed", "mint", mint, "error", err)
			errs.Add(errors.Wrapf(err, "check %s", mint))
			continue
		}
		total += n
	}

	w.Log().Debugw("Whale watch complete", "mints", len(w.cfg.Mints), "whales", total, "errors", len(errs.Errors))
	return errs.ToError()
}

// Check polls one mint and returns how many new whales were reported
func (w *WhaleWatcher) Check(ctx context.Context, mint string) (int, error) {
	transfers, err := w.transfers.Load(ctx, mint, w.cfg.Limit)
	if err != nil {
		return 0, err
	}

	fresh := w.markSeen(mint, transfers)
	if len(fresh) == 0 {
		return 0, nil
	}

	if w.tracker != nil {
		for _, t := range fresh {
			if t.Source != "" {
				w.tracker.Record(t.Source, t.Amount)
			}
		}
	}

	whales := analytics.DetectWhales(fresh, w.cfg.Threshold)
	if len(whales) == 0 {
		return 0, nil
	}

	alerts := make([]alert.WhaleAlert, 0, len(whales))
	for _, t := range whales {
		a := alert.WhaleAlert{
			Mint:        mint,
			Signature:   t.Signature,
			Source:      t.Source,
			Destination: t.Destination,
			Amount:      t.Amount,
			Threshold:   w.cfg.Threshold,
		}
		if t.BlockTime > 0 {
			a.BlockTime = time.Unix(t.BlockTime, 0).UTC()
		}
		alerts = append(alerts, a)

		metrics.WhaleAlerts.WithLabelValues(mint).Inc()
		w.Log().Infow("Whale transfer",
			"mint", mint,
			"amount", humanize.Commaf(analytics.Round(t.Amount, 2)),
			"from", t.Source,
			"to", t.Destination,
			"signature", t.Signature,
		)

		if w.publisher != nil {
			if err := w.publisher.PublishWhaleAlert(ctx, a); err != nil {
				w.Log().Errorw("Failed to publish whale alert", "mint", mint, "error", err)
			}
		}
	}

	if w.onWhales != nil {
		w.onWhales(mint, alerts)
	}
	return len(alerts), nil
}

// markSeen returns the transfers not reported by the previous poll of mint
func (w *WhaleWatcher) markSeen(mint string, transfers []token.RawTransfer) []token.RawTransfer {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.seen[mint]
	current := make(map[string]struct{}, len(transfers))

	var fresh []token.RawTransfer
	for _, t := range transfers {
		if t.Signature == "" {
			continue
		}
		if _, dup := current[t.Signature]; dup {
			continue
		}
		current[t.Signature] = struct{}{}
		if _, ok := prev[t.Signature]; !ok {
			fresh = append(fresh, t)
		}
	}

	w.seen[mint] = current
	return fresh
}
