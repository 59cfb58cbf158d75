package watch

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"tokenrisk/internal/adapters/onchain"
	"tokenrisk/internal/domain/alert"
	"tokenrisk/internal/metrics"
	"tokenrisk/internal/workers"
	"tokenrisk/pkg/errors"
)

// DefaultMintScanLimit is how many token program signatures each scan inspects
const DefaultMintScanLimit = 500

// MintPublisher forwards newly born mints downstream
type MintPublisher interface {
	PublishMintBirth(ctx context.Context, b alert.MintBirth) error
}

// MintScanConfig configures a MintScanner
type MintScanConfig struct {
	Limit    int
	Interval time.Duration
	Enabled  bool
}

// MintScanner reports mints initialized since the previous scan. It keeps a
// slot cursor: every scan remembers the current slot and the next one skips
// signatures at or below it.
type MintScanner struct {
	*workers.BaseWorker
	cfg       MintScanConfig
	chain     onchain.Querier
	publisher MintPublisher
	onBirth   func(alert.MintBirth)

	mu       sync.Mutex
	lastSlot uint64
}

// MintScanOption configures a MintScanner
type MintScanOption func(*MintScanner)

// WithMintPublisher publishes every new mint
func WithMintPublisher(p MintPublisher) MintScanOption {
	return func(s *MintScanner) {
		s.publisher = p
	}
}

// WithMintHandler registers a callback for every new mint
func WithMintHandler(fn func(alert.MintBirth)) MintScanOption {
	return func(s *MintScanner) {
		s.onBirth = fn
	}
}

// NewMintScanner creates a scanner over the spl-token program
func NewMintScanner(cfg MintScanConfig, chain onchain.Querier, opts ...MintScanOption) *MintScanner {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultMintScanLimit
	}
	s := &MintScanner{
		BaseWorker: workers.NewBaseWorker("mint_scanner", cfg.Interval, cfg.Enabled),
		cfg:        cfg,
		chain:      chain,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one scan
func (s *MintScanner) Run(ctx context.Context) error {
	_, err := s.Scan(ctx)
	return err
}

// Scan returns the mints initialized in slots after the previous scan.
// The cursor advances before the transactions are inspected, so a failed
// lookup is not retried on the next scan.
func (s *MintScanner) Scan(ctx context.Context) ([]alert.MintBirth, error) {
	current, err := s.chain.CurrentSlot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "current slot")
	}

	s.mu.Lock()
	from := s.lastSlot + 1
	s.lastSlot = current
	s.mu.Unlock()

	sigs, err := s.chain.SignaturesForAddress(ctx, onchain.TokenProgram, s.cfg.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "token program signatures")
	}

	var (
		births []alert.MintBirth
		errs   errors.MultiError
	)
	for _, sig := range sigs {
		if sig.Slot < from || sig.Failed {
			continue
		}

		found, ok, err := s.chain.MintInitialization(ctx, sig.Signature)
		if err != nil {
			if ctx.Err() != nil {
				return births, ctx.Err()
			}
			errs.Add(errors.Wrapf(err, "transaction %s", sig.Signature))
			continue
		}
		if !ok {
			continue
		}

		birth := alert.MintBirth{
			Mint:      found.Mint,
			Creator:   found.Creator,
			Signature: found.Signature,
			Slot:      found.Slot,
		}
		if found.BlockTime > 0 {
			birth.BlockTime = time.Unix(found.BlockTime, 0).UTC()
		}
		if supply, err := s.chain.TokenSupply(ctx, found.Mint); err != nil {
			s.Log().Warnw("Initial supply lookup failed", "mint", found.Mint, "error", err)
		} else {
			birth.InitialSupply = supply.Amount
		}

		births = append(births, birth)
		s.report(ctx, birth)
	}

	s.Log().Debugw("Mint scan complete",
		"from_slot", from,
		"to_slot", current,
		"signatures", len(sigs),
		"births", len(births),
	)
	return births, errs.ToError()
}

// LastSlot returns the cursor of the previous scan
func (s *MintScanner) LastSlot() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSlot
}

func (s *MintScanner) report(ctx context.Context, b alert.MintBirth) {
	metrics.MintBirths.Inc()
	s.Log().Infow("New mint",
		"mint", b.Mint,
		"creator", b.Creator,
		"initial_supply", humanize.Commaf(b.InitialSupply),
		"slot", b.Slot,
	)

	if s.publisher != nil {
		if err := s.publisher.PublishMintBirth(ctx, b); err != nil {
			s.Log().Errorw("Failed to publish mint birth", "mint", b.Mint, "error", err)
		}
	}
	if s.onBirth != nil {
		s.onBirth(b)
	}
}
