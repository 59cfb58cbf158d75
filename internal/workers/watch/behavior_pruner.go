package watch

import (
	"context"
	"time"

	"tokenrisk/internal/behavior"
	"tokenrisk/internal/workers"
)

// BehaviorPruner evicts wallet profiles that have been idle longer than the retention
type BehaviorPruner struct {
	*workers.BaseWorker
	tracker   *behavior.Tracker
	retention time.Duration
}

// NewBehaviorPruner creates a new pruner
func NewBehaviorPruner(tracker *behavior.Tracker, retention, interval time.Duration) *BehaviorPruner {
	return &BehaviorPruner{
		BaseWorker: workers.NewBaseWorker("behavior_pruner", interval, retention > 0),
		tracker:    tracker,
		retention:  retention,
	}
}

// Run prunes once
func (p *BehaviorPruner) Run(ctx context.Context) error {
	removed := p.tracker.Prune(p.retention)
	if removed > 0 {
		p.Log().Infow("Pruned idle wallet profiles", "removed", removed, "remaining", p.tracker.Len())
	}
	return nil
}
