package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenrisk/internal/behavior"
	"tokenrisk/internal/cache"
)

func TestBehaviorPruner_Run(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := behavior.NewTracker(behavior.WithClock(func() time.Time { return now }))

	tracker.Record("old", 1)
	now = now.Add(2 * time.Hour)
	tracker.Record("fresh", 1)

	p := NewBehaviorPruner(tracker, time.Hour, time.Minute)
	assert.True(t, p.Enabled())
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 1, tracker.Len())
	assert.Equal(t, "fresh", tracker.Snapshot()[0].Address)
}

func TestBehaviorPruner_DisabledWithoutRetention(t *testing.T) {
	p := NewBehaviorPruner(behavior.NewTracker(), 0, time.Minute)
	assert.False(t, p.Enabled())
}

func TestCacheJanitor_Run(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := cache.New(time.Minute, cache.WithClock(func() time.Time { return now }))

	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)
	now = now.Add(time.Minute)

	j := NewCacheJanitor(c, time.Minute)
	require.NoError(t, j.Run(context.Background()))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []string{"long"}, c.Keys())
}
