package behavior

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestTracker_GetCreatesDefault(t *testing.T) {
	c := newClock()
	tr := NewTracker(WithClock(c.Now))

	p := tr.Get("addr")
	assert.Equal(t, Profile{Address: "addr", LastSeen: c.Now()}, p)
	assert.Equal(t, 1, tr.Len())

	c.Advance(time.Minute)
	assert.Equal(t, c.Now().Add(-time.Minute), tr.Get("addr").LastSeen, "get does not refresh last seen")
}

func TestTracker_RecordRunningMean(t *testing.T) {
	c := newClock()
	tr := NewTracker(WithClock(c.Now))

	tr.Record("addr", 10)
	tr.Record("addr", 20)
	c.Advance(time.Second)
	p := tr.Record("addr", 60)

	assert.Equal(t, int64(3), p.TxCount)
	assert.InDelta(t, 30.0, p.AvgAmount, 1e-9)
	assert.Equal(t, c.Now(), p.LastSeen)
	assert.Equal(t, p, tr.Get("addr"))
}

func TestTracker_Prune(t *testing.T) {
	c := newClock()
	tr := NewTracker(WithClock(c.Now))

	tr.Record("old", 1)
	c.Advance(2 * time.Hour)
	tr.Record("fresh", 1)

	assert.Equal(t, 1, tr.Prune(time.Hour))
	require.Len(t, tr.Snapshot(), 1)
	assert.Equal(t, "fresh", tr.Snapshot()[0].Address)

	assert.Zero(t, tr.Prune(time.Hour))
}

func TestTracker_ConcurrentRecordsOnOneAddress(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				tr.Record("hot", 5)
				tr.Record(fmt.Sprintf("cold-%d", j), 1)
			}
		}()
	}
	wg.Wait()

	p := tr.Get("hot")
	assert.Equal(t, int64(1000), p.TxCount)
	assert.InDelta(t, 5.0, p.AvgAmount, 1e-9)
	assert.Equal(t, 21, tr.Len())
}

func TestTracker_SnapshotIsACopy(t *testing.T) {
	tr := NewTracker()
	tr.Record("b", 1)
	tr.Record("a", 2)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].Address)

	snap[0].TxCount = 99
	assert.Equal(t, int64(1), tr.Get("a").TxCount)
}
