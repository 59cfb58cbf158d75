// Package behavior keeps a rolling activity profile per address.
package behavior

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"tokenrisk/internal/metrics"
)

// Profile is the rolling activity summary of one address
type Profile struct {
	Address   string    `json:"address"`
	LastSeen  time.Time `json:"last_seen"`
	TxCount   int64     `json:"tx_count"`
	AvgAmount float64   `json:"avg_amount"`
}

const shardCount = 64

type shard struct {
	mu       sync.Mutex
	profiles map[string]*Profile
}

// Tracker owns every profile. Updates to one address are serialized by its
// shard lock; different shards proceed in parallel.
type Tracker struct {
	shards [shardCount]*shard
	now    func() time.Time
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates an empty tracker
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for i := range t.shards {
		t.shards[i] = &shard{profiles: make(map[string]*Profile)}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) shard(address string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(address))
	return t.shards[h.Sum32()%shardCount]
}

// lookup returns the profile for address, creating it if absent. Caller holds s.mu.
func (t *Tracker) lookup(s *shard, address string) *Profile {
	p, ok := s.profiles[address]
	if !ok {
		p = &Profile{Address: address, LastSeen: t.now()}
		s.profiles[address] = p
		metrics.BehaviorProfiles.Inc()
	}
	return p
}

// Get returns a copy of the profile, creating an empty one on first sight
func (t *Tracker) Get(address string) Profile {
	s := t.shard(address)
	s.mu.Lock()
	defer s.mu.Unlock()
	return *t.lookup(s, address)
}

// Record counts one transfer of amount by address and refreshes its last-seen time
func (t *Tracker) Record(address string, amount float64) Profile {
	s := t.shard(address)
	s.mu.Lock()
	defer s.mu.Unlock()

	p := t.lookup(s, address)
	p.TxCount++
	p.AvgAmount = (p.AvgAmount*float64(p.TxCount-1) + amount) / float64(p.TxCount)
	p.LastSeen = t.now()
	return *p
}

// Prune removes profiles last seen more than maxAge ago and returns how many were removed
func (t *Tracker) Prune(maxAge time.Duration) int {
	cutoff := t.now().Add(-maxAge)
	removed := 0
	for _, s := range t.shards {
		s.mu.Lock()
		for addr, p := range s.profiles {
			if p.LastSeen.Before(cutoff) {
				delete(s.profiles, addr)
				removed++
			}
		}
		s.mu.Unlock()
	}
	metrics.BehaviorProfiles.Sub(float64(removed))
	return removed
}

// Len returns the number of tracked addresses
func (t *Tracker) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += len(s.profiles)
		s.mu.Unlock()
	}
	return n
}

// Snapshot copies every profile, ordered by address
func (t *Tracker) Snapshot() []Profile {
	var out []Profile
	for _, s := range t.shards {
		s.mu.Lock()
		for _, p := range s.profiles {
			out = append(out, *p)
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
