package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"tokenrisk/pkg/errors"
)

// Limiter provides rate limiting for calls to a single upstream
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter creates a new rate limiter
// requestsPerMinute: maximum number of requests allowed per minute
func NewLimiter(name string, requestsPerMinute int) *Limiter {
	rps := float64(requestsPerMinute) / 60.0

	// Allow burst of 10% of per-minute limit
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
	}
}

// Wait blocks until the rate limiter allows the request
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(errors.Join(errors.ErrRateLimitExceeded, err), "rate limiter %s", l.name)
	}
	return nil
}

// Allow checks if a request is allowed without blocking
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Registry hands out one limiter per upstream source, created lazily
type Registry struct {
	limiters          map[string]*Limiter
	requestsPerMinute int
	mu                sync.Mutex
}

// NewRegistry creates a registry whose limiters allow requestsPerMinute each.
// A non-positive rate disables limiting.
func NewRegistry(requestsPerMinute int) *Registry {
	return &Registry{
		limiters:          make(map[string]*Limiter),
		requestsPerMinute: requestsPerMinute,
	}
}

// Set overrides the limiter for a source
func (r *Registry) Set(source string, limiter *Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[source] = limiter
}

// Wait blocks until the source's limiter admits one request
func (r *Registry) Wait(ctx context.Context, source string) error {
	if r == nil {
		return nil
	}
	l := r.get(source)
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}

func (r *Registry) get(source string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[source]; ok {
		return l
	}
	if r.requestsPerMinute <= 0 {
		return nil
	}
	l := NewLimiter(source, r.requestsPerMinute)
	r.limiters[source] = l
	return l
}
