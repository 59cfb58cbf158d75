// Package fetch performs upstream HTTP requests with bounded retries,
// exponential backoff and a per-attempt timeout.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"tokenrisk/internal/adapters/ratelimit"
	"tokenrisk/internal/metrics"
	"tokenrisk/pkg/errors"
	"tokenrisk/pkg/logger"
)

// Request describes one upstream call
type Request struct {
	Source string // upstream name, used for limiter, metrics and errors
	Method string // defaults to GET
	URL    string
	Header http.Header
	Body   []byte
}

// Policy bounds the retry loop of a single fetch
type Policy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	AttemptTimeout time.Duration
	MaxDelay       time.Duration // 0 leaves the backoff uncapped
}

// DefaultPolicy returns a sensible default configuration
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		AttemptTimeout: 10 * time.Second,
		MaxDelay:       5 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = DefaultPolicy().AttemptTimeout
	}
	return p
}

// Backoff returns the wait after failed attempt k (numbered from 1): InitialDelay * 2^(k-1)
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(2, float64(attempt-1)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Budget is the longest a fetch under this policy can take: every attempt
// timing out plus every backoff between them. Limiter waits are not included.
func (p Policy) Budget() time.Duration {
	p = p.normalized()
	total := time.Duration(p.MaxAttempts) * p.AttemptTimeout
	for k := 1; k < p.MaxAttempts; k++ {
		total += p.Backoff(k)
	}
	return total
}

// AttemptObserver is notified after every attempt; err is nil on success
type AttemptObserver func(source string, attempt int, err error)

// Fetcher is stateless apart from its collaborators and safe for concurrent use
type Fetcher struct {
	client    *http.Client
	limiters  *ratelimit.Registry
	sleep     func(ctx context.Context, d time.Duration) error
	onAttempt AttemptObserver
	log       *logger.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithHTTPClient sets custom http.Client
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithLimiters throttles every attempt through the per-source limiter registry
func WithLimiters(limiters *ratelimit.Registry) Option {
	return func(f *Fetcher) {
		f.limiters = limiters
	}
}

// WithSleep replaces the backoff wait, mainly for tests
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) {
		f.sleep = sleep
	}
}

// WithAttemptObserver registers a callback invoked after each attempt
func WithAttemptObserver(fn AttemptObserver) Option {
	return func(f *Fetcher) {
		f.onAttempt = fn
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(f *Fetcher) {
		f.log = log
	}
}

// New creates a Fetcher
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{},
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.Get().With("component", "fetcher")
	}
	return f
}

// Fetch returns the raw body of a successful response
func (f *Fetcher) Fetch(ctx context.Context, req Request, policy Policy) ([]byte, error) {
	return f.do(ctx, req, policy, nil)
}

// FetchJSON decodes a successful response into dest. A body that does not
// decode is a terminal error and is never retried.
func (f *Fetcher) FetchJSON(ctx context.Context, req Request, policy Policy, dest interface{}) error {
	_, err := f.do(ctx, req, policy, dest)
	return err
}

func (f *Fetcher) do(ctx context.Context, req Request, policy Policy, dest interface{}) ([]byte, error) {
	policy = policy.normalized()
	if req.Source == "" {
		req.Source = "upstream"
	}

	for attempt := 1; ; attempt++ {
		if err := f.limiters.Wait(ctx, req.Source); err != nil {
			return nil, err
		}

		start := time.Now()
		body, err := f.attempt(ctx, req, policy.AttemptTimeout, dest)
		metrics.RecordFetchAttempt(req.Source, outcome(err), time.Since(start))
		if f.onAttempt != nil {
			f.onAttempt(req.Source, attempt, err)
		}

		if err == nil {
			return body, nil
		}

		// The caller gave up; this is not an upstream failure.
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "fetch cancelled")
		}

		if !errors.IsRetryable(err) {
			return nil, err
		}

		if attempt >= policy.MaxAttempts {
			metrics.FetchExhausted.WithLabelValues(req.Source).Inc()
			return nil, errors.NewExhaustedError(req.Source, attempt, err)
		}

		delay := policy.Backoff(attempt)
		f.log.Debugw("Retrying upstream fetch",
			"source", req.Source,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		if err := f.sleep(ctx, delay); err != nil {
			return nil, errors.Wrap(err, "fetch cancelled")
		}
	}
}

// attempt performs a single bounded request; cancelling it never touches sibling fetches
func (f *Fetcher) attempt(ctx context.Context, req Request, timeout time.Duration, dest interface{}) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var reqBody io.Reader
	if req.Body != nil {
		reqBody = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, req.URL, reqBody)
	if err != nil {
		return nil, errors.NewFetchError(errors.KindValidation, req.Source, err)
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, attemptCtx, req.Source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.NewUpstreamError(req.Source, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, attemptCtx, req.Source, err)
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return nil, errors.NewDecodeError(req.Source, err)
		}
	}

	return body, nil
}

func classifyTransportError(parent, attemptCtx context.Context, source string, err error) error {
	if parent.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return errors.NewTimeoutError(source, errors.Join(errors.ErrTimeout, err))
	}
	return errors.NewNetworkError(source, err)
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if kind := errors.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
