package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure observed while talking to an upstream
type Kind string

const (
	// KindNetwork is a connection-level failure (refused, reset, DNS)
	KindNetwork Kind = "network"
	// KindTimeout is a single attempt that outlived its deadline
	KindTimeout Kind = "timeout"
	// KindUpstream is a non-2xx response
	KindUpstream Kind = "upstream"
	// KindDecode is a body that does not match the expected schema
	KindDecode Kind = "decode"
	// KindExhausted means every attempt failed with a retryable error
	KindExhausted Kind = "exhausted"
	// KindValidation is a parsed record that violates a domain rule
	KindValidation Kind = "validation"
)

// FetchError is the error type surfaced by the fetch layer and the data source clients
type FetchError struct {
	Kind     Kind
	Source   string
	Status   int // HTTP status for KindUpstream
	Attempts int // set on KindExhausted
	Err      error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	switch e.Kind {
	case KindUpstream:
		return fmt.Sprintf("%s: upstream returned status %d", e.Source, e.Status)
	case KindExhausted:
		return fmt.Sprintf("%s: %d attempts failed: %v", e.Source, e.Attempts, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Kind)
}

// Unwrap returns the underlying cause
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindUpstream:
		return true
	default:
		return false
	}
}

// NewFetchError builds a FetchError of an arbitrary kind
func NewFetchError(kind Kind, source string, err error) *FetchError {
	return &FetchError{Kind: kind, Source: source, Err: err}
}

// NewNetworkError wraps a transport failure
func NewNetworkError(source string, err error) *FetchError {
	return &FetchError{Kind: KindNetwork, Source: source, Err: err}
}

// NewTimeoutError wraps an attempt that exceeded its deadline
func NewTimeoutError(source string, err error) *FetchError {
	return &FetchError{Kind: KindTimeout, Source: source, Err: err}
}

// NewUpstreamError records a non-success status
func NewUpstreamError(source string, status int) *FetchError {
	return &FetchError{Kind: KindUpstream, Source: source, Status: status}
}

// NewDecodeError wraps a schema mismatch
func NewDecodeError(source string, err error) *FetchError {
	return &FetchError{Kind: KindDecode, Source: source, Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
}

// NewExhaustedError wraps the last retryable failure once the attempt budget is spent
func NewExhaustedError(source string, attempts int, last error) *FetchError {
	return &FetchError{Kind: KindExhausted, Source: source, Attempts: attempts, Err: errors.Join(ErrRetryBudgetSpent, last)}
}

// NewRecordError reports an invalid record inside an otherwise well-formed payload
func NewRecordError(source string, err error) *FetchError {
	return &FetchError{Kind: KindValidation, Source: source, Err: err}
}

// KindOf returns the kind of the first FetchError in err's chain, or "" if none
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind checks whether err carries a FetchError of the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether err is a retryable FetchError
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return false
}
