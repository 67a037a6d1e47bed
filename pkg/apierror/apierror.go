// Package apierror defines the error taxonomy returned by the orchestrator.
//
// Retry and failover decisions are made from the error kind alone through
// Retryable, never from control flow at the call site.
package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed call.
type Kind int

const (
	KindUnknown Kind = iota
	KindRateLimitExceeded
	KindTimeout
	KindNetwork
	KindHTTPStatus
	KindAllProvidersExhausted
)

func (k Kind) String() string {
	switch k {
	case KindRateLimitExceeded:
		return "rate_limit_exceeded"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network_error"
	case KindHTTPStatus:
		return "http_status"
	case KindAllProvidersExhausted:
		return "all_providers_exhausted"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching.
var (
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrTimeout               = errors.New("request timed out")
	ErrNetwork               = errors.New("network error")
	ErrHTTPStatus            = errors.New("http error status")
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
)

// Error is a classified failure from a single provider.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	// Attempts is the number of executor attempts made before this error
	// was returned. Zero for failures that never reached the executor.
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	switch e.Kind {
	case KindHTTPStatus:
		fmt.Fprintf(&b, "http status %d", e.StatusCode)
	case KindRateLimitExceeded:
		b.WriteString(ErrRateLimitExceeded.Error())
	case KindTimeout:
		b.WriteString(ErrTimeout.Error())
	case KindNetwork:
		b.WriteString(ErrNetwork.Error())
	default:
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrRateLimitExceeded:
		return e.Kind == KindRateLimitExceeded
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrHTTPStatus:
		return e.Kind == KindHTTPStatus
	}
	return false
}

// RateLimited returns the denial error for provider.
func RateLimited(provider string) *Error {
	return &Error{Kind: KindRateLimitExceeded, Provider: provider}
}

// Timeout wraps err as a timeout for provider.
func Timeout(provider string, err error) *Error {
	return &Error{Kind: KindTimeout, Provider: provider, Err: err}
}

// Network wraps err as a connection-level failure for provider.
func Network(provider string, err error) *Error {
	return &Error{Kind: KindNetwork, Provider: provider, Err: err}
}

// HTTPStatus reports a well-formed error response. body is kept as detail
// when non-empty.
func HTTPStatus(provider string, code int, body []byte) *Error {
	e := &Error{Kind: KindHTTPStatus, Provider: provider, StatusCode: code}
	if detail := strings.TrimSpace(string(body)); detail != "" {
		if len(detail) > 512 {
			detail = detail[:512]
		}
		e.Err = errors.New(detail)
	}
	return e
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return KindAllProvidersExhausted
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindHTTPStatus {
		return e.StatusCode
	}
	return 0
}

// Retryable reports whether the executor may retry after err.
// Timeouts, network failures and 5xx responses are transient; 4xx responses
// and rate-limit denials are not.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindTimeout, KindNetwork:
		return true
	case KindHTTPStatus:
		return e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}
