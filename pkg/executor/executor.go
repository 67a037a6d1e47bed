// Package executor performs a single provider call under a timeout and
// retries transient failures with exponential backoff.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/conduit/pkg/apierror"
	"github.com/pario-ai/conduit/pkg/logging"
	"github.com/pario-ai/conduit/pkg/models"
	"github.com/pario-ai/conduit/pkg/provider"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 10 << 20

// Policy bounds one provider's attempt sequence.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// BaseDelay is the wait before the first retry; each later wait doubles.
	BaseDelay time.Duration
	// Timeout bounds each individual attempt.
	Timeout time.Duration
}

// Response is a successful provider result.
type Response struct {
	Value      []byte
	StatusCode int
	Attempts   int
}

// Executor runs requests against provider adapters.
type Executor struct {
	client  *http.Client
	policy  Policy
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	onRetry func(spec models.RequestSpec, err error, delay time.Duration)
	observe func(provider string, d time.Duration, err error)
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = logging.OrNop(l) }
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// OnRetry registers a hook called before each backoff wait. spec is the
// attempt that just failed.
func OnRetry(fn func(spec models.RequestSpec, err error, delay time.Duration)) Option {
	return func(e *Executor) { e.onRetry = fn }
}

// OnAttempt registers a hook called after every attempt with its latency.
func OnAttempt(fn func(provider string, d time.Duration, err error)) Option {
	return func(e *Executor) { e.observe = fn }
}

// New creates an Executor. A nil client uses http.DefaultClient.
func New(client *http.Client, policy Policy, opts ...Option) *Executor {
	if client == nil {
		client = http.DefaultClient
	}
	e := &Executor{
		client: client,
		policy: policy,
		logger: zap.NewNop(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxBackoff caps a single retry wait.
const MaxBackoff = time.Hour

// Backoff returns the wait after attempt (0-based) fails: base * 2^attempt,
// saturating at MaxBackoff.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 0 {
		return base
	}
	if base >= MaxBackoff {
		return MaxBackoff
	}
	d := base
	for range attempt {
		if d >= MaxBackoff/2 {
			return MaxBackoff
		}
		d *= 2
	}
	return d
}

// Execute runs spec against adapter, retrying retryable failures while
// spec.Attempt < MaxRetries. The final error is an *apierror.Error carrying
// the number of attempts made, or the parent context's error if it ended
// during a backoff wait.
func (e *Executor) Execute(ctx context.Context, adapter provider.Adapter, spec models.RequestSpec) (Response, error) {
	for {
		value, status, err := e.attempt(ctx, adapter, spec)
		if err == nil {
			return Response{Value: value, StatusCode: status, Attempts: spec.Attempt + 1}, nil
		}

		var apiErr *apierror.Error
		if errors.As(err, &apiErr) {
			apiErr.Attempts = spec.Attempt + 1
		}

		if !apierror.Retryable(err) || spec.Attempt >= e.policy.MaxRetries {
			return Response{}, err
		}

		delay := Backoff(e.policy.BaseDelay, spec.Attempt)
		e.logger.Debug("retrying provider call",
			zap.String("provider", spec.Provider),
			zap.String("operation", spec.Operation),
			zap.Int("attempt", spec.Attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if e.onRetry != nil {
			e.onRetry(spec, err, delay)
		}
		if serr := e.sleep(ctx, delay); serr != nil {
			return Response{}, fmt.Errorf("backoff for %s: %w", spec.Provider, serr)
		}
		spec = spec.Next()
	}
}

// attempt performs one bounded HTTP round trip and classifies the outcome.
func (e *Executor) attempt(ctx context.Context, adapter provider.Adapter, spec models.RequestSpec) ([]byte, int, error) {
	start := time.Now()
	value, status, err := e.roundTrip(ctx, adapter, spec)
	if e.observe != nil {
		e.observe(spec.Provider, time.Since(start), err)
	}
	return value, status, err
}

func (e *Executor) roundTrip(ctx context.Context, adapter provider.Adapter, spec models.RequestSpec) ([]byte, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.policy.Timeout)
	defer cancel()

	req, err := adapter.BuildRequest(attemptCtx, spec.Payload)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: build request: %w", spec.Provider, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, classifyTransportError(attemptCtx, spec.Provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, classifyTransportError(attemptCtx, spec.Provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, apierror.HTTPStatus(spec.Provider, resp.StatusCode, body)
	}

	value, err := adapter.ParseResponse(body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s: parse response: %w", spec.Provider, err)
	}
	return value, resp.StatusCode, nil
}

// classifyTransportError maps a failed round trip to Timeout when the
// attempt's deadline fired, and to NetworkError otherwise. A cancelled
// parent context is returned as is so it is never retried.
func classifyTransportError(attemptCtx context.Context, provider string, err error) error {
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return apierror.Timeout(provider, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", provider, err)
	}
	return apierror.Network(provider, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
