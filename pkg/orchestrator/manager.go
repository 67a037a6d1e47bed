// Package orchestrator is the single entry point for outbound provider calls.
// A Manager answers from the response cache when it can, coalesces identical
// concurrent calls, and otherwise walks the provider chain with rate-limit
// admission, per-attempt timeouts and retries.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/conduit/pkg/apierror"
	"github.com/pario-ai/conduit/pkg/cache/memory"
	"github.com/pario-ai/conduit/pkg/config"
	"github.com/pario-ai/conduit/pkg/executor"
	"github.com/pario-ai/conduit/pkg/inflight"
	"github.com/pario-ai/conduit/pkg/logging"
	"github.com/pario-ai/conduit/pkg/metrics"
	"github.com/pario-ai/conduit/pkg/models"
	"github.com/pario-ai/conduit/pkg/provider"
	"github.com/pario-ai/conduit/pkg/ratelimit"
	"github.com/pario-ai/conduit/pkg/router"
	"github.com/pario-ai/conduit/pkg/tracker"
)

// recordTimeout bounds a single tracker write.
const recordTimeout = 5 * time.Second

// ErrInvalidCall is returned when a call is rejected before any provider is
// contacted.
var ErrInvalidCall = errors.New("invalid call")

// Result is the outcome of a successful Call.
type Result struct {
	Value []byte `json:"value"`
	// Provider is the provider that produced Value. It is empty for cache
	// hits.
	Provider string `json:"provider,omitempty"`
	Cached   bool   `json:"cached"`
	// Shared is set when Value came from another caller's execution.
	Shared bool `json:"shared"`
}

// flight is what a coalesced execution hands to every caller in its group.
type flight struct {
	value    []byte
	provider string
	attempts int
	// cached is set when the leader found the value already cached.
	cached bool
}

// Manager composes the cache, in-flight registry, rate limiter, executor and
// router behind Call.
type Manager struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Collector
	tracker  tracker.Tracker
	client   *http.Client
	adapters map[string]provider.Adapter

	limiter  *ratelimit.Limiter
	cache    *memory.Cache
	inflight *inflight.Registry[flight]
	executor *executor.Executor
	router   *router.Router

	records sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = logging.OrNop(l) }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithTracker records every call outcome to t.
func WithTracker(t tracker.Tracker) Option {
	return func(m *Manager) { m.tracker = t }
}

// WithHTTPClient sets the client used for provider requests.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithAdapter registers or replaces the adapter for a provider name.
func WithAdapter(name string, a provider.Adapter) Option {
	return func(m *Manager) { m.adapters[name] = a }
}

// New validates cfg and builds a Manager.
func New(cfg *config.Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	adapters, err := provider.FromConfig(cfg.Providers)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		logger:   zap.NewNop(),
		client:   &http.Client{},
		adapters: adapters,
		limiter:  ratelimit.New(ratelimit.FromConfig(cfg.Providers)),
		cache:    memory.New(cfg.Orchestrator.CacheTTL),
		inflight: inflight.New[flight](),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.executor = executor.New(m.client, executor.Policy{
		MaxRetries: cfg.Orchestrator.MaxRetries,
		BaseDelay:  cfg.Orchestrator.BaseRetryDelay,
		Timeout:    cfg.Orchestrator.RequestTimeout,
	},
		executor.WithLogger(m.logger),
		executor.OnRetry(func(spec models.RequestSpec, err error, _ time.Duration) {
			m.metrics.Retry(spec.Provider, err)
		}),
		executor.OnAttempt(func(name string, d time.Duration, err error) {
			m.metrics.ObserveAttempt(name, d.Seconds(), err)
		}),
	)
	m.router = router.New(cfg,
		router.WithLogger(m.logger),
		router.OnFailover(func(name string, _ error) { m.metrics.Failover(name) }),
	)
	m.metrics.RegisterInFlight(m.inflight.InFlight)

	return m, nil
}

// Start launches the background cache sweep. It stops when ctx is done or
// Close is called.
func (m *Manager) Start(ctx context.Context) {
	m.cache.Start(ctx, m.cfg.Orchestrator.SweepInterval)
}

// Close stops the sweep and waits for pending tracker writes. The tracker
// itself is owned by the caller.
func (m *Manager) Close() {
	m.cache.Close()
	m.records.Wait()
}

// Invalidate drops cached responses whose key starts with prefix. Keys have
// the form "<operation>:<hash>", so an operation name followed by ":" clears
// that operation.
func (m *Manager) Invalidate(prefix string) int {
	if prefix == "" {
		return m.cache.InvalidateAll()
	}
	return m.cache.Invalidate(prefix)
}

// CacheStats reports cache counters.
func (m *Manager) CacheStats() models.CacheStats {
	return m.cache.Stats()
}

// Limiter exposes the rate limiter for inspection.
func (m *Manager) Limiter() *ratelimit.Limiter {
	return m.limiter
}

// CallOperation runs Call over the provider chain configured for operation.
func (m *Manager) CallOperation(ctx context.Context, operation string, payload any) (Result, error) {
	chain, err := m.router.Resolve(operation)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidCall, err)
	}
	return m.Call(ctx, operation, chain, payload)
}

// Call performs operation with payload against the first provider in
// providers that succeeds.
//
// Identical calls (same operation and canonical payload) share one cached
// value for the TTL, and concurrent identical calls share one execution. The
// execution is detached from ctx: once started it runs to completion for
// every caller in its group, bounded only by the per-attempt timeout.
func (m *Manager) Call(ctx context.Context, operation string, providers []string, payload any) (Result, error) {
	start := time.Now()
	rec := models.CallRecord{
		RequestID: RequestIDFrom(ctx),
		Operation: operation,
		Chain:     providers,
	}

	res, err := m.call(ctx, operation, providers, payload, &rec)

	rec.LatencyMs = time.Since(start).Milliseconds()
	switch {
	case err != nil:
		rec.Outcome = outcomeFor(err)
		rec.StatusCode = apierror.StatusCode(err)
		rec.Error = err.Error()
	case res.Cached:
		rec.Outcome = models.OutcomeCacheHit
	case res.Shared:
		rec.Outcome = models.OutcomeShared
	default:
		rec.Outcome = models.OutcomeSuccess
	}
	rec.Provider = res.Provider
	m.finish(ctx, rec, err)
	return res, err
}

func (m *Manager) call(ctx context.Context, operation string, providers []string, payload any, rec *models.CallRecord) (Result, error) {
	if operation == "" {
		return Result{}, fmt.Errorf("%w: operation is required", ErrInvalidCall)
	}
	if len(providers) == 0 {
		return Result{}, fmt.Errorf("%w: operation %q: no providers given", ErrInvalidCall, operation)
	}

	canonical, err := memory.Canonicalize(payload)
	if err != nil {
		return Result{}, fmt.Errorf("%w: operation %q: %w", ErrInvalidCall, operation, err)
	}
	key := memory.Hash(operation, canonical)

	if v, ok := m.cache.Get(key); ok {
		m.metrics.CacheLookup(true)
		return Result{Value: v, Cached: true}, nil
	}
	m.metrics.CacheLookup(false)

	led := false
	f, _, err := m.inflight.Do(key, func() (flight, error) {
		led = true
		return m.execute(context.WithoutCancel(ctx), key, operation, providers, canonical)
	})
	if !led {
		m.metrics.Coalesced()
	}
	rec.Attempts = f.attempts
	if err != nil {
		return Result{Shared: !led}, err
	}
	// Each caller owns its copy.
	return Result{
		Value:    append([]byte(nil), f.value...),
		Provider: f.provider,
		Cached:   f.cached,
		Shared:   !led,
	}, nil
}

// execute is run by the leader of a coalesced group.
func (m *Manager) execute(ctx context.Context, key, operation string, providers []string, canonical []byte) (flight, error) {
	// An earlier group may have settled between our cache miss and joining.
	if v, ok := m.cache.Peek(key); ok {
		return flight{value: v, cached: true}, nil
	}

	attempts := 0
	value, used, err := m.router.Failover(ctx, providers, func(ctx context.Context, name string) ([]byte, error) {
		adapter, ok := m.adapters[name]
		if !ok {
			return nil, fmt.Errorf("provider %q is not configured", name)
		}
		if err := m.limiter.Check(name); err != nil {
			m.metrics.RateLimited(name)
			return nil, err
		}

		resp, err := m.executor.Execute(ctx, adapter, models.RequestSpec{
			Provider:  name,
			Operation: operation,
			Payload:   canonical,
		})
		if err != nil {
			var apiErr *apierror.Error
			if errors.As(err, &apiErr) {
				attempts += apiErr.Attempts
			}
			return nil, err
		}
		attempts += resp.Attempts
		return resp.Value, nil
	})
	if err != nil {
		return flight{attempts: attempts}, err
	}

	m.cache.Put(key, value)
	return flight{value: value, provider: used, attempts: attempts}, nil
}

func (m *Manager) finish(ctx context.Context, rec models.CallRecord, err error) {
	m.metrics.ObserveCall(rec.Operation, string(rec.Outcome))

	fields := []zap.Field{
		zap.String("operation", rec.Operation),
		zap.String("outcome", string(rec.Outcome)),
		zap.Int64("latency_ms", rec.LatencyMs),
	}
	if rec.RequestID != "" {
		fields = append(fields, zap.String("request_id", rec.RequestID))
	}
	if rec.Provider != "" {
		fields = append(fields, zap.String("provider", rec.Provider))
	}
	if err != nil {
		m.logger.Warn("call failed", append(fields, zap.Error(err))...)
	} else {
		m.logger.Debug("call finished", fields...)
	}

	if m.tracker == nil {
		return
	}
	rec.CreatedAt = time.Now().UTC()
	m.records.Add(1)
	go func() {
		defer m.records.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()
		if err := m.tracker.Record(wctx, rec); err != nil {
			m.logger.Error("record call", zap.Error(err))
		}
	}()
}

// outcomeFor classifies a failed call. A chain of one provider reports that
// provider's failure kind rather than exhaustion.
func outcomeFor(err error) models.CallOutcome {
	var ex *apierror.ExhaustedError
	if errors.As(err, &ex) {
		if len(ex.Failures) != 1 {
			return models.OutcomeExhausted
		}
		err = ex.Last()
	}
	switch apierror.KindOf(err) {
	case apierror.KindRateLimitExceeded:
		return models.OutcomeRateLimited
	case apierror.KindTimeout:
		return models.OutcomeTimeout
	case apierror.KindHTTPStatus:
		return models.OutcomeHTTPError
	case apierror.KindNetwork:
		return models.OutcomeNetwork
	default:
		return models.OutcomeError
	}
}
