package router

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pario-ai/conduit/pkg/apierror"
	"github.com/pario-ai/conduit/pkg/config"
	"github.com/pario-ai/conduit/pkg/logging"
)

// AttemptFunc runs a logical operation against one provider.
type AttemptFunc func(ctx context.Context, provider string) ([]byte, error)

// Router resolves operations to ordered provider chains and walks a chain
// until one provider succeeds.
type Router struct {
	cfg    *config.Config
	logger *zap.Logger
	onFail func(provider string, err error)
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = logging.OrNop(l) }
}

// OnFailover registers a hook called each time a provider fails and the
// chain moves on.
func OnFailover(fn func(provider string, err error)) Option {
	return func(r *Router) { r.onFail = fn }
}

// New creates a Router from the given configuration.
func New(cfg *config.Config, opts ...Option) *Router {
	r := &Router{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the ordered provider chain for an operation.
// If the operation matches a configured route, the route's providers are
// returned, skipping names that are not configured. Otherwise the first
// provider is used.
func (r *Router) Resolve(operation string) ([]string, error) {
	if len(r.cfg.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	for _, route := range r.cfg.Router.Routes {
		if route.Operation != operation {
			continue
		}
		var chain []string
		for _, name := range route.Providers {
			if _, ok := r.cfg.Provider(name); !ok {
				continue // skip unknown providers
			}
			chain = append(chain, name)
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("route %q: all providers unknown", operation)
		}
		return chain, nil
	}

	// No matching route, default to first provider
	return []string{r.cfg.Providers[0].Name}, nil
}

// Failover tries each provider in chain in order and returns the first
// success along with the provider that produced it. Any failure, including a
// rate-limit denial, moves on to the next provider. When every provider
// fails the result is an *apierror.ExhaustedError listing each failure.
func (r *Router) Failover(ctx context.Context, chain []string, attempt AttemptFunc) ([]byte, string, error) {
	if len(chain) == 0 {
		return nil, "", fmt.Errorf("empty provider chain")
	}

	exhausted := &apierror.ExhaustedError{}
	for i, name := range chain {
		if err := ctx.Err(); err != nil {
			exhausted.Failures = append(exhausted.Failures, apierror.ProviderFailure{Provider: name, Err: err})
			break
		}

		value, err := attempt(ctx, name)
		if err == nil {
			return value, name, nil
		}
		exhausted.Failures = append(exhausted.Failures, apierror.ProviderFailure{Provider: name, Err: err})

		if i < len(chain)-1 {
			r.logger.Warn("provider failed, trying next",
				zap.String("provider", name),
				zap.String("next", chain[i+1]),
				zap.Error(err))
			if r.onFail != nil {
				r.onFail(name, err)
			}
		}
	}
	return nil, "", exhausted
}
