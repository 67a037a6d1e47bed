// Package ratelimit provides per-provider sliding-window admission control.
package ratelimit

import (
	"sync"
	"time"

	"github.com/pario-ai/conduit/pkg/apierror"
	"github.com/pario-ai/conduit/pkg/config"
)

// Limit allows Requests admissions within any Window-long interval.
type Limit struct {
	Requests int
	Window   time.Duration
}

// window holds the admission timestamps for one provider, oldest first.
type window struct {
	mu         sync.Mutex
	limit      Limit
	timestamps []time.Time
}

// Limiter admits or denies attempts per provider. The set of windows is fixed
// at construction so lookups need no lock; each window serializes only its
// own prune-then-append sequence.
type Limiter struct {
	windows map[string]*window
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter for the given provider limits.
func New(limits map[string]Limit, opts ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window, len(limits)),
		now:     time.Now,
	}
	for name, lim := range limits {
		l.windows[name] = &window{limit: lim, timestamps: make([]time.Time, 0, lim.Requests)}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FromConfig builds limits from the providers that declare a rate_limit.
func FromConfig(providers []config.ProviderConfig) map[string]Limit {
	limits := make(map[string]Limit)
	for _, p := range providers {
		if p.RateLimit == nil {
			continue
		}
		limits[p.Name] = Limit{Requests: p.RateLimit.Requests, Window: p.RateLimit.Window}
	}
	return limits
}

// Admit records an admission for provider and reports whether it was
// allowed. Providers without a configured limit are always admitted.
func (l *Limiter) Admit(provider string) bool {
	w, ok := l.windows[provider]
	if !ok {
		return true
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	w.prune(now)
	if len(w.timestamps) >= w.limit.Requests {
		return false
	}
	w.timestamps = append(w.timestamps, now)
	return true
}

// Check is Admit returning a typed denial.
func (l *Limiter) Check(provider string) error {
	if !l.Admit(provider) {
		return apierror.RateLimited(provider)
	}
	return nil
}

// Remaining returns how many admissions provider has left in the current
// window. ok is false for unlimited providers.
func (l *Limiter) Remaining(provider string) (remaining int, ok bool) {
	w, ok := l.windows[provider]
	if !ok {
		return 0, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(l.now())
	return w.limit.Requests - len(w.timestamps), true
}

// prune drops timestamps that fell out of the window. Must hold w.mu.
func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.limit.Window)
	i := 0
	for i < len(w.timestamps) && !w.timestamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(w.timestamps, w.timestamps[i:])
	w.timestamps = w.timestamps[:n]
}
