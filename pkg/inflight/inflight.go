// Package inflight coalesces concurrent identical requests so that a burst
// of callers shares one underlying execution.
package inflight

import (
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Registry tracks executions in flight by key.
//
// The first caller for a key runs the function; callers arriving before it
// settles wait and receive the same value or the same error. The key is
// released as soon as the function returns or panics, so a later call always
// starts a fresh execution. Results are not retained: caching successful
// values is the caller's concern.
type Registry[T any] struct {
	group   singleflight.Group
	active  atomic.Int64
	waiters atomic.Int64
}

// New creates an empty Registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Do runs fn for key unless an execution for key is already in flight, in
// which case it waits for that execution instead. shared reports whether the
// result was delivered to more than one caller. The value fn returned is
// passed back alongside its error.
//
// Waiters cannot detach from a group: every caller rides the leader's
// execution to completion.
func (r *Registry[T]) Do(key string, fn func() (T, error)) (value T, shared bool, err error) {
	r.waiters.Add(1)
	defer r.waiters.Add(-1)

	v, err, shared := r.group.Do(key, func() (any, error) {
		r.active.Add(1)
		defer r.active.Add(-1)
		return fn()
	})
	value, _ = v.(T)
	return value, shared, err
}

// InFlight returns the number of executions currently running.
func (r *Registry[T]) InFlight() int {
	return int(r.active.Load())
}

// Waiting returns the number of callers currently inside Do, leaders
// included.
func (r *Registry[T]) Waiting() int {
	return int(r.waiters.Load())
}
