package apierror

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", Timeout("p", context.DeadlineExceeded), true},
		{"network", Network("p", errors.New("connection refused")), true},
		{"server error", HTTPStatus("p", 503, nil), true},
		{"client error", HTTPStatus("p", 400, nil), false},
		{"too many requests", HTTPStatus("p", 429, nil), false},
		{"rate limited", RateLimited("p"), false},
		{"wrapped timeout", fmt.Errorf("call: %w", Timeout("p", nil)), true},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestErrorIsSentinel(t *testing.T) {
	assert.ErrorIs(t, RateLimited("primary"), ErrRateLimitExceeded)
	assert.ErrorIs(t, Timeout("primary", nil), ErrTimeout)
	assert.ErrorIs(t, Network("primary", nil), ErrNetwork)
	assert.ErrorIs(t, HTTPStatus("primary", 404, nil), ErrHTTPStatus)
	assert.NotErrorIs(t, Timeout("primary", nil), ErrNetwork)
}

func TestErrorMessage(t *testing.T) {
	err := HTTPStatus("primary", 404, []byte(`{"error":"not found"}`))
	assert.Equal(t, `primary: http status 404: {"error":"not found"}`, err.Error())
	assert.Equal(t, 404, StatusCode(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, "secondary: rate limit exceeded", RateLimited("secondary").Error())
}

func TestExhaustedError(t *testing.T) {
	err := &ExhaustedError{Failures: []ProviderFailure{
		{Provider: "primary", Err: Timeout("primary", context.DeadlineExceeded)},
		{Provider: "secondary", Err: RateLimited("secondary")},
	}}

	assert.ErrorIs(t, err, ErrAllProvidersExhausted)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrRateLimitExceeded)
	assert.Equal(t, []string{"primary", "secondary"}, err.Providers())
	assert.Contains(t, err.Error(), "tried primary, secondary")
	assert.Equal(t, KindAllProvidersExhausted, KindOf(err))
	require.ErrorIs(t, err.Last(), ErrRateLimitExceeded)
}

func TestExhaustedErrorNamesEachProviderOnce(t *testing.T) {
	err := &ExhaustedError{Failures: []ProviderFailure{
		{Provider: "primary", Err: HTTPStatus("primary", 502, nil)},
		{Provider: "secondary", Err: errors.New(`provider "secondary" is not configured`)},
	}}

	assert.Equal(t,
		`all providers exhausted (tried primary, secondary): primary: http status 502; secondary: provider "secondary" is not configured`,
		err.Error())
	assert.NotContains(t, err.Error(), "primary: primary:")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindNetwork, KindOf(fmt.Errorf("x: %w", Network("p", nil))))
	assert.Equal(t, "rate_limit_exceeded", KindOf(RateLimited("p")).String())
}
