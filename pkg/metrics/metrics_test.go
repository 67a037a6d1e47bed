package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/conduit/pkg/apierror"
)

func TestCollectorCounts(t *testing.T) {
	c := New()

	c.ObserveCall("generate", "success")
	c.ObserveCall("generate", "success")
	c.CacheLookup(true)
	c.CacheLookup(false)
	c.Coalesced()
	c.RateLimited("primary")
	c.Retry("primary", apierror.Timeout("primary", nil))
	c.Failover("primary")
	c.ObserveAttempt("primary", 0.1, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.calls.WithLabelValues("generate", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.coalesced))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rateLimited.WithLabelValues("primary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.retries.WithLabelValues("primary", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failovers.WithLabelValues("primary")))
}

func TestHandlerServesMetrics(t *testing.T) {
	c := New()
	c.RegisterInFlight(func() int { return 3 })
	c.ObserveCall("lookup", "cache_hit")

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "conduit_inflight_executions 3")
	assert.Contains(t, w.Body.String(), `conduit_calls_total{operation="lookup",outcome="cache_hit"} 1`)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ObserveCall("x", "y")
	c.CacheLookup(true)
	c.RegisterInFlight(func() int { return 0 })
	assert.Nil(t, c.Registry())
}
