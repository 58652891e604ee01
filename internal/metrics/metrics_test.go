package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCounts(t *testing.T) {
	r := New()

	r.ObserveAttempt("yahoo", "error", 10*time.Millisecond)
	r.ObserveAttempt("stooq", "ok", 20*time.Millisecond)
	r.CacheHit()
	r.CacheMiss()
	r.CacheMiss()
	r.TickerOutcome("score", true)
	r.TickerOutcome("score", false)
	r.MacroFallback()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.ProviderAttempts.WithLabelValues("yahoo", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ProviderAttempts.WithLabelValues("stooq", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.TickerOutcomes.WithLabelValues("score", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.MacroFallbacks))
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveAttempt("yahoo", "ok", time.Second)
		r.CacheHit()
		r.CacheMiss()
		r.SetCacheEntries(3)
		r.SharedFetch()
		r.ObserveScore(time.Second)
		r.TickerOutcome("rank", true)
		r.MacroFallback()
		r.HTTPRequest("/health", 200)
	})
}

func TestHandler(t *testing.T) {
	r := New()
	r.HTTPRequest("/health", 200)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `oraculum_http_requests_total{code="200",route="/health"} 1`)
}
