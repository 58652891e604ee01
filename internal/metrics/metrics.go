package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oraculum"

// Registry holds the application's Prometheus collectors.
// A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	ProviderAttempts *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	CacheEntries     prometheus.Gauge
	SharedFetches    prometheus.Counter
	ScoreDuration    prometheus.Histogram
	TickerOutcomes   *prometheus.CounterVec
	MacroFallbacks   prometheus.Counter
	HTTPRequests     *prometheus.CounterVec
}

// New creates a registry with every collector registered
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		ProviderAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Market data fetch attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_fetch_seconds",
			Help:      "Market data fetch latency by provider",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Series cache lookups by result",
		}, []string{"result"}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Series currently held in the cache",
		}),
		SharedFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_shared_fetches_total",
			Help:      "Fetches answered by an in-flight request for the same key",
		}),
		ScoreDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score_duration_seconds",
			Help:      "Time spent scoring one series",
			Buckets:   prometheus.DefBuckets,
		}),
		TickerOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticker_outcomes_total",
			Help:      "Per-ticker results by operation and outcome",
		}, []string{"operation", "outcome"}),
		MacroFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "macro_fallbacks_total",
			Help:      "Macro factor computations that fell back to neutral",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}

	r.reg.MustRegister(
		r.ProviderAttempts,
		r.ProviderLatency,
		r.CacheLookups,
		r.CacheEntries,
		r.SharedFetches,
		r.ScoreDuration,
		r.TickerOutcomes,
		r.MacroFallbacks,
		r.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler exposes the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) ObserveAttempt(provider, outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.ProviderAttempts.WithLabelValues(provider, outcome).Inc()
	r.ProviderLatency.WithLabelValues(provider).Observe(took.Seconds())
}

func (r *Registry) CacheHit() {
	if r == nil {
		return
	}
	r.CacheLookups.WithLabelValues("hit").Inc()
}

func (r *Registry) CacheMiss() {
	if r == nil {
		return
	}
	r.CacheLookups.WithLabelValues("miss").Inc()
}

func (r *Registry) SetCacheEntries(n int) {
	if r == nil {
		return
	}
	r.CacheEntries.Set(float64(n))
}

func (r *Registry) SharedFetch() {
	if r == nil {
		return
	}
	r.SharedFetches.Inc()
}

func (r *Registry) ObserveScore(took time.Duration) {
	if r == nil {
		return
	}
	r.ScoreDuration.Observe(took.Seconds())
}

// TickerOutcome counts one ticker result; ok selects the "ok" or "error" label
func (r *Registry) TickerOutcome(operation string, ok bool) {
	if r == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.TickerOutcomes.WithLabelValues(operation, outcome).Inc()
}

func (r *Registry) MacroFallback() {
	if r == nil {
		return
	}
	r.MacroFallbacks.Inc()
}

func (r *Registry) HTTPRequest(route string, code int) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
