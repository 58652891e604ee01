package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"oraculum/internal/metrics"
	"oraculum/pkg/model"
)

// DefaultFetchTimeout bounds one shared upstream fetch
const DefaultFetchTimeout = 2 * time.Minute

// MarketData is the single entry point for price history.
// It consults the cache, then the provider chain, and caches only successes.
type MarketData struct {
	chain        *Chain
	cache        *Cache
	group        singleflight.Group
	metrics      *metrics.Registry
	fetchTimeout time.Duration
}

// NewMarketData creates the data layer over a provider chain and cache
func NewMarketData(chain *Chain, cache *Cache, m *metrics.Registry) *MarketData {
	if cache == nil {
		cache = NewCache(0)
	}
	return &MarketData{chain: chain, cache: cache, metrics: m, fetchTimeout: DefaultFetchTimeout}
}

// Cache returns the underlying cache
func (d *MarketData) Cache() *Cache {
	return d.cache
}

// Fetch returns the daily series for ticker within r.
// Failures are reported as a *DataUnavailableError; nothing is cached for them.
func (d *MarketData) Fetch(ctx context.Context, ticker string, r DateRange) (*model.PriceSeries, error) {
	key := NewKey(ticker, r)
	if key.Ticker == "" {
		return nil, &DataUnavailableError{Ticker: ticker}
	}

	if s, ok := d.cache.Get(key); ok {
		d.metrics.CacheHit()
		return s, nil
	}
	d.metrics.CacheMiss()

	ch := d.group.DoChan(key.String(), func() (interface{}, error) {
		// Another caller may have filled the entry while we queued
		if s, ok := d.cache.Get(key); ok {
			return s, nil
		}

		// The fetch is shared, so it must outlive the caller that started it
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.fetchTimeout)
		defer cancel()

		series, attempts := d.chain.Fetch(fetchCtx, key.Ticker, r)
		if series == nil {
			if err := fetchCtx.Err(); err != nil {
				return nil, err
			}
			log.Debug().Str("ticker", key.Ticker).Stringer("range", r).Interface("attempts", attemptStrings(attempts)).Msg("all providers missed")
			return nil, &DataUnavailableError{Ticker: key.Ticker, Attempts: attempts}
		}
		if len(attempts) > 1 {
			log.Info().Str("ticker", key.Ticker).Str("provider", attempts[len(attempts)-1].Provider).Msg("served by fallback provider")
		}

		series.Ticker = key.Ticker
		d.cache.Put(key, series)
		d.metrics.SetCacheEntries(d.cache.Len())
		return series, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			d.metrics.SharedFetch()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.PriceSeries), nil
	}
}

// Sweep evicts expired cache entries
func (d *MarketData) Sweep() int {
	n := d.cache.Sweep()
	d.metrics.SetCacheEntries(d.cache.Len())
	return n
}

// EventsModifier returns the corporate-events adjustment for ticker at when.
// No events source is wired, so it is always neutral.
func (d *MarketData) EventsModifier(ticker string, when time.Time) float64 {
	return 0.0
}

// IsUnavailable reports whether err means no provider had data
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDataUnavailable)
}

func attemptStrings(attempts []Attempt) []string {
	out := make([]string, len(attempts))
	for i, a := range attempts {
		out[i] = a.String()
	}
	return out
}
