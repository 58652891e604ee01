package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"oraculum/pkg/model"
)

// BreakerProvider stops calling a provider that keeps failing
type BreakerProvider struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker
}

// WithBreaker wraps p in a circuit breaker that opens after the given number of
// consecutive failures and probes again after cooldown. failures == 0 returns p unchanged.
func WithBreaker(p Provider, failures uint32, cooldown time.Duration) Provider {
	if failures == 0 {
		return p
	}
	st := gobreaker.Settings{
		Name:     p.Name(),
		Interval: 5 * time.Minute,
		Timeout:  cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Unknown tickers and callers that gave up say nothing about upstream health.
		// A client timeout with a live caller context is a real failure.
		IsSuccessful: func(err error) bool {
			var gone *callerGoneError
			return err == nil || errors.Is(err, ErrNoData) || errors.As(err, &gone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}
	return &BreakerProvider{inner: p, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *BreakerProvider) Name() string { return b.inner.Name() }

// State returns the breaker state
func (b *BreakerProvider) State() gobreaker.State { return b.cb.State() }

func (b *BreakerProvider) DailyBars(ctx context.Context, ticker string, r DateRange) (*model.PriceSeries, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		s, err := b.inner.DailyBars(ctx, ticker, r)
		if err != nil && ctx.Err() != nil {
			return nil, &callerGoneError{err: err}
		}
		return s, err
	})
	var gone *callerGoneError
	if errors.As(err, &gone) {
		return nil, gone.err
	}
	if err != nil {
		return nil, err
	}
	return res.(*model.PriceSeries), nil
}

// callerGoneError marks a failure caused by the caller's own context ending
type callerGoneError struct {
	err error
}

func (e *callerGoneError) Error() string { return e.err.Error() }

func (e *callerGoneError) Unwrap() error { return e.err }
