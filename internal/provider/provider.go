package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"oraculum/internal/metrics"
	"oraculum/pkg/model"
)

// Provider is a source of daily price history
type Provider interface {
	// Name returns the provider name
	Name() string

	// DailyBars fetches daily bars for ticker within r.
	// An empty result is reported as ErrNoData.
	DailyBars(ctx context.Context, ticker string, r DateRange) (*model.PriceSeries, error)
}

// DateRange bounds a request. A zero Start or End leaves that side open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range from calendar days
func NewDateRange(start, end time.Time) DateRange {
	r := DateRange{}
	if !start.IsZero() {
		r.Start = model.Day(start)
	}
	if !end.IsZero() {
		r.End = model.Day(end)
	}
	return r
}

func (r DateRange) String() string {
	return model.FormatDate(r.Start) + ".." + model.FormatDate(r.End)
}

var (
	// ErrNoData means the upstream answered but had no usable bars
	ErrNoData = errors.New("no data")

	// ErrDataUnavailable is matched by every DataUnavailableError
	ErrDataUnavailable = errors.New("data unavailable")
)

// ProviderError represents a provider-specific error
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Outcome classifies one provider attempt
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeEmpty   Outcome = "empty"
	OutcomeInvalid Outcome = "invalid"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

// Attempt records what one provider returned for one request
type Attempt struct {
	Provider string
	Outcome  Outcome
	Err      error
	Bars     int
	Duration time.Duration
}

func (a Attempt) String() string {
	if a.Err != nil {
		return fmt.Sprintf("%s=%s (%v)", a.Provider, a.Outcome, a.Err)
	}
	return fmt.Sprintf("%s=%s (%d bars)", a.Provider, a.Outcome, a.Bars)
}

// DataUnavailableError is returned when every provider missed
type DataUnavailableError struct {
	Ticker   string
	Attempts []Attempt
}

func (e *DataUnavailableError) Error() string {
	names := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		names = append(names, a.Provider)
	}
	if len(names) == 0 {
		return fmt.Sprintf("no data for %s", e.Ticker)
	}
	return fmt.Sprintf("no data for %s (%s failed)", e.Ticker, strings.Join(names, " & "))
}

func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

// Chain asks providers in order and stops at the first usable series
type Chain struct {
	providers []Provider
	metrics   *metrics.Registry
}

// NewChain creates a chain; the first provider is the primary
func NewChain(m *metrics.Registry, providers ...Provider) *Chain {
	return &Chain{providers: providers, metrics: m}
}

// Providers returns the list of underlying providers
func (c *Chain) Providers() []Provider {
	return c.providers
}

// Fetch returns the first valid non-empty series and the attempts made to get it.
// The series is nil when no provider succeeded.
func (c *Chain) Fetch(ctx context.Context, ticker string, r DateRange) (*model.PriceSeries, []Attempt) {
	attempts := make([]Attempt, 0, len(c.providers))
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Provider: p.Name(), Outcome: OutcomeSkipped, Err: err})
			continue
		}

		start := time.Now()
		series, err := p.DailyBars(ctx, ticker, r)
		a := Attempt{Provider: p.Name(), Duration: time.Since(start), Err: err}
		a.Outcome = classify(series, err)
		if series != nil {
			a.Bars = series.Len()
		}
		if a.Outcome == OutcomeOK {
			if verr := series.Validate(); verr != nil {
				a.Outcome, a.Err = OutcomeInvalid, verr
			}
		}

		attempts = append(attempts, a)
		c.metrics.ObserveAttempt(a.Provider, string(a.Outcome), a.Duration)
		if a.Outcome == OutcomeOK {
			return series, attempts
		}
	}
	return nil, attempts
}

func classify(series *model.PriceSeries, err error) Outcome {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return OutcomeSkipped
	case errors.Is(err, ErrNoData):
		return OutcomeEmpty
	case err != nil:
		return OutcomeError
	case series.Len() == 0:
		return OutcomeEmpty
	default:
		return OutcomeOK
	}
}
