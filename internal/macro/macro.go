// Package macro derives the market-regime factor from benchmark equity and bond series.
package macro

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"oraculum/internal/feature"
	"oraculum/internal/metrics"
	"oraculum/internal/provider"
	"oraculum/pkg/model"
)

const lookbackDays = 220

// PriceFetcher is the slice of the data layer the macro factor needs
type PriceFetcher interface {
	Fetch(ctx context.Context, ticker string, r provider.DateRange) (*model.PriceSeries, error)
}

// Provider computes the macro factor. It never fails; any problem yields 0.0.
type Provider struct {
	data    PriceFetcher
	equity  string
	bond    string
	metrics *metrics.Registry
}

// NewProvider creates a macro provider over the given benchmark tickers
func NewProvider(data PriceFetcher, equity, bond string, m *metrics.Registry) *Provider {
	if equity == "" {
		equity = "SPY"
	}
	if bond == "" {
		bond = "TLT"
	}
	return &Provider{data: data, equity: equity, bond: bond, metrics: m}
}

// Factor returns 0.6*z(equity 60d return) + 0.3*z(bond 30d return) - 0.1*z(equity 20d volatility),
// each taken at the last bar of a window ending the day after asOf.
func (p *Provider) Factor(ctx context.Context, asOf time.Time) float64 {
	asOf = model.Day(asOf)
	r := provider.NewDateRange(asOf.AddDate(0, 0, -lookbackDays), asOf.AddDate(0, 0, 1))

	equity, err := p.data.Fetch(ctx, p.equity, r)
	if err != nil {
		return p.neutral(asOf, err)
	}
	bond, err := p.data.Fetch(ctx, p.bond, r)
	if err != nil {
		return p.neutral(asOf, err)
	}
	if equity.Len() == 0 || bond.Len() == 0 {
		return p.neutral(asOf, provider.ErrNoData)
	}

	eq := equity.Closes()
	equityZ := feature.Last(feature.ZScore(feature.PctChange(eq, 60)))
	bondZ := feature.Last(feature.ZScore(feature.PctChange(bond.Closes(), 30)))
	volZ := feature.Last(feature.ZScore(Volatility(eq, 20)))

	v := 0.6*equityZ + 0.3*bondZ - 0.1*volZ
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return p.neutral(asOf, nil)
	}
	return v
}

// Volatility returns the trailing sample standard deviation of daily returns.
// The first window positions (and the undefined first return) read 0.
func Volatility(closes []float64, window int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) < 2 {
		return out
	}
	returns := feature.PctChange(closes, 1)[1:]
	copy(out[1:], feature.RollingStd(returns, window, 0))
	return feature.Sanitize(out, 0)
}

func (p *Provider) neutral(asOf time.Time, err error) float64 {
	p.metrics.MacroFallback()
	log.Debug().Err(err).Str("as_of", model.FormatDate(asOf)).Msg("macro factor unavailable, using neutral")
	return 0.0
}
