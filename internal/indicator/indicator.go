// Package indicator combines price features and the macro regime into the
// Wysocki score (0-100) and its BUY/HOLD/SELL signal.
package indicator

import (
	"context"
	"fmt"
	"math"
	"time"

	"oraculum/internal/feature"
	"oraculum/internal/metrics"
	"oraculum/pkg/model"
)

// MinBars is the shortest series that gets a real score
const MinBars = 60

// Fixed signal cut-offs applied to the rounded score
const (
	BuyAt  = 70.0
	SellAt = 39.0
)

// Sub-factor weights inside the core value
const (
	weightVAL    = 0.25
	weightMOM    = 0.30
	weightFLOW   = 0.20
	weightMACRO  = 0.15
	weightEvents = 0.10
)

// MacroSource supplies the regime factor as of a date. It must not fail.
type MacroSource interface {
	Factor(ctx context.Context, asOf time.Time) float64
}

// MacroFunc adapts a function to MacroSource
type MacroFunc func(ctx context.Context, asOf time.Time) float64

func (f MacroFunc) Factor(ctx context.Context, asOf time.Time) float64 { return f(ctx, asOf) }

// Engine scores price series
type Engine struct {
	macro   MacroSource
	metrics *metrics.Registry
}

// NewEngine creates an engine; a nil macro source is treated as neutral
func NewEngine(macro MacroSource, m *metrics.Registry) *Engine {
	if macro == nil {
		macro = MacroFunc(func(context.Context, time.Time) float64 { return 0 })
	}
	return &Engine{macro: macro, metrics: m}
}

// Score computes the indicator for series with the given events adjustment.
// Series shorter than MinBars get the neutral result without touching the macro source.
func (e *Engine) Score(ctx context.Context, series *model.PriceSeries, events float64) (*model.IndicatorResult, error) {
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}
	if series.Len() < MinBars {
		return model.NeutralResult(), nil
	}

	start := time.Now()
	defer func() { e.metrics.ObserveScore(time.Since(start)) }()

	closes := series.Closes()
	volumes := series.Volumes()

	mom := Momentum(closes, volumes)
	val := Valuation(closes)
	flow := Flow(closes, volumes)
	macro := e.macro.Factor(ctx, series.LastDate())

	core := weightVAL*val + weightMOM*mom + weightFLOW*flow + weightMACRO*macro + weightEvents*events
	score := feature.Round(Logistic(core), 2)

	return &model.IndicatorResult{
		Score:  score,
		Signal: SignalFor(score),
		Components: model.Components{
			MOM:   feature.Round(mom, 3),
			VAL:   feature.Round(val, 3),
			FLOW:  feature.Round(flow, 3),
			MACRO: feature.Round(macro, 3),
		},
	}, nil
}

// Logistic maps a core value onto [0, 100]
func Logistic(core float64) float64 {
	s := 100.0 / (1.0 + math.Exp(-core))
	if math.IsNaN(s) {
		return 50
	}
	return math.Max(0, math.Min(100, s))
}

// SignalFor applies the fixed cut-offs: BUY at 70 and above, SELL at 39 and below
func SignalFor(score float64) model.Signal {
	switch {
	case score >= BuyAt:
		return model.SignalBuy
	case score <= SellAt:
		return model.SignalSell
	default:
		return model.SignalHold
	}
}

// Momentum blends 20/60-day returns, the 55-day breakout ratio, volume surge and RSI,
// each standardized over the whole series and read at the last bar.
func Momentum(closes, volumes []float64) float64 {
	rsi := feature.RSI(closes, 14)
	rsiTerm := make([]float64, len(rsi))
	for i, r := range rsi {
		rsiTerm[i] = (r - 50) / 50
	}

	breakout := feature.Ratio(closes, feature.RollingMax(closes, 55, math.NaN()), 0)
	surge := feature.Ratio(volumes, feature.RollingMean(volumes, 20, math.NaN()), 1)

	return 0.35*lastZ(feature.PctChange(closes, 20)) +
		0.25*lastZ(feature.PctChange(closes, 60)) +
		0.15*lastZ(breakout) +
		0.15*lastZ(surge) +
		0.10*lastZ(rsiTerm)
}

// Valuation rewards distance from the running peak and persistence of MA20 > MA50 > MA200
func Valuation(closes []float64) float64 {
	dd := feature.Drawdown(closes)
	negDD := make([]float64, len(dd))
	for i, d := range dd {
		negDD[i] = -d
	}

	ma20 := feature.RollingMean(closes, 20, math.NaN())
	ma50 := feature.RollingMean(closes, 50, math.NaN())
	ma200 := feature.RollingMean(closes, 200, math.NaN())
	flags := make([]float64, len(closes))
	for i := range closes {
		// NaN comparisons are false, so undefined averages never flag
		if ma20[i] > ma50[i] && ma50[i] > ma200[i] {
			flags[i] = 1
		}
	}
	persist := feature.RollingMean(flags, 20, 0)

	return 0.6*lastZ(negDD) + 0.4*lastZ(persist)
}

// Flow combines the trend of 20-day average volume with the count of >5% daily moves
func Flow(closes, volumes []float64) float64 {
	volTrend := feature.PctChange(feature.RollingMean(volumes, 20, math.NaN()), 1)

	returns := feature.PctChange(closes, 1)
	gaps := make([]float64, len(returns))
	for i, r := range returns {
		if math.Abs(r) > 0.05 {
			gaps[i] = 1
		}
	}
	gapCount := feature.RollingSum(gaps, 20, 0)

	return 0.7*lastZ(volTrend) + 0.3*lastZ(gapCount)
}

func lastZ(xs []float64) float64 {
	return feature.Last(feature.ZScore(xs))
}
