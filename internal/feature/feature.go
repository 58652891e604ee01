// Package feature holds the pure series transforms the indicator is built from.
// Every function returns a new slice the same length as its input.
package feature

import (
	"math"

	"github.com/shopspring/decimal"
)

// PctChange returns xs[i]/xs[i-n] - 1.
// The first n entries and any non-finite result are 0.
func PctChange(xs []float64, n int) []float64 {
	out := make([]float64, len(xs))
	for i := n; i < len(xs); i++ {
		if n <= 0 {
			break
		}
		out[i] = finiteOr(xs[i]/xs[i-n]-1, 0)
	}
	return out
}

// ZScore standardizes xs with the population mean and standard deviation.
// A degenerate input (empty, constant, or non-finite moments) yields all zeros.
func ZScore(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}

	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(xs)))
	if !isFinite(m) || !isFinite(sd) || sd <= 1e-12*math.Max(1, math.Abs(m)) {
		return out
	}

	for i, x := range xs {
		out[i] = (x - m) / sd
	}
	return out
}

// RSI returns Wilder's relative strength index.
// Gains and losses are smoothed recursively with alpha = 1/period, seeded by the first change.
// Index 0 and any point with no smoothed loss read 50.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	out[0] = 50

	alpha := 1.0 / float64(period)
	var up, down float64
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		if i == 1 {
			up, down = gain, loss
		} else {
			up = (1-alpha)*up + alpha*gain
			down = (1-alpha)*down + alpha*loss
		}

		if down == 0 {
			out[i] = 50
			continue
		}
		out[i] = finiteOr(100-100/(1+up/down), 50)
	}
	return out
}

// Drawdown returns close / running peak - 1, which is never positive
func Drawdown(closes []float64) []float64 {
	peak := RunningMax(closes)
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i] = c/peak[i] - 1
	}
	return out
}

// Ratio divides a by b element-wise, substituting fill for non-finite results
func Ratio(a, b []float64, fill float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = finiteOr(a[i]/b[i], fill)
	}
	return out
}

// Sanitize replaces every non-finite value with fill
func Sanitize(xs []float64, fill float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = finiteOr(x, fill)
	}
	return out
}

// Last returns the final element, or 0 for an empty slice
func Last(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}

// Round rounds half away from zero to the given number of decimal places
func Round(x float64, places int32) float64 {
	if !isFinite(x) {
		return x
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func finiteOr(x, fill float64) float64 {
	if isFinite(x) {
		return x
	}
	return fill
}
