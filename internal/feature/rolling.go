package feature

import "math"

// RollingMean returns the trailing mean over window values ending at each index.
// Indices without a full window get fill.
func RollingMean(xs []float64, window int, fill float64) []float64 {
	sums := RollingSum(xs, window, math.NaN())
	out := make([]float64, len(xs))
	for i, s := range sums {
		if math.IsNaN(s) {
			out[i] = fill
			continue
		}
		out[i] = s / float64(window)
	}
	return out
}

// RollingSum returns the trailing sum over window values ending at each index
func RollingSum(xs []float64, window int, fill float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if window <= 0 || i < window-1 {
			out[i] = fill
			continue
		}
		var sum float64
		for _, x := range xs[i-window+1 : i+1] {
			sum += x
		}
		out[i] = sum
	}
	return out
}

// RollingMax returns the trailing maximum over window values ending at each index
func RollingMax(xs []float64, window int, fill float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if window <= 0 || i < window-1 {
			out[i] = fill
			continue
		}
		m := xs[i-window+1]
		for _, x := range xs[i-window+2 : i+1] {
			if x > m {
				m = x
			}
		}
		out[i] = m
	}
	return out
}

// RollingStd returns the trailing sample standard deviation (n-1 denominator)
func RollingStd(xs []float64, window int, fill float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if window < 2 || i < window-1 {
			out[i] = fill
			continue
		}
		w := xs[i-window+1 : i+1]
		mean := mean(w)
		var ss float64
		for _, x := range w {
			d := x - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// RunningMax returns the cumulative maximum
func RunningMax(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		if i == 0 || x > out[i-1] {
			out[i] = x
			continue
		}
		out[i] = out[i-1]
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
