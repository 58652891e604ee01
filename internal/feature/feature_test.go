package feature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPctChange(t *testing.T) {
	got := PctChange([]float64{100, 110, 0, 5}, 1)
	assert.InDeltaSlice(t, []float64{0, 0.1, -1, 0}, got, 1e-12)

	got = PctChange([]float64{1, 2, 4}, 5)
	assert.Equal(t, []float64{0, 0, 0}, got)
}

func TestZScore(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"empty", nil, []float64{}},
		{"constant", []float64{5, 5, 5, 5}, []float64{0, 0, 0, 0}},
		{"single", []float64{42}, []float64{0}},
		{
			"population std",
			[]float64{1, 2, 3, 4, 5},
			[]float64{-2 / math.Sqrt2, -1 / math.Sqrt2, 0, 1 / math.Sqrt2, 2 / math.Sqrt2},
		},
		{"non-finite", []float64{1, math.Inf(1), 3}, []float64{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ZScore(tt.in)
			require.Len(t, got, len(tt.want))
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}
}

func TestRSI(t *testing.T) {
	got := RSI([]float64{10, 11, 10}, 14)
	require.Len(t, got, 3)
	assert.Equal(t, 50.0, got[0])
	// no losses yet
	assert.Equal(t, 50.0, got[1])
	// up = 13/14, down = 1/14, rs = 13
	assert.InDelta(t, 100-100.0/14, got[2], 1e-9)

	rising := RSI([]float64{1, 2, 3, 4, 5}, 14)
	for _, v := range rising {
		assert.Equal(t, 50.0, v)
	}

	falling := RSI([]float64{5, 4, 3, 2}, 14)
	assert.InDelta(t, 0, falling[3], 1e-9)

	assert.Empty(t, RSI(nil, 14))
}

func TestRolling(t *testing.T) {
	xs := []float64{1, 3, 2, 5, 4}

	assert.Equal(t, []float64{0, 0, 2, 10.0 / 3, 11.0 / 3}, RollingMean(xs, 3, 0))
	assert.Equal(t, []float64{-1, -1, 6, 10, 11}, RollingSum(xs, 3, -1))
	assert.Equal(t, []float64{0, 0, 3, 5, 5}, RollingMax(xs, 3, 0))

	std := RollingStd([]float64{1, 2, 3, 4}, 2, 0)
	assert.InDeltaSlice(t, []float64{0, math.Sqrt(0.5), math.Sqrt(0.5), math.Sqrt(0.5)}, std, 1e-12)

	nanFill := RollingMean(xs, 10, math.NaN())
	for _, v := range nanFill {
		assert.True(t, math.IsNaN(v))
	}
}

func TestDrawdown(t *testing.T) {
	got := Drawdown([]float64{100, 120, 90, 130})
	assert.InDeltaSlice(t, []float64{0, 0, -0.25, 0}, got, 1e-12)
	for _, v := range got {
		assert.LessOrEqual(t, v, 0.0)
	}
	assert.Equal(t, []float64{100, 120, 120, 130}, RunningMax([]float64{100, 120, 90, 130}))
}

func TestRatioAndSanitize(t *testing.T) {
	got := Ratio([]float64{2, 1, 0}, []float64{1, 0, 0}, 1)
	assert.Equal(t, []float64{2, 1, 1}, got)

	assert.Equal(t, []float64{0, 3, 0}, Sanitize([]float64{math.NaN(), 3, math.Inf(-1)}, 0))
}

func TestLastAndRound(t *testing.T) {
	assert.Equal(t, 0.0, Last(nil))
	assert.Equal(t, 3.0, Last([]float64{1, 2, 3}))

	assert.InDelta(t, 2.35, Round(2.345, 2), 1e-12)
	assert.InDelta(t, -1.235, Round(-1.2345, 3), 1e-12)
	assert.InDelta(t, 73.11, Round(73.105857863, 2), 1e-12)
	assert.True(t, math.IsNaN(Round(math.NaN(), 2)))
}
