package indicator

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oraculum/pkg/model"
)

// acceleratingUptrend rises 0.05% a day, then 3% a day over the last 20 bars, on flat volume
func acceleratingUptrend(n int) *model.PriceSeries {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, n)
	c := 100.0
	for i := range bars {
		if i > 0 {
			g := 0.0005
			if i >= n-20 {
				g = 0.03
			}
			c *= 1 + g
		}
		bars[i] = model.PriceBar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, AdjClose: c, Volume: 1e6}
	}
	return model.NewPriceSeries("TEST", bars)
}

func randomWalk(seed int64, n int) *model.PriceSeries {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, n)
	c := 50.0
	for i := range bars {
		c *= 1 + rng.NormFloat64()*0.03
		bars[i] = model.PriceBar{Date: start.AddDate(0, 0, i), Close: c, AdjClose: c, Volume: 1e5 + rng.Float64()*1e6}
	}
	return model.NewPriceSeries("RW", bars)
}

type countingMacro struct {
	value float64
	calls atomic.Int32
	asOf  time.Time
}

func (m *countingMacro) Factor(ctx context.Context, asOf time.Time) float64 {
	m.calls.Add(1)
	m.asOf = asOf
	return m.value
}

func TestScoreUptrendIsBuy(t *testing.T) {
	macro := &countingMacro{}
	e := NewEngine(macro, nil)
	series := acceleratingUptrend(300)

	res, err := e.Score(context.Background(), series, 0)
	require.NoError(t, err)

	assert.Equal(t, model.SignalBuy, res.Signal)
	assert.InDelta(t, 80.35, res.Score, 0.011)
	assert.Greater(t, res.Components.MOM, 0.0)
	assert.InDelta(t, 4.178, res.Components.MOM, 0.002)
	assert.InDelta(t, 0.620, res.Components.VAL, 0.002)
	assert.Equal(t, 0.0, res.Components.FLOW)
	assert.Equal(t, 0.0, res.Components.MACRO)

	assert.Equal(t, int32(1), macro.calls.Load())
	assert.Equal(t, series.LastDate(), macro.asOf)
}

func TestScoreMacroAndEventsWeights(t *testing.T) {
	series := acceleratingUptrend(300)

	withMacro, err := NewEngine(&countingMacro{value: 2}, nil).Score(context.Background(), series, 0)
	require.NoError(t, err)
	assert.InDelta(t, 84.66, withMacro.Score, 0.011)
	assert.Equal(t, 2.0, withMacro.Components.MACRO)

	withEvents, err := NewEngine(nil, nil).Score(context.Background(), series, 1)
	require.NoError(t, err)
	assert.InDelta(t, 81.88, withEvents.Score, 0.011)
}

func TestScoreShortSeriesIsNeutral(t *testing.T) {
	macro := &countingMacro{value: 5}
	e := NewEngine(macro, nil)

	res, err := e.Score(context.Background(), acceleratingUptrend(59), 3)
	require.NoError(t, err)
	assert.Equal(t, model.NeutralResult(), res)
	assert.Equal(t, model.Components{}, res.Components)
	assert.Equal(t, int32(0), macro.calls.Load())

	res, err = e.Score(context.Background(), acceleratingUptrend(60), 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), macro.calls.Load())
	assert.NotNil(t, res)
}

func TestScoreSchemaViolation(t *testing.T) {
	series := acceleratingUptrend(100)
	series.Bars[50].Volume = math.Inf(1)

	_, err := NewEngine(nil, nil).Score(context.Background(), series, 0)
	assert.ErrorIs(t, err, model.ErrSchemaViolation)

	_, err = NewEngine(nil, nil).Score(context.Background(), nil, 0)
	assert.ErrorIs(t, err, model.ErrSchemaViolation)
}

func TestScoreAlwaysInRange(t *testing.T) {
	e := NewEngine(&countingMacro{value: -3}, nil)
	for seed := int64(1); seed <= 20; seed++ {
		res, err := e.Score(context.Background(), randomWalk(seed, 260), 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 100.0)
		assert.Equal(t, SignalFor(res.Score), res.Signal)
	}
}

func TestSignalForBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  model.Signal
	}{
		{100, model.SignalBuy},
		{70.00, model.SignalBuy},
		{69.99, model.SignalHold},
		{50, model.SignalHold},
		{39.01, model.SignalHold},
		{39.00, model.SignalSell},
		{0, model.SignalSell},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SignalFor(tt.score), "score %.2f", tt.score)
	}
}

func TestThresholdsClassify(t *testing.T) {
	th := DefaultThresholds()
	require.NoError(t, th.Validate())

	assert.Equal(t, model.SignalBuy, th.Classify(70))
	assert.Equal(t, model.SignalHold, th.Classify(69.99))
	assert.Equal(t, model.SignalHold, th.Classify(40))
	assert.Equal(t, model.SignalSell, th.Classify(39.99))

	custom := Thresholds{Sell: 55, Buy: 60}
	assert.Equal(t, model.SignalSell, custom.Classify(54))
	assert.Equal(t, model.SignalHold, custom.Classify(57))
	assert.Equal(t, model.SignalBuy, custom.Classify(61))

	assert.Error(t, Thresholds{Sell: 80, Buy: 20}.Validate())
	assert.Error(t, Thresholds{Sell: -1, Buy: 20}.Validate())
	assert.Error(t, Thresholds{Sell: 10, Buy: 120}.Validate())
	assert.Error(t, Thresholds{Sell: math.NaN(), Buy: 70}.Validate())
	assert.Error(t, Thresholds{Sell: 40, Buy: math.NaN()}.Validate())
	assert.Error(t, Thresholds{Sell: 40, Buy: math.Inf(1)}.Validate())
}

func TestLogistic(t *testing.T) {
	assert.Equal(t, 50.0, Logistic(0))
	assert.Equal(t, 100.0, Logistic(1000))
	assert.Equal(t, 0.0, Logistic(-1000))
	assert.Equal(t, 50.0, Logistic(math.NaN()))
}

func TestFlowCountsLargeMoves(t *testing.T) {
	closes := make([]float64, 80)
	volumes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100
		volumes[i] = 1000
	}
	// two 10% jumps near the end
	closes[75] = 110
	closes[76] = 121
	for i := 77; i < 80; i++ {
		closes[i] = 121
	}
	assert.Greater(t, Flow(closes, volumes), 0.0)
}
