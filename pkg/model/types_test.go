package model

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func bars(closes map[string]float64) []PriceBar {
	out := make([]PriceBar, 0, len(closes))
	for d, c := range closes {
		out = append(out, PriceBar{Date: day(d), Close: c, Volume: 1000})
	}
	return out
}

func TestNewPriceSeriesSortsAndDedups(t *testing.T) {
	in := []PriceBar{
		{Date: day("2024-01-03"), Close: 3},
		{Date: day("2024-01-01"), Close: 1},
		{Date: time.Date(2024, 1, 3, 15, 30, 0, 0, time.UTC), Close: 33},
		{Date: day("2024-01-02"), Close: 2},
	}
	s := NewPriceSeries("AAPL", in)

	require.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{1, 2, 33}, s.Closes())
	assert.NoError(t, s.Validate())
	assert.Equal(t, day("2024-01-03"), s.LastDate())
	// input untouched
	assert.Equal(t, 3.0, in[0].Close)
}

func TestValidate(t *testing.T) {
	s := NewPriceSeries("X", bars(map[string]float64{"2024-01-01": 1, "2024-01-02": 2}))
	s.Bars[1].Close = math.NaN()

	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaViolation))

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Index)
	assert.Equal(t, "close", se.Field)

	unordered := &PriceSeries{Ticker: "X", Bars: []PriceBar{{Date: day("2024-01-02")}, {Date: day("2024-01-02")}}}
	assert.ErrorIs(t, unordered.Validate(), ErrSchemaViolation)

	var nilSeries *PriceSeries
	assert.ErrorIs(t, nilSeries.Validate(), ErrSchemaViolation)
}

func TestSlicing(t *testing.T) {
	s := NewPriceSeries("X", bars(map[string]float64{
		"2024-01-01": 1, "2024-01-02": 2, "2024-01-03": 3, "2024-01-04": 4, "2024-01-05": 5,
	}))

	assert.Equal(t, []float64{1, 2, 3}, s.UpTo(day("2024-01-03")).Closes())
	assert.Equal(t, []float64{3, 4, 5}, s.From(day("2024-01-03")).Closes())
	assert.Equal(t, []float64{2, 3}, s.Between(day("2024-01-02"), day("2024-01-04")).Closes())
	assert.Equal(t, []float64{4, 5}, s.Tail(2).Closes())
	assert.Equal(t, 5, s.Tail(10).Len())
	assert.Equal(t, 0, s.UpTo(day("2023-12-31")).Len())
	assert.Equal(t, 0, s.From(day("2024-02-01")).Len())
}

func TestNearestClose(t *testing.T) {
	// Friday 2024-01-05, Monday 2024-01-08, Wednesday 2024-01-10
	s := NewPriceSeries("X", bars(map[string]float64{
		"2024-01-05": 100, "2024-01-08": 101, "2024-01-10": 103,
	}))

	tests := []struct {
		name string
		date string
		want float64
	}{
		{"exact", "2024-01-08", 101},
		{"saturday goes to friday", "2024-01-06", 100},
		{"sunday goes to monday", "2024-01-07", 101},
		{"midpoint tie picks earlier", "2024-01-09", 101},
		{"before first", "2023-12-01", 100},
		{"after last", "2024-03-01", 103},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.NearestClose(day(tt.date))
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := NewPriceSeries("X", nil).NearestClose(day("2024-01-01"))
	assert.False(t, ok)
}

func TestRowJSON(t *testing.T) {
	b, err := json.Marshal(ScoreRow{Ticker: "BAD", Error: "no data"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ticker":"BAD","error":"no data"}`, string(b))

	b, err = json.Marshal(RankRow{Ticker: "AAPL", WI: 61.2, RetFwd: 0.1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ticker":"AAPL","wi":61.2,"ret_fwd":0.1}`, string(b))

	b, err = json.Marshal(BacktestRow{Ticker: "X", Error: "No data at start"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ticker":"X","error":"No data at start"}`, string(b))
}

func TestBand(t *testing.T) {
	assert.Equal(t, "strong", Band(85))
	assert.Equal(t, "positive", Band(70))
	assert.Equal(t, "neutral", Band(50))
	assert.Equal(t, "weak", Band(30))
	assert.Equal(t, "critical", Band(20))
}
