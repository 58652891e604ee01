package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oraculum/internal/indicator"
	"oraculum/internal/provider"
	"oraculum/pkg/model"
)

type memorySource struct {
	mu     sync.Mutex
	series map[string]*model.PriceSeries
	events []string
}

func (m *memorySource) Fetch(ctx context.Context, ticker string, r provider.DateRange) (*model.PriceSeries, error) {
	if s, ok := m.series[provider.NormalizeTicker(ticker)]; ok {
		return s, nil
	}
	return nil, &provider.DataUnavailableError{Ticker: provider.NormalizeTicker(ticker)}
}

func (m *memorySource) EventsModifier(ticker string, when time.Time) float64 {
	m.mu.Lock()
	m.events = append(m.events, ticker)
	m.mu.Unlock()
	return 0
}

func uptrend(ticker string, n int) *model.PriceSeries {
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
		bars[i] = model.PriceBar{Date: start.AddDate(0, 0, i), Close: c, AdjClose: c, Volume: 1e6}
	}
	return model.NewPriceSeries(ticker, bars)
}

func TestScoreUptrend(t *testing.T) {
	src := &memorySource{series: map[string]*model.PriceSeries{"TEST": uptrend("TEST", 300)}}
	s := NewScanner(src, indicator.NewEngine(nil, nil), 2, nil)

	rows := s.Score(context.Background(), []string{"TEST"}, provider.DateRange{})
	require.Len(t, rows, 1)
	require.True(t, rows[0].OK(), rows[0].Error)

	assert.Equal(t, "TEST", rows[0].Ticker)
	assert.Equal(t, model.SignalBuy, rows[0].Signal)
	assert.Greater(t, rows[0].Components.MOM, 0.0)
	assert.Equal(t, []string{"TEST"}, src.events)
}

func TestScoreKeepsOrderAndIsolatesFailures(t *testing.T) {
	src := &memorySource{series: map[string]*model.PriceSeries{
		"AAA": uptrend("AAA", 300),
		"BBB": uptrend("BBB", 30),
		"DDD": uptrend("DDD", 120),
	}}
	s := NewScanner(src, indicator.NewEngine(nil, nil), 3, nil)

	var mu sync.Mutex
	var progress []int
	s.SetProgressCallback(func(scored, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 4, total)
		progress = append(progress, scored)
	})

	rows := s.Score(context.Background(), []string{"AAA", "BBB", "CCC", " DDD"}, provider.DateRange{})
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"AAA", "BBB", "CCC", "DDD"}, []string{rows[0].Ticker, rows[1].Ticker, rows[2].Ticker, rows[3].Ticker})
	assert.True(t, rows[0].OK())
	// short history is neutral, not an error
	assert.True(t, rows[1].OK())
	assert.Equal(t, 50.0, rows[1].WI)
	assert.Equal(t, model.SignalHold, rows[1].Signal)
	assert.False(t, rows[2].OK())
	assert.Contains(t, rows[2].Error, "no data for CCC")
	assert.True(t, rows[3].OK())

	assert.ElementsMatch(t, []int{1, 2, 3, 4}, progress)
}

func TestScoreEmptyAndCancelled(t *testing.T) {
	s := NewScanner(&memorySource{}, indicator.NewEngine(nil, nil), 0, nil)
	assert.Empty(t, s.Score(context.Background(), nil, provider.DateRange{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rows := s.Score(ctx, []string{"A", "B"}, provider.DateRange{})
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.False(t, r.OK())
		assert.Equal(t, context.Canceled.Error(), r.Error)
	}
}
