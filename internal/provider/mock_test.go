package provider

import (
	"context"
	"sync/atomic"
	"time"

	"oraculum/pkg/model"
)

type mockProvider struct {
	name  string
	bars  []model.PriceBar
	err   error
	gate  chan struct{}
	calls atomic.Int32
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) DailyBars(ctx context.Context, ticker string, r DateRange) (*model.PriceSeries, error) {
	m.calls.Add(1)
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.bars) == 0 {
		return nil, &ProviderError{Provider: m.name, Err: ErrNoData}
	}
	return model.NewPriceSeries(ticker, m.bars), nil
}

func testBars(n int) []model.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.PriceBar, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = model.PriceBar{
			Date:     start.AddDate(0, 0, i),
			Open:     c,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			AdjClose: c,
			Volume:   1e6,
		}
	}
	return out
}
