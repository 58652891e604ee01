package scanner

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"oraculum/internal/metrics"
	"oraculum/internal/provider"
	"oraculum/pkg/model"
)

// ProgressCallback is called with progress updates
type ProgressCallback func(scored, total int)

// Source is the data layer as seen by the scanner
type Source interface {
	Fetch(ctx context.Context, ticker string, r provider.DateRange) (*model.PriceSeries, error)
	EventsModifier(ticker string, when time.Time) float64
}

// Scorer turns a series into an indicator result
type Scorer interface {
	Score(ctx context.Context, series *model.PriceSeries, events float64) (*model.IndicatorResult, error)
}

// Scanner scores many tickers in parallel
type Scanner struct {
	data         Source
	engine       Scorer
	workers      int
	metrics      *metrics.Registry
	progressFunc ProgressCallback
}

// NewScanner creates a new scanner
func NewScanner(data Source, engine Scorer, workers int, m *metrics.Registry) *Scanner {
	if workers < 1 {
		workers = 1
	}
	return &Scanner{
		data:    data,
		engine:  engine,
		workers: workers,
		metrics: m,
	}
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(fn ProgressCallback) {
	s.progressFunc = fn
}

type job struct {
	index  int
	ticker string
}

// Score returns one row per ticker, in input order.
// A ticker that cannot be fetched or scored yields an error row; siblings are unaffected.
func (s *Scanner) Score(ctx context.Context, tickers []string, r provider.DateRange) []model.ScoreRow {
	rows := make([]model.ScoreRow, len(tickers))
	if len(tickers) == 0 {
		return rows
	}

	jobChan := make(chan job, len(tickers))
	for i, t := range tickers {
		jobChan <- job{index: i, ticker: strings.TrimSpace(t)}
	}
	close(jobChan)

	var scoredCount int64
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobChan {
				if err := ctx.Err(); err != nil {
					rows[j.index] = model.ScoreRow{Ticker: j.ticker, Error: err.Error()}
				} else {
					rows[j.index] = s.scoreOne(ctx, j.ticker, r)
				}
				s.metrics.TickerOutcome("score", rows[j.index].OK())

				count := atomic.AddInt64(&scoredCount, 1)
				if s.progressFunc != nil {
					s.progressFunc(int(count), len(tickers))
				}
			}
		}()
	}
	wg.Wait()

	return rows
}

func (s *Scanner) scoreOne(ctx context.Context, ticker string, r provider.DateRange) model.ScoreRow {
	series, err := s.data.Fetch(ctx, ticker, r)
	if err != nil {
		log.Warn().Err(err).Str("ticker", ticker).Msg("fetch failed")
		return model.ScoreRow{Ticker: ticker, Error: err.Error()}
	}

	events := s.data.EventsModifier(ticker, series.LastDate())
	res, err := s.engine.Score(ctx, series, events)
	if err != nil {
		log.Warn().Err(err).Str("ticker", ticker).Msg("scoring failed")
		return model.ScoreRow{Ticker: ticker, Error: err.Error()}
	}

	return model.ScoreRow{
		Ticker:     ticker,
		WI:         res.Score,
		Signal:     res.Signal,
		Components: res.Components,
	}
}
