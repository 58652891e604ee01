package backtest

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"oraculum/internal/feature"
	"oraculum/internal/indicator"
	"oraculum/internal/metrics"
	"oraculum/internal/provider"
	"oraculum/pkg/model"
)

var (
	errNoDataAtStart = errors.New("No data at start")
	errNoDataAtEnd   = errors.New("No data at end")
	errNoHistory     = errors.New("no history up to rank date")
	errBadStartClose = errors.New("non-positive close at start")
	errBadRankClose  = errors.New("non-positive close at rank date")
)

// Source is the data layer as seen by the backtester
type Source interface {
	Fetch(ctx context.Context, ticker string, r provider.DateRange) (*model.PriceSeries, error)
	EventsModifier(ticker string, when time.Time) float64
}

// Scorer turns a series into an indicator result
type Scorer interface {
	Score(ctx context.Context, series *model.PriceSeries, events float64) (*model.IndicatorResult, error)
}

// Config holds backtest parameters
type Config struct {
	Workers         int
	WindowLookback  int // calendar days fetched before a window start
	WindowScoreBars int // bars scored at the window start
	RankLookback    int // calendar days fetched before a rank date
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		WindowLookback:  260,
		WindowScoreBars: 260,
		RankLookback:    400,
	}
}

// Engine runs backtests of the indicator against realized returns
type Engine struct {
	data    Source
	scorer  Scorer
	config  Config
	metrics *metrics.Registry
}

// NewEngine creates a backtester
func NewEngine(data Source, scorer Scorer, cfg Config, m *metrics.Registry) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Engine{data: data, scorer: scorer, config: cfg, metrics: m}
}

// forEach runs fn for every ticker with bounded parallelism
func (e *Engine) forEach(tickers []string, fn func(i int, ticker string)) {
	var g errgroup.Group
	g.SetLimit(e.config.Workers)
	for i, t := range tickers {
		g.Go(func() error {
			fn(i, t)
			return nil
		})
	}
	g.Wait()
}

// RunWindow scores each ticker at the first trading day on or after start and
// measures the close-to-close performance until end.
func (e *Engine) RunWindow(ctx context.Context, tickers []string, start, end time.Time, th indicator.Thresholds) *model.WindowResult {
	start, end = model.Day(start), model.Day(end)
	rows := make([]model.BacktestRow, len(tickers))

	e.forEach(tickers, func(i int, ticker string) {
		row, err := e.window(ctx, ticker, start, end, th)
		if err != nil {
			log.Warn().Err(err).Str("ticker", ticker).Msg("window backtest failed")
			row = model.BacktestRow{Ticker: ticker, Error: err.Error()}
		}
		rows[i] = row
		e.metrics.TickerOutcome("window", row.OK())
	})

	return &model.WindowResult{
		Params: model.WindowParams{
			Start:         model.FormatDate(start),
			End:           model.FormatDate(end),
			SellThreshold: th.Sell,
			BuyThreshold:  th.Buy,
		},
		Data: rows,
	}
}

func (e *Engine) window(ctx context.Context, ticker string, start, end time.Time, th indicator.Thresholds) (model.BacktestRow, error) {
	if err := ctx.Err(); err != nil {
		return model.BacktestRow{}, err
	}
	r := provider.NewDateRange(start.AddDate(0, 0, -e.config.WindowLookback), end)
	series, err := e.data.Fetch(ctx, ticker, r)
	if err != nil {
		return model.BacktestRow{}, err
	}

	fromStart := series.From(start)
	if fromStart.Len() == 0 {
		return model.BacktestRow{}, errNoDataAtStart
	}
	ref := fromStart.Bars[0].Date

	history := series.UpTo(ref).Tail(e.config.WindowScoreBars)
	res, err := e.scorer.Score(ctx, history, e.data.EventsModifier(ticker, ref))
	if err != nil {
		return model.BacktestRow{}, err
	}
	wi := feature.Round(res.Score, 2)

	if series.UpTo(end).Len() == 0 {
		return model.BacktestRow{}, errNoDataAtEnd
	}
	closeStart, _ := series.NearestClose(start)
	closeEnd, _ := series.NearestClose(end)
	if !(closeStart > 0) {
		return model.BacktestRow{}, errBadStartClose
	}

	return model.BacktestRow{
		Ticker:      ticker,
		WIStart:     wi,
		SignalStart: th.Classify(wi),
		StartDate:   model.FormatDate(start),
		EndDate:     model.FormatDate(end),
		StartClose:  feature.Round(closeStart, 4),
		EndClose:    feature.Round(closeEnd, 4),
		PerfPct:     feature.Round((closeEnd/closeStart-1)*100, 2),
	}, nil
}

// Rank scores each ticker on history up to rankDate, measures the forward return
// to `to`, and orders the successful rows by score.
func (e *Engine) Rank(ctx context.Context, tickers []string, rankDate, to time.Time) *model.RankResult {
	rankDate, to = model.Day(rankDate), model.Day(to)
	rows := make([]model.RankRow, len(tickers))

	e.forEach(tickers, func(i int, ticker string) {
		row, err := e.rank(ctx, ticker, rankDate, to)
		if err != nil {
			log.Warn().Err(err).Str("ticker", ticker).Msg("rank backtest failed")
			row = model.RankRow{Ticker: ticker, Error: err.Error()}
		}
		rows[i] = row
		e.metrics.TickerOutcome("rank", row.OK())
	})

	ranking := make([]model.RankRow, 0, len(rows))
	for _, r := range rows {
		if r.OK() {
			ranking = append(ranking, r)
		}
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].WI > ranking[j].WI
	})

	return &model.RankResult{
		RankDate: model.FormatDate(rankDate),
		To:       model.FormatDate(to),
		Results:  rows,
		Ranking:  ranking,
	}
}

func (e *Engine) rank(ctx context.Context, ticker string, rankDate, to time.Time) (model.RankRow, error) {
	if err := ctx.Err(); err != nil {
		return model.RankRow{}, err
	}
	r := provider.NewDateRange(rankDate.AddDate(0, 0, -e.config.RankLookback), to)
	series, err := e.data.Fetch(ctx, ticker, r)
	if err != nil {
		return model.RankRow{}, err
	}

	history := series.UpTo(rankDate)
	if history.Len() == 0 {
		return model.RankRow{}, errNoHistory
	}
	res, err := e.scorer.Score(ctx, history, e.data.EventsModifier(ticker, rankDate))
	if err != nil {
		return model.RankRow{}, err
	}

	pxStart, _ := series.NearestClose(rankDate)
	pxEnd, _ := series.NearestClose(to)
	if !(pxStart > 0) {
		return model.RankRow{}, errBadRankClose
	}

	return model.RankRow{
		Ticker: ticker,
		WI:     feature.Round(res.Score, 2),
		RetFwd: feature.Round(pxEnd/pxStart-1, 4),
	}, nil
}
