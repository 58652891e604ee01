package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oraculum/internal/backtest"
	"oraculum/pkg/model"
)

func TestWriteBacktestCSV(t *testing.T) {
	rows := []model.BacktestRow{
		{
			Ticker: "AAPL", WIStart: 61.2, SignalStart: model.SignalHold,
			StartDate: "2024-01-06", EndDate: "2024-03-01",
			StartClose: 181.18, EndClose: 179.66, PerfPct: -0.84,
		},
		{Ticker: "ZZZZ", Error: "no data for ZZZZ (yahoo & stooq failed)"},
		{
			Ticker: "NVDA", WIStart: 75, SignalStart: model.SignalBuy,
			StartDate: "2024-01-06", EndDate: "2024-03-01",
			StartClose: 490.97, EndClose: 822.79, PerfPct: 67.58,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBacktestCSV(&buf, rows))

	want := strings.Join([]string{
		"ticker,wi_start,signal_start,start_date,end_date,start_close,end_close,perf_pct",
		"AAPL,61.2,HOLD,2024-01-06,2024-03-01,181.18,179.66,-0.84",
		"ZZZZ,,,,,,,ERROR: no data for ZZZZ (yahoo & stooq failed)",
		"NVDA,75.0,BUY,2024-01-06,2024-03-01,490.97,822.79,67.58",
	}, "\r\n") + "\r\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteBacktestCSVQuotesErrors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBacktestCSV(&buf, []model.BacktestRow{{Ticker: "X", Error: "bad, worse"}}))
	assert.Contains(t, buf.String(), `X,,,,,,,"ERROR: bad, worse"`)
}

func TestCSVFilename(t *testing.T) {
	assert.Equal(t, "backtest_2024-01-01_2024-06-30.csv", CSVFilename(model.WindowParams{Start: "2024-01-01", End: "2024-06-30"}))
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "185.0", Number(185))
	assert.Equal(t, "0.0", Number(0))
	assert.Equal(t, "-0.84", Number(-0.84))
	assert.Equal(t, "61.2", Number(61.2))
}

func TestTables(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ScoreTable(&buf, []model.ScoreRow{
		{Ticker: "AAPL", WI: 72.5, Signal: model.SignalBuy, Components: model.Components{MOM: 1.2}},
		{Ticker: "BAD", Error: "no data"},
	}))
	out := buf.String()
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "72.50")
	assert.Contains(t, out, "positive")
	assert.Contains(t, out, "no data")

	buf.Reset()
	require.NoError(t, RankTable(&buf, &model.RankResult{
		Results: []model.RankRow{{Ticker: "MSFT", WI: 55, RetFwd: 0.1}, {Ticker: "BAD", Error: "no history up to rank date"}},
		Ranking: []model.RankRow{{Ticker: "MSFT", WI: 55, RetFwd: 0.1}},
	}))
	assert.Contains(t, buf.String(), "+10.00%")
	assert.Contains(t, buf.String(), "no history up to rank date")

	buf.Reset()
	res := &model.WindowResult{Data: []model.BacktestRow{{Ticker: "TSLA", WIStart: 30, SignalStart: model.SignalSell, PerfPct: -12.5}}}
	require.NoError(t, WindowTable(&buf, res))
	assert.Contains(t, buf.String(), "-12.50")

	buf.Reset()
	require.NoError(t, SummaryTable(&buf, backtest.Summarize(res.Data)))
	assert.Contains(t, buf.String(), "SELL")
}
