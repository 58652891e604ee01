package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"oraculum/internal/backtest"
	"oraculum/pkg/model"
)

// ScoreTable renders batch score rows
func ScoreTable(w io.Writer, rows []model.ScoreRow) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Ticker", "WI", "Signal", "Band", "MOM", "VAL", "FLOW", "MACRO"}),
	)
	for _, r := range rows {
		if !r.OK() {
			table.Append([]string{r.Ticker, "-", "-", "-", "-", "-", "-", r.Error})
			continue
		}
		table.Append([]string{
			r.Ticker,
			fmt.Sprintf("%.2f", r.WI),
			string(r.Signal),
			model.Band(r.WI),
			fmt.Sprintf("%.3f", r.Components.MOM),
			fmt.Sprintf("%.3f", r.Components.VAL),
			fmt.Sprintf("%.3f", r.Components.FLOW),
			fmt.Sprintf("%.3f", r.Components.MACRO),
		})
	}
	return table.Render()
}

// WindowTable renders window backtest rows
func WindowTable(w io.Writer, res *model.WindowResult) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Ticker", "WI Start", "Signal", "Start Close", "End Close", "Perf %"}),
	)
	for _, r := range res.Data {
		if !r.OK() {
			table.Append([]string{r.Ticker, "-", "-", "-", "-", "ERROR: " + r.Error})
			continue
		}
		table.Append([]string{
			r.Ticker,
			fmt.Sprintf("%.2f", r.WIStart),
			string(r.SignalStart),
			fmt.Sprintf("%.4f", r.StartClose),
			fmt.Sprintf("%.4f", r.EndClose),
			fmt.Sprintf("%+.2f", r.PerfPct),
		})
	}
	return table.Render()
}

// SummaryTable renders per-signal aggregates of a window backtest
func SummaryTable(w io.Writer, sum backtest.Summary) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Signal", "Count", "Avg Perf %", "Best %", "Worst %", "Up Rate"}),
	)
	for _, st := range sum.BySignal {
		table.Append([]string{
			string(st.Signal),
			fmt.Sprintf("%d", st.Count),
			fmt.Sprintf("%+.2f", st.AvgPerfPct),
			fmt.Sprintf("%+.2f", st.BestPct),
			fmt.Sprintf("%+.2f", st.WorstPct),
			fmt.Sprintf("%.0f%%", st.UpRate*100),
		})
	}
	return table.Render()
}

// RankTable renders the ranking of a rank-then-forward-return run, then any failures
func RankTable(w io.Writer, res *model.RankResult) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"#", "Ticker", "WI", "Band", "Fwd Return"}),
	)
	for i, r := range res.Ranking {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			r.Ticker,
			fmt.Sprintf("%.2f", r.WI),
			model.Band(r.WI),
			fmt.Sprintf("%+.2f%%", r.RetFwd*100),
		})
	}
	for _, r := range res.Results {
		if !r.OK() {
			table.Append([]string{"-", r.Ticker, "-", "-", "ERROR: " + r.Error})
		}
	}
	return table.Render()
}
