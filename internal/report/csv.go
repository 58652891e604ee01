package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"oraculum/pkg/model"
)

// BacktestColumns is the fixed header of a window backtest export
var BacktestColumns = []string{
	"ticker", "wi_start", "signal_start", "start_date", "end_date", "start_close", "end_close", "perf_pct",
}

// CSVFilename is the download name for a window backtest export
func CSVFilename(p model.WindowParams) string {
	return fmt.Sprintf("backtest_%s_%s.csv", p.Start, p.End)
}

// WriteBacktestCSV writes one line per row under BacktestColumns.
// Failed rows keep only the ticker and put "ERROR: <message>" in perf_pct.
func WriteBacktestCSV(w io.Writer, rows []model.BacktestRow) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(BacktestColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, r := range rows {
		var rec []string
		if !r.OK() {
			rec = []string{r.Ticker, "", "", "", "", "", "", "ERROR: " + r.Error}
		} else {
			rec = []string{
				r.Ticker,
				Number(r.WIStart),
				string(r.SignalStart),
				r.StartDate,
				r.EndDate,
				Number(r.StartClose),
				Number(r.EndClose),
				Number(r.PerfPct),
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing %s: %w", r.Ticker, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Number formats a float in its shortest form, keeping ".0" on whole values
func Number(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		s += ".0"
	}
	return s
}
