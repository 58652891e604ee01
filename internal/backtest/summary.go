package backtest

import (
	"oraculum/internal/feature"
	"oraculum/pkg/model"
)

// SignalStats aggregates window rows that started with the same signal
type SignalStats struct {
	Signal     model.Signal `json:"signal"`
	Count      int          `json:"count"`
	AvgPerfPct float64      `json:"avg_perf_pct"`
	BestPct    float64      `json:"best_pct"`
	WorstPct   float64      `json:"worst_pct"`
	UpRate     float64      `json:"up_rate"` // share of rows that closed higher
}

// Summary describes a window backtest at a glance
type Summary struct {
	Tickers  int           `json:"tickers"`
	Errors   int           `json:"errors"`
	BySignal []SignalStats `json:"by_signal"`
}

// Summarize groups successful rows by starting signal, in BUY, HOLD, SELL order
func Summarize(rows []model.BacktestRow) Summary {
	sum := Summary{Tickers: len(rows)}
	groups := map[model.Signal][]float64{}
	for _, r := range rows {
		if !r.OK() {
			sum.Errors++
			continue
		}
		groups[r.SignalStart] = append(groups[r.SignalStart], r.PerfPct)
	}

	for _, sig := range []model.Signal{model.SignalBuy, model.SignalHold, model.SignalSell} {
		perfs := groups[sig]
		if len(perfs) == 0 {
			continue
		}
		st := SignalStats{Signal: sig, Count: len(perfs), BestPct: perfs[0], WorstPct: perfs[0]}
		var total float64
		up := 0
		for _, p := range perfs {
			total += p
			if p > 0 {
				up++
			}
			if p > st.BestPct {
				st.BestPct = p
			}
			if p < st.WorstPct {
				st.WorstPct = p
			}
		}
		st.AvgPerfPct = feature.Round(total/float64(len(perfs)), 2)
		st.UpRate = feature.Round(float64(up)/float64(len(perfs)), 4)
		sum.BySignal = append(sum.BySignal, st)
	}
	return sum
}
