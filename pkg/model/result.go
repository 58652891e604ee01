package model

import "encoding/json"

// Signal is the discrete classification of a score
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalHold Signal = "HOLD"
	SignalSell Signal = "SELL"
)

// Components holds the rounded sub-factor values behind a score
type Components struct {
	MOM   float64 `json:"MOM"`
	VAL   float64 `json:"VAL"`
	FLOW  float64 `json:"FLOW"`
	MACRO float64 `json:"MACRO"`
}

// IndicatorResult is the outcome of scoring one series
type IndicatorResult struct {
	Score      float64    `json:"score"`
	Signal     Signal     `json:"signal"`
	Components Components `json:"components"`
}

// NeutralResult is returned when a series is too short to score
func NeutralResult() *IndicatorResult {
	return &IndicatorResult{Score: 50.0, Signal: SignalHold}
}

// Band maps a score onto the labels shown next to it in reports
func Band(score float64) string {
	switch {
	case score > 80:
		return "strong"
	case score > 60:
		return "positive"
	case score > 40:
		return "neutral"
	case score > 20:
		return "weak"
	default:
		return "critical"
	}
}

// ScoreRow is one ticker's entry in a batch score
type ScoreRow struct {
	Ticker     string     `json:"ticker"`
	WI         float64    `json:"wi"`
	Signal     Signal     `json:"signal"`
	Components Components `json:"components"`
	Error      string     `json:"error,omitempty"`
}

// OK reports whether the row carries a score
func (r ScoreRow) OK() bool { return r.Error == "" }

func (r ScoreRow) MarshalJSON() ([]byte, error) {
	if !r.OK() {
		return marshalFailure(r.Ticker, r.Error)
	}
	type row ScoreRow
	return json.Marshal(row(r))
}

// BacktestRow is one ticker's entry in a window backtest
type BacktestRow struct {
	Ticker      string  `json:"ticker"`
	WIStart     float64 `json:"wi_start"`
	SignalStart Signal  `json:"signal_start"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	StartClose  float64 `json:"start_close"`
	EndClose    float64 `json:"end_close"`
	PerfPct     float64 `json:"perf_pct"`
	Error       string  `json:"error,omitempty"`
}

func (r BacktestRow) OK() bool { return r.Error == "" }

func (r BacktestRow) MarshalJSON() ([]byte, error) {
	if !r.OK() {
		return marshalFailure(r.Ticker, r.Error)
	}
	type row BacktestRow
	return json.Marshal(row(r))
}

// WindowParams echoes the inputs of a window backtest
type WindowParams struct {
	Start         string  `json:"start"`
	End           string  `json:"end"`
	SellThreshold float64 `json:"sell_th"`
	BuyThreshold  float64 `json:"buy_th"`
}

// WindowResult is the output of a window backtest
type WindowResult struct {
	Params WindowParams  `json:"params"`
	Data   []BacktestRow `json:"data"`
}

// RankRow is one ticker's entry in a rank-then-forward-return run
type RankRow struct {
	Ticker string  `json:"ticker"`
	WI     float64 `json:"wi"`
	RetFwd float64 `json:"ret_fwd"`
	Error  string  `json:"error,omitempty"`
}

func (r RankRow) OK() bool { return r.Error == "" }

func (r RankRow) MarshalJSON() ([]byte, error) {
	if !r.OK() {
		return marshalFailure(r.Ticker, r.Error)
	}
	type row RankRow
	return json.Marshal(row(r))
}

// RankResult is the output of a rank-then-forward-return run
type RankResult struct {
	RankDate string    `json:"rank_date"`
	To       string    `json:"to"`
	Results  []RankRow `json:"results"`
	Ranking  []RankRow `json:"ranking"`
}

func marshalFailure(ticker, msg string) ([]byte, error) {
	return json.Marshal(struct {
		Ticker string `json:"ticker"`
		Error  string `json:"error"`
	}{ticker, msg})
}
