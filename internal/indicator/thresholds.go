package indicator

import (
	"fmt"
	"math"

	"oraculum/pkg/model"
)

// Thresholds are per-request signal cut-offs used by window backtests
type Thresholds struct {
	Sell float64 `json:"sell_threshold"`
	Buy  float64 `json:"buy_threshold"`
}

// DefaultThresholds returns SELL below 40 and BUY from 70
func DefaultThresholds() Thresholds {
	return Thresholds{Sell: 40, Buy: 70}
}

// Classify returns BUY when score >= Buy, SELL when score < Sell, HOLD otherwise
func (t Thresholds) Classify(score float64) model.Signal {
	switch {
	case score >= t.Buy:
		return model.SignalBuy
	case score < t.Sell:
		return model.SignalSell
	default:
		return model.SignalHold
	}
}

// Validate checks the thresholds are within the score range and ordered
func (t Thresholds) Validate() error {
	if !isFinite(t.Sell) || !isFinite(t.Buy) {
		return fmt.Errorf("thresholds must be finite numbers")
	}
	if t.Sell < 0 || t.Buy > 100 {
		return fmt.Errorf("thresholds must lie within [0, 100]")
	}
	if t.Sell > t.Buy {
		return fmt.Errorf("sell threshold %.2f exceeds buy threshold %.2f", t.Sell, t.Buy)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
