package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"oraculum/internal/indicator"
	"oraculum/internal/provider"
	"oraculum/internal/report"
	"oraculum/pkg/model"
)

// ScoreResponse wraps the rows of a batch score
type ScoreResponse struct {
	Data []model.ScoreRow `json:"data"`
}

// ErrorResponse is returned for rejected requests
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"app":    s.config.App.Name,
		"env":    s.config.App.Env,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /wi?tickers=NVDA&tickers=AAPL[&start=YYYY-MM-DD&end=YYYY-MM-DD]
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tickers := parseTickers(q)
	if len(tickers) == 0 {
		writeError(w, http.StatusBadRequest, "tickers is required")
		return
	}

	start, err := optionalDate(q, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := optionalDate(q, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows := s.scorer.Score(r.Context(), tickers, provider.NewDateRange(start, end))
	writeJSON(w, http.StatusOK, ScoreResponse{Data: rows})
}

// GET /wi/backtest?tickers=..&rank_date=YYYY-MM-DD&to=YYYY-MM-DD
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tickers := parseTickers(q)
	if len(tickers) == 0 {
		writeError(w, http.StatusBadRequest, "tickers is required")
		return
	}

	rankDate, err := requiredDate(q, "rank_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := requiredDate(q, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.backtest.Rank(r.Context(), tickers, rankDate, to))
}

// GET /backtest?tickers=..&start=..&end=..[&sell_th=40&buy_th=70&format=json|csv]
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tickers := parseTickers(q)
	if len(tickers) == 0 {
		writeError(w, http.StatusBadRequest, "tickers is required")
		return
	}

	start, err := requiredDate(q, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := requiredDate(q, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	th := indicator.Thresholds{
		Sell: s.config.Backtest.SellThreshold,
		Buy:  s.config.Backtest.BuyThreshold,
	}
	if th.Sell, err = optionalFloat(q, "sell_th", th.Sell); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if th.Buy, err = optionalFloat(q, "buy_th", th.Buy); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := th.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	format := strings.ToLower(q.Get("format"))
	if format != "" && format != "json" && format != "csv" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}

	result := s.backtest.RunWindow(r.Context(), tickers, start, end, th)
	if format != "csv" {
		writeJSON(w, http.StatusOK, result)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteBacktestCSV(&buf, result.Data); err != nil {
		log.Error().Err(err).Msg("Failed to render backtest CSV")
		writeError(w, http.StatusInternalServerError, "failed to render csv")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.CSVFilename(result.Params)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// parseTickers accepts repeated and comma separated tickers
func parseTickers(q url.Values) []string {
	var out []string
	for _, v := range q["tickers"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

func requiredDate(q url.Values, name string) (time.Time, error) {
	if q.Get(name) == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	return optionalDate(q, name)
}

func optionalDate(q url.Values, name string) (time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := model.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", name)
	}
	return t, nil
}

func optionalFloat(q url.Values, name string, def float64) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}
