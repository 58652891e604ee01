package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used on every external surface.
const DateLayout = "2006-01-02"

// PriceBar represents one trading day of OHLCV data
type PriceBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   float64   `json:"volume"`
}

// PriceSeries is an ordered daily series for one ticker.
// Dates are strictly increasing; a series returned by the data layer must not be mutated.
type PriceSeries struct {
	Ticker string     `json:"ticker"`
	Bars   []PriceBar `json:"bars"`
}

// ErrSchemaViolation is matched by every SchemaError
var ErrSchemaViolation = errors.New("schema violation")

// SchemaError describes the first bar that breaks the series contract
type SchemaError struct {
	Ticker string
	Index  int
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: bar %d: %s %s", e.Ticker, e.Index, e.Field, e.Reason)
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaViolation
}

// Day truncates t to its calendar day at UTC midnight
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC calendar day
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a calendar day, or "" for the zero time
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// NewPriceSeries builds a series from bars in any order.
// Dates are normalized to calendar days; for duplicate days the later bar wins.
func NewPriceSeries(ticker string, bars []PriceBar) *PriceSeries {
	sorted := make([]PriceBar, len(bars))
	copy(sorted, bars)
	for i := range sorted {
		sorted[i].Date = Day(sorted[i].Date)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := sorted[:0]
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return &PriceSeries{Ticker: ticker, Bars: out}
}

// Len returns the number of bars
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Validate checks the fields the indicator depends on
func (s *PriceSeries) Validate() error {
	if s == nil {
		return &SchemaError{Index: -1, Field: "series", Reason: "is nil"}
	}
	for i, b := range s.Bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			return &SchemaError{Ticker: s.Ticker, Index: i, Field: "close", Reason: "is not finite"}
		}
		if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) {
			return &SchemaError{Ticker: s.Ticker, Index: i, Field: "volume", Reason: "is not finite"}
		}
		if i > 0 && !b.Date.After(s.Bars[i-1].Date) {
			return &SchemaError{Ticker: s.Ticker, Index: i, Field: "date", Reason: "is not strictly increasing"}
		}
	}
	return nil
}

// Closes returns the close column
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volume column
func (s *PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// LastDate returns the date of the final bar, or the zero time for an empty series
func (s *PriceSeries) LastDate() time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Date
}

func (s *PriceSeries) slice(from, to int) *PriceSeries {
	return &PriceSeries{Ticker: s.Ticker, Bars: s.Bars[from:to:to]}
}

// firstAtOrAfter returns the index of the first bar dated on or after date
func (s *PriceSeries) firstAtOrAfter(date time.Time) int {
	return sort.Search(len(s.Bars), func(i int) bool {
		return !s.Bars[i].Date.Before(date)
	})
}

// UpTo returns the bars dated on or before date
func (s *PriceSeries) UpTo(date time.Time) *PriceSeries {
	i := sort.Search(len(s.Bars), func(i int) bool {
		return s.Bars[i].Date.After(date)
	})
	return s.slice(0, i)
}

// From returns the bars dated on or after date
func (s *PriceSeries) From(date time.Time) *PriceSeries {
	return s.slice(s.firstAtOrAfter(date), len(s.Bars))
}

// Between returns the bars in [start, end)
func (s *PriceSeries) Between(start, end time.Time) *PriceSeries {
	lo := s.firstAtOrAfter(start)
	hi := s.firstAtOrAfter(end)
	if hi < lo {
		hi = lo
	}
	return s.slice(lo, hi)
}

// Tail returns at most the last n bars
func (s *PriceSeries) Tail(n int) *PriceSeries {
	if n >= len(s.Bars) {
		return s.slice(0, len(s.Bars))
	}
	if n < 0 {
		n = 0
	}
	return s.slice(len(s.Bars)-n, len(s.Bars))
}

// NearestIndex returns the index of the bar closest in calendar time to date.
// An exact tie resolves to the earlier bar. Returns -1 for an empty series.
func (s *PriceSeries) NearestIndex(date time.Time) int {
	n := len(s.Bars)
	if n == 0 {
		return -1
	}
	i := s.firstAtOrAfter(date)
	if i == 0 {
		return 0
	}
	if i == n {
		return n - 1
	}
	before := date.Sub(s.Bars[i-1].Date)
	after := s.Bars[i].Date.Sub(date)
	if after < before {
		return i
	}
	return i - 1
}

// NearestClose returns the close of the bar nearest to date
func (s *PriceSeries) NearestClose(date time.Time) (float64, bool) {
	i := s.NearestIndex(date)
	if i < 0 {
		return 0, false
	}
	return s.Bars[i].Close, true
}
