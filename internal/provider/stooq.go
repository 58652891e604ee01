package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"oraculum/internal/ratelimit"
	"oraculum/pkg/model"
)

const stooqBaseURL = "https://stooq.com"

var stooqColumns = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// StooqProvider reads full daily history from Stooq's CSV download
type StooqProvider struct {
	client  *http.Client
	limiter *ratelimit.Limiter
	baseURL string
}

// NewStooqProvider creates a new Stooq provider.
// An empty baseURL selects the public endpoint.
func NewStooqProvider(baseURL string, timeout time.Duration, perMinute int) *StooqProvider {
	if baseURL == "" {
		baseURL = stooqBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StooqProvider{
		client:  &http.Client{Timeout: timeout},
		limiter: ratelimit.NewLimiter("stooq", perMinute),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name
func (p *StooqProvider) Name() string {
	return "stooq"
}

// StooqSymbol maps a ticker to Stooq's notation; bare US tickers get ".us"
func StooqSymbol(ticker string) string {
	t := strings.ToLower(strings.TrimSpace(ticker))
	if !strings.Contains(t, ".") {
		t += ".us"
	}
	return t
}

// DailyBars downloads the whole history and keeps bars in [r.Start, r.End + 1 day).
// Stooq has no adjusted close, so AdjClose mirrors Close.
func (p *StooqProvider) DailyBars(ctx context.Context, ticker string, r DateRange) (*model.PriceSeries, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/q/d/l/?s=%s&i=d", p.baseURL, StooqSymbol(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalRateLimited()
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited"), Retryable: true}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: resp.StatusCode >= 500}
	}

	p.limiter.ResetBackoff()

	bars, err := parseStooqCSV(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}

	series := model.NewPriceSeries(ticker, bars)
	if !r.Start.IsZero() || !r.End.IsZero() {
		end := r.End
		if end.IsZero() {
			end = model.Day(time.Now()).AddDate(1, 0, 0)
		} else {
			end = end.AddDate(0, 0, 1)
		}
		series = series.Between(r.Start, end)
	}

	if series.Len() == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrNoData}
	}
	return series, nil
}

func parseStooqCSV(body io.Reader) ([]model.PriceBar, error) {
	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	title := cases.Title(language.Und)
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[title.String(strings.TrimSpace(h))] = i
	}
	for _, col := range stooqColumns {
		if _, ok := index[col]; !ok {
			// Stooq answers unknown symbols with a plain "No data" body
			return nil, fmt.Errorf("%w: missing column %q", ErrNoData, col)
		}
	}

	var bars []model.PriceBar
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}

		field := func(col string) string {
			if i := index[col]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		date, err := model.ParseDate(field("Date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var vals [5]float64
		for i, col := range stooqColumns[1:] {
			v, err := strconv.ParseFloat(field(col), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, col, err)
			}
			vals[i] = v
		}

		bars = append(bars, model.PriceBar{
			Date:     date,
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			AdjClose: vals[3],
			Volume:   vals[4],
		})
	}

	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}
