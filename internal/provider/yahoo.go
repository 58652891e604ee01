package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"oraculum/internal/ratelimit"
	"oraculum/pkg/model"
)

const (
	yahooBaseURL = "https://query1.finance.yahoo.com"
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// YahooProvider reads daily bars from the Yahoo Finance chart API (unofficial)
type YahooProvider struct {
	client  *http.Client
	limiter *ratelimit.Limiter
	baseURL string
	now     func() time.Time
}

// NewYahooProvider creates a new Yahoo Finance provider.
// An empty baseURL selects the public endpoint.
func NewYahooProvider(baseURL string, timeout time.Duration, perMinute int) *YahooProvider {
	if baseURL == "" {
		baseURL = yahooBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YahooProvider{
		client:  &http.Client{Timeout: timeout},
		limiter: ratelimit.NewLimiter("yahoo", perMinute),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Name returns the provider name
func (p *YahooProvider) Name() string {
	return "yahoo"
}

// yahooResponse represents the chart API response.
// Quote values are pointers because the API sends null for missing fields.
type yahooResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyBars fetches unadjusted daily OHLCV plus adjusted close for [r.Start, r.End)
func (p *YahooProvider) DailyBars(ctx context.Context, ticker string, r DateRange) (*model.PriceSeries, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var period1 int64
	if !r.Start.IsZero() {
		period1 = r.Start.Unix()
	}
	period2 := p.now().Unix()
	if !r.End.IsZero() {
		period2 = r.End.Unix()
	}

	q := url.Values{}
	q.Set("period1", fmt.Sprint(period1))
	q.Set("period2", fmt.Sprint(period2))
	q.Set("interval", "1d")
	q.Set("includeAdjustedClose", "true")
	q.Set("events", "div,splits")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(ticker), q.Encode())

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
	if resp.StatusCode == http.StatusNotFound {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrNoData}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: resp.StatusCode >= 500}
	}

	p.limiter.ResetBackoff()

	var data yahooResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decoding response: %w", err)}
	}

	if data.Chart.Error != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w: %s", ErrNoData, data.Chart.Error.Description)}
	}
	if len(data.Chart.Result) == 0 || len(data.Chart.Result[0].Timestamp) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrNoData}
	}

	result := data.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 || len(result.Indicators.AdjClose) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w: missing quote or adjclose block", ErrNoData)}
	}
	quotes := result.Indicators.Quote[0]
	adj := result.Indicators.AdjClose[0].AdjClose

	bars := make([]model.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		open, okO := at(quotes.Open, i)
		high, okH := at(quotes.High, i)
		low, okL := at(quotes.Low, i)
		cls, okC := at(quotes.Close, i)
		adjClose, okA := at(adj, i)
		volume, okV := at(quotes.Volume, i)
		// Skip rows with any missing field
		if !(okO && okH && okL && okC && okA && okV) {
			continue
		}

		date := model.Day(time.Unix(ts+result.Meta.GMTOffset, 0).UTC())
		if !r.Start.IsZero() && date.Before(r.Start) {
			continue
		}
		if !r.End.IsZero() && !date.Before(r.End) {
			continue
		}

		bars = append(bars, model.PriceBar{
			Date:     date,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    cls,
			AdjClose: adjClose,
			Volume:   volume,
		})
	}

	if len(bars) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrNoData}
	}
	return model.NewPriceSeries(ticker, bars), nil
}

func at(xs []*float64, i int) (float64, bool) {
	if i >= len(xs) || xs[i] == nil {
		return 0, false
	}
	return *xs[i], true
}
