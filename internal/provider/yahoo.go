package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"signalscope/internal/ratelimit"
	"signalscope/pkg/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooProvider reads daily bars from the keyless Yahoo Finance chart endpoint
type YahooProvider struct {
	httpSource
	baseURL   string
	rateLimit int
}

// NewYahooProvider creates a new Yahoo Finance provider. An empty baseURL uses the public endpoint.
func NewYahooProvider(baseURL string, rateLimitPerMin int) *YahooProvider {
	if baseURL == "" {
		baseURL = yahooBaseURL
	}
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 30
	}
	return &YahooProvider{
		httpSource: httpSource{
			name:    "yahoo",
			client:  &http.Client{Timeout: 30 * time.Second},
			limiter: ratelimit.NewLimiter("yahoo", rateLimitPerMin),
		},
		baseURL:   baseURL,
		rateLimit: rateLimitPerMin,
	}
}

func (p *YahooProvider) Name() string { return p.name }

// IsAvailable always returns true (no API key needed)
func (p *YahooProvider) IsAvailable() bool { return true }

func (p *YahooProvider) RateLimit() int { return p.rateLimit }

// yahooResponse is the chart API envelope
type yahooResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetDailyCandles fetches daily bars from the chart endpoint
func (p *YahooProvider) GetDailyCandles(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	reqURL := fmt.Sprintf("%s/%s?period1=%d&period2=%d&interval=1d&includePrePost=false",
		p.baseURL, url.PathEscape(symbol), from.Unix(), to.Unix())

	var data yahooResponse
	if err := p.getJSON(ctx, reqURL, &data); err != nil {
		return nil, err
	}
	if data.Chart.Error != nil {
		return nil, &ProviderError{Provider: p.name, Err: errors.New(data.Chart.Error.Description)}
	}
	if len(data.Chart.Result) == 0 || len(data.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &ProviderError{Provider: p.name, Err: ErrNoCandles}
	}

	result := data.Chart.Result[0]
	q := result.Indicators.Quote[0]
	n := min(len(result.Timestamp), len(q.Open), len(q.High), len(q.Low), len(q.Close))

	candles := make([]model.Candle, 0, n)
	for i := range n {
		// bars without trades carry null prices
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue
		}
		c := model.Candle{
			Time:  tradingDay(time.Unix(result.Timestamp[i], 0)),
			Open:  *q.Open[i],
			High:  *q.High[i],
			Low:   *q.Low[i],
			Close: *q.Close[i],
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		candles = append(candles, c)
	}

	if len(candles) == 0 {
		return nil, &ProviderError{Provider: p.name, Err: ErrNoCandles}
	}
	sortCandles(candles)
	return candles, nil
}
