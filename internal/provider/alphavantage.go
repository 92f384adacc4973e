package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"signalscope/internal/ratelimit"
	"signalscope/pkg/model"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// compact responses carry the latest 100 trading days
const alphaVantageCompactDays = 100

// AlphaVantageProvider reads daily bars from the TIME_SERIES_DAILY function
type AlphaVantageProvider struct {
	httpSource
	apiKey    string
	baseURL   string
	rateLimit int
}

// NewAlphaVantageProvider creates a new Alpha Vantage provider
func NewAlphaVantageProvider(apiKey string, rateLimitPerMin int) *AlphaVantageProvider {
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 5
	}
	return &AlphaVantageProvider{
		httpSource: httpSource{
			name:    "alphavantage",
			client:  &http.Client{Timeout: 30 * time.Second},
			limiter: ratelimit.NewLimiter("alphavantage", rateLimitPerMin),
		},
		apiKey:    apiKey,
		baseURL:   alphaVantageBaseURL,
		rateLimit: rateLimitPerMin,
	}
}

// WithBaseURL points the provider at another API root
func (p *AlphaVantageProvider) WithBaseURL(baseURL string) *AlphaVantageProvider {
	p.baseURL = baseURL
	return p
}

func (p *AlphaVantageProvider) Name() string      { return p.name }
func (p *AlphaVantageProvider) IsAvailable() bool { return p.apiKey != "" }
func (p *AlphaVantageProvider) RateLimit() int    { return p.rateLimit }

// Throttled requests come back as 200 with a Note or Information message
type alphaVantageDaily struct {
	TimeSeries  map[string]map[string]string `json:"Time Series (Daily)"`
	Note        string                       `json:"Note"`
	Information string                       `json:"Information"`
	Error       string                       `json:"Error Message"`
}

// GetDailyCandles fetches daily bars and keeps those dated within [from, to]
func (p *AlphaVantageProvider) GetDailyCandles(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	size := "compact"
	if time.Since(from) > alphaVantageCompactDays*24*time.Hour {
		size = "full"
	}
	q := url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {symbol},
		"outputsize": {size},
		"apikey":     {p.apiKey},
	}

	var data alphaVantageDaily
	if err := p.getJSON(ctx, p.baseURL+"?"+q.Encode(), &data); err != nil {
		return nil, err
	}
	switch {
	case data.Note != "" || data.Information != "":
		p.limiter.SignalRateLimited()
		return nil, &ProviderError{Provider: p.name, Err: errRateLimited, Retryable: true}
	case data.Error != "":
		// unknown symbols are reported as "Invalid API call"
		return nil, &ProviderError{Provider: p.name, Err: errors.Join(ErrNoCandles, errors.New(data.Error))}
	}

	fromDay := from.UTC().Truncate(24 * time.Hour)
	candles := make([]model.Candle, 0, len(data.TimeSeries))
	for date, values := range data.TimeSeries {
		day, err := time.Parse("2006-01-02", date)
		if err != nil || day.Before(fromDay) || day.After(to) {
			continue
		}
		c, ok := parseAlphaVantageBar(values)
		if !ok {
			continue
		}
		c.Time = day
		candles = append(candles, c)
	}

	if len(candles) == 0 {
		return nil, &ProviderError{Provider: p.name, Err: ErrNoCandles}
	}
	sortCandles(candles)
	return candles, nil
}

func parseAlphaVantageBar(values map[string]string) (model.Candle, bool) {
	var c model.Candle
	var err error
	if c.Open, err = strconv.ParseFloat(values["1. open"], 64); err != nil {
		return c, false
	}
	if c.High, err = strconv.ParseFloat(values["2. high"], 64); err != nil {
		return c, false
	}
	if c.Low, err = strconv.ParseFloat(values["3. low"], 64); err != nil {
		return c, false
	}
	if c.Close, err = strconv.ParseFloat(values["4. close"], 64); err != nil {
		return c, false
	}
	c.Volume, _ = strconv.ParseInt(values["5. volume"], 10, 64)
	return c, true
}
