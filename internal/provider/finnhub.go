package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"signalscope/internal/ratelimit"
	"signalscope/pkg/model"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubProvider reads daily candles from the Finnhub REST API
type FinnhubProvider struct {
	httpSource
	apiKey    string
	baseURL   string
	rateLimit int
}

// NewFinnhubProvider creates a new Finnhub provider
func NewFinnhubProvider(apiKey string, rateLimitPerMin int) *FinnhubProvider {
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 60
	}
	return &FinnhubProvider{
		httpSource: httpSource{
			name:    "finnhub",
			client:  &http.Client{Timeout: 30 * time.Second},
			limiter: ratelimit.NewLimiter("finnhub", rateLimitPerMin),
		},
		apiKey:    apiKey,
		baseURL:   finnhubBaseURL,
		rateLimit: rateLimitPerMin,
	}
}

// WithBaseURL points the provider at another API root
func (p *FinnhubProvider) WithBaseURL(baseURL string) *FinnhubProvider {
	p.baseURL = baseURL
	return p
}

func (p *FinnhubProvider) Name() string      { return p.name }
func (p *FinnhubProvider) IsAvailable() bool { return p.apiKey != "" }
func (p *FinnhubProvider) RateLimit() int    { return p.rateLimit }

// candle arrays are parallel; s is "ok" or "no_data"
type finnhubCandles struct {
	S string    `json:"s"`
	T []int64   `json:"t"`
	O []float64 `json:"o"`
	H []float64 `json:"h"`
	L []float64 `json:"l"`
	C []float64 `json:"c"`
	V []int64   `json:"v"`
}

// GetDailyCandles fetches daily bars at resolution D
func (p *FinnhubProvider) GetDailyCandles(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	q := url.Values{
		"symbol":     {symbol},
		"resolution": {"D"},
		"from":       {fmt.Sprint(from.Unix())},
		"to":         {fmt.Sprint(to.Unix())},
		"token":      {p.apiKey},
	}

	var data finnhubCandles
	if err := p.getJSON(ctx, p.baseURL+"/stock/candle?"+q.Encode(), &data); err != nil {
		return nil, err
	}
	if data.S == "no_data" || len(data.T) == 0 {
		return nil, &ProviderError{Provider: p.name, Err: ErrNoCandles}
	}

	n := min(len(data.T), len(data.O), len(data.H), len(data.L), len(data.C))
	candles := make([]model.Candle, n)
	for i := range n {
		candles[i] = model.Candle{
			Time:  tradingDay(time.Unix(data.T[i], 0)),
			Open:  data.O[i],
			High:  data.H[i],
			Low:   data.L[i],
			Close: data.C[i],
		}
		if i < len(data.V) {
			candles[i].Volume = data.V[i]
		}
	}

	sortCandles(candles)
	return candles, nil
}
