package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"signalscope/internal/ratelimit"
	"signalscope/pkg/model"
)

// AlpacaProvider reads daily bars from the Alpaca market data API (IEX feed)
type AlpacaProvider struct {
	apiKey    string
	apiSecret string
	client    *marketdata.Client
	limiter   *ratelimit.Limiter
	rateLimit int
}

// NewAlpacaProvider creates a new Alpaca provider
func NewAlpacaProvider(apiKey, apiSecret string, rateLimitPerMin int) *AlpacaProvider {
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 200
	}
	return &AlpacaProvider{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		limiter:   ratelimit.NewLimiter("alpaca", rateLimitPerMin),
		rateLimit: rateLimitPerMin,
	}
}

// Name returns the provider name
func (p *AlpacaProvider) Name() string {
	return "alpaca"
}

// IsAvailable checks if both credentials are set
func (p *AlpacaProvider) IsAvailable() bool {
	return p.apiKey != "" && p.apiSecret != ""
}

// RateLimit returns the rate limit per minute
func (p *AlpacaProvider) RateLimit() int {
	return p.rateLimit
}

// GetDailyCandles fetches daily bars
func (p *AlpacaProvider) GetDailyCandles(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	bars, err := p.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     from,
		End:       to,
		Feed:      marketdata.IEX,
	})
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("get bars: %w", err), Retryable: true}
	}
	if len(bars) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrNoCandles}
	}

	return candlesFromBars(bars), nil
}

func candlesFromBars(bars []marketdata.Bar) []model.Candle {
	candles := make([]model.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, model.Candle{
			Time:   tradingDay(b.Timestamp),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		})
	}
	sortCandles(candles)
	return candles
}
