package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"signalscope/internal/analyzer"
	"signalscope/pkg/model"
)

// ErrNoCandles is returned when a provider has no bars for the requested range
var ErrNoCandles = fmt.Errorf("no candles: %w", analyzer.ErrNoData)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Provider defines the interface for daily price history sources
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetDailyCandles fetches daily OHLCV bars dated within [from, to], oldest first
	GetDailyCandles(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error)

	// IsAvailable checks if the provider is available (has valid API key)
	IsAvailable() bool

	// RateLimit returns the rate limit per minute
	RateLimit() int
}

// ProviderError represents a provider-specific error
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// FallbackProvider tries multiple providers in order
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a new fallback provider
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	// Filter to only available providers
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	return &FallbackProvider{providers: available}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetDailyCandles tries each provider in order until one returns data.
// A missing-data answer from every provider is reported as ErrNoCandles.
func (f *FallbackProvider) GetDailyCandles(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	if len(f.providers) == 0 {
		return nil, &ProviderError{Provider: f.Name(), Err: errors.New("no provider available")}
	}

	var lastErr error
	for _, p := range f.providers {
		data, err := p.GetDailyCandles(ctx, symbol, from, to)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrNoCandles) {
			lastErr = err
		}
	}
	if lastErr == nil {
		return nil, &ProviderError{Provider: f.Name(), Err: ErrNoCandles}
	}
	return nil, lastErr
}

// IsAvailable returns true if any provider is available
func (f *FallbackProvider) IsAvailable() bool {
	return len(f.providers) > 0
}

// RateLimit returns the highest rate limit among providers
func (f *FallbackProvider) RateLimit() int {
	maxRate := 0
	for _, p := range f.providers {
		if p.RateLimit() > maxRate {
			maxRate = p.RateLimit()
		}
	}
	return maxRate
}

// Providers returns the list of underlying providers
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}

// tradingDay converts a bar timestamp to its calendar date in New York, at UTC midnight
func tradingDay(ts time.Time) time.Time {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	t := ts.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sortCandles(candles []model.Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})
}
