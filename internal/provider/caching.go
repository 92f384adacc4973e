package provider

import (
	"context"
	"sync"
	"time"

	"signalscope/pkg/model"
)

type cacheEntry struct {
	candles []model.Candle
	from    time.Time
	fetched time.Time
}

// CachingProvider wraps a Provider with an in-memory cache for GetDailyCandles.
// Entries expire after ttl; a cached range that starts on or before from is reused.
type CachingProvider struct {
	inner Provider
	ttl   time.Duration
	cache map[string]cacheEntry
	mu    sync.Mutex
	now   func() time.Time
}

// NewCachingProvider creates a caching wrapper
func NewCachingProvider(inner Provider, ttl time.Duration) *CachingProvider {
	return &CachingProvider{
		inner: inner,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
		now:   time.Now,
	}
}

func (p *CachingProvider) Name() string      { return p.inner.Name() }
func (p *CachingProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p *CachingProvider) RateLimit() int    { return p.inner.RateLimit() }

// GetDailyCandles returns cached bars when a fresh entry covers the range
func (p *CachingProvider) GetDailyCandles(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	p.mu.Lock()
	entry, ok := p.cache[symbol]
	p.mu.Unlock()

	if ok && p.now().Sub(entry.fetched) < p.ttl && !entry.from.After(from) {
		return between(entry.candles, from, to), nil
	}

	candles, err := p.inner.GetDailyCandles(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[symbol] = cacheEntry{candles: candles, from: from, fetched: p.now()}
	p.mu.Unlock()

	return between(candles, from, to), nil
}

// between returns a copy of the candles dated within [from, to] by calendar day
func between(candles []model.Candle, from, to time.Time) []model.Candle {
	lo := tradingDay(from)
	hi := tradingDay(to)
	out := make([]model.Candle, 0, len(candles))
	for _, c := range candles {
		if c.Time.Before(lo) || c.Time.After(hi) {
			continue
		}
		out = append(out, c)
	}
	return out
}
