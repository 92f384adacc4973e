package analyzer

import (
	"errors"
	"sort"
	"time"

	"signalscope/pkg/model"
)

var (
	// ErrNoData is reported when a ticker has no rows in the candle table
	ErrNoData = errors.New("no data")

	// ErrInsufficientData is reported when a series is shorter than an engine requires
	ErrInsufficientData = errors.New("insufficient data")
)

// Prepare filters the raw table to one ticker and returns its candles sorted by date.
// The input slice is never modified; the returned series owns its own copy.
func Prepare(rows []model.TickerCandle, ticker string) (model.TickerSeries, bool) {
	candles := make([]model.Candle, 0)
	for _, r := range rows {
		if r.Ticker == ticker {
			candles = append(candles, r.Candle)
		}
	}
	if len(candles) == 0 {
		return model.TickerSeries{Ticker: ticker}, false
	}

	sortByTime(candles)
	return model.TickerSeries{Ticker: ticker, Candles: candles}, true
}

func sortByTime(candles []model.Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})
}

// CandleIndex groups a raw candle table by ticker once, so a batch over many
// tickers does not rescan the whole table for each of them.
type CandleIndex struct {
	byTicker map[string][]model.Candle
	tickers  []string
	rows     int
}

// NewCandleIndex builds an index over rows. Tickers keep their first-appearance order.
func NewCandleIndex(rows []model.TickerCandle) *CandleIndex {
	ix := &CandleIndex{
		byTicker: make(map[string][]model.Candle),
		rows:     len(rows),
	}
	for _, r := range rows {
		if _, seen := ix.byTicker[r.Ticker]; !seen {
			ix.tickers = append(ix.tickers, r.Ticker)
		}
		ix.byTicker[r.Ticker] = append(ix.byTicker[r.Ticker], r.Candle)
	}
	return ix
}

// Tickers returns the distinct tickers of the table
func (ix *CandleIndex) Tickers() []string {
	out := make([]string, len(ix.tickers))
	copy(out, ix.tickers)
	return out
}

// BatchTickers returns every indexed ticker followed by the tickers of extra that have
// no candles, so a batch analyses the whole table and still accounts for the rest
func (ix *CandleIndex) BatchTickers(extra []string) []string {
	out := ix.Tickers()
	seen := make(map[string]bool, len(out)+len(extra))
	for _, t := range out {
		seen[t] = true
	}
	for _, t := range extra {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Rows returns the number of raw rows indexed
func (ix *CandleIndex) Rows() int { return ix.rows }

// Series returns a sorted copy of one ticker's candles
func (ix *CandleIndex) Series(ticker string) (model.TickerSeries, bool) {
	src, ok := ix.byTicker[ticker]
	if !ok || len(src) == 0 {
		return model.TickerSeries{Ticker: ticker}, false
	}

	candles := make([]model.Candle, len(src))
	copy(candles, src)
	sortByTime(candles)
	return model.TickerSeries{Ticker: ticker, Candles: candles}, true
}

// Window keeps the candles dated on or after asOf minus lookbackDays calendar days.
// A non-positive lookback returns the series unchanged.
func Window(series model.TickerSeries, lookbackDays int, asOf time.Time) model.TickerSeries {
	if lookbackDays <= 0 {
		return series
	}

	start := asOf.AddDate(0, 0, -lookbackDays)
	idx := sort.Search(len(series.Candles), func(i int) bool {
		return !series.Candles[i].Time.Before(start)
	})
	return model.TickerSeries{Ticker: series.Ticker, Candles: series.Candles[idx:]}
}
