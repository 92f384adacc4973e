package provider

import (
	"context"
	"fmt"
	"time"

	"signalscope/internal/scanner"
	"signalscope/pkg/model"
)

// Download pulls daily candles for every ticker over the scanner pool and flattens them
// into a raw candle table. Rows keep the ticker order; tickers that fail are reported in
// the returned batch and contribute no rows.
func Download(ctx context.Context, s *scanner.Scanner, p Provider, tickers []string, from, to time.Time) ([]model.TickerCandle, *scanner.Batch[[]model.TickerCandle]) {
	batch := scanner.Map(ctx, s, tickers, func(ctx context.Context, ticker string) ([]model.TickerCandle, error) {
		candles, err := p.GetDailyCandles(ctx, ticker, from, to)
		if err != nil {
			return nil, fmt.Errorf("downloading %s: %w", ticker, err)
		}

		rows := make([]model.TickerCandle, len(candles))
		for i, c := range candles {
			rows[i] = model.TickerCandle{Ticker: ticker, Candle: c}
		}
		return rows, nil
	})

	var table []model.TickerCandle
	for _, rows := range batch.Results {
		table = append(table, rows...)
	}
	return table, batch
}
