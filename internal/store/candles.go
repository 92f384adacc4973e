// Package store loads and persists the candle table, the per-ticker summaries and
// the merged report.
package store

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"signalscope/internal/table"
	"signalscope/pkg/model"
)

// ErrEmptyTable is returned when the candle table is missing or has no rows
var ErrEmptyTable = errors.New("empty candle table")

// CandleColumns is the column order used when writing the candle table
var CandleColumns = []string{"Ticker", "Date", "Open", "High", "Low", "Close", "Volume"}

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	dateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
	"01/02/2006",
}

// LoadCandles reads the raw candle table from a CSV file
func LoadCandles(path string, logger *zap.Logger) ([]model.TickerCandle, error) {
	t, err := table.LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrEmptyTable, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading candles: %w", err)
	}
	return DecodeCandles(t, logger)
}

// DecodeCandles converts a table into candle rows. Headers match case-insensitively and
// may come in any order. Tickers are upper-cased to match the symbol loader. Malformed prices become NaN; rows with a missing ticker or an
// unparseable date are skipped with a warning.
func DecodeCandles(t *table.Table, logger *zap.Logger) ([]model.TickerCandle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if t.Len() == 0 {
		return nil, ErrEmptyTable
	}

	cols := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		cols[strings.ToLower(strings.TrimSpace(c))] = c
	}
	for _, want := range CandleColumns {
		if _, ok := cols[strings.ToLower(want)]; !ok {
			return nil, fmt.Errorf("candle table missing column %q", want)
		}
	}
	col := func(r table.Row, name string) string {
		return strings.TrimSpace(r[cols[strings.ToLower(name)]])
	}

	rows := make([]model.TickerCandle, 0, t.Len())
	skipped := 0
	for i, r := range t.Rows {
		ticker := strings.ToUpper(col(r, "Ticker"))
		date, err := ParseDate(col(r, "Date"))
		if ticker == "" || err != nil {
			skipped++
			logger.Warn("skipping candle row",
				zap.Int("row", i+1),
				zap.String("ticker", ticker),
				zap.String("date", col(r, "Date")))
			continue
		}

		rows = append(rows, model.TickerCandle{
			Ticker: ticker,
			Candle: model.Candle{
				Time:   date,
				Open:   ParseFloat(col(r, "Open")),
				High:   ParseFloat(col(r, "High")),
				Low:    ParseFloat(col(r, "Low")),
				Close:  ParseFloat(col(r, "Close")),
				Volume: parseVolume(col(r, "Volume")),
			},
		})
	}

	if len(rows) == 0 {
		return nil, ErrEmptyTable
	}
	if skipped > 0 {
		logger.Info("candle table loaded", zap.Int("rows", len(rows)), zap.Int("skipped", skipped))
	}
	return rows, nil
}

// EncodeCandles converts candle rows into a table in CandleColumns order
func EncodeCandles(rows []model.TickerCandle) *table.Table {
	t := table.New(CandleColumns...)
	for _, r := range rows {
		t.Rows = append(t.Rows, table.Row{
			"Ticker": r.Ticker,
			"Date":   r.Time.Format(dateLayout),
			"Open":   FormatFloat(r.Open),
			"High":   FormatFloat(r.High),
			"Low":    FormatFloat(r.Low),
			"Close":  FormatFloat(r.Close),
			"Volume": strconv.FormatInt(r.Volume, 10),
		})
	}
	return t
}

// SaveCandles writes candle rows to a CSV file
func SaveCandles(path string, rows []model.TickerCandle) error {
	if err := EncodeCandles(rows).SaveFile(path); err != nil {
		return fmt.Errorf("writing candles: %w", err)
	}
	return nil
}

// ParseDate accepts plain dates and the timestamp forms the downloaders write
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseFloat returns NaN for empty or non-numeric cells
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// FormatFloat writes NaN as an empty cell
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseVolume(s string) int64 {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	f := ParseFloat(s)
	if math.IsNaN(f) {
		return 0
	}
	return int64(f)
}
