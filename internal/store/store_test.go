package store

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"signalscope/internal/table"
	"signalscope/pkg/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDecodeCandles(t *testing.T) {
	csvText := "close,DATE,ticker,Open,high,LOW,Volume\n" +
		"10.5,2024-06-03,AAA,10,11,9.5,1000\n" +
		"n/a,2024-06-04 00:00:00,AAA,10.5,11,10,2000.0\n" +
		"11,not-a-date,AAA,10,11,9,100\n" +
		"12,2024-06-05,,10,11,9,100\n" +
		"20,2024-06-03T00:00:00Z,BBB,19,21,18,\n"

	tbl, err := table.ReadCSV(strings.NewReader(csvText))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	rows, err := DecodeCandles(tbl, nil)
	if err != nil {
		t.Fatalf("DecodeCandles: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if rows[0].Ticker != "AAA" || rows[0].Close != 10.5 || rows[0].Volume != 1000 {
		t.Errorf("Unexpected first row %+v", rows[0])
	}
	if !math.IsNaN(rows[1].Close) {
		t.Errorf("Expected NaN close for malformed cell, got %f", rows[1].Close)
	}
	if rows[1].Volume != 2000 {
		t.Errorf("Expected volume 2000, got %d", rows[1].Volume)
	}
	if !rows[2].Time.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected BBB date %v", rows[2].Time)
	}
	if rows[2].Volume != 0 {
		t.Errorf("Expected missing volume as 0, got %d", rows[2].Volume)
	}
}

func TestDecodeCandles_UpperCasesTickers(t *testing.T) {
	tbl, err := table.ReadCSV(strings.NewReader("Ticker,Date,Open,High,Low,Close,Volume\n" +
		"aapl,2024-06-03,1,2,0.5,1.5,10\n" +
		" Msft ,2024-06-03,1,2,0.5,1.5,10\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	rows, err := DecodeCandles(tbl, nil)
	if err != nil {
		t.Fatalf("DecodeCandles: %v", err)
	}
	if len(rows) != 2 || rows[0].Ticker != "AAPL" || rows[1].Ticker != "MSFT" {
		t.Errorf("Expected upper-cased tickers, got %+v", rows)
	}
}

func TestDecodeCandles_MissingColumn(t *testing.T) {
	tbl, _ := table.ReadCSV(strings.NewReader("Ticker,Date,Close\nAAA,2024-06-03,1\n"))
	if _, err := DecodeCandles(tbl, nil); err == nil || errors.Is(err, ErrEmptyTable) {
		t.Errorf("Expected missing column error, got %v", err)
	}
}

func TestLoadCandles_EmptyOrMissing(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadCandles(filepath.Join(dir, "none.csv"), nil); !errors.Is(err, ErrEmptyTable) {
		t.Errorf("Expected ErrEmptyTable for missing file, got %v", err)
	}

	empty := filepath.Join(dir, "empty.csv")
	os.WriteFile(empty, []byte("Ticker,Date,Open,High,Low,Close,Volume\n"), 0o644)
	if _, err := LoadCandles(empty, nil); !errors.Is(err, ErrEmptyTable) {
		t.Errorf("Expected ErrEmptyTable for header-only file, got %v", err)
	}
}

func TestSaveCandles_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	rows := []model.TickerCandle{
		{Ticker: "AAA", Candle: model.Candle{Time: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}},
		{Ticker: "AAA", Candle: model.Candle{Time: time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC), Open: 1.5, High: 2, Low: 1, Close: math.NaN(), Volume: 20}},
	}

	if err := SaveCandles(path, rows); err != nil {
		t.Fatalf("SaveCandles: %v", err)
	}
	loaded, err := LoadCandles(path, nil)
	if err != nil {
		t.Fatalf("LoadCandles: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Close != 1.5 || !math.IsNaN(loaded[1].Close) {
		t.Errorf("Unexpected round trip %+v", loaded)
	}
}

func TestDB_MomentumRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	run := Run{ID: "run-1", CreatedAt: date, Tickers: 2, Succeeded: 2}
	summaries := []*model.MomentumSummary{
		{Ticker: "BBB", LatestDate: date, LatestClose: 20, RSI: 45, Momentum: -1, MomentumStrengthPct: -5,
			SMA20: 21, SMA50: math.NaN(), Trend: model.TrendNeutral, Strength: model.StrengthNormal, BearishDays: 3},
		{Ticker: "AAA", LatestDate: date, LatestClose: 10, RSI: 72, Momentum: 1, MomentumStrengthPct: 10,
			SMA20: 9, SMA50: 8, Trend: model.TrendBullish, Strength: model.StrengthStrongBullish, BullishDays: 12},
	}
	if err := db.SaveMomentum(ctx, run, summaries); err != nil {
		t.Fatalf("SaveMomentum: %v", err)
	}

	latest, err := db.LatestRun(ctx, KindMomentum)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest.ID != "run-1" || latest.Succeeded != 2 {
		t.Errorf("Unexpected run %+v", latest)
	}

	loaded, err := db.LoadMomentum(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadMomentum: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Ticker != "AAA" {
		t.Fatalf("Expected AAA first, got %d rows", len(loaded))
	}
	if loaded[0].Strength != model.StrengthStrongBullish || loaded[0].BullishDays != 12 {
		t.Errorf("Unexpected AAA summary %+v", loaded[0])
	}
	if !math.IsNaN(loaded[1].SMA50) {
		t.Errorf("Expected NaN SMA50 to survive storage, got %f", loaded[1].SMA50)
	}

	if _, err := db.LatestRun(ctx, KindEngulfing); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestDB_EngulfingRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	err := db.SaveEngulfing(ctx, Run{ID: "e-1", CreatedAt: date}, []*model.EngulfingSummary{
		{Ticker: "AAA", LatestSignal: model.SignalBearish, LatestDate: date, BearishCount: 2, BullishCount: 1, LatestClose: 10.25},
	})
	if err != nil {
		t.Fatalf("SaveEngulfing: %v", err)
	}

	loaded, err := db.LoadEngulfing(ctx, "e-1")
	if err != nil {
		t.Fatalf("LoadEngulfing: %v", err)
	}
	if len(loaded) != 1 || loaded[0].LatestSignal != model.SignalBearish || loaded[0].LatestClose != 10.25 {
		t.Errorf("Unexpected engulfing summaries %+v", loaded)
	}
	if !loaded[0].LatestDate.Equal(date) {
		t.Errorf("Expected date %v, got %v", date, loaded[0].LatestDate)
	}
}

func TestDB_ReportRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	report := table.New("Ticker", "Latest Close", "Momentum Trend")
	report.Append(table.Row{"Ticker": "AAA", "Latest Close": "10.25", "Momentum Trend": "Bullish"})
	report.Append(table.Row{"Ticker": "BBB", "Momentum Trend": "Neutral"})

	if err := db.SaveReport(ctx, Run{ID: "r-1", CreatedAt: time.Now()}, report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	loaded, err := db.LoadReport(ctx, "r-1")
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if strings.Join(loaded.Columns, "|") != "Ticker|Latest Close|Momentum Trend" {
		t.Errorf("Unexpected columns %v", loaded.Columns)
	}
	if loaded.Len() != 2 || loaded.Rows[1]["Ticker"] != "BBB" {
		t.Fatalf("Unexpected rows %v", loaded.Rows)
	}
	if _, ok := loaded.Rows[1].Get("Latest Close"); ok {
		t.Error("Null cell should stay null")
	}

	if _, err := db.LoadReport(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}
