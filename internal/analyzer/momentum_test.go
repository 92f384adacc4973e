package analyzer

import (
	"errors"
	"math"
	"testing"
	"time"

	talib "github.com/markcheno/go-talib"

	"signalscope/pkg/model"
)

func TestRSI_SaturatesOnRisingCloses(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 10 + 0.2*float64(i)
	}

	rsi := RSI(closes, 14)
	for i := 0; i < 14; i++ {
		if !math.IsNaN(rsi[i]) {
			t.Errorf("Expected NaN RSI during warm-up at %d, got %f", i, rsi[i])
		}
	}
	for i := 14; i < len(rsi); i++ {
		if rsi[i] != 100 {
			t.Errorf("Expected RSI 100 at %d, got %f", i, rsi[i])
		}
	}
}

func TestRSI_KnownValues(t *testing.T) {
	rsi := RSI([]float64{10, 11, 13, 12}, 2)

	if !math.IsNaN(rsi[0]) || !math.IsNaN(rsi[1]) {
		t.Fatalf("Expected NaN for first two rows, got %v", rsi[:2])
	}
	// gains [1,2], no losses
	if rsi[2] != 100 {
		t.Errorf("Expected RSI 100 at index 2, got %f", rsi[2])
	}
	// gains [2,0] avg 1, losses [0,1] avg 0.5, rs = 2
	expected := 100 - 100/3.0
	if math.Abs(rsi[3]-expected) > 1e-9 {
		t.Errorf("Expected RSI %f at index 3, got %f", expected, rsi[3])
	}
}

func TestSMA_MatchesTalib(t *testing.T) {
	closes := wavyCloses(120)

	for _, window := range []int{5, 20, 50} {
		got := SMA(closes, window)
		want := talib.Sma(closes, window)

		for i := 0; i < window-1; i++ {
			if !math.IsNaN(got[i]) {
				t.Errorf("window %d: expected NaN at %d, got %f", window, i, got[i])
			}
		}
		for i := window - 1; i < len(closes); i++ {
			if math.Abs(got[i]-want[i]) > 1e-9 {
				t.Errorf("window %d: at %d expected %f, got %f", window, i, want[i], got[i])
			}
		}
	}
}

func TestMomentum_MatchesTalib(t *testing.T) {
	closes := wavyCloses(80)

	got := Momentum(closes, 10)
	want := talib.Mom(closes, 10)

	for i := 0; i < 10; i++ {
		if !math.IsNaN(got[i]) {
			t.Errorf("Expected NaN at %d, got %f", i, got[i])
		}
	}
	for i := 10; i < len(closes); i++ {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("At %d expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestClassify(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name          string
		row           model.MomentumRow
		bullish       bool
		bearish       bool
		strongBullish bool
		strongBearish bool
	}{
		{
			name:    "Bullish alignment",
			row:     model.MomentumRow{Close: 105, RSI: 60, SMA20: 100, SMA50: 95, Momentum: 2, MomentumStrengthPct: 1.9},
			bullish: true,
		},
		{
			name:    "Bearish alignment",
			row:     model.MomentumRow{Close: 90, RSI: 40, SMA20: 95, SMA50: 100, Momentum: -2, MomentumStrengthPct: -2.2},
			bearish: true,
		},
		{
			name: "RSI exactly 50 is neither",
			row:  model.MomentumRow{Close: 105, RSI: 50, SMA20: 100, SMA50: 95, Momentum: 2},
		},
		{
			name: "Warm-up NaN stays neutral",
			row:  model.MomentumRow{Close: 105, RSI: nan, SMA20: 100, SMA50: nan, Momentum: nan, MomentumStrengthPct: nan},
		},
		{
			name:          "Overbought is strong bullish",
			row:           model.MomentumRow{Close: 105, RSI: 75, SMA20: 100, SMA50: 95, Momentum: 2, MomentumStrengthPct: 1},
			bullish:       true,
			strongBullish: true,
		},
		{
			name:          "Large negative momentum is strong bearish",
			row:           model.MomentumRow{Close: 90, RSI: 45, SMA20: 95, SMA50: 100, Momentum: -6, MomentumStrengthPct: -6.7},
			bearish:       true,
			strongBearish: true,
		},
		{
			name:          "Both strong flags can hold",
			row:           model.MomentumRow{Close: 100, RSI: 25, SMA20: 100, SMA50: 100, Momentum: 6, MomentumStrengthPct: 6},
			strongBullish: true,
			strongBearish: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := tt.row
			Classify(&row)

			if row.BullishMomentum != tt.bullish {
				t.Errorf("Expected bullish=%v, got %v", tt.bullish, row.BullishMomentum)
			}
			if row.BearishMomentum != tt.bearish {
				t.Errorf("Expected bearish=%v, got %v", tt.bearish, row.BearishMomentum)
			}
			if row.StrongBullish != tt.strongBullish {
				t.Errorf("Expected strong bullish=%v, got %v", tt.strongBullish, row.StrongBullish)
			}
			if row.StrongBearish != tt.strongBearish {
				t.Errorf("Expected strong bearish=%v, got %v", tt.strongBearish, row.StrongBearish)
			}
		})
	}
}

func TestMomentumEngine_RisingSeries(t *testing.T) {
	engine := NewMomentumEngine(DefaultMomentumConfig())
	series := seriesFromCloses("UP", risingCloses(60))

	rows := engine.Compute(series)
	latest := rows[len(rows)-1]

	if !latest.BullishMomentum {
		t.Error("Expected latest row to be bullish")
	}
	if !(latest.RSI > 50) {
		t.Errorf("Expected RSI > 50, got %f", latest.RSI)
	}
	if !(latest.SMA20 > latest.SMA50) {
		t.Errorf("Expected SMA20 > SMA50, got %f <= %f", latest.SMA20, latest.SMA50)
	}

	summary, err := engine.Summarize(series)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Trend != model.TrendBullish {
		t.Errorf("Expected trend Bullish, got %s", summary.Trend)
	}
	if summary.Strength != model.StrengthStrongBullish {
		t.Errorf("Expected strength Strong_Bullish, got %s", summary.Strength)
	}
	// SMA50 is first defined at row 49, so rows 49..59 are bullish
	if summary.BullishDays != 11 {
		t.Errorf("Expected 11 bullish days, got %d", summary.BullishDays)
	}
	if summary.StrongBullishDays != 30 {
		t.Errorf("Expected 30 strong bullish days, got %d", summary.StrongBullishDays)
	}
	if summary.BearishDays != 0 || summary.StrongBearishDays != 0 {
		t.Errorf("Expected no bearish days, got %d/%d", summary.BearishDays, summary.StrongBearishDays)
	}
}

func TestMomentumEngine_ConstantSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	engine := NewMomentumEngine(DefaultMomentumConfig())
	rows := engine.Compute(seriesFromCloses("FLAT", closes))

	for i := 14; i < len(rows); i++ {
		if rows[i].RSI != 100 {
			t.Fatalf("Expected RSI 100 at %d, got %f", i, rows[i].RSI)
		}
	}
	latest := rows[len(rows)-1]
	if latest.Momentum != 0 {
		t.Errorf("Expected momentum 0, got %f", latest.Momentum)
	}
	if latest.BullishMomentum || latest.BearishMomentum {
		t.Errorf("Expected neither bullish nor bearish, got %v/%v", latest.BullishMomentum, latest.BearishMomentum)
	}

	summary, err := engine.Summarize(seriesFromCloses("FLAT", closes))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Trend != model.TrendNeutral {
		t.Errorf("Expected Neutral trend, got %s", summary.Trend)
	}
}

func TestMomentumEngine_NeverBullishAndBearish(t *testing.T) {
	engine := NewMomentumEngine(DefaultMomentumConfig())
	rows := engine.Compute(seriesFromCloses("WAVE", wavyCloses(250)))

	sawBullish, sawBearish := false, false
	for i, r := range rows {
		if r.BullishMomentum && r.BearishMomentum {
			t.Fatalf("Row %d is both bullish and bearish", i)
		}
		sawBullish = sawBullish || r.BullishMomentum
		sawBearish = sawBearish || r.BearishMomentum
	}
	if !sawBullish || !sawBearish {
		t.Errorf("Expected the wave to produce both trends, bullish=%v bearish=%v", sawBullish, sawBearish)
	}
}

func TestMomentumEngine_InsufficientData(t *testing.T) {
	engine := NewMomentumEngine(DefaultMomentumConfig())

	for _, n := range []int{0, 1, 14, 49} {
		_, err := engine.Summarize(seriesFromCloses("SHORT", risingCloses(n)))
		if !errors.Is(err, ErrInsufficientData) {
			t.Errorf("n=%d: expected ErrInsufficientData, got %v", n, err)
		}
	}

	if _, err := engine.Summarize(seriesFromCloses("OK", risingCloses(50))); err != nil {
		t.Errorf("Expected 50 candles to be enough, got %v", err)
	}
}

func TestMomentumEngine_TrailingWindowCapsAtSeriesLength(t *testing.T) {
	cfg := DefaultMomentumConfig()
	cfg.TrailingDays = 100
	engine := NewMomentumEngine(cfg)

	summary, err := engine.Summarize(seriesFromCloses("UP", risingCloses(55)))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.BullishDays != 6 {
		t.Errorf("Expected 6 bullish days, got %d", summary.BullishDays)
	}
	if summary.StrongBullishDays != 41 {
		t.Errorf("Expected 41 strong bullish days, got %d", summary.StrongBullishDays)
	}
}

func TestMomentumEngine_MalformedCloseDoesNotPanic(t *testing.T) {
	closes := risingCloses(60)
	closes[55] = math.NaN()

	engine := NewMomentumEngine(DefaultMomentumConfig())
	rows := engine.Compute(seriesFromCloses("BAD", closes))

	if !math.IsNaN(rows[55].SMA20) {
		t.Errorf("Expected NaN SMA20 next to malformed close, got %f", rows[55].SMA20)
	}
	if rows[59].BullishMomentum {
		t.Error("Expected rows with NaN indicators to stay neutral")
	}
}

func TestMomentumEngine_ChartSeries(t *testing.T) {
	asOf := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	var table []model.TickerCandle
	for i, c := range seriesFromCloses("AAA", risingCloses(90)).Candles {
		c.Time = asOf.AddDate(0, 0, i-89)
		table = append(table, model.TickerCandle{Ticker: "AAA", Candle: c})
	}

	engine := NewMomentumEngine(DefaultMomentumConfig())
	series, rows, ok := engine.ChartSeries(table, "AAA", 20, asOf)
	if !ok {
		t.Fatal("Expected chart data")
	}
	if series.Len() != 21 || len(rows) != 21 {
		t.Fatalf("Expected 21 windowed rows, got %d/%d", series.Len(), len(rows))
	}
	// indicators are recomputed on the window, so the 50-day average never fills
	for _, r := range rows {
		if !math.IsNaN(r.SMA50) {
			t.Fatalf("Expected NaN SMA50 over a 20-day window, got %f", r.SMA50)
		}
	}

	if _, _, ok := engine.ChartSeries(table, "ZZZ", 20, asOf); ok {
		t.Error("Expected no chart data for unknown ticker")
	}
}

func risingCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 10 + 0.2*float64(i)
	}
	return closes
}

// wavyCloses oscillates slowly so that both trends appear
func wavyCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		x := float64(i)
		closes[i] = 100 + 15*math.Sin(x/20) + 2*math.Sin(x/3)
	}
	return closes
}

func seriesFromCloses(ticker string, closes []float64) model.TickerSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, len(closes))
	for i, c := range closes {
		candles[i] = model.Candle{
			Time:   start.AddDate(0, 0, i),
			Open:   c - 0.1,
			High:   c + 0.3,
			Low:    c - 0.3,
			Close:  c,
			Volume: 1000000,
		}
	}
	return model.TickerSeries{Ticker: ticker, Candles: candles}
}
