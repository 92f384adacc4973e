package analyzer

import (
	"fmt"
	"math"
	"time"

	"signalscope/pkg/model"
)

// MomentumConfig holds the indicator periods of the momentum pipeline
type MomentumConfig struct {
	RSIPeriod      int
	MomentumPeriod int
	FastMA         int
	SlowMA         int
	MinCandles     int // series shorter than this are skipped
	TrailingDays   int // rows counted in the *_30d summary fields
}

// DefaultMomentumConfig returns the standard 14/10/20/50 setup
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		RSIPeriod:      14,
		MomentumPeriod: 10,
		FastMA:         20,
		SlowMA:         50,
		MinCandles:     50,
		TrailingDays:   30,
	}
}

// MomentumEngine computes RSI, momentum and moving averages and classifies the trend
type MomentumEngine struct {
	config MomentumConfig
}

// NewMomentumEngine creates a new momentum engine
func NewMomentumEngine(cfg MomentumConfig) *MomentumEngine {
	return &MomentumEngine{config: cfg}
}

// Config returns the engine configuration
func (e *MomentumEngine) Config() MomentumConfig {
	return e.config
}

// RSI calculates the Relative Strength Index over simple rolling averages of gains
// and losses. The first period values are NaN.
func RSI(closes []float64, period int) []float64 {
	state := newRSIState(period)
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i] = state.next(c)
	}
	return out
}

// Momentum calculates close[t] - close[t-period]. The first period values are NaN.
func Momentum(closes []float64, period int) []float64 {
	state := newLagState(period)
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i] = state.next(c)
	}
	return out
}

// SMA calculates the trailing simple moving average. Values are NaN until the window fills.
func SMA(closes []float64, window int) []float64 {
	state := newRollingMean(window)
	out := make([]float64, len(closes))
	for i, c := range closes {
		state.push(c)
		out[i] = state.value()
	}
	return out
}

// Compute evaluates every indicator and flag for each candle in one forward pass
func (e *MomentumEngine) Compute(series model.TickerSeries) []model.MomentumRow {
	rsi := newRSIState(e.config.RSIPeriod)
	mom := newLagState(e.config.MomentumPeriod)
	fast := newRollingMean(e.config.FastMA)
	slow := newRollingMean(e.config.SlowMA)

	rows := make([]model.MomentumRow, len(series.Candles))
	prevClose := math.NaN()
	for i, c := range series.Candles {
		fast.push(c.Close)
		slow.push(c.Close)

		row := model.MomentumRow{
			Time:     c.Time,
			Close:    c.Close,
			RSI:      rsi.next(c.Close),
			Momentum: mom.next(c.Close),
			SMA20:    fast.value(),
			SMA50:    slow.value(),
		}
		row.PriceChangePct = percentOf(c.Close-prevClose, prevClose)
		row.MomentumStrengthPct = percentOf(row.Momentum, c.Close)
		Classify(&row)

		rows[i] = row
		prevClose = c.Close
	}
	return rows
}

// percentOf returns part/base*100, NaN when base is zero or undefined
func percentOf(part, base float64) float64 {
	if base == 0 || math.IsNaN(base) {
		return math.NaN()
	}
	return part / base * 100
}

// Classify sets the trend and strength flags of a row from its indicators.
// Comparisons against NaN are false, so warm-up rows stay neutral.
func Classify(row *model.MomentumRow) {
	row.BullishMomentum = row.RSI > 50 &&
		row.Close > row.SMA20 &&
		row.SMA20 > row.SMA50 &&
		row.Momentum > 0

	row.BearishMomentum = row.RSI < 50 &&
		row.Close < row.SMA20 &&
		row.SMA20 < row.SMA50 &&
		row.Momentum < 0

	row.StrongBullish = row.RSI > 70 || row.MomentumStrengthPct > 5
	row.StrongBearish = row.RSI < 30 || row.MomentumStrengthPct < -5
}

// Summarize computes the latest state of a ticker and its trailing signal counts
func (e *MomentumEngine) Summarize(series model.TickerSeries) (*model.MomentumSummary, error) {
	if series.Len() == 0 || series.Len() < e.config.MinCandles {
		return nil, fmt.Errorf("%w: %d candles, need %d", ErrInsufficientData, series.Len(), e.config.MinCandles)
	}

	rows := e.Compute(series)
	latest := rows[len(rows)-1]

	summary := &model.MomentumSummary{
		Ticker:              series.Ticker,
		LatestDate:          latest.Time,
		LatestClose:         latest.Close,
		RSI:                 latest.RSI,
		Momentum:            latest.Momentum,
		MomentumStrengthPct: latest.MomentumStrengthPct,
		SMA20:               latest.SMA20,
		SMA50:               latest.SMA50,
		Trend:               trendOf(latest),
		Strength:            strengthOf(latest),
	}

	// Count recent signals
	start := len(rows) - e.config.TrailingDays
	if start < 0 {
		start = 0
	}
	for _, r := range rows[start:] {
		if r.BullishMomentum {
			summary.BullishDays++
		}
		if r.BearishMomentum {
			summary.BearishDays++
		}
		if r.StrongBullish {
			summary.StrongBullishDays++
		}
		if r.StrongBearish {
			summary.StrongBearishDays++
		}
	}

	return summary, nil
}

func trendOf(row model.MomentumRow) model.Trend {
	if row.BullishMomentum {
		return model.TrendBullish
	} else if row.BearishMomentum {
		return model.TrendBearish
	}
	return model.TrendNeutral
}

// strengthOf checks bullish first; both strong flags can hold at once
func strengthOf(row model.MomentumRow) model.Strength {
	if row.StrongBullish {
		return model.StrengthStrongBullish
	} else if row.StrongBearish {
		return model.StrengthStrongBearish
	}
	return model.StrengthNormal
}

// ChartSeries re-derives the indicator rows for one ticker over the lookback window
// ending at asOf, exactly as a chart of that window would show them.
func (e *MomentumEngine) ChartSeries(rows []model.TickerCandle, ticker string, lookbackDays int, asOf time.Time) (model.TickerSeries, []model.MomentumRow, bool) {
	series, ok := Prepare(rows, ticker)
	if !ok {
		return series, nil, false
	}
	series = Window(series, lookbackDays, asOf)
	if series.Len() == 0 {
		return series, nil, false
	}
	return series, e.Compute(series), true
}
