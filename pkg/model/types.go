package model

import (
	"encoding/json"
	"math"
	"time"
)

// nullable maps NaN and infinities to JSON null
func nullable(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Candle represents a single daily candlestick (OHLCV data)
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// TickerCandle is one row of the raw candle table: a candle tagged with its ticker
type TickerCandle struct {
	Ticker string `json:"ticker"`
	Candle
}

// TickerSeries is the date-ordered candle history of a single ticker
type TickerSeries struct {
	Ticker  string   `json:"ticker"`
	Candles []Candle `json:"candles"`
}

// Len returns the number of candles in the series
func (s TickerSeries) Len() int { return len(s.Candles) }

// Closes returns the close prices in series order
func (s TickerSeries) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Last returns the most recent candle. The series must not be empty.
func (s TickerSeries) Last() Candle {
	return s.Candles[len(s.Candles)-1]
}

// Trend is the momentum trend of the latest row
type Trend string

const (
	TrendBullish Trend = "Bullish"
	TrendBearish Trend = "Bearish"
	TrendNeutral Trend = "Neutral"
)

// Strength is the momentum signal strength of the latest row
type Strength string

const (
	StrengthStrongBullish Strength = "Strong_Bullish"
	StrengthStrongBearish Strength = "Strong_Bearish"
	StrengthNormal        Strength = "Normal"
)

// MomentumRow holds the indicators for one candle. Undefined values are NaN.
type MomentumRow struct {
	Time                time.Time `json:"time"`
	Close               float64   `json:"close"`
	RSI                 float64   `json:"rsi"`
	Momentum            float64   `json:"momentum"`
	SMA20               float64   `json:"sma_20"`
	SMA50               float64   `json:"sma_50"`
	PriceChangePct      float64   `json:"price_change_pct"`
	MomentumStrengthPct float64   `json:"momentum_strength_pct"`
	BullishMomentum     bool      `json:"bullish_momentum"`
	BearishMomentum     bool      `json:"bearish_momentum"`
	StrongBullish       bool      `json:"strong_bullish"`
	StrongBearish       bool      `json:"strong_bearish"`
}

// MomentumSummary is the per-ticker latest state of the momentum pipeline
type MomentumSummary struct {
	Ticker              string    `json:"ticker"`
	LatestDate          time.Time `json:"latest_date"`
	LatestClose         float64   `json:"latest_close"`
	RSI                 float64   `json:"rsi"`
	Momentum            float64   `json:"momentum"`
	MomentumStrengthPct float64   `json:"momentum_strength_pct"`
	SMA20               float64   `json:"sma_20"`
	SMA50               float64   `json:"sma_50"`
	Trend               Trend     `json:"current_trend"`
	Strength            Strength  `json:"signal_strength"`
	BullishDays         int       `json:"bullish_days_30d"`
	BearishDays         int       `json:"bearish_days_30d"`
	StrongBullishDays   int       `json:"strong_bullish_days_30d"`
	StrongBearishDays   int       `json:"strong_bearish_days_30d"`
}

// EngulfingSignal classifies a candle against its predecessor
type EngulfingSignal int

const (
	SignalNeutral EngulfingSignal = iota
	SignalBearish
	SignalBullish
)

// String returns the display name used in the summary tables
func (s EngulfingSignal) String() string {
	switch s {
	case SignalBearish:
		return "Bearish"
	case SignalBullish:
		return "Bullish"
	default:
		return "Neutral"
	}
}

// EngulfingSummary is the per-ticker latest state of the engulfing detector
type EngulfingSummary struct {
	Ticker       string          `json:"ticker"`
	LatestSignal EngulfingSignal `json:"latest_signal"`
	LatestDate   time.Time       `json:"latest_date"`
	BearishCount int             `json:"bearish_count"`
	BullishCount int             `json:"bullish_count"`
	LatestClose  float64         `json:"latest_close"`
}

// MarshalJSON writes undefined indicators as null
func (r MomentumRow) MarshalJSON() ([]byte, error) {
	type plain MomentumRow
	return json.Marshal(struct {
		plain
		Close               *float64 `json:"close"`
		RSI                 *float64 `json:"rsi"`
		Momentum            *float64 `json:"momentum"`
		SMA20               *float64 `json:"sma_20"`
		SMA50               *float64 `json:"sma_50"`
		PriceChangePct      *float64 `json:"price_change_pct"`
		MomentumStrengthPct *float64 `json:"momentum_strength_pct"`
	}{
		plain:               plain(r),
		Close:               nullable(r.Close),
		RSI:                 nullable(r.RSI),
		Momentum:            nullable(r.Momentum),
		SMA20:               nullable(r.SMA20),
		SMA50:               nullable(r.SMA50),
		PriceChangePct:      nullable(r.PriceChangePct),
		MomentumStrengthPct: nullable(r.MomentumStrengthPct),
	})
}

// MarshalJSON writes undefined indicators as null
func (s MomentumSummary) MarshalJSON() ([]byte, error) {
	type plain MomentumSummary
	return json.Marshal(struct {
		plain
		LatestClose         *float64 `json:"latest_close"`
		RSI                 *float64 `json:"rsi"`
		Momentum            *float64 `json:"momentum"`
		MomentumStrengthPct *float64 `json:"momentum_strength_pct"`
		SMA20               *float64 `json:"sma_20"`
		SMA50               *float64 `json:"sma_50"`
	}{
		plain:               plain(s),
		LatestClose:         nullable(s.LatestClose),
		RSI:                 nullable(s.RSI),
		Momentum:            nullable(s.Momentum),
		MomentumStrengthPct: nullable(s.MomentumStrengthPct),
		SMA20:               nullable(s.SMA20),
		SMA50:               nullable(s.SMA50),
	})
}

// MarshalJSON adds the signal name next to its code
func (s EngulfingSummary) MarshalJSON() ([]byte, error) {
	type plain EngulfingSummary
	return json.Marshal(struct {
		plain
		LatestSignalName string   `json:"latest_signal_name"`
		LatestClose      *float64 `json:"latest_close"`
	}{
		plain:            plain(s),
		LatestSignalName: s.LatestSignal.String(),
		LatestClose:      nullable(s.LatestClose),
	})
}
