package analyzer

import (
	"fmt"
	"math"

	"signalscope/pkg/model"
)

// ThresholdMode selects how the minimum body size is applied
type ThresholdMode string

const (
	// ThresholdAbsolute compares the body against MinBody in price units
	ThresholdAbsolute ThresholdMode = "absolute"
	// ThresholdRelative compares the body against MinBody times the candle's open
	ThresholdRelative ThresholdMode = "relative"
)

// EngulfingConfig holds engulfing detection settings
type EngulfingConfig struct {
	MinBody float64
	Mode    ThresholdMode
}

// DefaultEngulfingConfig returns the 0.003 absolute body floor
func DefaultEngulfingConfig() EngulfingConfig {
	return EngulfingConfig{
		MinBody: 0.003,
		Mode:    ThresholdAbsolute,
	}
}

// EngulfingDetector classifies two-candle engulfing reversals
type EngulfingDetector struct {
	config EngulfingConfig
}

// NewEngulfingDetector creates a new engulfing detector
func NewEngulfingDetector(cfg EngulfingConfig) *EngulfingDetector {
	return &EngulfingDetector{config: cfg}
}

// Detect returns one signal per candle. The first candle has no predecessor and is always neutral.
func (d *EngulfingDetector) Detect(series model.TickerSeries) []model.EngulfingSignal {
	signals := make([]model.EngulfingSignal, len(series.Candles))

	for i := 1; i < len(series.Candles); i++ {
		prev := series.Candles[i-1]
		cur := series.Candles[i]
		bodiesOK := d.bodyExceeds(cur) && d.bodyExceeds(prev)

		if bodiesOK &&
			prev.Open < prev.Close && // previous candle is bullish
			cur.Open > cur.Close && // current candle is bearish
			cur.Open >= prev.Close &&
			cur.Close <= prev.Open {
			signals[i] = model.SignalBearish
		} else if bodiesOK &&
			prev.Open > prev.Close && // previous candle is bearish
			cur.Open < cur.Close && // current candle is bullish
			cur.Open <= prev.Close &&
			cur.Close >= prev.Open {
			signals[i] = model.SignalBullish
		} else {
			signals[i] = model.SignalNeutral
		}
	}

	return signals
}

func (d *EngulfingDetector) bodyExceeds(c model.Candle) bool {
	body := math.Abs(c.Open - c.Close)
	if d.config.Mode == ThresholdRelative {
		return body > d.config.MinBody*math.Abs(c.Open)
	}
	return body > d.config.MinBody
}

// Summarize reports the latest signal and the pattern counts over the whole series
func (d *EngulfingDetector) Summarize(series model.TickerSeries) (*model.EngulfingSummary, error) {
	if series.Len() == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrInsufficientData)
	}

	signals := d.Detect(series)
	last := series.Last()

	summary := &model.EngulfingSummary{
		Ticker:       series.Ticker,
		LatestSignal: signals[len(signals)-1],
		LatestDate:   last.Time,
		LatestClose:  last.Close,
	}
	for _, s := range signals {
		switch s {
		case model.SignalBearish:
			summary.BearishCount++
		case model.SignalBullish:
			summary.BullishCount++
		}
	}

	return summary, nil
}
