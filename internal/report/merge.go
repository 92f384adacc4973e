// Package report reconciles the momentum and engulfing tables into one reporting table
// and summarizes batch results.
package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"signalscope/internal/store"
	"signalscope/internal/table"
)

// Strategy selects how the momentum and engulfing tables are matched
type Strategy string

const (
	// StrategyWideKey matches rows on Ticker plus every shared fundamental column;
	// rows whose metadata disagree are dropped
	StrategyWideKey Strategy = "wide"
	// StrategyTickerOnly matches on Ticker alone and keeps tickers present on either side
	StrategyTickerOnly Strategy = "ticker"
)

// ParseStrategy maps a flag value to a strategy
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wide", "wide-key", "widekey":
		return StrategyWideKey, nil
	case "ticker", "ticker-only", "tickeronly", "":
		return StrategyTickerOnly, nil
	}
	return "", fmt.Errorf("unknown merge strategy %q", s)
}

// ErrMissingTicker is returned when an input table has no Ticker column
var ErrMissingTicker = errors.New("table has no Ticker column")

// Display column names of the reporting table
const (
	DisplayLatestClose      = "Latest Close"
	DisplayEngulfingSignal  = "Engulfing Signal"
	DisplayMomentumTrend    = "Momentum Trend"
	DisplayMomentumStrength = "Momentum Strength"
)

// MomentumRenames disambiguates momentum columns before the merge
var MomentumRenames = map[string]string{
	ColScrapedAt:           ColScrapedAt + "_Mom",
	ColRSI:                 ColRSI + "_Mom",
	ColMomentum:            ColMomentum + "_Mom",
	ColMomentumStrengthPct: ColMomentumStrengthPct + "_Mom",
	ColCurrentTrend:        ColCurrentTrend + "_Mom",
	ColSignalStrength:      ColSignalStrength + "_Mom",
	ColBullishDays:         ColBullishDays + "_Mom",
	ColBearishDays:         ColBearishDays + "_Mom",
}

// EngulfingRenames disambiguates engulfing columns before the merge
var EngulfingRenames = map[string]string{
	ColScrapedAt:        ColScrapedAt + "_Eng",
	ColLatestSignalName: ColLatestSignalName + "_Eng",
	ColLatestClose:      ColLatestClose + "_Eng",
	ColBearishCount:     ColBearishCount + "_Eng",
	ColBullishCount:     ColBullishCount + "_Eng",
}

// DisplayColumns are the merged columns shown in the reporting table, in order
var DisplayColumns = []string{
	ColTicker,
	EngulfingRenames[ColLatestClose],
	EngulfingRenames[ColLatestSignalName],
	MomentumRenames[ColCurrentTrend],
	MomentumRenames[ColSignalStrength],
}

// DisplayRenames restores plain names after the merge
var DisplayRenames = map[string]string{
	EngulfingRenames[ColLatestClose]:      DisplayLatestClose,
	EngulfingRenames[ColLatestSignalName]: DisplayEngulfingSignal,
	MomentumRenames[ColCurrentTrend]:      DisplayMomentumTrend,
	MomentumRenames[ColSignalStrength]:    DisplayMomentumStrength,
}

// Row is one ticker of the reporting table. Nil fields had no value on their side.
type Row struct {
	Ticker           string   `json:"ticker"`
	LatestClose      *float64 `json:"latest_close"`
	EngulfingSignal  *string  `json:"engulfing_signal"`
	MomentumTrend    *string  `json:"momentum_trend"`
	MomentumStrength *string  `json:"momentum_strength"`
}

// Report is the merged result
type Report struct {
	Strategy Strategy
	// Table holds the display columns sorted by ticker
	Table *table.Table
	// Full holds every merged column, in the same row order as Table
	Full *table.Table
	Rows []Row
}

// Merge reconciles the momentum and engulfing tables. The reference table supplies
// screener metadata and may be nil; only its latest snapshot per ticker is used. The result
// is sorted by ticker, so merging the same inputs twice yields the same table.
func Merge(momentum, engulfing, reference *table.Table, strategy Strategy) (*Report, error) {
	if momentum == nil || !momentum.Has(ColTicker) {
		return nil, fmt.Errorf("momentum: %w", ErrMissingTicker)
	}
	if engulfing == nil || !engulfing.Has(ColTicker) {
		return nil, fmt.Errorf("engulfing: %w", ErrMissingTicker)
	}
	if reference != nil && reference.Len() > 0 && !reference.Has(ColTicker) {
		return nil, fmt.Errorf("reference: %w", ErrMissingTicker)
	}

	mom := momentum.Rename(MomentumRenames).Drop(ColNo)
	eng := engulfing.Rename(EngulfingRenames).Drop(ColNo)
	var ref *table.Table
	if reference != nil && reference.Len() > 0 {
		ref = LatestSnapshot(reference).Drop(ColNo)
	}

	var merged *table.Table
	switch strategy {
	case StrategyWideKey:
		merged = mergeWideKey(mom, eng, ref)
	case StrategyTickerOnly:
		merged = mergeTickerOnly(mom, eng, ref)
	default:
		return nil, fmt.Errorf("unknown merge strategy %q", strategy)
	}
	merged.SortBy(ColTicker)

	display := merged.Select(DisplayColumns...)
	for _, c := range DisplayColumns {
		display.AddColumn(c)
	}
	display = display.Rename(DisplayRenames)
	coerceClose(display)

	return &Report{
		Strategy: strategy,
		Table:    display,
		Full:     merged,
		Rows:     rowsOf(display),
	}, nil
}

// mergeWideKey fills missing fundamentals from the reference table, then inner-joins on
// Ticker and every fundamental column both sides carry
func mergeWideKey(mom, eng, ref *table.Table) *table.Table {
	if ref != nil {
		mom = fillFrom(mom, ref, FundamentalColumns)
		eng = fillFrom(eng, ref, FundamentalColumns)
	}

	keys := []string{ColTicker}
	for _, c := range FundamentalColumns {
		if mom.Has(c) && eng.Has(c) {
			keys = append(keys, c)
		}
	}
	return table.Join(eng, mom, keys, table.InnerJoin)
}

// mergeTickerOnly strips metadata from both sides, outer-joins on Ticker and attaches the
// reference metadata afterwards
func mergeTickerOnly(mom, eng, ref *table.Table) *table.Table {
	metadata := append([]string{}, FundamentalColumns...)
	if ref != nil {
		for _, c := range ref.Columns {
			if c != ColTicker {
				metadata = append(metadata, c)
			}
		}
	}

	merged := table.Join(eng.Drop(metadata...), mom.Drop(metadata...), []string{ColTicker}, table.OuterJoin)
	if ref == nil {
		return merged
	}
	return table.Join(merged, ref, []string{ColTicker}, table.LeftJoin)
}

// fillFrom copies cols from ref into rows of t where the cell is null, matching on Ticker
func fillFrom(t, ref *table.Table, cols []string) *table.Table {
	byTicker := make(map[string]table.Row, ref.Len())
	for _, r := range ref.Rows {
		if tk, ok := r.Get(ColTicker); ok {
			if _, dup := byTicker[tk]; !dup {
				byTicker[tk] = r
			}
		}
	}

	out := t.Copy()
	for _, c := range cols {
		if ref.Has(c) {
			out.AddColumn(c)
		}
	}
	for _, r := range out.Rows {
		src, ok := byTicker[r[ColTicker]]
		if !ok {
			continue
		}
		for _, c := range cols {
			if _, has := r[c]; has {
				continue
			}
			if v, ok := src.Get(c); ok {
				r[c] = v
			}
		}
	}
	return out
}

// coerceClose rounds Latest Close to two decimals; cells that are not numbers become null
func coerceClose(t *table.Table) {
	for _, r := range t.Rows {
		v, ok := r.Get(DisplayLatestClose)
		if !ok {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			delete(r, DisplayLatestClose)
			continue
		}
		r[DisplayLatestClose] = d.Round(2).String()
	}
}

func rowsOf(t *table.Table) []Row {
	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = Row{
			Ticker:           r[ColTicker],
			EngulfingSignal:  cell(r, DisplayEngulfingSignal),
			MomentumTrend:    cell(r, DisplayMomentumTrend),
			MomentumStrength: cell(r, DisplayMomentumStrength),
		}
		if v, ok := r.Get(DisplayLatestClose); ok {
			f := store.ParseFloat(v)
			rows[i].LatestClose = &f
		}
	}
	return rows
}

func cell(r table.Row, col string) *string {
	v, ok := r.Get(col)
	if !ok {
		return nil
	}
	return &v
}
