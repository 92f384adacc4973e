package report

import (
	"math"
	"sort"

	"signalscope/pkg/model"
)

// Price buckets used by the engulfing statistics
const (
	LowPriceThreshold  = 10.0
	HighPriceThreshold = 100.0
)

// MomentumStats summarizes a momentum batch
type MomentumStats struct {
	Total          int
	TrendCounts    map[model.Trend]int
	StrengthCounts map[model.Strength]int
	AvgRSI         float64
	Overbought     int // RSI > 70
	Oversold       int // RSI < 30
	TopBullish     []*model.MomentumSummary
	TopBearish     []*model.MomentumSummary
}

// ComputeMomentumStats computes distributions and the topN strongest tickers each way
func ComputeMomentumStats(summaries []*model.MomentumSummary, topN int) MomentumStats {
	stats := MomentumStats{
		Total:          len(summaries),
		TrendCounts:    make(map[model.Trend]int),
		StrengthCounts: make(map[model.Strength]int),
		AvgRSI:         math.NaN(),
	}

	var rsiSum float64
	var rsiN int
	var ranked []*model.MomentumSummary
	for _, m := range summaries {
		stats.TrendCounts[m.Trend]++
		stats.StrengthCounts[m.Strength]++
		if !math.IsNaN(m.RSI) {
			rsiSum += m.RSI
			rsiN++
		}
		if m.RSI > 70 {
			stats.Overbought++
		}
		if m.RSI < 30 {
			stats.Oversold++
		}
		if !math.IsNaN(m.MomentumStrengthPct) {
			ranked = append(ranked, m)
		}
	}
	if rsiN > 0 {
		stats.AvgRSI = rsiSum / float64(rsiN)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MomentumStrengthPct > ranked[j].MomentumStrengthPct
	})
	stats.TopBullish = head(ranked, topN)

	reversed := make([]*model.MomentumSummary, len(ranked))
	copy(reversed, ranked)
	sort.SliceStable(reversed, func(i, j int) bool {
		return reversed[i].MomentumStrengthPct < reversed[j].MomentumStrengthPct
	})
	stats.TopBearish = head(reversed, topN)

	return stats
}

// PriceStats describes the latest closes of a batch
type PriceStats struct {
	Mean   float64
	Median float64
	Min    float64
	Max    float64
}

// EngulfingStats summarizes an engulfing batch
type EngulfingStats struct {
	Total         int
	LatestCounts  map[model.EngulfingSignal]int
	TotalBearish  int
	TotalBullish  int
	AvgBearish    float64
	AvgBullish    float64
	Price         PriceStats
	MostBearish   []*model.EngulfingSummary
	MostBullish   []*model.EngulfingSummary
	LatestBearish []*model.EngulfingSummary
	LatestBullish []*model.EngulfingSummary
	LowPriced     []*model.EngulfingSummary
	HighPriced    []*model.EngulfingSummary
}

// ComputeEngulfingStats computes signal distributions, pattern totals and price buckets
func ComputeEngulfingStats(summaries []*model.EngulfingSummary, topN int) EngulfingStats {
	stats := EngulfingStats{
		Total:        len(summaries),
		LatestCounts: make(map[model.EngulfingSignal]int),
		AvgBearish:   math.NaN(),
		AvgBullish:   math.NaN(),
	}

	var closes []float64
	for _, e := range summaries {
		stats.LatestCounts[e.LatestSignal]++
		stats.TotalBearish += e.BearishCount
		stats.TotalBullish += e.BullishCount

		switch e.LatestSignal {
		case model.SignalBearish:
			stats.LatestBearish = append(stats.LatestBearish, e)
		case model.SignalBullish:
			stats.LatestBullish = append(stats.LatestBullish, e)
		}

		if math.IsNaN(e.LatestClose) {
			continue
		}
		closes = append(closes, e.LatestClose)
		if e.LatestClose < LowPriceThreshold {
			stats.LowPriced = append(stats.LowPriced, e)
		}
		if e.LatestClose > HighPriceThreshold {
			stats.HighPriced = append(stats.HighPriced, e)
		}
	}
	if stats.Total > 0 {
		stats.AvgBearish = float64(stats.TotalBearish) / float64(stats.Total)
		stats.AvgBullish = float64(stats.TotalBullish) / float64(stats.Total)
	}
	stats.Price = priceStats(closes)

	stats.MostBearish = topBy(summaries, topN, func(e *model.EngulfingSummary) int { return e.BearishCount })
	stats.MostBullish = topBy(summaries, topN, func(e *model.EngulfingSummary) int { return e.BullishCount })

	byDateDesc := func(list []*model.EngulfingSummary) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].LatestDate.After(list[j].LatestDate) })
	}
	byDateDesc(stats.LatestBearish)
	byDateDesc(stats.LatestBullish)

	sort.SliceStable(stats.LowPriced, func(i, j int) bool {
		return stats.LowPriced[i].LatestClose < stats.LowPriced[j].LatestClose
	})
	sort.SliceStable(stats.HighPriced, func(i, j int) bool {
		return stats.HighPriced[i].LatestClose > stats.HighPriced[j].LatestClose
	})

	return stats
}

func priceStats(closes []float64) PriceStats {
	if len(closes) == 0 {
		nan := math.NaN()
		return PriceStats{Mean: nan, Median: nan, Min: nan, Max: nan}
	}

	sorted := make([]float64, len(closes))
	copy(sorted, closes)
	sort.Float64s(sorted)

	var sum float64
	for _, c := range sorted {
		sum += c
	}

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return PriceStats{
		Mean:   sum / float64(n),
		Median: median,
		Min:    sorted[0],
		Max:    sorted[n-1],
	}
}

func topBy(list []*model.EngulfingSummary, n int, key func(*model.EngulfingSummary) int) []*model.EngulfingSummary {
	sorted := make([]*model.EngulfingSummary, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool { return key(sorted[i]) > key(sorted[j]) })
	return head(sorted, n)
}

func head[T any](list []T, n int) []T {
	if n < 0 || n >= len(list) {
		return list
	}
	return list[:n]
}
