package report

import (
	"math"
	"sort"
	"strconv"

	"signalscope/internal/store"
	"signalscope/internal/table"
	"signalscope/pkg/model"
)

// Column names of the persisted momentum and engulfing tables
const (
	ColTicker    = "Ticker"
	ColNo        = "No."
	ColScrapedAt = "Scraped_At"

	ColLatestDate          = "Latest_Date"
	ColLatestClose         = "Latest_Close"
	ColRSI                 = "RSI"
	ColMomentum            = "Momentum"
	ColMomentumStrengthPct = "Momentum_Strength_Pct"
	ColSMA20               = "SMA_20"
	ColSMA50               = "SMA_50"
	ColCurrentTrend        = "Current_Trend"
	ColSignalStrength      = "Signal_Strength"
	ColBullishDays         = "Bullish_Days_30d"
	ColBearishDays         = "Bearish_Days_30d"
	ColStrongBullishDays   = "Strong_Bullish_Days_30d"
	ColStrongBearishDays   = "Strong_Bearish_Days_30d"

	ColLatestSignal     = "Latest_Signal"
	ColLatestSignalName = "Latest_Signal_Name"
	ColBearishCount     = "Bearish_Count_90d"
	ColBullishCount     = "Bullish_Count_90d"
)

// FundamentalColumns are the screener metadata columns shared by both persisted tables
var FundamentalColumns = []string{
	"Market Cap", "P/E", "Fwd P/E", "PEG", "P/S", "P/B", "P/C", "P/FCF",
	"EPS This Y", "EPS Next Y", "EPS Past 5Y", "EPS Next 5Y", "Sales Past 5Y",
	"Price", "Change", "Volume",
}

// MomentumSummaryColumns is the full momentum summary layout
var MomentumSummaryColumns = []string{
	ColTicker, ColLatestDate, ColLatestClose, ColRSI, ColMomentum, ColMomentumStrengthPct,
	ColSMA20, ColSMA50, ColCurrentTrend, ColSignalStrength,
	ColBullishDays, ColBearishDays, ColStrongBullishDays, ColStrongBearishDays,
}

// MomentumColumns are the momentum fields attached to the reference table when persisted
var MomentumColumns = []string{
	ColRSI, ColMomentum, ColMomentumStrengthPct, ColCurrentTrend, ColSignalStrength,
	ColBullishDays, ColBearishDays,
}

// EngulfingSummaryColumns is the engulfing summary layout
var EngulfingSummaryColumns = []string{
	ColTicker, ColLatestSignal, ColLatestSignalName, ColLatestDate,
	ColBearishCount, ColBullishCount, ColLatestClose,
}

const dateLayout = "2006-01-02"

// MomentumTable converts summaries into a table in MomentumSummaryColumns order
func MomentumTable(summaries []*model.MomentumSummary) *table.Table {
	t := table.New(MomentumSummaryColumns...)
	for _, m := range summaries {
		row := table.Row{
			ColTicker:            m.Ticker,
			ColLatestDate:        m.LatestDate.Format(dateLayout),
			ColCurrentTrend:      string(m.Trend),
			ColSignalStrength:    string(m.Strength),
			ColBullishDays:       strconv.Itoa(m.BullishDays),
			ColBearishDays:       strconv.Itoa(m.BearishDays),
			ColStrongBullishDays: strconv.Itoa(m.StrongBullishDays),
			ColStrongBearishDays: strconv.Itoa(m.StrongBearishDays),
		}
		setFloat(row, ColLatestClose, m.LatestClose)
		setFloat(row, ColRSI, m.RSI)
		setFloat(row, ColMomentum, m.Momentum)
		setFloat(row, ColMomentumStrengthPct, m.MomentumStrengthPct)
		setFloat(row, ColSMA20, m.SMA20)
		setFloat(row, ColSMA50, m.SMA50)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// EngulfingTable converts summaries into a table sorted by latest signal then latest
// close, both descending
func EngulfingTable(summaries []*model.EngulfingSummary) *table.Table {
	sorted := make([]*model.EngulfingSummary, len(summaries))
	copy(sorted, summaries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.LatestSignal != b.LatestSignal {
			return a.LatestSignal > b.LatestSignal
		}
		return descNaNLast(a.LatestClose, b.LatestClose)
	})

	t := table.New(EngulfingSummaryColumns...)
	for _, e := range sorted {
		row := table.Row{
			ColTicker:           e.Ticker,
			ColLatestSignal:     strconv.Itoa(int(e.LatestSignal)),
			ColLatestSignalName: e.LatestSignal.String(),
			ColLatestDate:       e.LatestDate.Format(dateLayout),
			ColBearishCount:     strconv.Itoa(e.BearishCount),
			ColBullishCount:     strconv.Itoa(e.BullishCount),
		}
		setFloat(row, ColLatestClose, e.LatestClose)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// AnnotateMomentum attaches the momentum fields to every reference row. Reference tickers
// without a momentum result keep null momentum cells. Without a reference table only the
// momentum columns are returned.
func AnnotateMomentum(reference, momentum *table.Table) *table.Table {
	cols := append([]string{ColTicker}, MomentumColumns...)
	if reference == nil || reference.Len() == 0 {
		return momentum.Select(cols...)
	}
	return table.Join(LatestSnapshot(reference), momentum.Select(cols...), []string{ColTicker}, table.LeftJoin)
}

// AnnotateEngulfing attaches reference metadata to every engulfing row, keeping the
// engulfing row order
func AnnotateEngulfing(engulfing, reference *table.Table) *table.Table {
	if reference == nil || reference.Len() == 0 {
		return engulfing.Copy()
	}
	return table.Join(engulfing, LatestSnapshot(reference), []string{ColTicker}, table.LeftJoin)
}

// LatestSnapshot keeps one reference row per ticker: the one with the greatest
// Scraped_At, the later row on ties. Rows without a ticker are dropped. Tickers keep
// their first-appearance order.
func LatestSnapshot(reference *table.Table) *table.Table {
	out := table.New(reference.Columns...)
	pos := make(map[string]int, reference.Len())
	for _, r := range reference.Rows {
		ticker, ok := r.Get(ColTicker)
		if !ok || ticker == "" {
			continue
		}
		i, seen := pos[ticker]
		if !seen {
			pos[ticker] = len(out.Rows)
			out.Rows = append(out.Rows, copyRow(r))
			continue
		}
		// "2006-01-02 15:04:05" stamps order lexically
		if r[ColScrapedAt] >= out.Rows[i][ColScrapedAt] {
			out.Rows[i] = copyRow(r)
		}
	}
	return out
}

func copyRow(r table.Row) table.Row {
	c := make(table.Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

func setFloat(row table.Row, col string, f float64) {
	if s := store.FormatFloat(f); s != "" {
		row[col] = s
	}
}

func descNaNLast(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a > b
}
