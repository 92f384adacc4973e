package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"

	"signalscope/internal/report"
	"signalscope/internal/scanner"
	"signalscope/pkg/model"
)

func newProgressBar(total int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func outputJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func num(f float64, prec int) string {
	if math.IsNaN(f) {
		return "-"
	}
	return fmt.Sprintf("%.*f", prec, f)
}

func pct(n, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(n)/float64(total)*100)
}

func printOutcomes(outcomes []scanner.Outcome) {
	if len(outcomes) == 0 {
		return
	}
	fmt.Printf("\n%d tickers without a result:\n", len(outcomes))
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Ticker", "Status", "Reason"}),
	)
	for _, o := range outcomes {
		reason := ""
		if o.Err != nil {
			reason = o.Err.Error()
		}
		if len(reason) > 60 {
			reason = reason[:60] + "..."
		}
		table.Append([]string{o.Ticker, string(o.Status), reason})
	}
	table.Render()
}

func printMomentumStats(s report.MomentumStats) {
	fmt.Println("--- Momentum Distribution ---")
	dist := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Category", "Count", "Share"}),
	)
	for _, t := range []model.Trend{model.TrendBullish, model.TrendBearish, model.TrendNeutral} {
		dist.Append([]string{"Trend " + string(t), fmt.Sprint(s.TrendCounts[t]), pct(s.TrendCounts[t], s.Total)})
	}
	for _, st := range []model.Strength{model.StrengthStrongBullish, model.StrengthStrongBearish, model.StrengthNormal} {
		dist.Append([]string{"Strength " + string(st), fmt.Sprint(s.StrengthCounts[st]), pct(s.StrengthCounts[st], s.Total)})
	}
	dist.Render()

	fmt.Printf("\nAverage RSI: %s  Overbought (>70): %d  Oversold (<30): %d\n\n",
		num(s.AvgRSI, 2), s.Overbought, s.Oversold)

	printMomentumList("Top Bullish Momentum", s.TopBullish)
	printMomentumList("Top Bearish Momentum", s.TopBearish)
}

func printMomentumList(title string, list []*model.MomentumSummary) {
	if len(list) == 0 {
		return
	}
	fmt.Printf("--- %s ---\n", title)
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Ticker", "Close", "RSI", "Momentum %", "Trend", "Strength"}),
	)
	for _, m := range list {
		table.Append([]string{
			m.Ticker,
			num(m.LatestClose, 2),
			num(m.RSI, 1),
			num(m.MomentumStrengthPct, 2),
			string(m.Trend),
			string(m.Strength),
		})
	}
	table.Render()
	fmt.Println()
}

func printEngulfingStats(s report.EngulfingStats) {
	fmt.Println("--- Latest Engulfing Signals ---")
	dist := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Signal", "Count", "Share"}),
	)
	for _, sig := range []model.EngulfingSignal{model.SignalBullish, model.SignalBearish, model.SignalNeutral} {
		dist.Append([]string{sig.String(), fmt.Sprint(s.LatestCounts[sig]), pct(s.LatestCounts[sig], s.Total)})
	}
	dist.Render()

	fmt.Printf("\nPatterns: %d bearish (avg %s), %d bullish (avg %s)\n",
		s.TotalBearish, num(s.AvgBearish, 2), s.TotalBullish, num(s.AvgBullish, 2))
	fmt.Printf("Latest close: mean %s  median %s  min %s  max %s\n\n",
		num(s.Price.Mean, 2), num(s.Price.Median, 2), num(s.Price.Min, 2), num(s.Price.Max, 2))

	printEngulfingList("Most Bearish Patterns", s.MostBearish)
	printEngulfingList("Most Bullish Patterns", s.MostBullish)
	printEngulfingList("Latest Bearish Signals", s.LatestBearish)
	printEngulfingList("Latest Bullish Signals", s.LatestBullish)
	printEngulfingList(fmt.Sprintf("Under $%.0f", report.LowPriceThreshold), s.LowPriced)
	printEngulfingList(fmt.Sprintf("Over $%.0f", report.HighPriceThreshold), s.HighPriced)
}

func printEngulfingList(title string, list []*model.EngulfingSummary) {
	if len(list) == 0 {
		return
	}
	fmt.Printf("--- %s ---\n", title)
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Ticker", "Latest", "Date", "Bearish", "Bullish", "Close"}),
	)
	for _, e := range list {
		table.Append([]string{
			e.Ticker,
			e.LatestSignal.String(),
			e.LatestDate.Format("2006-01-02"),
			fmt.Sprint(e.BearishCount),
			fmt.Sprint(e.BullishCount),
			num(e.LatestClose, 2),
		})
	}
	table.Render()
	fmt.Println()
}

func printReport(rep *report.Report) {
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader(rep.Table.Columns),
	)
	for _, r := range rep.Table.Rows {
		cells := make([]string, len(rep.Table.Columns))
		for i, c := range rep.Table.Columns {
			if v, ok := r.Get(c); ok {
				cells[i] = v
			} else {
				cells[i] = "-"
			}
		}
		table.Append(cells)
	}
	table.Render()
}
