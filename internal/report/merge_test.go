package report

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"signalscope/internal/table"
)

func csvTable(t *testing.T, text string) *table.Table {
	t.Helper()
	tbl, err := table.ReadCSV(strings.NewReader(text))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	return tbl
}

func momentumFixture(t *testing.T) *table.Table {
	return csvTable(t, "No.,Ticker,Price,Scraped_At,RSI,Current_Trend,Signal_Strength\n"+
		"1,BBB,20,2024-06-03,45,Neutral,Normal\n"+
		"2,AAA,10,2024-06-03,72,Bullish,Strong_Bullish\n"+
		"3,CCC,30,2024-06-03,25,Bearish,Strong_Bearish\n")
}

func engulfingFixture(t *testing.T) *table.Table {
	return csvTable(t, "Ticker,Latest_Signal,Latest_Signal_Name,Latest_Close,Price,Scraped_At\n"+
		"AAA,2,Bullish,10.456,10,2024-06-03\n"+
		"CCC,1,Bearish,29.999,31,2024-06-03\n")
}

func TestMerge_TickerOnlyKeepsOneSidedTickers(t *testing.T) {
	report, err := Merge(momentumFixture(t), engulfingFixture(t), nil, StrategyTickerOnly)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if got := report.Table.Column(ColTicker); !reflect.DeepEqual(got, []string{"AAA", "BBB", "CCC"}) {
		t.Fatalf("Expected sorted tickers AAA,BBB,CCC, got %v", got)
	}
	want := []string{ColTicker, DisplayLatestClose, DisplayEngulfingSignal, DisplayMomentumTrend, DisplayMomentumStrength}
	if !reflect.DeepEqual(report.Table.Columns, want) {
		t.Errorf("Expected columns %v, got %v", want, report.Table.Columns)
	}

	bbb := report.Rows[1]
	if bbb.Ticker != "BBB" {
		t.Fatalf("Expected BBB second, got %s", bbb.Ticker)
	}
	if bbb.EngulfingSignal != nil || bbb.LatestClose != nil {
		t.Error("BBB has no engulfing result and should have null engulfing fields")
	}
	if bbb.MomentumTrend == nil || *bbb.MomentumTrend != "Neutral" {
		t.Errorf("Expected BBB momentum trend Neutral, got %v", bbb.MomentumTrend)
	}

	aaa := report.Rows[0]
	if aaa.LatestClose == nil || *aaa.LatestClose != 10.46 {
		t.Errorf("Expected AAA latest close rounded to 10.46, got %v", aaa.LatestClose)
	}
	if report.Table.Rows[2][DisplayLatestClose] != "30" {
		t.Errorf("Expected CCC close 30, got %q", report.Table.Rows[2][DisplayLatestClose])
	}
}

func TestMerge_TickerOnlyAttachesReference(t *testing.T) {
	reference := csvTable(t, "No.,Ticker,Price,Scraped_At\n1,AAA,10,2024-06-02\n2,BBB,20,2024-06-02\n")

	report, err := Merge(momentumFixture(t), engulfingFixture(t), reference, StrategyTickerOnly)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.Full.Has("Price_x") || report.Full.Has("Price_y") {
		t.Errorf("Metadata should not collide under ticker-only merge, got %v", report.Full.Columns)
	}
	row, ok := report.Full.Index(ColTicker, "BBB")
	if !ok || row["Price"] != "20" {
		t.Errorf("Expected BBB price from reference, got %v", row)
	}
	if _, ok := report.Full.Rows[0]["Scraped_At_Mom"]; !ok {
		t.Error("Expected renamed momentum timestamp in full table")
	}
	if report.Full.Has(ColNo) {
		t.Error("No. column should be dropped")
	}
}

func TestMerge_WideKeyDropsMismatchedMetadata(t *testing.T) {
	report, err := Merge(momentumFixture(t), engulfingFixture(t), nil, StrategyWideKey)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	// CCC disagrees on Price and BBB has no engulfing row
	if got := report.Table.Column(ColTicker); !reflect.DeepEqual(got, []string{"AAA"}) {
		t.Fatalf("Expected only AAA, got %v", got)
	}
	r := report.Rows[0]
	if r.EngulfingSignal == nil || *r.EngulfingSignal != "Bullish" {
		t.Errorf("Expected Bullish engulfing signal, got %v", r.EngulfingSignal)
	}
	if r.MomentumStrength == nil || *r.MomentumStrength != "Strong_Bullish" {
		t.Errorf("Expected Strong_Bullish, got %v", r.MomentumStrength)
	}
}

func TestMerge_WideKeyFillsMissingMetadata(t *testing.T) {
	momentum := csvTable(t, "Ticker,Price,Current_Trend,Signal_Strength\nAAA,,Bullish,Normal\n")
	engulfing := csvTable(t, "Ticker,Price,Latest_Signal_Name,Latest_Close\nAAA,10,Neutral,9.99\n")
	reference := csvTable(t, "Ticker,Price\nAAA,10\n")

	without, err := Merge(momentum, engulfing, nil, StrategyWideKey)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if without.Table.Len() != 0 {
		t.Errorf("Null price should not match without a reference table, got %d rows", without.Table.Len())
	}

	with, err := Merge(momentum, engulfing, reference, StrategyWideKey)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if with.Table.Len() != 1 {
		t.Fatalf("Expected the annotated row to match, got %d rows", with.Table.Len())
	}
}

func TestMerge_Idempotent(t *testing.T) {
	first, err := Merge(momentumFixture(t), engulfingFixture(t), nil, StrategyTickerOnly)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	second, err := Merge(momentumFixture(t), engulfingFixture(t), nil, StrategyTickerOnly)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !reflect.DeepEqual(first.Table, second.Table) {
		t.Error("Merging the same inputs twice should give the same table")
	}
}

func TestMerge_NonNumericCloseBecomesNull(t *testing.T) {
	engulfing := csvTable(t, "Ticker,Latest_Signal_Name,Latest_Close\nAAA,Neutral,n/a\n")
	momentum := csvTable(t, "Ticker,Current_Trend\nAAA,Neutral\n")

	report, err := Merge(momentum, engulfing, nil, StrategyTickerOnly)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.Rows[0].LatestClose != nil {
		t.Errorf("Expected null close, got %v", *report.Rows[0].LatestClose)
	}
}

func TestMerge_Errors(t *testing.T) {
	noTicker := csvTable(t, "Symbol\nAAA\n")

	if _, err := Merge(noTicker, engulfingFixture(t), nil, StrategyTickerOnly); !errors.Is(err, ErrMissingTicker) {
		t.Errorf("Expected ErrMissingTicker, got %v", err)
	}
	if _, err := Merge(momentumFixture(t), engulfingFixture(t), nil, Strategy("fuzzy")); err == nil {
		t.Error("Expected error for unknown strategy")
	}
}

func TestParseStrategy(t *testing.T) {
	tests := map[string]Strategy{
		"ticker":   StrategyTickerOnly,
		"":         StrategyTickerOnly,
		"wide":     StrategyWideKey,
		"Wide-Key": StrategyWideKey,
	}
	for in, want := range tests {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseStrategy("outer"); err == nil {
		t.Error("Expected error for unknown strategy")
	}
}

func TestMerge_RepeatedReferenceSnapshots(t *testing.T) {
	reference := csvTable(t, "No.,Ticker,Market Cap,Price,Scraped_At\n"+
		"1,AAA,1B,10,2024-06-01 09:00:00\n"+
		"2,BBB,3B,20,2024-06-01 09:00:00\n"+
		"1,AAA,2B,11,2024-06-02 09:00:00\n"+
		"2,BBB,3B,21,2024-06-02 09:00:00\n")
	momentum := AnnotateMomentum(reference, csvTable(t,
		"Ticker,RSI,Current_Trend,Signal_Strength\nAAA,60,Bullish,Normal\nBBB,40,Neutral,Normal\n"))
	engulfing := AnnotateEngulfing(csvTable(t,
		"Ticker,Latest_Signal,Latest_Signal_Name,Latest_Close\nAAA,2,Bullish,11.2\n"), reference)

	if momentum.Len() != 2 || engulfing.Len() != 1 {
		t.Fatalf("Annotated tables should hold one row per ticker, got %d and %d", momentum.Len(), engulfing.Len())
	}

	for _, strategy := range []Strategy{StrategyTickerOnly, StrategyWideKey} {
		t.Run(string(strategy), func(t *testing.T) {
			report, err := Merge(momentum, engulfing, reference, strategy)
			if err != nil {
				t.Fatalf("Merge: %v", err)
			}
			want := []string{"AAA", "BBB"}
			if strategy == StrategyWideKey {
				want = []string{"AAA"}
			}
			if got := report.Table.Column(ColTicker); !reflect.DeepEqual(got, want) {
				t.Fatalf("Expected tickers %v, got %v", want, got)
			}
			row, _ := report.Full.Index(ColTicker, "AAA")
			if row["Price"] != "11" || row["Market Cap"] != "2B" {
				t.Errorf("Expected AAA metadata from the latest snapshot, got %v", row)
			}
		})
	}
}

func TestMerge_CloseRoundsTiesAwayFromZero(t *testing.T) {
	engulfing := csvTable(t, "Ticker,Latest_Signal,Latest_Close\nAAA,0,10.125\nBBB,0,-2.345\n")
	momentum := csvTable(t, "Ticker,RSI\nAAA,50\nBBB,50\n")

	report, err := Merge(momentum, engulfing, nil, StrategyTickerOnly)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	// half-even rounding would give 10.12 and -2.34
	if got := report.Table.Column(DisplayLatestClose); !reflect.DeepEqual(got, []string{"10.13", "-2.35"}) {
		t.Errorf("Expected ties rounded away from zero, got %v", got)
	}
}
