package symbols

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"signalscope/internal/table"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		strict bool
		in     []string
		want   []string
	}{
		{"upper and trim", false, []string{" aapl", "msft "}, []string{"AAPL", "MSFT"}},
		{"dedupe keeps first", false, []string{"NVDA", "aapl", "nvda"}, []string{"NVDA", "AAPL"}},
		{"empties dropped", false, []string{"", "  ", "T"}, []string{"T"}},
		{"lenient keeps class shares", false, []string{"BRK.B"}, []string{"BRK.B"}},
		{"strict drops class shares", true, []string{"BRK.B", "TOOLONG", "GE"}, []string{"GE"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLoader(tt.strict).Normalize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromList(t *testing.T) {
	got := NewLoader(false).FromList("aapl, msft\tNVDA,,aapl")
	want := []string{"AAPL", "MSFT", "NVDA"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestFromTable(t *testing.T) {
	ref, err := table.ReadCSV(strings.NewReader("No.,Ticker\n1,amd\n2,\n3,INTC\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	got, err := NewLoader(false).FromTable(ref, "Ticker")
	if err != nil {
		t.Fatalf("FromTable: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"AMD", "INTC"}) {
		t.Errorf("Unexpected tickers %v", got)
	}

	if _, err := NewLoader(false).FromTable(ref, "Symbol"); err == nil {
		t.Error("Expected error for missing column")
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.txt")
	if err := os.WriteFile(path, []byte("# watchlist\nTSLA\n\nko\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := NewLoader(true).FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"TSLA", "KO"}) {
		t.Errorf("Unexpected symbols %v", got)
	}

	if _, err := NewLoader(true).FromFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestFromUniverse(t *testing.T) {
	l := NewLoader(false)
	for _, u := range Universes() {
		got, err := l.FromUniverse(string(u))
		if err != nil {
			t.Errorf("FromUniverse(%s): %v", u, err)
			continue
		}
		if len(got) == 0 {
			t.Errorf("Universe %s is empty", u)
		}
	}

	dow, _ := l.FromUniverse("DOW30")
	if len(dow) != 30 {
		t.Errorf("Expected 30 Dow components, got %d", len(dow))
	}
	if _, err := l.FromUniverse("ftse"); err == nil {
		t.Error("Expected error for unknown universe")
	}
}
