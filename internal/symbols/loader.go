package symbols

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"signalscope/internal/table"
)

// Loader collects ticker symbols from the reference table, explicit lists, files and
// predefined universes
type Loader struct {
	// Strict drops symbols that are not plain 1-5 letter tickers (BRK.B, ^VIX, ...)
	Strict bool
}

// NewLoader creates a new symbol loader
func NewLoader(strict bool) *Loader {
	return &Loader{Strict: strict}
}

// FromTable returns the tickers of a reference table in row order
func (l *Loader) FromTable(t *table.Table, column string) ([]string, error) {
	if t == nil || !t.Has(column) {
		return nil, fmt.Errorf("reference table has no %q column", column)
	}
	return l.Normalize(t.Column(column)), nil
}

// FromList parses a comma or whitespace separated list such as "aapl, msft NVDA"
func (l *Loader) FromList(list string) []string {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	return l.Normalize(fields)
}

// FromReader reads one symbol per line; blank lines and lines starting with # are ignored
func (l *Loader) FromReader(r io.Reader) ([]string, error) {
	var raw []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raw = append(raw, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbols: %w", err)
	}
	return l.Normalize(raw), nil
}

// FromFile reads symbols from a file, see FromReader
func (l *Loader) FromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbols file: %w", err)
	}
	defer f.Close()
	return l.FromReader(f)
}

// FromUniverse returns the symbols of a predefined universe
func (l *Loader) FromUniverse(name string) ([]string, error) {
	list := GetUniverse(Universe(strings.ToLower(name)))
	if list == nil {
		return nil, fmt.Errorf("unknown universe: %s", name)
	}
	return l.Normalize(list), nil
}

// Normalize upper-cases and trims symbols, drops empties and duplicates and, in strict
// mode, anything that is not a plain ticker. First occurrence order is kept.
func (l *Loader) Normalize(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		if l.Strict && !isValidSymbol(s) {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// isValidSymbol checks if a symbol is a standard ticker
func isValidSymbol(symbol string) bool {
	if len(symbol) == 0 || len(symbol) > 5 {
		return false
	}
	for _, c := range symbol {
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return true
}
