package screener

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func pageHTML(anchors int, rows ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><table class="styled-table-new is-rounded is-tabular-nums w-full screener_table">`)
	b.WriteString(`<tr><th>No.</th><th>Ticker</th><th>Market Cap</th><th>Price</th></tr>`)
	for i, r := range rows {
		fmt.Fprintf(&b, `<tr><td>%d</td><td><a href="#">%s</a></td><td>-</td><td> %s </td></tr>`, i+1, r[0], r[1])
	}
	b.WriteString(`</table>`)
	if anchors > 0 {
		b.WriteString(`<table><tr><td class="body-table screener_pagination">`)
		for i := 0; i < anchors; i++ {
			fmt.Fprintf(&b, `<a href="#">%d</a>`, i+1)
		}
		b.WriteString(`</td></tr></table>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func TestParsePage(t *testing.T) {
	page, err := ParsePage(strings.NewReader(pageHTML(4, [2]string{"AAPL", "190.5"}, [2]string{"MSFT", "410"})))
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}

	if page.TotalPages != 3 {
		t.Errorf("Expected 3 pages (4 anchors minus arrow), got %d", page.TotalPages)
	}
	want := []string{"No.", "Ticker", "Market Cap", "Price"}
	if !reflect.DeepEqual(page.Table.Columns, want) {
		t.Errorf("Expected columns %v, got %v", want, page.Table.Columns)
	}
	if page.Table.Len() != 2 {
		t.Fatalf("Expected 2 rows, got %d", page.Table.Len())
	}
	r := page.Table.Rows[0]
	if r["Ticker"] != "AAPL" || r["Price"] != "190.5" || r["No."] != "1" {
		t.Errorf("Unexpected row %v", r)
	}
	if _, ok := r.Get("Market Cap"); ok {
		t.Error("Dash cells should be null")
	}
}

func TestParsePage_PageCount(t *testing.T) {
	tests := []struct {
		name    string
		anchors int
		want    int
	}{
		{"no pagination", 0, 1},
		{"arrow only", 1, 1},
		{"two pages", 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := ParsePage(strings.NewReader(pageHTML(tt.anchors, [2]string{"A", "1"})))
			if err != nil {
				t.Fatalf("ParsePage: %v", err)
			}
			if page.TotalPages != tt.want {
				t.Errorf("Expected %d pages, got %d", tt.want, page.TotalPages)
			}
		})
	}
}

func TestParsePage_NoTable(t *testing.T) {
	_, err := ParsePage(strings.NewReader(`<html><body><p>blocked</p></body></html>`))
	if !errors.Is(err, ErrNoTable) {
		t.Errorf("Expected ErrNoTable, got %v", err)
	}
}

func TestPageURL(t *testing.T) {
	base := "https://example.com/screener.ashx?v=121"
	if got := PageURL(base, 0); got != base+"&r=1" {
		t.Errorf("Unexpected first page URL %s", got)
	}
	if got := PageURL(base, 2); got != base+"&r=41" {
		t.Errorf("Unexpected third page URL %s", got)
	}
}

func TestScrape(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Header.Get("User-Agent") == "" {
			t.Error("Expected a User-Agent header")
		}
		switch r.URL.Query().Get("r") {
		case "1":
			fmt.Fprint(w, pageHTML(4, [2]string{"AAA", "10"}))
		case "21":
			w.WriteHeader(http.StatusInternalServerError)
		case "41":
			fmt.Fprint(w, pageHTML(4, [2]string{"CCC", "30"}))
		default:
			t.Errorf("Unexpected page %s", r.URL.RawQuery)
		}
	}))
	defer server.Close()

	s := New(Config{URL: server.URL + "/screener.ashx?v=121"}, zaptest.NewLogger(t))
	s.now = func() time.Time { return time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC) }

	got, err := s.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 3 {
		t.Errorf("Expected 3 page requests, got %d", n)
	}
	if tickers := got.Column("Ticker"); !reflect.DeepEqual(tickers, []string{"AAA", "CCC"}) {
		t.Errorf("Expected the failing page to be skipped, got %v", tickers)
	}
	for _, r := range got.Rows {
		if r[ScrapedAtColumn] != "2024-06-03 09:30:00" {
			t.Errorf("Unexpected timestamp %q", r[ScrapedAtColumn])
		}
	}
	if got.Columns[len(got.Columns)-1] != ScrapedAtColumn {
		t.Errorf("Expected %s as last column, got %v", ScrapedAtColumn, got.Columns)
	}
}

func TestScrape_FirstPageFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	s := New(Config{URL: server.URL + "/?v=1"}, nil)
	if _, err := s.Scrape(context.Background()); err == nil {
		t.Error("Expected error when the first page fails")
	}
}
