// Package screener scrapes the paginated stock screener into a reference table.
package screener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"signalscope/internal/ratelimit"
	"signalscope/internal/table"
)

const (
	tableSelector      = "table.styled-table-new.is-rounded.is-tabular-nums.w-full.screener_table"
	paginationSelector = ".body-table.screener_pagination"

	// RowsPerPage is the number of tickers the screener shows per page
	RowsPerPage = 20

	// ScrapedAtColumn is stamped on every scraped row
	ScrapedAtColumn = "Scraped_At"
	scrapedAtLayout = "2006-01-02 15:04:05"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// ErrNoTable is returned when a page carries no screener table
var ErrNoTable = errors.New("no screener table found")

// Page is one parsed screener page
type Page struct {
	Table      *table.Table
	TotalPages int
}

// ParsePage parses the results table and the page count from screener HTML.
// A page without pagination counts as a single page.
func ParsePage(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	page := &Page{TotalPages: totalPages(doc)}

	sel := doc.Find(tableSelector).First()
	if sel.Length() == 0 {
		return page, ErrNoTable
	}
	page.Table = parseTable(sel)
	return page, nil
}

// totalPages counts the pagination anchors, excluding the trailing arrow
func totalPages(doc *goquery.Document) int {
	pagination := doc.Find(paginationSelector).First()
	if pagination.Length() == 0 {
		return 1
	}
	n := pagination.Find("a").Length() - 1
	if n < 1 {
		return 1
	}
	return n
}

func parseTable(sel *goquery.Selection) *table.Table {
	var header []string
	var rows []table.Row

	sel.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if header == nil {
			cells := tr.Find("th")
			if cells.Length() == 0 {
				cells = tr.Find("td")
			}
			cells.Each(func(_ int, c *goquery.Selection) {
				header = append(header, cellText(c))
			})
			return
		}

		row := make(table.Row, len(header))
		tr.Find("td").Each(func(j int, td *goquery.Selection) {
			if j >= len(header) {
				return
			}
			if v := cellText(td); v != "" && v != "-" {
				row[header[j]] = v
			}
		})
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})

	t := table.New(header...)
	t.Rows = rows
	return t
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// Config controls a scrape
type Config struct {
	URL       string
	Delay     time.Duration
	UserAgent string
}

// Screener fetches every page of a screener view
type Screener struct {
	cfg     Config
	client  *http.Client
	limiter *ratelimit.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a screener. Page fetches are spaced by cfg.Delay.
func New(cfg Config, logger *zap.Logger) *Screener {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Screener{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: ratelimit.NewIntervalLimiter("screener", cfg.Delay),
		logger:  logger,
		now:     time.Now,
	}
}

// PageURL returns the URL of the zero-based page
func PageURL(base string, page int) string {
	return fmt.Sprintf("%s&r=%d", base, page*RowsPerPage+1)
}

// Scrape fetches all pages and concatenates their tables. A failing page after the first
// is logged and skipped; a failing first page aborts the scrape.
func (s *Screener) Scrape(ctx context.Context) (*table.Table, error) {
	first, err := s.fetch(ctx, PageURL(s.cfg.URL, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}
	s.logger.Info("screener pages found", zap.Int("pages", first.TotalPages))

	out := first.Table
	for page := 1; page < first.TotalPages; page++ {
		p, err := s.fetch(ctx, PageURL(s.cfg.URL, page))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("screener page skipped",
				zap.Int("page", page+1),
				zap.Error(err))
			continue
		}
		for _, c := range p.Table.Columns {
			out.AddColumn(c)
		}
		out.Rows = append(out.Rows, p.Table.Rows...)
		s.logger.Debug("screener page scraped", zap.Int("page", page+1), zap.Int("rows", p.Table.Len()))
	}

	stamp := s.now().Format(scrapedAtLayout)
	out.AddColumn(ScrapedAtColumn)
	for _, r := range out.Rows {
		r[ScrapedAtColumn] = stamp
	}
	return out, nil
}

func (s *Screener) fetch(ctx context.Context, pageURL string) (*Page, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		s.limiter.SignalRateLimited()
		return nil, fmt.Errorf("rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}
	s.limiter.ResetBackoff()

	return ParsePage(resp.Body)
}
