package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"signalscope/internal/provider"
	"signalscope/internal/screener"
	"signalscope/internal/store"
	"signalscope/internal/symbols"
)

func newScreenCmd() *cobra.Command {
	var (
		url       string
		out       string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Scrape the stock screener into the reference table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = a.cfg.Screener.URL
			}
			if out == "" {
				out = a.cfg.Data.Reference
			}

			ctx, cancel := signalContext()
			defer cancel()

			s := screener.New(screener.Config{
				URL:       url,
				Delay:     a.cfg.Screener.Delay,
				UserAgent: a.cfg.Screener.UserAgent,
			}, a.log)

			a.log.Info("starting screener", zap.String("url", url), zap.String("out", out))
			t, err := s.Scrape(ctx)
			if err != nil {
				return fmt.Errorf("scraping screener: %w", err)
			}

			if overwrite {
				err = t.SaveFile(out)
			} else {
				err = t.AppendFile(out)
			}
			if err != nil {
				return fmt.Errorf("writing reference table: %w", err)
			}

			fmt.Printf("Scraped %d tickers into %s\n", t.Len(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "screener URL (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "reference CSV path (default from config)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace the file instead of appending a snapshot")
	return cmd
}

func newFetchCmd() *cobra.Command {
	var (
		symbolList string
		symbolFile string
		universe   string
		days       int
		out        string
		strict     bool
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download daily candles into the raw candle table",
		Long: `Fetch downloads daily candles for a ticker list. Tickers come from the first of
--symbols, --file, --universe or the reference table that is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				days = a.cfg.Fetch.Days
			}
			if out == "" {
				out = a.cfg.Data.Candles
			}

			tickers, err := resolveTickers(symbols.NewLoader(strict), symbolList, symbolFile, universe)
			if err != nil {
				return err
			}
			if len(tickers) == 0 {
				return fmt.Errorf("no tickers to fetch")
			}

			fallback := provider.NewFallbackProvider(a.createProviders()...)
			if !fallback.IsAvailable() {
				return fmt.Errorf("no available data providers")
			}
			if verbose {
				for _, p := range fallback.Providers() {
					a.log.Debug("provider enabled", zap.String("name", p.Name()), zap.Int("rate_limit", p.RateLimit()))
				}
			}

			ctx, cancel := signalContext()
			defer cancel()

			to := time.Now()
			from := to.AddDate(0, 0, -days)
			fmt.Printf("Downloading %d days of candles for %d tickers...\n\n", days, len(tickers))

			s := a.newScanner()
			bar := newProgressBar(len(tickers), "Downloading")
			s.SetProgressCallback(func(scanned, total int) {
				bar.Set(scanned)
			})

			rows, batch := provider.Download(ctx, s, fallback, tickers, from, to)
			bar.Finish()
			fmt.Fprintln(os.Stderr)

			if len(rows) == 0 {
				return fmt.Errorf("no candles downloaded: %w", store.ErrEmptyTable)
			}
			if err := store.SaveCandles(out, rows); err != nil {
				return fmt.Errorf("writing candles: %w", err)
			}

			fmt.Printf("Wrote %d candles for %d tickers to %s (%d skipped, %d failed) in %s\n",
				len(rows), batch.Succeeded, out, batch.Skipped, batch.Failed, batch.Duration.Round(time.Millisecond))
			if verbose {
				printOutcomes(batch.Failures())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&symbolList, "symbols", "", "comma-separated list of symbols")
	cmd.Flags().StringVar(&symbolFile, "file", "", "file with one symbol per line")
	cmd.Flags().StringVar(&universe, "universe", "", "predefined universe: sp500, nasdaq100, dow30, test")
	cmd.Flags().IntVar(&days, "days", 0, "calendar days of history (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "candle CSV path (default from config)")
	cmd.Flags().BoolVar(&strict, "strict", false, "drop symbols that are not plain 1-5 letter tickers")
	return cmd
}

func resolveTickers(loader *symbols.Loader, list, file, universe string) ([]string, error) {
	switch {
	case list != "":
		return loader.FromList(list), nil
	case file != "":
		return loader.FromFile(file)
	case universe != "":
		return loader.FromUniverse(universe)
	}

	ref, err := a.loadReference()
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, errors.New("no tickers given and no reference table; run screen first or pass --symbols")
	}
	return loader.FromTable(ref, "Ticker")
}

// exists reports whether path is a regular readable file
func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
