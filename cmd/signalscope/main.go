package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"signalscope/internal/config"
	"signalscope/internal/logger"
	"signalscope/internal/provider"
	"signalscope/internal/scanner"
	"signalscope/internal/store"
	"signalscope/internal/table"
)

var (
	cfgFile string
	envFile string
	format  string
	verbose bool
)

// app carries what every command needs once the root pre-run has finished
type app struct {
	cfg *config.Config
	log *zap.Logger
}

var a = &app{}

func main() {
	rootCmd := &cobra.Command{
		Use:   "signalscope",
		Short: "Momentum and engulfing signals over daily stock candles",
		Long: `Signalscope screens stocks, downloads their daily candles and derives two signal sets:

  momentum   - RSI(14), 10-day momentum and SMA20/SMA50 trend classification
  engulfing  - bullish and bearish two-candle engulfing reversals

The two result tables are then merged into one report.

Examples:
  signalscope screen
  signalscope fetch --universe nasdaq100 --days 120
  signalscope momentum && signalscope engulfing
  signalscope report --strategy ticker
  signalscope serve --port 8080`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with API credentials")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "output format: table, json")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "show detailed output")

	rootCmd.AddCommand(
		newScreenCmd(),
		newFetchCmd(),
		newMomentumCmd(),
		newEngulfingCmd(),
		newReportCmd(),
		newServeCmd(),
		newHistoryCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nInterrupted. Stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func (a *app) newScanner() *scanner.Scanner {
	return scanner.NewScanner(a.cfg.Scanner.Workers, a.cfg.Scanner.Timeout, a.log)
}

// createProviders returns the configured price sources in preference order
func (a *app) createProviders() []provider.Provider {
	var providers []provider.Provider

	if a.cfg.API.Alpaca.Key != "" && a.cfg.API.Alpaca.Secret != "" {
		providers = append(providers, provider.NewAlpacaProvider(a.cfg.API.Alpaca.Key, a.cfg.API.Alpaca.Secret, a.cfg.API.Alpaca.RateLimit))
	}
	if a.cfg.API.Finnhub.Key != "" {
		providers = append(providers, provider.NewFinnhubProvider(a.cfg.API.Finnhub.Key, a.cfg.API.Finnhub.RateLimit))
	}
	if a.cfg.API.AlphaVantage.Key != "" {
		providers = append(providers, provider.NewAlphaVantageProvider(a.cfg.API.AlphaVantage.Key, a.cfg.API.AlphaVantage.RateLimit))
	}

	// Yahoo Finance (fallback - always available)
	providers = append(providers, provider.NewYahooProvider(a.cfg.API.Yahoo.BaseURL, a.cfg.API.Yahoo.RateLimit))

	return providers
}

// loadReference reads the screener table; a missing file is not an error
func (a *app) loadReference() (*table.Table, error) {
	ref, err := table.LoadFile(a.cfg.Data.Reference)
	if errors.Is(err, fs.ErrNotExist) {
		a.log.Info("no reference table, continuing without screener metadata",
			zap.String("path", a.cfg.Data.Reference))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading reference table: %w", err)
	}
	return ref, nil
}

// openDB opens the run database, or returns nil when persistence is disabled
func (a *app) openDB() (*store.DB, error) {
	if a.cfg.Data.Database == "" {
		return nil, nil
	}
	db, err := store.Open(a.cfg.Data.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}
