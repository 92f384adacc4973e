package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"signalscope/internal/analyzer"
	"signalscope/internal/report"
	"signalscope/internal/scanner"
	"signalscope/internal/store"
	"signalscope/internal/symbols"
	"signalscope/internal/table"
	"signalscope/pkg/model"
)

// batchInput is what both analysis commands start from
type batchInput struct {
	index     *analyzer.CandleIndex
	reference *table.Table
	tickers   []string
}

// loadBatchInput reads the candle and reference tables. Every ticker in the candle table is
// analysed; reference tickers without candles follow and are reported as no_data skips.
// An empty or missing candle table stops the command before any work starts.
func loadBatchInput() (*batchInput, error) {
	rows, err := store.LoadCandles(a.cfg.Data.Candles, a.log)
	if err != nil {
		return nil, err
	}
	ref, err := a.loadReference()
	if err != nil {
		return nil, err
	}

	in := &batchInput{index: analyzer.NewCandleIndex(rows), reference: ref}
	var refTickers []string
	if ref != nil && ref.Has(report.ColTicker) {
		refTickers, _ = symbols.NewLoader(false).FromTable(ref, report.ColTicker)
	}
	in.tickers = in.index.BatchTickers(refTickers)

	a.log.Info("candles loaded",
		zap.Int("rows", in.index.Rows()),
		zap.Int("tickers", len(in.tickers)))
	return in, nil
}

func runBatch[S any](ctx context.Context, in *batchInput, desc string, fn scanner.AnalyzeFunc[S]) *scanner.Batch[S] {
	s := a.newScanner()
	bar := newProgressBar(len(in.tickers), desc)
	s.SetProgressCallback(func(scanned, total int) {
		bar.Set(scanned)
	})
	batch := scanner.Run(ctx, s, in.tickers, in.index, fn)
	bar.Finish()
	fmt.Fprintln(os.Stderr)
	return batch
}

func runRecord[S any](kind string, in *batchInput, batch *scanner.Batch[S]) store.Run {
	return store.Run{
		ID:        batch.RunID,
		Kind:      kind,
		CreatedAt: time.Now(),
		Tickers:   len(in.tickers),
		Succeeded: batch.Succeeded,
		Skipped:   batch.Skipped,
		Failed:    batch.Failed,
	}
}

func newMomentumCmd() *cobra.Command {
	var (
		out  string
		topN int
	)
	cmd := &cobra.Command{
		Use:   "momentum",
		Short: "Compute RSI, momentum and SMA trend summaries for every ticker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = a.cfg.Data.Momentum
			}
			in, err := loadBatchInput()
			if err != nil {
				return fmt.Errorf("loading candles: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			engine := analyzer.NewMomentumEngine(a.cfg.MomentumSettings())
			batch := runBatch(ctx, in, "Momentum", func(ctx context.Context, series model.TickerSeries) (*model.MomentumSummary, error) {
				return engine.Summarize(series)
			})

			annotated := report.AnnotateMomentum(in.reference, report.MomentumTable(batch.Results))
			if err := annotated.SaveFile(out); err != nil {
				return fmt.Errorf("writing momentum table: %w", err)
			}

			if err := persist(func(ctx context.Context, db *store.DB) error {
				return db.SaveMomentum(ctx, runRecord(store.KindMomentum, in, batch), batch.Results)
			}); err != nil {
				return err
			}

			stats := report.ComputeMomentumStats(batch.Results, topN)
			if format == "json" {
				return outputJSON(map[string]any{
					"run_id":    batch.RunID,
					"succeeded": batch.Succeeded,
					"skipped":   batch.Skipped,
					"failed":    batch.Failed,
					"summaries": batch.Results,
				})
			}
			fmt.Printf("Wrote %d momentum summaries to %s (run %s)\n\n", batch.Succeeded, out, batch.RunID)
			printMomentumStats(stats)
			if verbose {
				printOutcomes(batch.Failures())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "momentum CSV path (default from config)")
	cmd.Flags().IntVar(&topN, "top", 10, "number of strongest tickers to list each way")
	return cmd
}

func newEngulfingCmd() *cobra.Command {
	var (
		out       string
		topN      int
		threshold string
	)
	cmd := &cobra.Command{
		Use:   "engulfing",
		Short: "Detect bullish and bearish engulfing patterns for every ticker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = a.cfg.Data.Engulfing
			}
			settings := a.cfg.EngulfingSettings()
			if threshold != "" {
				settings.Mode = analyzer.ThresholdMode(threshold)
				if settings.Mode != analyzer.ThresholdAbsolute && settings.Mode != analyzer.ThresholdRelative {
					return fmt.Errorf("unknown threshold mode %q", threshold)
				}
			}

			in, err := loadBatchInput()
			if err != nil {
				return fmt.Errorf("loading candles: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			detector := analyzer.NewEngulfingDetector(settings)
			batch := runBatch(ctx, in, "Engulfing", func(ctx context.Context, series model.TickerSeries) (*model.EngulfingSummary, error) {
				return detector.Summarize(series)
			})

			annotated := report.AnnotateEngulfing(report.EngulfingTable(batch.Results), in.reference)
			if err := annotated.SaveFile(out); err != nil {
				return fmt.Errorf("writing engulfing table: %w", err)
			}

			if err := persist(func(ctx context.Context, db *store.DB) error {
				return db.SaveEngulfing(ctx, runRecord(store.KindEngulfing, in, batch), batch.Results)
			}); err != nil {
				return err
			}

			stats := report.ComputeEngulfingStats(batch.Results, topN)
			if format == "json" {
				return outputJSON(map[string]any{
					"run_id":    batch.RunID,
					"succeeded": batch.Succeeded,
					"skipped":   batch.Skipped,
					"failed":    batch.Failed,
					"summaries": batch.Results,
				})
			}
			fmt.Printf("Wrote %d engulfing summaries to %s (run %s)\n\n", batch.Succeeded, out, batch.RunID)
			printEngulfingStats(stats)
			if verbose {
				printOutcomes(batch.Failures())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "engulfing CSV path (default from config)")
	cmd.Flags().IntVar(&topN, "top", 10, "number of tickers to list per section")
	cmd.Flags().StringVar(&threshold, "threshold", "", "body threshold mode: absolute, relative (default from config)")
	return cmd
}

// persist runs fn against the run database when one is configured
func persist(fn func(ctx context.Context, db *store.DB) error) error {
	db, err := a.openDB()
	if err != nil || db == nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := fn(ctx, db); err != nil {
		return fmt.Errorf("persisting run: %w", err)
	}
	a.log.Debug("run persisted", zap.String("database", a.cfg.Data.Database))
	return nil
}
