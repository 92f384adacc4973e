package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"signalscope/internal/report"
	"signalscope/internal/store"
	"signalscope/internal/table"
)

func newReportCmd() *cobra.Command {
	var (
		strategy string
		out      string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Merge the momentum and engulfing tables into one report",
		Long: `Report joins the persisted momentum and engulfing tables.

Strategies:
  ticker  outer join on Ticker only; every ticker from either side is kept
  wide    inner join on Ticker plus the shared fundamental columns`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strategy == "" {
				strategy = a.cfg.Report.Strategy
			}
			st, err := report.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			if out == "" {
				out = a.cfg.Data.Report
			}

			rep, err := buildReport(st)
			if err != nil {
				return err
			}
			if err := rep.Table.SaveFile(out); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}

			runID := uuid.NewString()
			if err := persist(func(ctx context.Context, db *store.DB) error {
				return db.SaveReport(ctx, store.Run{
					ID:        runID,
					Kind:      store.KindReport,
					CreatedAt: time.Now(),
					Succeeded: rep.Table.Len(),
				}, rep.Full)
			}); err != nil {
				return err
			}

			a.log.Info("report merged",
				zap.String("strategy", string(st)),
				zap.Int("rows", rep.Table.Len()),
				zap.String("run_id", runID))

			if format == "json" {
				return outputJSON(rep.Rows)
			}
			printReport(rep)
			fmt.Printf("\n%d tickers (%s strategy) written to %s\n", rep.Table.Len(), st, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "merge strategy: ticker, wide (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "report CSV path (default from config)")
	return cmd
}

// buildReport merges the momentum and engulfing CSVs with the optional reference table
func buildReport(st report.Strategy) (*report.Report, error) {
	momentum, err := table.LoadFile(a.cfg.Data.Momentum)
	if err != nil {
		return nil, fmt.Errorf("reading momentum table: %w", err)
	}
	engulfing, err := table.LoadFile(a.cfg.Data.Engulfing)
	if err != nil {
		return nil, fmt.Errorf("reading engulfing table: %w", err)
	}
	ref, err := a.loadReference()
	if err != nil {
		return nil, err
	}

	rep, err := report.Merge(momentum, engulfing, ref, st)
	if err != nil {
		return nil, fmt.Errorf("merging tables: %w", err)
	}
	return rep, nil
}
