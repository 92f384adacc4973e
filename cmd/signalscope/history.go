package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"signalscope/internal/report"
	"signalscope/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var (
		kind string
		topN int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the latest stored run of a kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch kind {
			case store.KindMomentum, store.KindEngulfing, store.KindReport:
			default:
				return fmt.Errorf("unknown run kind %q", kind)
			}
			db, err := a.openDB()
			if err != nil {
				return err
			}
			if db == nil {
				return errors.New("no database configured (data.database is empty)")
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			run, err := db.LatestRun(ctx, kind)
			if errors.Is(err, store.ErrRunNotFound) {
				fmt.Printf("No %s runs stored yet\n", kind)
				return nil
			}
			if err != nil {
				return err
			}
			if format != "json" {
				fmt.Printf("Run %s (%s) at %s: %d tickers, %d succeeded, %d skipped, %d failed\n\n",
					run.ID, run.Kind, run.CreatedAt.Format("2006-01-02 15:04:05"),
					run.Tickers, run.Succeeded, run.Skipped, run.Failed)
			}

			switch kind {
			case store.KindMomentum:
				summaries, err := db.LoadMomentum(ctx, run.ID)
				if err != nil {
					return err
				}
				if format == "json" {
					return outputJSON(map[string]any{"run": run, "summaries": summaries})
				}
				printMomentumStats(report.ComputeMomentumStats(summaries, topN))
			case store.KindEngulfing:
				summaries, err := db.LoadEngulfing(ctx, run.ID)
				if err != nil {
					return err
				}
				if format == "json" {
					return outputJSON(map[string]any{"run": run, "summaries": summaries})
				}
				printEngulfingStats(report.ComputeEngulfingStats(summaries, topN))
			case store.KindReport:
				t, err := db.LoadReport(ctx, run.ID)
				if err != nil {
					return err
				}
				if format == "json" {
					return outputJSON(map[string]any{"run": run, "columns": t.Columns, "rows": t.Rows})
				}
				printReport(&report.Report{Table: t})
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", store.KindMomentum, "run kind: momentum, engulfing, report")
	cmd.Flags().IntVar(&topN, "top", 10, "number of tickers to list per section")
	return cmd
}
