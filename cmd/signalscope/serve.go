package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"signalscope/internal/analyzer"
	"signalscope/internal/provider"
	"signalscope/internal/report"
	"signalscope/internal/store"
	"signalscope/internal/web"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report and chart data over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == 0 {
				port = a.cfg.Server.Port
			}

			var data web.Data
			candles, err := store.LoadCandles(a.cfg.Data.Candles, a.log)
			switch {
			case err == nil:
				data.Candles = candles
			case errors.Is(err, store.ErrEmptyTable):
				a.log.Warn("no local candles, charts will use live data",
					zap.String("path", a.cfg.Data.Candles))
			default:
				return fmt.Errorf("loading candles: %w", err)
			}

			if exists(a.cfg.Data.Momentum) && exists(a.cfg.Data.Engulfing) {
				st, err := report.ParseStrategy(a.cfg.Report.Strategy)
				if err != nil {
					return err
				}
				rep, err := buildReport(st)
				if err != nil {
					return err
				}
				data.Report = rep
			} else {
				a.log.Warn("momentum or engulfing table missing, /api/report will be empty")
			}

			fallback := provider.NewFallbackProvider(a.createProviders()...)
			srv := web.NewServer(data,
				analyzer.NewMomentumEngine(a.cfg.MomentumSettings()),
				analyzer.NewEngulfingDetector(a.cfg.EngulfingSettings()),
				fallback, a.log)

			ctx, cancel := signalContext()
			defer cancel()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(port)
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutting down server: %w", err)
			}
			a.log.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	return cmd
}
