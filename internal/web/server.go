package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"signalscope/internal/analyzer"
	"signalscope/internal/provider"
	"signalscope/internal/report"
	"signalscope/pkg/model"
)

// Data is everything the dashboard API serves. It is loaded once by the caller.
type Data struct {
	Candles []model.TickerCandle
	Report  *report.Report // may be nil when no report has been built yet
}

// Server represents the dashboard API server
type Server struct {
	data     Data
	tickers  []string
	engine   *analyzer.MomentumEngine
	detector *analyzer.EngulfingDetector
	provider provider.Provider // optional live source for tickers missing from Data
	logger   *zap.Logger
	now      func() time.Time
	srv      *http.Server
}

// NewServer creates a new dashboard server. p may be nil; when set it is wrapped in a
// caching provider and used for chart requests on tickers the candle table lacks.
func NewServer(data Data, engine *analyzer.MomentumEngine, detector *analyzer.EngulfingDetector, p provider.Provider, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p != nil {
		p = provider.NewCachingProvider(p, 15*time.Minute)
	}
	return &Server{
		data:     data,
		tickers:  analyzer.NewCandleIndex(data.Candles).Tickers(),
		engine:   engine,
		detector: detector,
		provider: p,
		logger:   logger,
		now:      time.Now,
	}
}

// Handler returns the API routes wrapped in the CORS middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/report", s.handleReport)
	mux.HandleFunc("/api/chart/", s.handleChart)
	mux.HandleFunc("/api/tickers", s.handleTickers)
	return corsMiddleware(mux)
}

// Start starts the web server on the specified port
func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("dashboard API listening",
		zap.String("url", fmt.Sprintf("http://localhost:%d", port)),
		zap.Int("tickers", len(s.tickers)))

	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers for local development
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
