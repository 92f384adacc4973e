package web

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"signalscope/internal/provider"
	"signalscope/internal/report"
	"signalscope/pkg/model"
)

// DefaultChartDays is the chart window when the request has no days parameter
const DefaultChartDays = 20

// ReportResponse is the merged reporting table
type ReportResponse struct {
	Strategy report.Strategy `json:"strategy"`
	Count    int             `json:"count"`
	Rows     []report.Row    `json:"rows"`
}

// TickersResponse lists the tickers with local candle data
type TickersResponse struct {
	Tickers []string `json:"tickers"`
}

// ChartCandle is a candle with unparseable prices written as null
type ChartCandle struct {
	Time   time.Time `json:"time"`
	Open   *float64  `json:"open"`
	High   *float64  `json:"high"`
	Low    *float64  `json:"low"`
	Close  *float64  `json:"close"`
	Volume int64     `json:"volume"`
}

// ChartResponse holds one ticker's windowed candles with indicators re-derived over exactly
// that window
type ChartResponse struct {
	Ticker     string              `json:"ticker"`
	Days       int                 `json:"days"`
	Source     string              `json:"source"` // "local" or the live provider name
	Candles    []ChartCandle       `json:"candles"`
	Indicators []model.MomentumRow `json:"indicators"`
	Engulfing  []string            `json:"engulfing"`
}

// handleReport returns the merged rows
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.data.Report == nil {
		http.Error(w, "No report loaded", http.StatusNotFound)
		return
	}

	rows := s.data.Report.Rows
	if rows == nil {
		rows = []report.Row{}
	}
	writeJSON(w, s.logger, ReportResponse{
		Strategy: s.data.Report.Strategy,
		Count:    len(rows),
		Rows:     rows,
	})
}

// handleTickers returns the tickers available locally
func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tickers := s.tickers
	if tickers == nil {
		tickers = []string{}
	}
	writeJSON(w, s.logger, TickersResponse{Tickers: tickers})
}

// handleChart returns chart data for /api/chart/{ticker}?days=N
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/chart/")))
	if ticker == "" || strings.Contains(ticker, "/") {
		http.Error(w, "Ticker required", http.StatusBadRequest)
		return
	}

	days := DefaultChartDays
	if d := r.URL.Query().Get("days"); d != "" {
		v, err := strconv.Atoi(d)
		if err != nil || v < 1 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = v
	}

	asOf := s.now()
	rows, source := s.data.Candles, "local"
	series, indicators, ok := s.engine.ChartSeries(rows, ticker, days, asOf)
	if !ok && s.provider != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		live, err := s.fetchLive(ctx, ticker, days, asOf)
		if err != nil && !errors.Is(err, provider.ErrNoCandles) {
			s.logger.Warn("live chart fetch failed", zap.String("ticker", ticker), zap.Error(err))
			http.Error(w, "Failed to get stock data: "+err.Error(), http.StatusBadGateway)
			return
		}
		rows, source = live, s.provider.Name()
		series, indicators, ok = s.engine.ChartSeries(rows, ticker, days, asOf)
	}
	if !ok {
		http.Error(w, "No candles for "+ticker+" in the requested window", http.StatusNotFound)
		return
	}

	signals := s.detector.Detect(series)
	resp := ChartResponse{
		Ticker:     ticker,
		Days:       days,
		Source:     source,
		Candles:    make([]ChartCandle, len(series.Candles)),
		Indicators: indicators,
		Engulfing:  make([]string, len(signals)),
	}
	for i, c := range series.Candles {
		resp.Candles[i] = ChartCandle{
			Time:   c.Time,
			Open:   finite(c.Open),
			High:   finite(c.High),
			Low:    finite(c.Low),
			Close:  finite(c.Close),
			Volume: c.Volume,
		}
	}
	for i, sig := range signals {
		resp.Engulfing[i] = sig.String()
	}

	writeJSON(w, s.logger, resp)
}

func (s *Server) fetchLive(ctx context.Context, ticker string, days int, asOf time.Time) ([]model.TickerCandle, error) {
	candles, err := s.provider.GetDailyCandles(ctx, ticker, asOf.AddDate(0, 0, -days), asOf)
	if err != nil {
		return nil, err
	}
	rows := make([]model.TickerCandle, len(candles))
	for i, c := range candles {
		rows[i] = model.TickerCandle{Ticker: ticker, Candle: c}
	}
	return rows, nil
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
