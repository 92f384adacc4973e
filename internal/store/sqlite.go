package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"signalscope/internal/table"
	"signalscope/pkg/model"
)

// ErrRunNotFound is returned when no stored run matches
var ErrRunNotFound = errors.New("run not found")

// Run kinds
const (
	KindMomentum  = "momentum"
	KindEngulfing = "engulfing"
	KindReport    = "report"
)

// Run describes one stored batch
type Run struct {
	ID        string
	Kind      string
	CreatedAt time.Time
	Tickers   int
	Succeeded int
	Skipped   int
	Failed    int
}

// DB persists batch results in SQLite, keyed by run id
type DB struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" opens a private in-memory database.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; also keeps :memory: on one connection
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &DB{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection
func (s *DB) Close() error {
	return s.db.Close()
}

func (s *DB) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			created_at  INTEGER NOT NULL,
			tickers     INTEGER NOT NULL DEFAULT 0,
			succeeded   INTEGER NOT NULL DEFAULT 0,
			skipped     INTEGER NOT NULL DEFAULT 0,
			failed      INTEGER NOT NULL DEFAULT 0,
			columns     TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS momentum_summaries (
			run_id                  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			ticker                  TEXT NOT NULL,
			latest_date             INTEGER NOT NULL,
			latest_close            REAL,
			rsi                     REAL,
			momentum                REAL,
			momentum_strength_pct   REAL,
			sma_20                  REAL,
			sma_50                  REAL,
			current_trend           TEXT NOT NULL,
			signal_strength         TEXT NOT NULL,
			bullish_days            INTEGER NOT NULL,
			bearish_days            INTEGER NOT NULL,
			strong_bullish_days     INTEGER NOT NULL,
			strong_bearish_days     INTEGER NOT NULL,
			PRIMARY KEY (run_id, ticker)
		)`,
		`CREATE TABLE IF NOT EXISTS engulfing_summaries (
			run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			ticker          TEXT NOT NULL,
			latest_signal   INTEGER NOT NULL,
			latest_date     INTEGER NOT NULL,
			bearish_count   INTEGER NOT NULL,
			bullish_count   INTEGER NOT NULL,
			latest_close    REAL,
			PRIMARY KEY (run_id, ticker)
		)`,
		`CREATE TABLE IF NOT EXISTS report_rows (
			run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position    INTEGER NOT NULL,
			ticker      TEXT,
			cells       TEXT NOT NULL,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_kind_created ON runs(kind, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func nullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: !math.IsNaN(f) && !math.IsInf(f, 0)}
}

func floatOrNaN(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}

func insertRun(ctx context.Context, tx *sql.Tx, run Run, columns []string) error {
	cols, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("failed to encode columns: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, kind, created_at, tickers, succeeded, skipped, failed, columns)
		VALUES (?,?,?,?,?,?,?,?)`,
		run.ID, run.Kind, run.CreatedAt.UnixNano(),
		run.Tickers, run.Succeeded, run.Skipped, run.Failed, string(cols),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// SaveMomentum stores a momentum batch
func (s *DB) SaveMomentum(ctx context.Context, run Run, summaries []*model.MomentumSummary) error {
	run.Kind = KindMomentum
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertRun(ctx, tx, run, nil); err != nil {
		return err
	}
	for _, m := range summaries {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO momentum_summaries
				(run_id, ticker, latest_date, latest_close, rsi, momentum, momentum_strength_pct,
				 sma_20, sma_50, current_trend, signal_strength,
				 bullish_days, bearish_days, strong_bullish_days, strong_bearish_days)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			run.ID, m.Ticker, m.LatestDate.Unix(), nullFloat(m.LatestClose),
			nullFloat(m.RSI), nullFloat(m.Momentum), nullFloat(m.MomentumStrengthPct),
			nullFloat(m.SMA20), nullFloat(m.SMA50), string(m.Trend), string(m.Strength),
			m.BullishDays, m.BearishDays, m.StrongBullishDays, m.StrongBearishDays,
		)
		if err != nil {
			return fmt.Errorf("failed to insert momentum summary for %s: %w", m.Ticker, err)
		}
	}
	return tx.Commit()
}

// SaveEngulfing stores an engulfing batch
func (s *DB) SaveEngulfing(ctx context.Context, run Run, summaries []*model.EngulfingSummary) error {
	run.Kind = KindEngulfing
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertRun(ctx, tx, run, nil); err != nil {
		return err
	}
	for _, e := range summaries {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO engulfing_summaries
				(run_id, ticker, latest_signal, latest_date, bearish_count, bullish_count, latest_close)
			VALUES (?,?,?,?,?,?,?)`,
			run.ID, e.Ticker, int(e.LatestSignal), e.LatestDate.Unix(),
			e.BearishCount, e.BullishCount, nullFloat(e.LatestClose),
		)
		if err != nil {
			return fmt.Errorf("failed to insert engulfing summary for %s: %w", e.Ticker, err)
		}
	}
	return tx.Commit()
}

// SaveReport stores the merged report table, keeping its row and column order
func (s *DB) SaveReport(ctx context.Context, run Run, t *table.Table) error {
	run.Kind = KindReport
	run.Tickers = t.Len()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertRun(ctx, tx, run, t.Columns); err != nil {
		return err
	}
	for i, r := range t.Rows {
		cells, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode report row: %w", err)
		}
		var ticker sql.NullString
		if v, ok := r.Get("Ticker"); ok {
			ticker = sql.NullString{String: v, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO report_rows (run_id, position, ticker, cells)
			VALUES (?,?,?,?)`,
			run.ID, i, ticker, string(cells),
		); err != nil {
			return fmt.Errorf("failed to insert report row: %w", err)
		}
	}
	return tx.Commit()
}

// LatestRun returns the most recent run of a kind
func (s *DB) LatestRun(ctx context.Context, kind string) (*Run, error) {
	var run Run
	var created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, created_at, tickers, succeeded, skipped, failed
		FROM runs WHERE kind = ? ORDER BY created_at DESC LIMIT 1`, kind,
	).Scan(&run.ID, &run.Kind, &created, &run.Tickers, &run.Succeeded, &run.Skipped, &run.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	run.CreatedAt = time.Unix(0, created)
	return &run, nil
}

// LoadMomentum returns the momentum summaries of a run, ordered by ticker
func (s *DB) LoadMomentum(ctx context.Context, runID string) ([]*model.MomentumSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, latest_date, latest_close, rsi, momentum, momentum_strength_pct,
		       sma_20, sma_50, current_trend, signal_strength,
		       bullish_days, bearish_days, strong_bullish_days, strong_bearish_days
		FROM momentum_summaries WHERE run_id = ? ORDER BY ticker`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query momentum summaries: %w", err)
	}
	defer rows.Close()

	var out []*model.MomentumSummary
	for rows.Next() {
		var m model.MomentumSummary
		var date int64
		var closePx, rsi, mom, strength, sma20, sma50 sql.NullFloat64
		var trend, sig string
		if err := rows.Scan(&m.Ticker, &date, &closePx, &rsi, &mom, &strength, &sma20, &sma50,
			&trend, &sig, &m.BullishDays, &m.BearishDays, &m.StrongBullishDays, &m.StrongBearishDays); err != nil {
			return nil, fmt.Errorf("failed to scan momentum summary: %w", err)
		}
		m.LatestDate = time.Unix(date, 0).UTC()
		m.LatestClose = floatOrNaN(closePx)
		m.RSI = floatOrNaN(rsi)
		m.Momentum = floatOrNaN(mom)
		m.MomentumStrengthPct = floatOrNaN(strength)
		m.SMA20 = floatOrNaN(sma20)
		m.SMA50 = floatOrNaN(sma50)
		m.Trend = model.Trend(trend)
		m.Strength = model.Strength(sig)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// LoadEngulfing returns the engulfing summaries of a run, ordered by ticker
func (s *DB) LoadEngulfing(ctx context.Context, runID string) ([]*model.EngulfingSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, latest_signal, latest_date, bearish_count, bullish_count, latest_close
		FROM engulfing_summaries WHERE run_id = ? ORDER BY ticker`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query engulfing summaries: %w", err)
	}
	defer rows.Close()

	var out []*model.EngulfingSummary
	for rows.Next() {
		var e model.EngulfingSummary
		var signal int
		var date int64
		var closePx sql.NullFloat64
		if err := rows.Scan(&e.Ticker, &signal, &date, &e.BearishCount, &e.BullishCount, &closePx); err != nil {
			return nil, fmt.Errorf("failed to scan engulfing summary: %w", err)
		}
		e.LatestSignal = model.EngulfingSignal(signal)
		e.LatestDate = time.Unix(date, 0).UTC()
		e.LatestClose = floatOrNaN(closePx)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// LoadReport rebuilds a stored report table
func (s *DB) LoadReport(ctx context.Context, runID string) (*table.Table, error) {
	var cols string
	err := s.db.QueryRowContext(ctx, `SELECT columns FROM runs WHERE id = ? AND kind = ?`, runID, KindReport).Scan(&cols)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	var columns []string
	if err := json.Unmarshal([]byte(cols), &columns); err != nil {
		return nil, fmt.Errorf("failed to decode columns: %w", err)
	}
	t := table.New(columns...)

	rows, err := s.db.QueryContext(ctx, `SELECT cells FROM report_rows WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query report rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cells string
		if err := rows.Scan(&cells); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		row := table.Row{}
		if err := json.Unmarshal([]byte(cells), &row); err != nil {
			return nil, fmt.Errorf("failed to decode report row: %w", err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}
