package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"signalscope/internal/analyzer"
	"signalscope/pkg/model"
)

// Status is the outcome of one ticker in a batch
type Status string

const (
	StatusOK           Status = "ok"
	StatusNoData       Status = "no_data"
	StatusInsufficient Status = "insufficient_data"
	StatusFailed       Status = "failed"
	StatusCanceled     Status = "canceled"
)

// Outcome records what happened to one ticker
type Outcome struct {
	Ticker string
	Status Status
	Err    error
}

// Skipped reports whether the ticker produced no result
func (o Outcome) Skipped() bool { return o.Status != StatusOK }

// Batch is the collected output of a run. Results and Outcomes follow the input ticker order.
type Batch[S any] struct {
	RunID     string
	Results   []S
	Outcomes  []Outcome
	Succeeded int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// ProgressCallback is called with progress updates
type ProgressCallback func(scanned, total int)

// Source yields the prepared series of a ticker
type Source interface {
	Series(ticker string) (model.TickerSeries, bool)
}

// AnalyzeFunc turns one prepared series into a result
type AnalyzeFunc[S any] func(ctx context.Context, series model.TickerSeries) (S, error)

// TaskFunc produces a result for one ticker
type TaskFunc[S any] func(ctx context.Context, ticker string) (S, error)

// Scanner runs per-ticker work over a bounded worker pool
type Scanner struct {
	workers      int
	timeout      time.Duration
	logger       *zap.Logger
	progressFunc ProgressCallback
}

// NewScanner creates a new scanner. A nil logger discards output.
func NewScanner(workers int, timeout time.Duration, logger *zap.Logger) *Scanner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		workers: workers,
		timeout: timeout,
		logger:  logger,
	}
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(fn ProgressCallback) {
	s.progressFunc = fn
}

// Run prepares each ticker's series from source and applies fn to it.
// Tickers without data are skipped with StatusNoData.
func Run[S any](ctx context.Context, s *Scanner, tickers []string, source Source, fn AnalyzeFunc[S]) *Batch[S] {
	return Map(ctx, s, tickers, func(ctx context.Context, ticker string) (S, error) {
		series, ok := source.Series(ticker)
		if !ok {
			var zero S
			return zero, analyzer.ErrNoData
		}
		return fn(ctx, series)
	})
}

type slot[S any] struct {
	result  S
	outcome Outcome
}

// Map applies fn to every ticker exactly once and collects the results in ticker order
func Map[S any](ctx context.Context, s *Scanner, tickers []string, fn TaskFunc[S]) *Batch[S] {
	startTime := time.Now()
	batch := &Batch[S]{RunID: uuid.NewString()}

	if len(tickers) == 0 {
		batch.Results = []S{}
		return batch
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// One slot per input position, so no result ordering depends on worker timing
	slots := make([]slot[S], len(tickers))

	jobChan := make(chan int, len(tickers))
	for i := range tickers {
		jobChan <- i
	}
	close(jobChan)

	var scannedCount int64

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobChan {
				ticker := tickers[i]
				if err := ctx.Err(); err != nil {
					slots[i].outcome = Outcome{Ticker: ticker, Status: StatusCanceled, Err: err}
				} else {
					slots[i] = runOne(ctx, ticker, fn)
				}

				count := atomic.AddInt64(&scannedCount, 1)
				if s.progressFunc != nil {
					s.progressFunc(int(count), len(tickers))
				}
			}
		}()
	}
	wg.Wait()

	batch.Results = make([]S, 0, len(tickers))
	batch.Outcomes = make([]Outcome, len(tickers))
	for i, sl := range slots {
		batch.Outcomes[i] = sl.outcome
		switch sl.outcome.Status {
		case StatusOK:
			batch.Succeeded++
			batch.Results = append(batch.Results, sl.result)
		case StatusFailed, StatusCanceled:
			batch.Failed++
			s.logger.Error("ticker failed",
				zap.String("run_id", batch.RunID),
				zap.String("ticker", sl.outcome.Ticker),
				zap.String("status", string(sl.outcome.Status)),
				zap.Error(sl.outcome.Err))
		default:
			batch.Skipped++
			s.logger.Warn("ticker skipped",
				zap.String("run_id", batch.RunID),
				zap.String("ticker", sl.outcome.Ticker),
				zap.String("status", string(sl.outcome.Status)),
				zap.Error(sl.outcome.Err))
		}
	}
	batch.Duration = time.Since(startTime)

	s.logger.Info("batch complete",
		zap.String("run_id", batch.RunID),
		zap.Int("tickers", len(tickers)),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("skipped", batch.Skipped),
		zap.Int("failed", batch.Failed),
		zap.Duration("duration", batch.Duration))

	return batch
}

func runOne[S any](ctx context.Context, ticker string, fn TaskFunc[S]) (sl slot[S]) {
	defer func() {
		if r := recover(); r != nil {
			var zero S
			sl = slot[S]{
				result:  zero,
				outcome: Outcome{Ticker: ticker, Status: StatusFailed, Err: fmt.Errorf("panic: %v", r)},
			}
		}
	}()

	result, err := fn(ctx, ticker)
	return slot[S]{result: result, outcome: Outcome{Ticker: ticker, Status: statusOf(err), Err: err}}
}

func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, analyzer.ErrNoData):
		return StatusNoData
	case errors.Is(err, analyzer.ErrInsufficientData):
		return StatusInsufficient
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	default:
		return StatusFailed
	}
}

// Failures returns the outcomes that did not succeed
func (b *Batch[S]) Failures() []Outcome {
	var out []Outcome
	for _, o := range b.Outcomes {
		if o.Skipped() {
			out = append(out, o)
		}
	}
	return out
}
