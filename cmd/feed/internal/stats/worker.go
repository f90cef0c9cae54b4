package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

// HandlerFunc processes one encoded request into one encoded response.
type HandlerFunc func(msg []byte) ([]byte, error)

// Worker runs statistics in its own goroutine. Requests and responses cross the
// boundary as encoded bytes, so the caller and the worker share no memory.
// At most one request is in flight; Submit refuses new work until the
// previous response has been produced.
type Worker struct {
	logger  *zap.Logger
	handle  HandlerFunc
	in      chan []byte
	out     chan []models.StatisticsResult
	busy    atomic.Bool
	crashes atomic.Int64
}

func NewWorker(logger *zap.Logger) *Worker {
	return NewWorkerWithHandler(logger, Handle)
}

// NewWorkerWithHandler swaps the message handler, mainly for tests.
func NewWorkerWithHandler(logger *zap.Logger, h HandlerFunc) *Worker {
	return &Worker{
		logger: logger,
		handle: h,
		in:     make(chan []byte, 1),
		out:    make(chan []models.StatisticsResult, 1),
	}
}

// Submit encodes assets and hands them to the worker without blocking.
// It returns false when a request is already outstanding.
func (w *Worker) Submit(assets []models.Asset) bool {
	if !w.busy.CompareAndSwap(false, true) {
		return false
	}

	msg, err := json.Marshal(NewRequest(assets))
	if err != nil {
		w.logger.Error("Stats request encode failed", zap.Error(err))
		w.busy.Store(false)
		return false
	}

	select {
	case w.in <- msg:
		return true
	default:
		w.busy.Store(false)
		return false
	}
}

// Results delivers decoded responses.
func (w *Worker) Results() <-chan []models.StatisticsResult { return w.out }

// Busy reports whether a request is outstanding.
func (w *Worker) Busy() bool { return w.busy.Load() }

// Crashes counts messages whose handling panicked.
func (w *Worker) Crashes() int64 { return w.crashes.Load() }

// Run processes requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Stats worker started")
	defer w.logger.Info("Stats worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.in:
			results, err := w.process(msg)
			if err != nil {
				w.logger.Error("Worker Calculation Error", zap.Error(err))
				w.busy.Store(false)
				continue
			}

			select {
			case w.out <- results:
			case <-ctx.Done():
				return
			}
			w.busy.Store(false)
		}
	}
}

func (w *Worker) process(msg []byte) (results []models.StatisticsResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.crashes.Add(1)
			err = fmt.Errorf("stats handler panic: %v", r)
		}
	}()

	resp, err := w.handle(msg)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(resp, &results); err != nil {
		return nil, fmt.Errorf("decode stats response: %w", err)
	}
	return results, nil
}
