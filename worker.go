package syncpipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoobzio/clockz"
)

// BacklogDrainer runs one drain pass. *Drainer implements it.
type BacklogDrainer interface {
	// Drain processes the current backlog once.
	Drain(ctx context.Context) (DrainResult, error)
}

// WorkerConfig defines when the Worker drains.
type WorkerConfig struct {
	// Interval adds periodic passes on top of queued requests. Zero disables them.
	Interval time.Duration
	// PassTimeout bounds a single pass. Zero means no bound.
	PassTimeout time.Duration
	Clock       clockz.Clock
	Logger      Logger
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Clock == nil {
		c.Clock = clockz.RealClock
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}

	return c
}

// WorkerOption configures Worker behavior.
type WorkerOption func(*WorkerConfig)

// WithInterval enables periodic drain passes.
func WithInterval(interval time.Duration) WorkerOption {
	return func(c *WorkerConfig) {
		c.Interval = interval
	}
}

// WithPassTimeout bounds each drain pass.
func WithPassTimeout(timeout time.Duration) WorkerOption {
	return func(c *WorkerConfig) {
		c.PassTimeout = timeout
	}
}

// WithWorkerClock sets the clock driving periodic passes.
func WithWorkerClock(clock clockz.Clock) WorkerOption {
	return func(c *WorkerConfig) {
		c.Clock = clock
	}
}

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(logger Logger) WorkerOption {
	return func(c *WorkerConfig) {
		c.Logger = logger
	}
}

// Worker consumes drain requests from a Queue and runs the drainer off the request path.
type Worker struct {
	drainer BacklogDrainer
	queue   *Queue
	cfg     WorkerConfig
}

// NewWorker constructs a Worker. A nil queue leaves only periodic passes.
func NewWorker(drainer BacklogDrainer, queue *Queue, opts ...WorkerOption) *Worker {
	if drainer == nil {
		panic("syncpipe: nil BacklogDrainer")
	}

	var cfg WorkerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{drainer: drainer, queue: queue, cfg: cfg.withDefaults()}
}

// Run drains on every request (and tick) until ctx is canceled.
// A drain panic stops the worker with ErrWorkerPanic.
func (w *Worker) Run(ctx context.Context) error {
	var requests <-chan DrainRequest
	if w.queue != nil {
		requests = w.queue.C()
	}

	var tick <-chan time.Time
	if w.cfg.Interval > 0 {
		ticker := w.cfg.Clock.NewTicker(w.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-requests:
			w.cfg.Logger.Debug("syncpipe drain requested", "source_request_id", req.SourceRequestID, "reason", req.Reason)
			if err := w.RunOnce(ctx); err != nil {
				return err
			}
		case <-tick:
			if err := w.RunOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// RunOnce executes a single pass. Drain errors are logged; only panics and cancellation are returned.
func (w *Worker) RunOnce(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			w.cfg.Logger.Error("syncpipe worker panic", "panic", rec)
			err = fmt.Errorf("%w: %v", ErrWorkerPanic, rec)
		}
	}()

	passCtx := ctx
	cancel := func() {}
	if w.cfg.PassTimeout > 0 {
		passCtx, cancel = context.WithTimeout(ctx, w.cfg.PassTimeout)
	}
	defer cancel()

	if _, drainErr := w.drainer.Drain(passCtx); drainErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(drainErr, context.DeadlineExceeded) {
			w.cfg.Logger.Error("syncpipe drain failed", "err", drainErr)
		} else {
			w.cfg.Logger.Warn("syncpipe drain pass timed out", "timeout", w.cfg.PassTimeout)
		}
	}

	return nil
}
