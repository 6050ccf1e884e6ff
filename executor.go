package syncpipe

import (
	"context"
	"errors"
	"time"

	"github.com/zoobzio/clockz"
)

const defaultAttempts = 3

// RetryHook observes a failed attempt that will be retried after delay.
type RetryHook func(attempt int, delay time.Duration, err error)

// ExecutorConfig defines how the Executor retries sink calls.
type ExecutorConfig struct {
	Attempts  int
	Backoff   Backoff
	Clock     clockz.Clock
	Logger    Logger
	Metrics   Metrics
	RetryHook RetryHook
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.Attempts <= 0 {
		c.Attempts = defaultAttempts
	}
	if c.Backoff == (Backoff{}) {
		c.Backoff = DefaultBackoff()
	}
	if c.Clock == nil {
		c.Clock = clockz.RealClock
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}

	return c
}

// ExecutorOption configures Executor behavior.
type ExecutorOption func(*ExecutorConfig)

// WithAttempts sets the total number of sink calls per Attempt, including the first.
func WithAttempts(attempts int) ExecutorOption {
	return func(c *ExecutorConfig) {
		c.Attempts = attempts
	}
}

// WithBackoff sets the delay policy between attempts.
func WithBackoff(backoff Backoff) ExecutorOption {
	return func(c *ExecutorConfig) {
		c.Backoff = backoff
	}
}

// WithExecutorClock sets the clock used for backoff waits.
func WithExecutorClock(clock clockz.Clock) ExecutorOption {
	return func(c *ExecutorConfig) {
		c.Clock = clock
	}
}

// WithExecutorLogger sets the executor logger.
func WithExecutorLogger(logger Logger) ExecutorOption {
	return func(c *ExecutorConfig) {
		c.Logger = logger
	}
}

// WithExecutorMetrics sets the executor metrics recorder.
func WithExecutorMetrics(metrics Metrics) ExecutorOption {
	return func(c *ExecutorConfig) {
		c.Metrics = metrics
	}
}

// WithRetryHook registers a callback invoked before each backoff wait.
func WithRetryHook(hook RetryHook) ExecutorOption {
	return func(c *ExecutorConfig) {
		c.RetryHook = hook
	}
}

// Executor delivers one payload to a Sink with bounded, blocking retries.
type Executor struct {
	sink Sink
	cfg  ExecutorConfig
}

// NewExecutor constructs an Executor with defaults and optional settings.
func NewExecutor(sink Sink, opts ...ExecutorOption) *Executor {
	if sink == nil {
		panic("syncpipe: nil Sink")
	}

	var cfg ExecutorConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Executor{sink: sink, cfg: cfg.withDefaults()}
}

// Attempt appends payload to the sink, retrying failures with backoff.
// It returns nil on success or a *SyncError wrapping the last failure. Nothing is persisted.
// A KindPayload failure ends the retries early: the sink would reject the same payload again.
func (e *Executor) Attempt(ctx context.Context, payload Payload) error {
	var lastErr error
	attempt := 0
	for attempt < e.cfg.Attempts {
		attempt++

		err := e.sink.Append(ctx, payload)
		if err == nil {
			e.cfg.Metrics.AddSynced(1)
			if attempt > 1 {
				e.cfg.Logger.Info("syncpipe sync succeeded after retry", "id", payload.ID, "attempt", attempt)
			}

			return nil
		}
		e.cfg.Metrics.AddSyncErrors(1)
		lastErr = err

		if ctx.Err() != nil {
			return e.wrap(KindOf(err), attempt, errors.Join(err, ctx.Err()))
		}
		if KindOf(err) == KindPayload || attempt == e.cfg.Attempts {
			break
		}

		delay := e.cfg.Backoff.Delay(attempt)
		e.cfg.Logger.Warn("syncpipe sync attempt failed", "id", payload.ID, "attempt", attempt, "retry_in", delay, "err", err)
		if e.cfg.RetryHook != nil {
			e.cfg.RetryHook(attempt, delay, err)
		}
		e.cfg.Metrics.AddRetries(1)
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return e.wrap(KindOf(err), attempt, errors.Join(err, sleepErr))
		}
	}

	return e.wrap(KindOf(lastErr), attempt, lastErr)
}

func (e *Executor) wrap(kind Kind, attempts int, err error) error {
	if syncErr, ok := err.(*SyncError); ok { //nolint:errorlint // only a sink-returned SyncError is flattened.
		err = syncErr.Err
	}

	return &SyncError{Kind: kind, Attempts: attempts, Err: err}
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := e.cfg.Clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}
