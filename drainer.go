package syncpipe

import (
	"context"
	"errors"
	"fmt"

	"github.com/zoobzio/clockz"
)

const defaultMaxAttempts = 20

// FailureHandler is called when a drain attempt for a record fails.
type FailureHandler func(ctx context.Context, failure SyncFailure, err error)

// DrainResult summarizes a drain pass.
type DrainResult struct {
	// Scanned is the number of pending records read at the start of the pass.
	Scanned int
	// Synced records were delivered and deleted.
	Synced int
	// Failed records stay pending with an incremented attempt counter.
	Failed int
	// Dead records reached the attempt limit during this pass.
	Dead int
	// Skipped records were leased by another pass or vanished before processing.
	Skipped int
}

// DrainerConfig defines how the Drainer treats failed attempts.
type DrainerConfig struct {
	// MaxAttempts dead-letters a record once its drain attempts reach this value.
	MaxAttempts  int
	Clock        clockz.Clock
	Logger       Logger
	Metrics      Metrics
	ErrorHandler FailureHandler
}

func (c DrainerConfig) withDefaults() DrainerConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
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

// DrainerOption configures Drainer behavior.
type DrainerOption func(*DrainerConfig)

// WithMaxAttempts sets the drain attempt limit before a record is dead-lettered.
func WithMaxAttempts(attempts int) DrainerOption {
	return func(c *DrainerConfig) {
		c.MaxAttempts = attempts
	}
}

// WithDrainerClock sets the clock used for LastAttemptAt.
func WithDrainerClock(clock clockz.Clock) DrainerOption {
	return func(c *DrainerConfig) {
		c.Clock = clock
	}
}

// WithDrainerLogger sets the drainer logger.
func WithDrainerLogger(logger Logger) DrainerOption {
	return func(c *DrainerConfig) {
		c.Logger = logger
	}
}

// WithDrainerMetrics sets the drainer metrics recorder.
func WithDrainerMetrics(metrics Metrics) DrainerOption {
	return func(c *DrainerConfig) {
		c.Metrics = metrics
	}
}

// WithErrorHandler registers a callback for failed drain attempts.
func WithErrorHandler(handler FailureHandler) DrainerOption {
	return func(c *DrainerConfig) {
		c.ErrorHandler = handler
	}
}

// Drainer re-sends every pending SyncFailure once per pass.
type Drainer struct {
	store Store
	sink  Sink
	cfg   DrainerConfig
}

// NewDrainer constructs a Drainer with defaults and optional settings.
func NewDrainer(store Store, sink Sink, opts ...DrainerOption) *Drainer {
	if store == nil {
		panic("syncpipe: nil Store")
	}
	if sink == nil {
		panic("syncpipe: nil Sink")
	}

	var cfg DrainerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Drainer{store: store, sink: sink, cfg: cfg.withDefaults()}
}

// Drain processes the backlog as it exists when the pass starts.
// Per-record failures are recorded and never abort the pass; only listing errors and
// context cancellation are returned.
func (d *Drainer) Drain(ctx context.Context) (DrainResult, error) {
	start := d.cfg.Clock.Now()
	defer func() {
		d.cfg.Metrics.ObserveDrainDuration(d.cfg.Clock.Since(start))
	}()

	var result DrainResult
	failures, err := d.store.List(ctx)
	if err != nil {
		return result, fmt.Errorf("syncpipe drain list failed: %w", err)
	}
	result.Scanned = len(failures)

	for i := range failures {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		d.drainOne(ctx, failures[i], &result)
	}

	d.cfg.Metrics.AddDrained(result.Synced)
	d.cfg.Metrics.AddDead(result.Dead)
	d.updateBacklog(ctx)

	if result.Scanned > 0 {
		d.cfg.Logger.Info("syncpipe drain pass done",
			"scanned", result.Scanned,
			"synced", result.Synced,
			"failed", result.Failed,
			"dead", result.Dead,
			"skipped", result.Skipped,
		)
	}

	return result, nil
}

func (d *Drainer) drainOne(ctx context.Context, failure SyncFailure, result *DrainResult) {
	if leaser, ok := d.store.(Leaser); ok {
		release, acquired, err := leaser.Lease(ctx, failure.ID)
		if err != nil {
			d.cfg.Logger.Warn("syncpipe drain lease failed", "id", failure.ID, "err", err)
			result.Skipped++

			return
		}
		if !acquired {
			d.cfg.Logger.Debug("syncpipe drain record leased elsewhere", "id", failure.ID)
			result.Skipped++

			return
		}
		defer release()

		// Another pass may have finished this record between List and Lease.
		current, err := d.store.Get(ctx, failure.ID)
		if err != nil || current.Status != StatusPending {
			if err != nil && !errors.Is(err, ErrNotFound) {
				d.cfg.Logger.Warn("syncpipe drain reload failed", "id", failure.ID, "err", err)
			}
			result.Skipped++

			return
		}
		failure = current
	}

	syncErr := d.deliver(ctx, failure)
	if syncErr == nil {
		d.complete(ctx, failure, result)

		return
	}
	if ctx.Err() != nil {
		result.Skipped++

		return
	}
	d.cfg.Metrics.AddSyncErrors(1)
	if d.cfg.ErrorHandler != nil {
		d.cfg.ErrorHandler(ctx, failure, syncErr)
	}

	attempts := failure.SyncAttempts + 1
	dead := attempts >= d.cfg.MaxAttempts
	err := d.store.MarkFailed(ctx, FailedAttempt{
		ID:    failure.ID,
		At:    d.cfg.Clock.Now().UTC(),
		Error: TruncateError(syncErr),
		Dead:  dead,
	})
	switch {
	case errors.Is(err, ErrNotFound):
		result.Skipped++
	case err != nil:
		d.cfg.Logger.Error("syncpipe drain update failed", "id", failure.ID, "err", err)
		result.Failed++
	case dead:
		d.cfg.Logger.Error("syncpipe sync failure dead-lettered",
			"id", failure.ID,
			"source_request_id", failure.SourceRequestID,
			"attempts", attempts,
			"err", syncErr,
		)
		result.Dead++
	default:
		d.cfg.Logger.Warn("syncpipe drain attempt failed",
			"id", failure.ID,
			"source_request_id", failure.SourceRequestID,
			"attempts", attempts,
			"err", syncErr,
		)
		result.Failed++
	}
}

func (d *Drainer) deliver(ctx context.Context, failure SyncFailure) error {
	payload, err := DecodePayload(failure.RequestData)
	if err != nil {
		return NewSyncError(KindPayload, err)
	}

	return d.sink.Append(ctx, payload)
}

func (d *Drainer) complete(ctx context.Context, failure SyncFailure, result *DrainResult) {
	err := d.store.Delete(ctx, failure.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		// The row stays and will be appended again on a later pass.
		d.cfg.Logger.Error("syncpipe drain delete failed", "id", failure.ID, "err", err)
		result.Failed++

		return
	}
	d.cfg.Logger.Debug("syncpipe sync failure drained", "id", failure.ID, "source_request_id", failure.SourceRequestID)
	result.Synced++
}

func (d *Drainer) updateBacklog(ctx context.Context) {
	counter, ok := d.store.(BacklogCounter)
	if !ok || ctx.Err() != nil {
		return
	}

	count, err := counter.PendingCount(ctx)
	if err != nil {
		d.cfg.Logger.Warn("syncpipe backlog count failed", "err", err)

		return
	}
	d.cfg.Metrics.SetBacklog(count)
}
