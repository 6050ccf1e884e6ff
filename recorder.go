package syncpipe

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
)

const drainReasonSyncFailed = "sync_failed"

// RecorderConfig defines Recorder dependencies.
type RecorderConfig struct {
	Clock   clockz.Clock
	Logger  Logger
	Metrics Metrics
	NewID   func() (uuid.UUID, error)
}

func (c RecorderConfig) withDefaults() RecorderConfig {
	if c.Clock == nil {
		c.Clock = clockz.RealClock
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
	if c.NewID == nil {
		c.NewID = uuid.NewV7
	}

	return c
}

// RecorderOption configures Recorder behavior.
type RecorderOption func(*RecorderConfig)

// WithRecorderClock sets the clock used for LastAttemptAt.
func WithRecorderClock(clock clockz.Clock) RecorderOption {
	return func(c *RecorderConfig) {
		c.Clock = clock
	}
}

// WithRecorderLogger sets the recorder logger.
func WithRecorderLogger(logger Logger) RecorderOption {
	return func(c *RecorderConfig) {
		c.Logger = logger
	}
}

// WithRecorderMetrics sets the recorder metrics recorder.
func WithRecorderMetrics(metrics Metrics) RecorderOption {
	return func(c *RecorderConfig) {
		c.Metrics = metrics
	}
}

// WithIDGenerator overrides UUID v7 generation.
func WithIDGenerator(gen func() (uuid.UUID, error)) RecorderOption {
	return func(c *RecorderConfig) {
		c.NewID = gen
	}
}

// Recorder turns an exhausted sync into a durable SyncFailure and schedules a drain.
type Recorder struct {
	store   Store
	trigger Trigger
	cfg     RecorderConfig
}

// NewRecorder constructs a Recorder. A nil trigger disables drain scheduling.
func NewRecorder(store Store, trigger Trigger, opts ...RecorderOption) *Recorder {
	if store == nil {
		panic("syncpipe: nil Store")
	}

	var cfg RecorderConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Recorder{store: store, trigger: trigger, cfg: cfg.withDefaults()}
}

// Record persists a pending SyncFailure for sourceRequestID and requests a drain.
// Errors wrap ErrRecordFailed and mean the payload may be lost.
func (r *Recorder) Record(ctx context.Context, sourceRequestID string, syncErr error, payload Payload) (uuid.UUID, error) {
	if sourceRequestID == "" {
		return uuid.UUID{}, fmt.Errorf("%w: %w", ErrRecordFailed, ErrSourceRequired)
	}

	data, err := encodeEnvelope(payload)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: %w", ErrRecordFailed, err)
	}

	id, err := r.cfg.NewID()
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: generate id: %w", ErrRecordFailed, err)
	}

	now := r.cfg.Clock.Now().UTC()
	failure := SyncFailure{
		ID:              id,
		SourceRequestID: sourceRequestID,
		LastAttemptAt:   now,
		ErrorMessage:    TruncateError(syncErr),
		RequestData:     data,
		Status:          StatusPending,
		CreatedAt:       now,
	}
	if err := r.store.Insert(ctx, failure); err != nil {
		r.cfg.Logger.Error("syncpipe record failure failed", "source_request_id", sourceRequestID, "err", err)

		return uuid.UUID{}, fmt.Errorf("%w: %w", ErrRecordFailed, err)
	}
	r.cfg.Metrics.AddRecorded(1)
	r.cfg.Logger.Warn("syncpipe sync failure recorded", "id", id, "source_request_id", sourceRequestID, "err", syncErr)

	r.schedule(ctx, DrainRequest{SourceRequestID: sourceRequestID, Reason: drainReasonSyncFailed, RequestedAt: now})

	return id, nil
}

func (r *Recorder) schedule(ctx context.Context, req DrainRequest) {
	if r.trigger == nil {
		return
	}
	if err := r.trigger.RequestDrain(ctx, req); err != nil {
		r.cfg.Logger.Warn("syncpipe drain request failed", "source_request_id", req.SourceRequestID, "err", err)
	}
}
