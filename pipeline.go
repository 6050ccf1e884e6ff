package syncpipe

import (
	"context"
	"fmt"
)

// Pipeline wires the Executor, Recorder and Drainer for a request handler.
type Pipeline struct {
	executor *Executor
	recorder *Recorder
	drainer  *Drainer
}

// NewPipeline constructs a Pipeline from its parts.
func NewPipeline(executor *Executor, recorder *Recorder, drainer *Drainer) *Pipeline {
	if executor == nil || recorder == nil || drainer == nil {
		panic("syncpipe: nil pipeline component")
	}

	return &Pipeline{executor: executor, recorder: recorder, drainer: drainer}
}

// AttemptSyncWithRetry delivers payload inline, retrying with backoff.
func (p *Pipeline) AttemptSyncWithRetry(ctx context.Context, payload Payload) error {
	return p.executor.Attempt(ctx, payload)
}

// RecordFailureAndScheduleDrain persists the failed payload and requests an asynchronous drain.
func (p *Pipeline) RecordFailureAndScheduleDrain(ctx context.Context, sourceRequestID string, syncErr error, payload Payload) error {
	_, err := p.recorder.Record(ctx, sourceRequestID, syncErr, payload)

	return err
}

// DrainBacklog runs one drain pass over every pending failure.
func (p *Pipeline) DrainBacklog(ctx context.Context) (DrainResult, error) {
	return p.drainer.Drain(ctx)
}

// Sync is called after the domain record identified by sourceRequestID has committed.
// A sync failure that was recorded durably is not an error for the caller; the returned
// error means the failure could not be recorded and the payload may be lost.
func (p *Pipeline) Sync(ctx context.Context, sourceRequestID string, payload Payload) error {
	syncErr := p.executor.Attempt(ctx, payload)
	if syncErr == nil {
		return nil
	}

	if err := p.RecordFailureAndScheduleDrain(context.WithoutCancel(ctx), sourceRequestID, syncErr, payload); err != nil {
		return fmt.Errorf("syncpipe sync %s: %w", sourceRequestID, err)
	}

	return nil
}
