package syncpipe

import (
	"context"
	"time"
)

// DrainRequest asks for a drain pass.
type DrainRequest struct {
	SourceRequestID string    `json:"source_request_id,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	RequestedAt     time.Time `json:"requested_at"`
}

// Trigger schedules a drain pass without running it.
type Trigger interface {
	// RequestDrain enqueues a drain request. It must not wait for the drain itself.
	RequestDrain(ctx context.Context, req DrainRequest) error
}

// TriggerFunc adapts a function to Trigger.
type TriggerFunc func(ctx context.Context, req DrainRequest) error

// RequestDrain implements Trigger.
func (fn TriggerFunc) RequestDrain(ctx context.Context, req DrainRequest) error {
	return fn(ctx, req)
}

// Queue is an in-process Trigger. Pending requests coalesce into one because every pass
// reads the whole backlog.
type Queue struct {
	ch chan DrainRequest
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{ch: make(chan DrainRequest, 1)}
}

// RequestDrain implements Trigger. It never blocks.
func (q *Queue) RequestDrain(_ context.Context, req DrainRequest) error {
	select {
	case q.ch <- req:
	default:
	}

	return nil
}

// C returns the channel of pending requests.
func (q *Queue) C() <-chan DrainRequest {
	return q.ch
}
