package syncpipe

import "context"

// Sink appends one denormalized record to the external reporting target.
// Appends are not idempotent, a retried ambiguous failure may produce a duplicate row.
type Sink interface {
	// Append delivers a single payload and returns an error on failure.
	Append(ctx context.Context, payload Payload) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, payload Payload) error

// Append implements Sink.
func (fn SinkFunc) Append(ctx context.Context, payload Payload) error {
	return fn(ctx, payload)
}
