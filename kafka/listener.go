package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	kgo "github.com/segmentio/kafka-go"

	"github.com/velmie/syncpipe"
)

const defaultCommitTimeout = 3 * time.Second

type messageReader interface {
	FetchMessage(ctx context.Context) (kgo.Message, error)
	CommitMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// PassRunner runs a single drain pass. *syncpipe.Worker implements it.
type PassRunner interface {
	RunOnce(ctx context.Context) error
}

// Listener consumes drain requests and runs a pass for each.
type Listener struct {
	reader messageReader
	runner PassRunner
	logger syncpipe.Logger
}

// NewListener creates a consumer-group listener with manual commits.
func NewListener(brokers []string, topic, groupID string, runner PassRunner, logger syncpipe.Logger) (*Listener, error) {
	if len(brokers) == 0 {
		return nil, ErrBrokersRequired
	}
	if topic == "" {
		return nil, ErrTopicRequired
	}
	if groupID == "" {
		return nil, ErrGroupRequired
	}

	r := kgo.NewReader(kgo.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})

	return newListener(r, runner, logger), nil
}

func newListener(reader messageReader, runner PassRunner, logger syncpipe.Logger) *Listener {
	if runner == nil {
		panic("syncpipe kafka: nil PassRunner")
	}
	if logger == nil {
		logger = syncpipe.NopLogger{}
	}

	return &Listener{reader: reader, runner: runner, logger: logger}
}

// Close closes the underlying reader.
func (l *Listener) Close() error { return l.reader.Close() }

// Run reads until ctx is canceled or the pass runner fails.
// Messages are committed after their pass; undecodable messages are committed and skipped.
func (l *Listener) Run(ctx context.Context) error {
	for {
		msg, err := l.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return fmt.Errorf("syncpipe kafka: fetch failed: %w", err)
		}

		var req syncpipe.DrainRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			l.logger.Warn("syncpipe kafka invalid drain request", "offset", msg.Offset, "partition", msg.Partition, "err", err)
			l.commit(ctx, msg)

			continue
		}

		l.logger.Debug("syncpipe kafka drain requested", "source_request_id", req.SourceRequestID, "reason", req.Reason)
		if err := l.runner.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}

			return err
		}
		l.commit(ctx, msg)
	}
}

func (l *Listener) commit(ctx context.Context, msg kgo.Message) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultCommitTimeout)
	defer cancel()

	if err := l.reader.CommitMessages(cctx, msg); err != nil {
		l.logger.Warn("syncpipe kafka commit failed", "offset", msg.Offset, "err", err)
	}
}
