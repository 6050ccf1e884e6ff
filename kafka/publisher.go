package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	kgo "github.com/segmentio/kafka-go"

	"github.com/velmie/syncpipe"
)

const defaultWriteTimeout = 3 * time.Second

var (
	// ErrBrokersRequired is returned when no broker address is configured.
	ErrBrokersRequired = errors.New("syncpipe kafka: brokers are required")
	// ErrTopicRequired is returned when the topic is empty.
	ErrTopicRequired = errors.New("syncpipe kafka: topic is required")
	// ErrGroupRequired is returned when the listener has no consumer group.
	ErrGroupRequired = errors.New("syncpipe kafka: group id is required")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// Publisher implements syncpipe.Trigger by producing one message per drain request.
type Publisher struct {
	writer  messageWriter
	timeout time.Duration
}

var _ syncpipe.Trigger = (*Publisher)(nil)

// NewPublisher creates a publisher writing to topic.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, ErrBrokersRequired
	}
	if topic == "" {
		return nil, ErrTopicRequired
	}

	w := &kgo.Writer{
		Addr:         kgo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kgo.LeastBytes{},
		RequiredAcks: kgo.RequireOne,
	}

	return &Publisher{writer: w, timeout: defaultWriteTimeout}, nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error { return p.writer.Close() }

// RequestDrain implements syncpipe.Trigger. The write is bounded by a short timeout.
func (p *Publisher) RequestDrain(ctx context.Context, req syncpipe.DrainRequest) error {
	value, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("syncpipe kafka: encode drain request failed: %w", err)
	}

	wctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(wctx, kgo.Message{
		Key:   []byte(req.SourceRequestID),
		Value: value,
		Time:  req.RequestedAt,
	}); err != nil {
		return fmt.Errorf("syncpipe kafka: publish drain request failed: %w", err)
	}

	return nil
}

// SplitBrokers parses a comma separated broker list.
func SplitBrokers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
