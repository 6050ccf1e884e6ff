package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	kgo "github.com/segmentio/kafka-go"

	"github.com/velmie/syncpipe"
)

type fakeWriter struct {
	msgs []kgo.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kgo.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs      []kgo.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kgo.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kgo.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kgo.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type countingRunner struct {
	runs int
	err  error
}

func (r *countingRunner) RunOnce(context.Context) error {
	r.runs++
	return r.err
}

func TestPublisherRequestDrain(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w, timeout: time.Second}
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	err := p.RequestDrain(context.Background(), syncpipe.DrainRequest{SourceRequestID: "req-1", Reason: "sync_failed", RequestedAt: at})
	if err != nil {
		t.Fatalf("request drain: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "req-1" {
		t.Fatalf("unexpected messages: %+v", w.msgs)
	}
	var req syncpipe.DrainRequest
	if err := json.Unmarshal(w.msgs[0].Value, &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Reason != "sync_failed" || !req.RequestedAt.Equal(at) {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestPublisherWriteError(t *testing.T) {
	p := &Publisher{writer: &fakeWriter{err: errors.New("broker down")}, timeout: time.Second}
	if err := p.RequestDrain(context.Background(), syncpipe.DrainRequest{}); err == nil {
		t.Fatalf("expected write error")
	}
}

func TestListenerRunsPassAndCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	value, _ := json.Marshal(syncpipe.DrainRequest{SourceRequestID: "req-1"})
	reader := &fakeReader{
		msgs: []kgo.Message{
			{Offset: 1, Value: value},
			{Offset: 2, Value: []byte("not json")},
			{Offset: 3, Value: value},
		},
		cancel: cancel,
	}
	runner := &countingRunner{}
	l := newListener(reader, runner, nil)

	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if runner.runs != 2 {
		t.Fatalf("expected 2 passes, got %d", runner.runs)
	}
	if len(reader.committed) != 3 {
		t.Fatalf("expected all messages committed, got %v", reader.committed)
	}
}

func TestListenerStopsOnRunnerFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	value, _ := json.Marshal(syncpipe.DrainRequest{})
	reader := &fakeReader{msgs: []kgo.Message{{Offset: 1, Value: value}}, cancel: cancel}
	l := newListener(reader, &countingRunner{err: syncpipe.ErrWorkerPanic}, nil)

	if err := l.Run(ctx); !errors.Is(err, syncpipe.ErrWorkerPanic) {
		t.Fatalf("expected worker panic error, got %v", err)
	}
	if len(reader.committed) != 0 {
		t.Fatalf("expected no commit after failed pass")
	}
}

func TestConstructorValidation(t *testing.T) {
	if _, err := NewPublisher(nil, "drains"); !errors.Is(err, ErrBrokersRequired) {
		t.Fatalf("expected ErrBrokersRequired, got %v", err)
	}
	if _, err := NewPublisher([]string{"localhost:9092"}, ""); !errors.Is(err, ErrTopicRequired) {
		t.Fatalf("expected ErrTopicRequired, got %v", err)
	}
	if _, err := NewListener([]string{"localhost:9092"}, "drains", "", &countingRunner{}, nil); !errors.Is(err, ErrGroupRequired) {
		t.Fatalf("expected ErrGroupRequired, got %v", err)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" a:9092, ,b:9092 ")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("unexpected brokers: %v", got)
	}
}
