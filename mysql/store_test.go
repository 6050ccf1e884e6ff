package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/velmie/syncpipe"
)

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

type fakeExecutor struct {
	query string
	args  []any
}

func (f *fakeExecutor) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.query = query
	f.args = args
	return fakeResult{}, nil
}

type fixedGenerator struct {
	id    uuid.UUID
	calls int
}

func (g *fixedGenerator) New() (uuid.UUID, error) {
	g.calls++
	return g.id, nil
}

func newTestStore(opts ...Option) *Store {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store{
		cfg:     cfg.withDefaults(),
		queries: newQueries(defaultTable),
		table:   defaultTable,
	}
}

func TestStoreEnqueueGeneratesID(t *testing.T) {
	gen := &fixedGenerator{id: uuid.Must(uuid.NewV7())}
	store := newTestStore(WithIDGenerator(gen.New))
	failure := syncpipe.SyncFailure{
		SourceRequestID: "req-1",
		RequestData:     []byte(`{"version":1,"data":{}}`),
	}
	fakeExec := &fakeExecutor{}

	id, err := store.Enqueue(context.Background(), fakeExec, failure)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if id != gen.id {
		t.Fatalf("expected generated id to be returned")
	}
	if gen.calls != 1 {
		t.Fatalf("expected generator to be called once")
	}
	if !strings.HasPrefix(fakeExec.query, "INSERT INTO sync_failures") {
		t.Fatalf("unexpected query: %s", fakeExec.query)
	}
	if len(fakeExec.args) != 8 {
		t.Fatalf("expected 8 args, got %d", len(fakeExec.args))
	}
	if raw, ok := fakeExec.args[0].([]byte); !ok || len(raw) != 16 {
		t.Fatalf("expected binary id, got %T", fakeExec.args[0])
	}
	if fakeExec.args[5] != nil {
		t.Fatalf("expected NULL error message, got %v", fakeExec.args[5])
	}
	if ts, ok := fakeExec.args[4].(time.Time); !ok || ts.IsZero() {
		t.Fatalf("expected last attempt time default")
	}
}

func TestStoreEnqueueKeepsID(t *testing.T) {
	gen := &fixedGenerator{}
	store := newTestStore(WithIDGenerator(gen.New))
	failure := syncpipe.SyncFailure{
		ID:              uuid.Must(uuid.NewV7()),
		SourceRequestID: "req-1",
		RequestData:     []byte(`{}`),
	}

	id, err := store.Enqueue(context.Background(), &fakeExecutor{}, failure)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if id != failure.ID || gen.calls != 0 {
		t.Fatalf("expected provided id to be kept")
	}
}

func TestStoreEnqueueValidation(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, nil, syncpipe.SyncFailure{}); !errors.Is(err, ErrExecutorRequired) {
		t.Fatalf("expected ErrExecutorRequired, got %v", err)
	}
	if _, err := store.Enqueue(ctx, &fakeExecutor{}, syncpipe.SyncFailure{RequestData: []byte(`{}`)}); !errors.Is(err, syncpipe.ErrSourceRequired) {
		t.Fatalf("expected ErrSourceRequired, got %v", err)
	}
	bad := syncpipe.SyncFailure{SourceRequestID: "req-1", RequestData: []byte(`{`)}
	if _, err := store.Enqueue(ctx, &fakeExecutor{}, bad); !errors.Is(err, ErrInvalidRequestData) {
		t.Fatalf("expected ErrInvalidRequestData, got %v", err)
	}

	binary := newTestStore(WithValidateJSON(false))
	if _, err := binary.Enqueue(ctx, &fakeExecutor{}, bad); err != nil {
		t.Fatalf("expected unvalidated insert, got %v", err)
	}
}

func TestNullableErrorTruncates(t *testing.T) {
	if nullableError("") != nil {
		t.Fatalf("expected nil for empty message")
	}
	long := strings.Repeat("é", syncpipe.MaxErrorLen+10)
	msg, ok := nullableError(long).(string)
	if !ok || len([]rune(msg)) != syncpipe.MaxErrorLen {
		t.Fatalf("expected truncated message")
	}
}

func TestNewStoreValidation(t *testing.T) {
	if _, err := NewStore(nil); !errors.Is(err, ErrDBRequired) {
		t.Fatalf("expected ErrDBRequired, got %v", err)
	}
	if _, err := NewStore(&sql.DB{}, WithTable("bad;table")); !errors.Is(err, ErrInvalidTableName) {
		t.Fatalf("expected ErrInvalidTableName, got %v", err)
	}
}
