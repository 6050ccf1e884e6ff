package syncpipe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
)

type fakeStore struct {
	records   []SyncFailure
	deleted   []uuid.UUID
	attempts  []FailedAttempt
	inserted  []SyncFailure
	listErr   error
	insertErr error
	deleteErr error
	markErr   error
}

func (s *fakeStore) Insert(_ context.Context, failure SyncFailure) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, failure)
	s.records = append(s.records, failure)
	return nil
}

func (s *fakeStore) List(context.Context) ([]SyncFailure, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]SyncFailure, 0, len(s.records))
	for _, rec := range s.records {
		if rec.Status == StatusPending {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) Get(_ context.Context, id uuid.UUID) (SyncFailure, error) {
	for _, rec := range s.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return SyncFailure{}, ErrNotFound
}

func (s *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i, rec := range s.records {
		if rec.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			s.deleted = append(s.deleted, id)
			return nil
		}
	}
	return ErrNotFound
}

func (s *fakeStore) MarkFailed(_ context.Context, attempt FailedAttempt) error {
	if s.markErr != nil {
		return s.markErr
	}
	for i := range s.records {
		if s.records[i].ID == attempt.ID {
			s.records[i].SyncAttempts++
			s.records[i].LastAttemptAt = attempt.At
			s.records[i].ErrorMessage = attempt.Error
			if attempt.Dead {
				s.records[i].Status = StatusDead
			}
			s.attempts = append(s.attempts, attempt)
			return nil
		}
	}
	return ErrNotFound
}

type leasingStore struct {
	fakeStore
	held     map[uuid.UUID]bool
	released int
}

func (s *leasingStore) Lease(_ context.Context, id uuid.UUID) (func(), bool, error) {
	if s.held[id] {
		return nil, false, nil
	}
	return func() { s.released++ }, true, nil
}

func storedFailure(t *testing.T, p Payload, attempts int) SyncFailure {
	t.Helper()
	data, err := EncodePayload(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return SyncFailure{
		ID:              uuid.Must(uuid.NewV7()),
		SourceRequestID: p.ID,
		SyncAttempts:    attempts,
		ErrorMessage:    "initial failure",
		RequestData:     data,
		LastAttemptAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestDrainSuccessDeletes(t *testing.T) {
	rec := storedFailure(t, testPayload(), 0)
	store := &fakeStore{records: []SyncFailure{rec}}
	drainer := NewDrainer(store, SinkFunc(func(context.Context, Payload) error { return nil }))

	result, err := drainer.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Synced != 1 || result.Scanned != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(store.records) != 0 {
		t.Fatalf("expected record to be deleted, %d left", len(store.records))
	}
	if len(store.attempts) != 0 {
		t.Fatalf("expected no failed attempts")
	}
}

func TestDrainFailureIncrements(t *testing.T) {
	clock := clockz.NewFakeClock()
	rec := storedFailure(t, testPayload(), 2)
	store := &fakeStore{records: []SyncFailure{rec}}
	drainer := NewDrainer(store,
		SinkFunc(func(context.Context, Payload) error { return errors.New("quota exceeded") }),
		WithDrainerClock(clock),
	)

	result, err := drainer.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected record to remain")
	}
	got := store.records[0]
	if got.SyncAttempts != 3 {
		t.Fatalf("expected attempts 3, got %d", got.SyncAttempts)
	}
	if !got.LastAttemptAt.Equal(clock.Now().UTC()) {
		t.Fatalf("expected last attempt %s, got %s", clock.Now(), got.LastAttemptAt)
	}
	if got.ErrorMessage != "quota exceeded" {
		t.Fatalf("unexpected error message %q", got.ErrorMessage)
	}
	if got.Status != StatusPending {
		t.Fatalf("expected pending status")
	}
}

func TestDrainIsolatesRecords(t *testing.T) {
	good := testPayload()
	bad := testPayload()
	bad.ID = "bad-request"
	recGood := storedFailure(t, good, 0)
	recBad := storedFailure(t, bad, 0)
	store := &fakeStore{records: []SyncFailure{recBad, recGood}}

	var handled int
	drainer := NewDrainer(store,
		SinkFunc(func(_ context.Context, p Payload) error {
			if p.ID == "bad-request" {
				return errors.New("row rejected")
			}
			return nil
		}),
		WithErrorHandler(func(context.Context, SyncFailure, error) { handled++ }),
	)

	result, err := drainer.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Synced != 1 || result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(store.deleted) != 1 || store.deleted[0] != recGood.ID {
		t.Fatalf("expected good record deleted, got %v", store.deleted)
	}
	if len(store.records) != 1 || store.records[0].ID != recBad.ID || store.records[0].SyncAttempts != 1 {
		t.Fatalf("expected bad record updated, got %+v", store.records)
	}
	if handled != 1 {
		t.Fatalf("expected error handler once, got %d", handled)
	}
}

func TestDrainEmptyBacklog(t *testing.T) {
	store := &fakeStore{}
	var calls int
	drainer := NewDrainer(store, SinkFunc(func(context.Context, Payload) error {
		calls++
		return nil
	}))

	result, err := drainer.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result != (DrainResult{}) {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if calls != 0 || len(store.deleted) != 0 || len(store.attempts) != 0 {
		t.Fatalf("expected no side effects")
	}
}

func TestDrainMalformedPayloadCounted(t *testing.T) {
	rec := storedFailure(t, testPayload(), 0)
	rec.RequestData = []byte(`{"version":1,"data":{"kind":"item_request"}}`)
	next := storedFailure(t, testPayload(), 0)
	store := &fakeStore{records: []SyncFailure{rec, next}}
	var calls int
	drainer := NewDrainer(store, SinkFunc(func(context.Context, Payload) error {
		calls++
		return nil
	}))

	result, err := drainer.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Failed != 1 || result.Synced != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if calls != 1 {
		t.Fatalf("expected sink to be called for the valid record only, got %d", calls)
	}
	if store.records[0].SyncAttempts != 1 || store.records[0].ErrorMessage == "" {
		t.Fatalf("expected malformed record to be marked failed: %+v", store.records[0])
	}
}

func TestDrainDeadLettersAtLimit(t *testing.T) {
	rec := storedFailure(t, testPayload(), 2)
	store := &fakeStore{records: []SyncFailure{rec}}
	drainer := NewDrainer(store,
		SinkFunc(func(context.Context, Payload) error { return errors.New("boom") }),
		WithMaxAttempts(3),
	)

	result, err := drainer.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Dead != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if store.records[0].Status != StatusDead || store.records[0].SyncAttempts != 3 {
		t.Fatalf("expected dead record with 3 attempts: %+v", store.records[0])
	}

	result, err = drainer.Drain(context.Background())
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if result.Scanned != 0 {
		t.Fatalf("expected dead record to be excluded, got %+v", result)
	}
}

func TestDrainSkipsLeasedRecords(t *testing.T) {
	held := storedFailure(t, testPayload(), 0)
	free := storedFailure(t, testPayload(), 0)
	store := &leasingStore{
		fakeStore: fakeStore{records: []SyncFailure{held, free}},
		held:      map[uuid.UUID]bool{held.ID: true},
	}
	drainer := NewDrainer(store, SinkFunc(func(context.Context, Payload) error { return nil }))

	result, err := drainer.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Skipped != 1 || result.Synced != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if store.released != 1 {
		t.Fatalf("expected lease release, got %d", store.released)
	}
	if len(store.records) != 1 || store.records[0].ID != held.ID {
		t.Fatalf("expected leased record to remain")
	}
}

func TestDrainListError(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	drainer := NewDrainer(store, SinkFunc(func(context.Context, Payload) error { return nil }))

	if _, err := drainer.Drain(context.Background()); err == nil {
		t.Fatalf("expected list error")
	}
}

func TestDrainConcurrentDeleteIsNotFailure(t *testing.T) {
	rec := storedFailure(t, testPayload(), 0)
	store := &fakeStore{records: []SyncFailure{rec}, deleteErr: ErrNotFound}
	drainer := NewDrainer(store, SinkFunc(func(context.Context, Payload) error { return nil }))

	result, err := drainer.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Synced != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

type racingStore struct {
	fakeStore
}

// Lease simulates another pass finishing the record between List and Lease.
func (s *racingStore) Lease(ctx context.Context, id uuid.UUID) (func(), bool, error) {
	_ = s.fakeStore.Delete(ctx, id)
	return func() {}, true, nil
}

func TestDrainSkipsRecordFinishedByAnotherPass(t *testing.T) {
	rec := storedFailure(t, testPayload(), 0)
	store := &racingStore{fakeStore: fakeStore{records: []SyncFailure{rec}}}
	calls := 0
	drainer := NewDrainer(store, SinkFunc(func(context.Context, Payload) error {
		calls++
		return nil
	}))

	result, err := drainer.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no append, got %d", calls)
	}
	if result.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

type durationMetrics struct {
	NopMetrics
	durations []time.Duration
}

func (m *durationMetrics) ObserveDrainDuration(d time.Duration) {
	m.durations = append(m.durations, d)
}

func TestDrainDurationUsesClock(t *testing.T) {
	clock := clockz.NewFakeClock()
	metrics := &durationMetrics{}
	store := &fakeStore{records: []SyncFailure{storedFailure(t, testPayload(), 0)}}
	sink := SinkFunc(func(context.Context, Payload) error {
		clock.Advance(3 * time.Second)
		return nil
	})
	drainer := NewDrainer(store, sink, WithDrainerClock(clock), WithDrainerMetrics(metrics))

	if _, err := drainer.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(metrics.durations) != 1 || metrics.durations[0] != 3*time.Second {
		t.Fatalf("durations = %v, want [3s]", metrics.durations)
	}
}
