// Package memory provides an in-process syncpipe.Store for tests and single-instance deployments.
// Records do not survive a restart.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/velmie/syncpipe"
)

// Store keeps SyncFailure records in memory.
type Store struct {
	mu      sync.Mutex
	records map[uuid.UUID]syncpipe.SyncFailure
	seq     map[uuid.UUID]uint64
	next    uint64
	leases  map[uuid.UUID]struct{}
}

var (
	_ syncpipe.Store          = (*Store)(nil)
	_ syncpipe.Leaser         = (*Store)(nil)
	_ syncpipe.BacklogCounter = (*Store)(nil)
	_ syncpipe.Requeuer       = (*Store)(nil)
	_ syncpipe.DeadLister     = (*Store)(nil)
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[uuid.UUID]syncpipe.SyncFailure),
		seq:     make(map[uuid.UUID]uint64),
		leases:  make(map[uuid.UUID]struct{}),
	}
}

// Insert implements syncpipe.Store.
func (s *Store) Insert(_ context.Context, failure syncpipe.SyncFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[failure.ID]; ok {
		return ErrDuplicateID
	}
	s.records[failure.ID] = clone(failure)
	s.next++
	s.seq[failure.ID] = s.next

	return nil
}

// List implements syncpipe.Store. Records are returned in insertion order.
func (s *Store) List(_ context.Context) ([]syncpipe.SyncFailure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]syncpipe.SyncFailure, 0, len(s.records))
	for _, rec := range s.records {
		if rec.Status == syncpipe.StatusPending {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})

	return out, nil
}

// Get implements syncpipe.Store.
func (s *Store) Get(_ context.Context, id uuid.UUID) (syncpipe.SyncFailure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return syncpipe.SyncFailure{}, syncpipe.ErrNotFound
	}

	return clone(rec), nil
}

// Delete implements syncpipe.Store.
func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return syncpipe.ErrNotFound
	}
	delete(s.records, id)
	delete(s.seq, id)

	return nil
}

// MarkFailed implements syncpipe.Store.
func (s *Store) MarkFailed(_ context.Context, attempt syncpipe.FailedAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[attempt.ID]
	if !ok {
		return syncpipe.ErrNotFound
	}
	rec.SyncAttempts++
	rec.LastAttemptAt = attempt.At
	rec.ErrorMessage = attempt.Error
	if attempt.Dead {
		rec.Status = syncpipe.StatusDead
	}
	s.records[attempt.ID] = rec

	return nil
}

// Lease implements syncpipe.Leaser.
func (s *Store) Lease(_ context.Context, id uuid.UUID) (func(), bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.leases[id]; held {
		return nil, false, nil
	}
	s.leases[id] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.leases, id)
			s.mu.Unlock()
		})
	}

	return release, true, nil
}

// PendingCount implements syncpipe.BacklogCounter.
func (s *Store) PendingCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, rec := range s.records {
		if rec.Status == syncpipe.StatusPending {
			count++
		}
	}

	return count, nil
}

// Requeue implements syncpipe.Requeuer.
func (s *Store) Requeue(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return syncpipe.ErrNotFound
	}
	rec.Status = syncpipe.StatusPending
	s.records[id] = rec

	return nil
}

// ListDead implements syncpipe.DeadLister.
func (s *Store) ListDead(_ context.Context) ([]syncpipe.SyncFailure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]syncpipe.SyncFailure, 0)
	for _, rec := range s.records {
		if rec.Status == syncpipe.StatusDead {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})

	return out, nil
}

func clone(rec syncpipe.SyncFailure) syncpipe.SyncFailure {
	rec.RequestData = bytes.Clone(rec.RequestData)

	return rec
}
