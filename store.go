package syncpipe

import (
	"context"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxErrorLen caps stored error messages, in runes.
const MaxErrorLen = 1024

// Store persists SyncFailure records.
type Store interface {
	// Insert persists a new record.
	Insert(ctx context.Context, failure SyncFailure) error
	// List returns every pending record, oldest first.
	List(ctx context.Context) ([]SyncFailure, error)
	// Get returns a record by id or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (SyncFailure, error)
	// Delete removes a record, returning ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
	// MarkFailed increments the attempt counter by one and stores the attempt details.
	MarkFailed(ctx context.Context, attempt FailedAttempt) error
}

// Leaser grants exclusive, short-lived access to a single record.
// Drain passes skip records leased by another pass.
type Leaser interface {
	// Lease tries to acquire the record without waiting. The release func must be called when acquired is true.
	Lease(ctx context.Context, id uuid.UUID) (release func(), acquired bool, err error)
}

// BacklogCounter provides the number of pending records.
type BacklogCounter interface {
	// PendingCount returns the current number of pending records.
	PendingCount(ctx context.Context) (int, error)
}

// Requeuer returns dead records to the pending backlog.
type Requeuer interface {
	// Requeue marks a dead record as pending again without resetting its attempt counter.
	Requeue(ctx context.Context, id uuid.UUID) error
}

// DeadLister lists records that reached the drain attempt limit.
type DeadLister interface {
	// ListDead returns dead records, oldest first.
	ListDead(ctx context.Context) ([]SyncFailure, error)
}

// TruncateError returns err's text limited to MaxErrorLen runes.
func TruncateError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	if utf8.RuneCountInString(msg) <= MaxErrorLen {
		return msg
	}

	return string([]rune(msg)[:MaxErrorLen])
}
