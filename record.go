package syncpipe

import (
	"time"

	"github.com/google/uuid"
)

// SyncFailure is a durable record of a payload the sink has not accepted yet.
type SyncFailure struct {
	ID              uuid.UUID
	SourceRequestID string
	SyncAttempts    int
	LastAttemptAt   time.Time
	// ErrorMessage is empty when no error text was recorded.
	ErrorMessage string
	// RequestData holds the payload envelope produced by EncodePayload.
	RequestData []byte
	Status      Status
	CreatedAt   time.Time
}

// FailedAttempt describes a failed drain attempt to be applied to a stored record.
type FailedAttempt struct {
	ID    uuid.UUID
	At    time.Time
	Error string
	// Dead moves the record out of the pending backlog.
	Dead bool
}
