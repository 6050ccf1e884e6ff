package syncpipe

import (
	"errors"
	"fmt"
)

var (
	// ErrSinkRequired is returned when a nil Sink is provided.
	ErrSinkRequired = errors.New("syncpipe sink is required")
	// ErrStoreRequired is returned when a nil Store is provided.
	ErrStoreRequired = errors.New("syncpipe store is required")
	// ErrNotFound is returned when a SyncFailure does not exist.
	ErrNotFound = errors.New("syncpipe sync failure not found")
	// ErrSourceRequired is returned when a failure is recorded without a source request id.
	ErrSourceRequired = errors.New("syncpipe source request id is required")
	// ErrMalformedPayload indicates stored request data no longer matches the payload shape.
	ErrMalformedPayload = errors.New("syncpipe payload is malformed")
	// ErrPayloadVersion indicates stored request data was written by an unknown payload version.
	ErrPayloadVersion = errors.New("syncpipe payload version is not supported")
	// ErrRecordFailed indicates a SyncFailure could not be persisted.
	ErrRecordFailed = errors.New("syncpipe failed to record sync failure")
	// ErrWorkerPanic indicates a drain worker panic.
	ErrWorkerPanic = errors.New("syncpipe worker panic")
)

// Kind classifies the cause of a sync failure.
type Kind int

const (
	// KindUnknown is used when the sink did not classify the error.
	KindUnknown Kind = iota
	// KindNetwork covers connection failures and timeouts.
	KindNetwork
	// KindAuth covers rejected or missing credentials.
	KindAuth
	// KindService covers throttling and server-side failures of the sink.
	KindService
	// KindPayload covers records the sink (or the decoder) cannot accept. Never retried.
	KindPayload
)

// String returns a lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindService:
		return "service"
	case KindPayload:
		return "payload"
	default:
		return "unknown"
	}
}

// SyncError is the typed failure returned by the Executor.
type SyncError struct {
	Kind     Kind
	Attempts int
	Err      error
}

// NewSyncError wraps err with a kind. Sinks use it to classify their failures.
func NewSyncError(kind Kind, err error) *SyncError {
	return &SyncError{Kind: kind, Err: err}
}

// Error implements error.
func (e *SyncError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("syncpipe %s error after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
	}

	return fmt.Sprintf("syncpipe %s error: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first SyncError in err's chain.
// Malformed payload errors are reported as KindPayload even when unwrapped.
func KindOf(err error) Kind {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Kind
	}
	if errors.Is(err, ErrMalformedPayload) || errors.Is(err, ErrPayloadVersion) {
		return KindPayload
	}

	return KindUnknown
}
