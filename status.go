package syncpipe

// Status represents the lifecycle state of a SyncFailure.
type Status int16

const (
	// StatusPending indicates the failure is waiting for a drain pass.
	StatusPending Status = 0
	// StatusDead indicates the failure exceeded the drain attempt limit and needs manual review.
	StatusDead Status = -1
)

// String returns a lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}
