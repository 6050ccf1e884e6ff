package postgres

import "errors"

var (
	// ErrPoolRequired is returned when a nil *pgxpool.Pool is provided.
	ErrPoolRequired = errors.New("syncpipe postgres: pool is required")
	// ErrExecutorRequired is returned when enqueue is called with a nil executor.
	ErrExecutorRequired = errors.New("syncpipe postgres: executor is required")
	// ErrTableNameRequired is returned when the table name is empty.
	ErrTableNameRequired = errors.New("syncpipe postgres: table name is required")
	// ErrInvalidTableName is returned when the table name has disallowed characters.
	ErrInvalidTableName = errors.New("syncpipe postgres: invalid table name")
	// ErrPurgeBeforeRequired is returned when the purge cutoff is missing.
	ErrPurgeBeforeRequired = errors.New("syncpipe postgres: purge before time is required")
)

// ErrRetentionInvalid is returned when the purge retention is not positive.
var ErrRetentionInvalid = errors.New("syncpipe postgres: retention must be positive")
