package mysql

import "errors"

var (
	// ErrDBRequired is returned when a nil *sql.DB is provided.
	ErrDBRequired = errors.New("syncpipe mysql: db is required")
	// ErrExecutorRequired is returned when enqueue is called with a nil executor.
	ErrExecutorRequired = errors.New("syncpipe mysql: executor is required")
	// ErrTableNameRequired is returned when the table name is empty.
	ErrTableNameRequired = errors.New("syncpipe mysql: table name is required")
	// ErrInvalidTableName is returned when the table name has disallowed characters.
	ErrInvalidTableName = errors.New("syncpipe mysql: invalid table name")
	// ErrInvalidRequestData is returned when request data is not valid JSON.
	ErrInvalidRequestData = errors.New("syncpipe mysql: request data is not valid JSON")
	// ErrCleanupBeforeRequired is returned when cleanup cutoff is missing.
	ErrCleanupBeforeRequired = errors.New("syncpipe mysql: cleanup before time is required")
	// ErrCleanupLimitInvalid is returned when cleanup limit is negative.
	ErrCleanupLimitInvalid = errors.New("syncpipe mysql: cleanup limit must be non-negative")
	// ErrCleanupRetentionInvalid is returned when cleanup retention is not positive.
	ErrCleanupRetentionInvalid = errors.New("syncpipe mysql: cleanup retention must be positive")
)
