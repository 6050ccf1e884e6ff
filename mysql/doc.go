// Package mysql provides a MySQL 8.0+ store for sync failures.
//
// Rows use UUID v7 primary keys stored as BINARY(16), so ORDER BY id returns the
// backlog in creation order. Drain passes lease individual rows with GET_LOCK on a
// dedicated connection; CleanupMaintainer purges old dead rows under an advisory lock.
//
// See Schema (JSON request data) or SchemaBinary (raw bytes).
package mysql
