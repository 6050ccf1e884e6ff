// Package postgres provides a PostgreSQL store for sync failures on top of pgxpool.
//
// Drain passes lease rows with session-level advisory locks, which PostgreSQL releases
// automatically when the holding connection goes away.
package postgres
