package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// namedLock is a GET_LOCK held by a single pooled connection.
// MySQL releases it automatically when that connection closes.
type namedLock struct {
	conn *sql.Conn
	name string
}

// tryNamedLock takes name without waiting. It returns nil when another session holds it.
func tryNamedLock(ctx context.Context, db *sql.DB, name string) (*namedLock, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncpipe mysql: lock conn failed: %w", err)
	}

	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", name).Scan(&got); err != nil {
		return nil, errors.Join(fmt.Errorf("syncpipe mysql: get lock %s failed: %w", name, err), conn.Close())
	}
	if !got.Valid || got.Int64 != 1 {
		return nil, conn.Close()
	}

	return &namedLock{conn: conn, name: name}, nil
}

// release frees the lock and returns the connection to the pool.
func (l *namedLock) release(ctx context.Context) error {
	var released sql.NullInt64
	err := l.conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", l.name).Scan(&released)
	if err != nil {
		err = fmt.Errorf("syncpipe mysql: release lock %s failed: %w", l.name, err)
	}

	return errors.Join(err, l.conn.Close())
}
