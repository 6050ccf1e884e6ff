package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/velmie/syncpipe"
)

// Executor allows enqueuing within an existing transaction.
type Executor interface {
	// ExecContext executes a statement with the provided context.
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Store implements syncpipe.Store on MySQL. The DSN must set parseTime=true.
type Store struct {
	db      *sql.DB
	cfg     Config
	queries queries
	table   string
}

var (
	_ syncpipe.Store          = (*Store)(nil)
	_ syncpipe.Leaser         = (*Store)(nil)
	_ syncpipe.BacklogCounter = (*Store)(nil)
	_ syncpipe.Requeuer       = (*Store)(nil)
	_ syncpipe.DeadLister     = (*Store)(nil)
)

// NewStore constructs a MySQL store with validated configuration.
func NewStore(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrDBRequired
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	table, err := sanitizeTableName(cfg.Table)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:      db,
		cfg:     cfg,
		queries: newQueries(table),
		table:   table,
	}, nil
}

// MustNewStore constructs a MySQL store or panics on error.
func MustNewStore(db *sql.DB, opts ...Option) *Store {
	store, err := NewStore(db, opts...)
	if err != nil {
		panic(err)
	}

	return store
}

// Insert implements syncpipe.Store.
func (s *Store) Insert(ctx context.Context, failure syncpipe.SyncFailure) error {
	_, err := s.Enqueue(ctx, s.db, failure)

	return err
}

// Enqueue inserts a sync failure using the provided executor (transaction preferred).
// A zero ID is replaced with a generated UUID v7, which is returned.
func (s *Store) Enqueue(ctx context.Context, exec Executor, failure syncpipe.SyncFailure) (uuid.UUID, error) {
	if exec == nil {
		return uuid.UUID{}, ErrExecutorRequired
	}
	if failure.SourceRequestID == "" {
		return uuid.UUID{}, syncpipe.ErrSourceRequired
	}
	if s.cfg.ValidateJSON && !json.Valid(failure.RequestData) {
		return uuid.UUID{}, ErrInvalidRequestData
	}

	id := failure.ID
	if id == uuid.Nil {
		var err error
		id, err = s.cfg.NewID()
		if err != nil {
			return uuid.UUID{}, fmt.Errorf("syncpipe mysql: generate id failed: %w", err)
		}
	}

	now := s.cfg.Clock.Now().UTC()
	lastAttemptAt := failure.LastAttemptAt
	if lastAttemptAt.IsZero() {
		lastAttemptAt = now
	}
	createdAt := failure.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := exec.ExecContext(
		ctx,
		s.queries.insert,
		id[:],
		failure.SourceRequestID,
		failure.Status,
		failure.SyncAttempts,
		lastAttemptAt,
		nullableError(failure.ErrorMessage),
		failure.RequestData,
		createdAt,
	)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("syncpipe mysql: insert failed: %w", err)
	}

	return id, nil
}

// List implements syncpipe.Store.
func (s *Store) List(ctx context.Context) ([]syncpipe.SyncFailure, error) {
	return s.listByStatus(ctx, syncpipe.StatusPending)
}

// ListDead implements syncpipe.DeadLister.
func (s *Store) ListDead(ctx context.Context) ([]syncpipe.SyncFailure, error) {
	return s.listByStatus(ctx, syncpipe.StatusDead)
}

func (s *Store) listByStatus(ctx context.Context, status syncpipe.Status) ([]syncpipe.SyncFailure, error) {
	rows, err := s.db.QueryContext(ctx, s.queries.selectStatus, status)
	if err != nil {
		return nil, fmt.Errorf("syncpipe mysql: select failed: %w", err)
	}
	defer rows.Close()

	var failures []syncpipe.SyncFailure
	for rows.Next() {
		failure, err := scanFailure(rows)
		if err != nil {
			return nil, err
		}
		failures = append(failures, failure)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("syncpipe mysql: rows failed: %w", err)
	}

	return failures, nil
}

// Get implements syncpipe.Store.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (syncpipe.SyncFailure, error) {
	failure, err := scanFailure(s.db.QueryRowContext(ctx, s.queries.selectByID, id[:]))
	if errors.Is(err, sql.ErrNoRows) {
		return syncpipe.SyncFailure{}, syncpipe.ErrNotFound
	}

	return failure, err
}

// Delete implements syncpipe.Store.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, s.queries.deleteOne, id[:])
	if err != nil {
		return fmt.Errorf("syncpipe mysql: delete failed: %w", err)
	}

	return requireAffected(res)
}

// MarkFailed implements syncpipe.Store.
func (s *Store) MarkFailed(ctx context.Context, attempt syncpipe.FailedAttempt) error {
	status := syncpipe.StatusPending
	if attempt.Dead {
		status = syncpipe.StatusDead
	}

	res, err := s.db.ExecContext(
		ctx,
		s.queries.markFailed,
		attempt.At.UTC(),
		nullableError(attempt.Error),
		status,
		attempt.ID[:],
	)
	if err != nil {
		return fmt.Errorf("syncpipe mysql: mark failed update failed: %w", err)
	}

	return requireAffected(res)
}

// Requeue implements syncpipe.Requeuer.
func (s *Store) Requeue(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, s.queries.requeue, syncpipe.StatusPending, id[:])
	if err != nil {
		return fmt.Errorf("syncpipe mysql: requeue failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("syncpipe mysql: rows affected failed: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// MySQL reports zero affected rows for an already pending record.
	_, err = s.Get(ctx, id)

	return err
}

// PendingCount returns the number of pending sync failures.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, s.queries.countPending, syncpipe.StatusPending).Scan(&count); err != nil {
		return 0, fmt.Errorf("syncpipe mysql: pending count failed: %w", err)
	}

	return count, nil
}

// Lease takes a named lock for the record on a dedicated connection.
// The lock is released when the connection closes, so a crashed drainer never holds it.
func (s *Store) Lease(ctx context.Context, id uuid.UUID) (func(), bool, error) {
	lock, err := tryNamedLock(ctx, s.db, s.cfg.LockPrefix+id.String())
	if err != nil || lock == nil {
		return nil, false, err
	}

	release := func() {
		if err := lock.release(context.Background()); err != nil {
			s.cfg.Logger.Warn("syncpipe mysql release lease failed", "id", id, "err", err)
		}
	}

	return release, true, nil
}

func scanFailure(row rowScanner) (syncpipe.SyncFailure, error) {
	var (
		failure  syncpipe.SyncFailure
		errorMsg sql.NullString
	)
	err := row.Scan(
		&failure.ID,
		&failure.SourceRequestID,
		&failure.Status,
		&failure.SyncAttempts,
		&failure.LastAttemptAt,
		&errorMsg,
		&failure.RequestData,
		&failure.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return syncpipe.SyncFailure{}, err
	}
	if err != nil {
		return syncpipe.SyncFailure{}, fmt.Errorf("syncpipe mysql: scan failed: %w", err)
	}
	failure.ErrorMessage = errorMsg.String

	return failure, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("syncpipe mysql: rows affected failed: %w", err)
	}
	if affected == 0 {
		return syncpipe.ErrNotFound
	}

	return nil
}

func nullableError(msg string) any {
	if msg == "" {
		return nil
	}
	if utf8.RuneCountInString(msg) > syncpipe.MaxErrorLen {
		msg = string([]rune(msg)[:syncpipe.MaxErrorLen])
	}

	return msg
}
