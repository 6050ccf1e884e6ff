package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velmie/syncpipe"
)

const columns = "id, source_request_id, status, sync_attempts, last_attempt_at, error_message, request_data, created_at"

// Executor allows enqueuing within an existing transaction. pgx.Tx and *pgxpool.Pool satisfy it.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements syncpipe.Store on PostgreSQL.
type Store struct {
	pool  *pgxpool.Pool
	cfg   Config
	table string
}

var (
	_ syncpipe.Store          = (*Store)(nil)
	_ syncpipe.Leaser         = (*Store)(nil)
	_ syncpipe.BacklogCounter = (*Store)(nil)
	_ syncpipe.Requeuer       = (*Store)(nil)
	_ syncpipe.DeadLister     = (*Store)(nil)
)

// NewStore constructs a PostgreSQL store.
func NewStore(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, ErrPoolRequired
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

	return &Store{pool: pool, cfg: cfg, table: table}, nil
}

// Insert implements syncpipe.Store.
func (s *Store) Insert(ctx context.Context, failure syncpipe.SyncFailure) error {
	return s.Enqueue(ctx, s.pool, failure)
}

// Enqueue inserts a sync failure using the provided executor (transaction preferred).
func (s *Store) Enqueue(ctx context.Context, exec Executor, failure syncpipe.SyncFailure) error {
	if exec == nil {
		return ErrExecutorRequired
	}
	if failure.SourceRequestID == "" {
		return syncpipe.ErrSourceRequired
	}
	if failure.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("syncpipe postgres: generate id failed: %w", err)
		}
		failure.ID = id
	}

	now := s.cfg.Clock.Now().UTC()
	if failure.LastAttemptAt.IsZero() {
		failure.LastAttemptAt = now
	}
	if failure.CreatedAt.IsZero() {
		failure.CreatedAt = now
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)", s.table, columns)
	_, err := exec.Exec(ctx, query,
		failure.ID,
		failure.SourceRequestID,
		failure.Status,
		failure.SyncAttempts,
		failure.LastAttemptAt,
		nullableError(failure.ErrorMessage),
		failure.RequestData,
		failure.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("syncpipe postgres: insert failed: %w", err)
	}

	return nil
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
	query := fmt.Sprintf("SELECT %s FROM %s WHERE status = $1 ORDER BY id ASC", columns, s.table)
	rows, err := s.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("syncpipe postgres: select failed: %w", err)
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
		return nil, fmt.Errorf("syncpipe postgres: rows failed: %w", err)
	}

	return failures, nil
}

// Get implements syncpipe.Store.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (syncpipe.SyncFailure, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", columns, s.table)
	failure, err := scanFailure(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return syncpipe.SyncFailure{}, syncpipe.ErrNotFound
	}

	return failure, err
}

// Delete implements syncpipe.Store.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table), id)
	if err != nil {
		return fmt.Errorf("syncpipe postgres: delete failed: %w", err)
	}

	return requireAffected(tag)
}

// MarkFailed implements syncpipe.Store.
func (s *Store) MarkFailed(ctx context.Context, attempt syncpipe.FailedAttempt) error {
	status := syncpipe.StatusPending
	if attempt.Dead {
		status = syncpipe.StatusDead
	}

	query := fmt.Sprintf(
		"UPDATE %s SET sync_attempts = sync_attempts + 1, last_attempt_at = $1, error_message = $2, status = $3, updated_at = now() WHERE id = $4",
		s.table,
	)
	tag, err := s.pool.Exec(ctx, query, attempt.At.UTC(), nullableError(attempt.Error), status, attempt.ID)
	if err != nil {
		return fmt.Errorf("syncpipe postgres: mark failed update failed: %w", err)
	}

	return requireAffected(tag)
}

// Requeue implements syncpipe.Requeuer.
func (s *Store) Requeue(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf("UPDATE %s SET status = $1, updated_at = now() WHERE id = $2", s.table)
	tag, err := s.pool.Exec(ctx, query, syncpipe.StatusPending, id)
	if err != nil {
		return fmt.Errorf("syncpipe postgres: requeue failed: %w", err)
	}

	return requireAffected(tag)
}

// PendingCount implements syncpipe.BacklogCounter.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE status = $1", s.table)
	if err := s.pool.QueryRow(ctx, query, syncpipe.StatusPending).Scan(&count); err != nil {
		return 0, fmt.Errorf("syncpipe postgres: pending count failed: %w", err)
	}

	return count, nil
}

// PurgeDead deletes up to limit dead rows last updated before the cutoff.
func (s *Store) PurgeDead(ctx context.Context, before time.Time, limit int) (int64, error) {
	if before.IsZero() {
		return 0, ErrPurgeBeforeRequired
	}
	if limit <= 0 {
		limit = defaultPurgeLimit
	}

	query := fmt.Sprintf(
		"DELETE FROM %[1]s WHERE id IN (SELECT id FROM %[1]s WHERE status = $1 AND updated_at <= $2 ORDER BY id LIMIT $3)",
		s.table,
	)
	tag, err := s.pool.Exec(ctx, query, syncpipe.StatusDead, before.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("syncpipe postgres: purge failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Lease takes a session advisory lock keyed by the record id on a dedicated connection.
func (s *Store) Lease(ctx context.Context, id uuid.UUID) (func(), bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("syncpipe postgres: lease conn failed: %w", err)
	}

	key := s.cfg.LockPrefix + id.String()
	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", key).Scan(&acquired); err != nil {
		conn.Release()

		return nil, false, fmt.Errorf("syncpipe postgres: acquire lease failed: %w", err)
	}
	if !acquired {
		conn.Release()

		return nil, false, nil
	}

	release := func() {
		var unlocked bool
		err := conn.QueryRow(context.Background(), "SELECT pg_advisory_unlock(hashtext($1))", key).Scan(&unlocked)
		if err != nil {
			s.cfg.Logger.Warn("syncpipe postgres release lease failed", "id", id, "err", err)
			// The session may still hold the lock; drop the connection instead of pooling it.
			_ = conn.Conn().Close(context.Background())
		}
		conn.Release()
	}

	return release, true, nil
}

func scanFailure(row pgx.Row) (syncpipe.SyncFailure, error) {
	var (
		failure  syncpipe.SyncFailure
		errorMsg *string
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
	if errors.Is(err, pgx.ErrNoRows) {
		return syncpipe.SyncFailure{}, err
	}
	if err != nil {
		return syncpipe.SyncFailure{}, fmt.Errorf("syncpipe postgres: scan failed: %w", err)
	}
	if errorMsg != nil {
		failure.ErrorMessage = *errorMsg
	}

	return failure, nil
}

func requireAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
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
