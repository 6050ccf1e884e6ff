package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/velmie/syncpipe"
)

const (
	defaultCleanupLimit      = 10000
	defaultCleanupEvery      = time.Hour
	defaultCleanupLockPrefix = "syncpipe:cleanup:"
)

// CleanupOptions defines which dead rows to purge.
type CleanupOptions struct {
	// Before removes dead rows last updated before this timestamp (required).
	Before time.Time
	// Limit caps the number of rows deleted per call (0 uses the default).
	Limit int
}

// CleanupResult reports how many rows were removed.
type CleanupResult struct {
	Dead int64
}

// CleanupMaintainerConfig controls periodic purging of dead-lettered rows.
type CleanupMaintainerConfig struct {
	// Table is the sync failure table name. Use schema.table for non-default schema.
	Table string
	// Retention keeps dead rows for manual review for at least this long (required).
	Retention time.Duration
	// CheckEvery is the interval between cleanup runs.
	CheckEvery time.Duration
	// Limit caps the number of rows deleted per run (0 uses the default).
	Limit int
	// LockName is the advisory lock name. Defaults to syncpipe:cleanup:<table>.
	LockName string
	// Clock overrides time source (useful for tests).
	Clock clockz.Clock
	// Logger receives warnings about cleanup failures.
	Logger syncpipe.Logger
}

// CleanupMaintainer periodically purges dead rows. Pending rows are never touched.
type CleanupMaintainer struct {
	store *Store
	cfg   CleanupMaintainerConfig
}

// Cleanup removes dead rows last updated before opts.Before.
func (s *Store) Cleanup(ctx context.Context, opts CleanupOptions) (CleanupResult, error) {
	if opts.Before.IsZero() {
		return CleanupResult{}, ErrCleanupBeforeRequired
	}
	limit := opts.Limit
	if limit == 0 {
		limit = defaultCleanupLimit
	}
	if limit < 0 {
		return CleanupResult{}, ErrCleanupLimitInvalid
	}

	// #nosec G201 -- table name is sanitized.
	query := fmt.Sprintf("DELETE FROM %s WHERE status = ? AND updated_at <= ? ORDER BY id LIMIT ?", s.table)
	res, err := s.db.ExecContext(ctx, query, syncpipe.StatusDead, opts.Before.UTC(), limit)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("syncpipe mysql: cleanup delete failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return CleanupResult{}, fmt.Errorf("syncpipe mysql: cleanup rows failed: %w", err)
	}

	return CleanupResult{Dead: affected}, nil
}

// NewCleanupMaintainer creates a new cleanup maintainer with defaults applied.
func NewCleanupMaintainer(db *sql.DB, cfg CleanupMaintainerConfig) (*CleanupMaintainer, error) {
	if db == nil {
		return nil, ErrDBRequired
	}
	if cfg.Retention <= 0 {
		return nil, ErrCleanupRetentionInvalid
	}
	if cfg.Clock == nil {
		cfg.Clock = clockz.RealClock
	}
	if cfg.Logger == nil {
		cfg.Logger = syncpipe.NopLogger{}
	}
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = defaultCleanupEvery
	}
	if cfg.Limit == 0 {
		cfg.Limit = defaultCleanupLimit
	}
	if cfg.Limit < 0 {
		return nil, ErrCleanupLimitInvalid
	}

	store, err := NewStore(db, WithTable(cfg.Table), WithClock(cfg.Clock), WithLogger(cfg.Logger))
	if err != nil {
		return nil, err
	}
	cfg.Table = store.table
	if cfg.LockName == "" {
		cfg.LockName = defaultCleanupLockPrefix + cfg.Table
	}

	return &CleanupMaintainer{store: store, cfg: cfg}, nil
}

// Run periodically purges old dead rows until the context is canceled.
func (m *CleanupMaintainer) Run(ctx context.Context) error {
	ticker := m.cfg.Clock.NewTicker(m.cfg.CheckEvery)
	defer ticker.Stop()

	m.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			m.runOnce(ctx)
		}
	}
}

func (m *CleanupMaintainer) runOnce(ctx context.Context) {
	result, err := m.Ensure(ctx)
	if err != nil {
		m.cfg.Logger.Warn("syncpipe mysql cleanup failed", "err", err)

		return
	}
	if result.Dead > 0 {
		m.cfg.Logger.Info("syncpipe mysql cleanup done", "dead", result.Dead)
	}
}

// Ensure executes a single cleanup pass. It is a no-op when another session holds the lock.
func (m *CleanupMaintainer) Ensure(ctx context.Context) (CleanupResult, error) {
	lock, err := tryNamedLock(ctx, m.store.db, m.cfg.LockName)
	if err != nil {
		return CleanupResult{}, err
	}
	if lock == nil {
		m.cfg.Logger.Debug("syncpipe mysql cleanup lock held by another session", "lock", m.cfg.LockName)

		return CleanupResult{}, nil
	}
	defer func() {
		if err := lock.release(context.WithoutCancel(ctx)); err != nil {
			m.cfg.Logger.Warn("syncpipe mysql cleanup release lock failed", "err", err)
		}
	}()

	return m.store.Cleanup(ctx, CleanupOptions{
		Before: m.cfg.Clock.Now().Add(-m.cfg.Retention),
		Limit:  m.cfg.Limit,
	})
}
