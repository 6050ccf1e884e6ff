//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/velmie/syncpipe"
	"github.com/velmie/syncpipe/postgres"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("syncpipe"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := postgres.Schema("sync_failures")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, schema)
	require.NoError(t, err)

	return pool
}

func newFailure(t *testing.T, sourceRequestID string) syncpipe.SyncFailure {
	t.Helper()
	data, err := syncpipe.EncodePayload(syncpipe.Payload{
		Kind:      syncpipe.KindEquipmentRequest,
		ID:        sourceRequestID,
		ItemID:    "eq-7",
		Status:    "open",
		CreatedAt: time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return syncpipe.SyncFailure{
		ID:              uuid.Must(uuid.NewV7()),
		SourceRequestID: sourceRequestID,
		ErrorMessage:    "quota exceeded",
		RequestData:     data,
	}
}

func TestStoreLifecycleIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	pool := setupPostgres(t)
	ctx := context.Background()
	store, err := postgres.NewStore(pool)
	require.NoError(t, err)

	first, second := newFailure(t, "req-1"), newFailure(t, "req-2")
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))

	pending, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, first.ID, pending[0].ID)
	require.Equal(t, "quota exceeded", pending[0].ErrorMessage)

	decoded, err := syncpipe.DecodePayload(pending[1].RequestData)
	require.NoError(t, err)
	require.Equal(t, syncpipe.KindEquipmentRequest, decoded.Kind)

	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkFailed(ctx, syncpipe.FailedAttempt{ID: first.ID, At: at, Error: "timeout"}))
	require.NoError(t, store.MarkFailed(ctx, syncpipe.FailedAttempt{ID: first.ID, At: at, Error: "timeout", Dead: true}))

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.SyncAttempts)
	require.Equal(t, syncpipe.StatusDead, got.Status)

	count, err := store.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	dead, err := store.ListDead(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)

	purged, err := store.PurgeDead(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)

	require.NoError(t, store.Requeue(ctx, second.ID))
	require.NoError(t, store.Delete(ctx, second.ID))
	require.ErrorIs(t, store.Delete(ctx, second.ID), syncpipe.ErrNotFound)
	_, err = store.Get(ctx, second.ID)
	require.ErrorIs(t, err, syncpipe.ErrNotFound)
}

func TestStoreEnqueueInTransactionIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	pool := setupPostgres(t)
	ctx := context.Background()
	store, err := postgres.NewStore(pool)
	require.NoError(t, err)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(ctx, tx, newFailure(t, "req-1")))
	require.NoError(t, tx.Rollback(ctx))

	count, err := store.PendingCount(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestStoreLeaseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	pool := setupPostgres(t)
	ctx := context.Background()
	store, err := postgres.NewStore(pool)
	require.NoError(t, err)

	id := uuid.Must(uuid.NewV7())
	release, ok, err := store.Lease(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.Lease(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)

	release()
	release2, ok, err := store.Lease(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	release2()
}

func TestDrainerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	pool := setupPostgres(t)
	ctx := context.Background()
	store, err := postgres.NewStore(pool)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, newFailure(t, "req-1")))

	sheetDown := true
	sink := syncpipe.SinkFunc(func(context.Context, syncpipe.Payload) error {
		if sheetDown {
			return errors.New("503 backend error")
		}
		return nil
	})
	drainer := syncpipe.NewDrainer(store, sink, syncpipe.WithMaxAttempts(5))

	result, err := drainer.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Failed)

	sheetDown = false
	result, err = drainer.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Synced)

	count, err := store.PendingCount(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}
