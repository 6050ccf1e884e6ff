package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"google.golang.org/api/option"

	"github.com/velmie/syncpipe"
	"github.com/velmie/syncpipe/cmd/internal/config"
	"github.com/velmie/syncpipe/mysql"
	"github.com/velmie/syncpipe/otelmetrics"
	"github.com/velmie/syncpipe/postgres"
	"github.com/velmie/syncpipe/sheets"
)

const meterName = "github.com/velmie/syncpipe"

// errSQLStoreRequired rejects the memory driver: every command outlives its process
// only through a SQL store, and a sync failure kept in memory is lost on exit.
var errSQLStoreRequired = errors.New("command requires store.driver mysql or postgres")

// app holds the resources opened for one command run.
type app struct {
	cfg     config.Config
	logger  syncpipe.Logger
	store   syncpipe.Store
	metrics syncpipe.Metrics
	db      *sql.DB
	pool    *pgxpool.Pool
}

func openApp(ctx context.Context, st *state) (*app, error) {
	if st.cfg.Store.Driver != "mysql" && st.cfg.Store.Driver != "postgres" {
		return nil, errSQLStoreRequired
	}
	a := &app{cfg: st.cfg, logger: st.logger}

	metrics, err := otelmetrics.New(otel.Meter(meterName))
	if err != nil {
		return nil, err
	}
	a.metrics = metrics

	switch st.cfg.Store.Driver {
	case "mysql":
		db, err := sql.Open("mysql", st.cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		store, err := mysql.NewStore(db, mysql.WithTable(st.cfg.Store.Table), mysql.WithLogger(st.logger))
		if err != nil {
			return nil, errors.Join(err, db.Close())
		}
		a.db, a.store = db, store
	case "postgres":
		pool, err := pgxpool.New(ctx, st.cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		store, err := postgres.NewStore(pool, postgres.WithTable(st.cfg.Store.Table), postgres.WithLogger(st.logger))
		if err != nil {
			pool.Close()

			return nil, err
		}
		a.pool, a.store = pool, store
	}

	return a, nil
}

func (a *app) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.db != nil {
		return a.db.Close()
	}

	return nil
}

func (a *app) sink(ctx context.Context) (syncpipe.Sink, error) {
	var opts []option.ClientOption
	if a.cfg.Sheets.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(a.cfg.Sheets.CredentialsFile))
	}

	return sheets.NewSink(ctx, sheets.Config{
		SpreadsheetID:    a.cfg.Sheets.SpreadsheetID,
		Range:            a.cfg.Sheets.Range,
		ValueInputOption: a.cfg.Sheets.ValueInputOption,
		Timezone:         a.cfg.Sheets.Timezone,
		Logger:           a.logger,
	}, opts...)
}

func (a *app) drainer(ctx context.Context) (*syncpipe.Drainer, error) {
	sink, err := a.sink(ctx)
	if err != nil {
		return nil, err
	}

	return syncpipe.NewDrainer(a.store, sink,
		syncpipe.WithMaxAttempts(a.cfg.Drain.MaxAttempts),
		syncpipe.WithDrainerLogger(a.logger),
		syncpipe.WithDrainerMetrics(a.metrics),
		syncpipe.WithErrorHandler(func(_ context.Context, failure syncpipe.SyncFailure, err error) {
			a.logger.Debug("syncpipe drain attempt classified",
				"id", failure.ID,
				"kind", syncpipe.KindOf(err).String(),
			)
		}),
	), nil
}
