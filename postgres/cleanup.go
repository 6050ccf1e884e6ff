package postgres

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/velmie/syncpipe"
)

const (
	defaultPurgeLimit = 10000
	defaultPurgeEvery = time.Hour
)

// PurgerConfig controls periodic purging of dead-lettered rows.
type PurgerConfig struct {
	// Retention keeps dead rows for manual review for at least this long (required).
	Retention  time.Duration
	CheckEvery time.Duration
	Limit      int
	Clock      clockz.Clock
	Logger     syncpipe.Logger
}

// Purger runs PurgeDead on an interval.
type Purger struct {
	store *Store
	cfg   PurgerConfig
}

// NewPurger creates a purger for store with defaults applied.
func NewPurger(store *Store, cfg PurgerConfig) (*Purger, error) {
	if store == nil {
		return nil, syncpipe.ErrStoreRequired
	}
	if cfg.Retention <= 0 {
		return nil, ErrRetentionInvalid
	}
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = defaultPurgeEvery
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultPurgeLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = clockz.RealClock
	}
	if cfg.Logger == nil {
		cfg.Logger = syncpipe.NopLogger{}
	}

	return &Purger{store: store, cfg: cfg}, nil
}

// Run purges old dead rows every CheckEvery until the context is canceled.
func (p *Purger) Run(ctx context.Context) error {
	ticker := p.cfg.Clock.NewTicker(p.cfg.CheckEvery)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			p.runOnce(ctx)
		}
	}
}

// Purge executes a single purge pass.
func (p *Purger) Purge(ctx context.Context) (int64, error) {
	return p.store.PurgeDead(ctx, p.cfg.Clock.Now().Add(-p.cfg.Retention), p.cfg.Limit)
}

func (p *Purger) runOnce(ctx context.Context) {
	n, err := p.Purge(ctx)
	if err != nil {
		p.cfg.Logger.Warn("syncpipe postgres purge failed", "err", err)

		return
	}
	if n > 0 {
		p.cfg.Logger.Info("syncpipe postgres purge done", "dead", n)
	}
}
