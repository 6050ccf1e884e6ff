package postgres

import (
	"github.com/zoobzio/clockz"

	"github.com/velmie/syncpipe"
)

const (
	defaultTable      = "sync_failures"
	defaultLockPrefix = "syncpipe:lease:"
)

// Config defines PostgreSQL store behavior.
type Config struct {
	Table      string
	LockPrefix string
	Clock      clockz.Clock
	Logger     syncpipe.Logger
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = defaultTable
	}
	if c.LockPrefix == "" {
		c.LockPrefix = defaultLockPrefix
	}
	if c.Clock == nil {
		c.Clock = clockz.RealClock
	}
	if c.Logger == nil {
		c.Logger = syncpipe.NopLogger{}
	}

	return c
}

// Option configures the PostgreSQL store.
type Option func(*Config)

// WithTable sets the sync failure table name.
func WithTable(name string) Option {
	return func(c *Config) {
		c.Table = name
	}
}

// WithLockPrefix sets the text hashed into per-record advisory lock keys.
func WithLockPrefix(prefix string) Option {
	return func(c *Config) {
		c.LockPrefix = prefix
	}
}

// WithClock sets the time source used for default timestamps.
func WithClock(clock clockz.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithLogger sets the logger used for lease release failures.
func WithLogger(logger syncpipe.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
