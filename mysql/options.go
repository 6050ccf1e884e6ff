package mysql

import (
	"github.com/google/uuid"
	"github.com/zoobzio/clockz"

	"github.com/velmie/syncpipe"
)

const (
	defaultTable      = "sync_failures"
	defaultLockPrefix = "syncpipe:lease:"
)

// Config defines MySQL store behavior.
type Config struct {
	Table string
	// LockPrefix prefixes per-record GET_LOCK names. MySQL limits lock names to 64 characters.
	LockPrefix      string
	Clock           clockz.Clock
	Logger          syncpipe.Logger
	NewID           func() (uuid.UUID, error)
	ValidateJSON    bool
	validateJSONSet bool
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
	if c.NewID == nil {
		c.NewID = uuid.NewV7
	}
	if !c.validateJSONSet {
		c.ValidateJSON = true
	}

	return c
}

// Option configures the MySQL store.
type Option func(*Config)

// WithTable sets the sync failure table name.
func WithTable(name string) Option {
	return func(c *Config) {
		c.Table = name
	}
}

// WithLockPrefix sets the prefix of per-record lease lock names.
func WithLockPrefix(prefix string) Option {
	return func(c *Config) {
		c.LockPrefix = prefix
	}
}

// WithClock sets the time source used by the store.
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

// WithIDGenerator sets the generator used by Enqueue for records without an id.
func WithIDGenerator(gen func() (uuid.UUID, error)) Option {
	return func(c *Config) {
		c.NewID = gen
	}
}

// WithValidateJSON enables or disables JSON validation of request data.
// Disable it for tables created with SchemaBinary.
func WithValidateJSON(enabled bool) Option {
	return func(c *Config) {
		c.ValidateJSON = enabled
		c.validateJSONSet = true
	}
}
