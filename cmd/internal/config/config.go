// Package config loads syncpipe binary settings from a .env file, an optional YAML file and
// SYNCPIPE_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SYNCPIPE_STORE_DSN.
const EnvPrefix = "SYNCPIPE"

// Config is the full binary configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Sheets  SheetsConfig  `mapstructure:"sheets"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Drain   DrainConfig   `mapstructure:"drain"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Cleanup CleanupConfig `mapstructure:"cleanup"`
	Log     LogConfig     `mapstructure:"log"`
}

// StoreConfig selects the sync failure backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory mysql postgres"`
	DSN    string `mapstructure:"dsn" validate:"required_unless=Driver memory"`
	Table  string `mapstructure:"table" validate:"required"`
}

// SheetsConfig locates the spreadsheet rows are appended to.
type SheetsConfig struct {
	CredentialsFile  string `mapstructure:"credentials_file"`
	SpreadsheetID    string `mapstructure:"spreadsheet_id"`
	Range            string `mapstructure:"range" validate:"required"`
	ValueInputOption string `mapstructure:"value_input_option" validate:"oneof=RAW USER_ENTERED"`
	Timezone         string `mapstructure:"timezone" validate:"required"`
}

// RetryConfig shapes the inline retry of the executor.
type RetryConfig struct {
	Attempts     int           `mapstructure:"attempts" validate:"min=1"`
	InitialDelay time.Duration `mapstructure:"initial_delay" validate:"gte=0"`
	MaxDelay     time.Duration `mapstructure:"max_delay" validate:"gtefield=InitialDelay"`
	Multiplier   float64       `mapstructure:"multiplier" validate:"gte=1"`
}

// DrainConfig controls drain passes.
type DrainConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	Interval    time.Duration `mapstructure:"interval" validate:"gte=0"`
	PassTimeout time.Duration `mapstructure:"pass_timeout" validate:"gte=0"`
}

// KafkaConfig enables cross-process drain requests when Brokers is set.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic" validate:"required_with=Brokers"`
	GroupID string   `mapstructure:"group_id" validate:"required_with=Brokers"`
}

// CleanupConfig controls the dead-row purge.
type CleanupConfig struct {
	Retention  time.Duration `mapstructure:"retention" validate:"gt=0"`
	CheckEvery time.Duration `mapstructure:"check_every" validate:"gt=0"`
	Limit      int           `mapstructure:"limit" validate:"gte=0"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// KafkaEnabled reports whether drain requests go through Kafka.
func (c Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.table", "sync_failures")

	v.SetDefault("sheets.credentials_file", "")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.range", "Sheet1!A1:D1")
	v.SetDefault("sheets.value_input_option", "RAW")
	v.SetDefault("sheets.timezone", "America/Whitehorse")

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.initial_delay", 4*time.Second)
	v.SetDefault("retry.max_delay", 10*time.Second)
	v.SetDefault("retry.multiplier", 2.0)

	v.SetDefault("drain.max_attempts", 20)
	v.SetDefault("drain.interval", time.Minute)
	v.SetDefault("drain.pass_timeout", 5*time.Minute)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "syncpipe-drain")
	v.SetDefault("kafka.group_id", "syncpipe-drainers")

	v.SetDefault("cleanup.retention", 30*24*time.Hour)
	v.SetDefault("cleanup.check_every", time.Hour)
	v.SetDefault("cleanup.limit", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration. path may be empty; a missing .env file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}
