package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/stockcount/internal/catalog"
	"github.com/odyssey-erp/stockcount/internal/counting"
	"github.com/odyssey-erp/stockcount/internal/storage"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile   string `envconfig:"LOG_FILE"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"bolt"`
	StoreKey    string `envconfig:"STORE_KEY" default:"inventory-system-data"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"stockcount:"`

	BoltPath string `envconfig:"BOLT_PATH" default:"stockcount.db"`
	PGDSN    string `envconfig:"PG_DSN"`

	IDNode int64 `envconfig:"ID_NODE" default:"1"`

	ImportCharset  string `envconfig:"IMPORT_CHARSET" default:"utf-8"`
	ImportMaxBytes int64  `envconfig:"IMPORT_MAX_BYTES" default:"10485760"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"600"`

	BackupDir      string `envconfig:"BACKUP_DIR" default:"backups"`
	BackupCron     string `envconfig:"BACKUP_CRON"`
	BackupLocation string `envconfig:"BACKUP_LOCATION" default:"loja-1"`
}

// LoadConfig reads an optional .env file and then environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch strings.ToLower(c.StoreDriver) {
	case storage.DriverMemory, storage.DriverBolt:
	case storage.DriverRedis:
		if c.RedisAddr == "" {
			return errors.New("redis store requires REDIS_ADDR")
		}
	case storage.DriverPostgres:
		if c.PGDSN == "" {
			return errors.New("postgres store requires PG_DSN")
		}
	default:
		return fmt.Errorf("%w: %s", storage.ErrUnknownDriver, c.StoreDriver)
	}
	if _, err := catalog.LookupCharset(c.ImportCharset); err != nil {
		return err
	}
	if !counting.Location(c.BackupLocation).Valid() {
		return fmt.Errorf("%w: BACKUP_LOCATION=%s", counting.ErrInvalidLocation, c.BackupLocation)
	}
	if c.IDNode < 0 || c.IDNode > 1023 {
		return fmt.Errorf("ID_NODE must be between 0 and 1023, got %d", c.IDNode)
	}
	if c.RateLimitPerMinute < 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return nil
}

// StoreOptions maps the configuration onto storage.Options.
func (c *Config) StoreOptions() storage.Options {
	return storage.Options{
		Driver:        strings.ToLower(c.StoreDriver),
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RedisPrefix:   c.RedisPrefix,
		BoltPath:      c.BoltPath,
		PGDSN:         c.PGDSN,
	}
}

// SharedStore reports whether the configured store can be read by more than
// one process at a time. The worker needs one to see the server's session.
func (c *Config) SharedStore() bool {
	switch strings.ToLower(c.StoreDriver) {
	case storage.DriverRedis, storage.DriverPostgres:
		return true
	default:
		return false
	}
}

// QueueEnabled reports whether a Redis address is available for asynq.
func (c *Config) QueueEnabled() bool {
	return c != nil && c.RedisAddr != ""
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
