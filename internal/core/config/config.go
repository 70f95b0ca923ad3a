package config

import (
	"time"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/infra/chain/ton"
	redisclient "github.com/vietddude/poolwatch/internal/infra/redis"
	"github.com/vietddude/poolwatch/internal/infra/storage/postgres"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	TON       ton.Config         `yaml:"ton"`
	Ingest    IngestConfig       `yaml:"ingest"`
	Protocols []domain.Protocol  `yaml:"protocols"`
	Database  DatabaseConfig     `yaml:"database"`
	Redis     redisclient.Config `yaml:"redis"`
	Retention RetentionConfig    `yaml:"retention"`
	Logging   LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// IngestConfig tunes the block loop and shard fetching.
type IngestConfig struct {
	ScanInterval time.Duration `yaml:"scan_interval"`
	TipCacheTTL  time.Duration `yaml:"tip_cache_ttl"` // negative disables
	Workers      int           `yaml:"workers"`
	PageSize     uint32        `yaml:"page_size"`
	Retry        RetryConfig   `yaml:"retry"`
}

// RetryConfig controls retries of transient chain errors.
type RetryConfig struct {
	Attempts uint64        `yaml:"attempts"`
	Base     time.Duration `yaml:"base"`
}

// DatabaseConfig selects and configures the pools storage.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // postgres, sqlite, memory
	postgres.Config `yaml:",inline"`
	Path            string `yaml:"path"` // sqlite file
}

// RetentionConfig controls pruning of old trading stats.
type RetentionConfig struct {
	Period   time.Duration `yaml:"period"`   // 0 = keep forever
	Schedule string        `yaml:"schedule"` // cron spec
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // optional rotating JSON log
}
