package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/poolwatch/internal/core/domain"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, expanding ${VAR} references and applying defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.TON.Network == "" {
		cfg.TON.Network = domain.NetworkMainnet
	}
	if cfg.TON.ConfigURL == "" {
		cfg.TON.ConfigURL = domain.NetworkConfigURL[cfg.TON.Network]
	}

	if cfg.Ingest.ScanInterval == 0 {
		cfg.Ingest.ScanInterval = time.Second
	}
	if cfg.Ingest.TipCacheTTL == 0 {
		cfg.Ingest.TipCacheTTL = 3 * time.Second
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 10
	}
	if cfg.Ingest.PageSize == 0 {
		cfg.Ingest.PageSize = 1000
	}
	if cfg.Ingest.Retry.Attempts == 0 {
		cfg.Ingest.Retry.Attempts = 3
	}
	if cfg.Ingest.Retry.Base == 0 {
		cfg.Ingest.Retry.Base = 200 * time.Millisecond
	}

	if len(cfg.Protocols) == 0 {
		cfg.Protocols = append([]domain.Protocol(nil), domain.KnownProtocols...)
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.Driver == DriverSQLite && cfg.Database.Path == "" {
		cfg.Database.Path = "data/poolwatch.db"
	}

	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = "@hourly"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate reports configuration the service cannot start with.
func (c *AppConfig) Validate() error {
	if c.TON.ConfigURL == "" {
		return fmt.Errorf("ton.config_url is required for network %q", c.TON.Network)
	}
	for _, p := range c.Protocols {
		if _, err := domain.ParseProtocol(string(p)); err != nil {
			return err
		}
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Retention.Period < 0 {
		return fmt.Errorf("retention.period must not be negative")
	}
	return nil
}
