package config

import (
	"time"

	redisclient "github.com/openretry/retryd/internal/infra/redis"
	"github.com/openretry/retryd/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Database  postgres.Config    `yaml:"database"`
	Redis     redisclient.Config `yaml:"redis"`
	Logging   LoggingConfig      `yaml:"logging"`
	Ingest    IngestConfig       `yaml:"ingest"`
	Dispatch  DispatchConfig     `yaml:"dispatch"`
	Retention RetentionConfig    `yaml:"retention"`
	Policies  PolicyConfig       `yaml:"policies"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port       int `yaml:"port"`        // ingestion/admin API
	HealthPort int `yaml:"health_port"` // health + metrics
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// IngestConfig holds notification queue consumption settings.
type IngestConfig struct {
	QueueKey  string `yaml:"queue_key"`
	BatchSize int    `yaml:"batch_size"`
}

// DispatchConfig holds due-record polling settings.
type DispatchConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

// RetentionConfig controls pruning of terminal retry log records.
type RetentionConfig struct {
	Period time.Duration `yaml:"period"` // 0 = keep forever
}

// PolicyConfig controls the policy cache lifecycle.
type PolicyConfig struct {
	ReloadCron string `yaml:"reload_cron"` // empty = no scheduled reload
}
