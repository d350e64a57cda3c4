package config

import (
	"time"

	redisclient "github.com/vietddude/recourse/internal/infra/redis"
	"github.com/vietddude/recourse/internal/infra/storage/postgres"
	"github.com/vietddude/recourse/internal/notify"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Database   postgres.Config    `yaml:"database"`
	Redis      redisclient.Config `yaml:"redis"`
	Logging    LoggingConfig      `yaml:"logging"`
	Escalation EscalationConfig   `yaml:"escalation"`
	Carriers   CarriersConfig     `yaml:"carriers"`
	Notify     notify.Config      `yaml:"notify"`
	Reports    ReportsConfig      `yaml:"reports"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// EscalationConfig holds the follow-up scan settings.
type EscalationConfig struct {
	// Silence windows, in whole days, before each stage fires.
	StatusRequestDays int `yaml:"status_request_days"`
	WarningDays       int `yaml:"warning_days"`
	FormalNoticeDays  int `yaml:"formal_notice_days"`

	// BatchLimit caps how many queued tasks a scheduled pass executes.
	BatchLimit int `yaml:"batch_limit"`

	// ProcessingLease is how long a task may sit in processing before the
	// reaper returns it to pending.
	ProcessingLease time.Duration `yaml:"processing_lease"`

	// Workers is the parallel consumer count in long-running mode.
	Workers int `yaml:"workers"`
}

// CarriersConfig holds carrier gateway settings.
type CarriersConfig struct {
	// Credentials is a flat upper-snake-case map (COLISSIMO_API_KEY, ...).
	Credentials map[string]string `yaml:"credentials"`
	Timeout     time.Duration     `yaml:"timeout"`
	CacheTTL    time.Duration     `yaml:"cache_ttl"`
}

// ReportsConfig holds document generation settings.
type ReportsConfig struct {
	Dir string `yaml:"dir"`
}
