package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is given: in-memory
// friendly settings with the standard escalation windows.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Escalation.StatusRequestDays == 0 {
		cfg.Escalation.StatusRequestDays = 7
	}
	if cfg.Escalation.WarningDays == 0 {
		cfg.Escalation.WarningDays = 14
	}
	if cfg.Escalation.FormalNoticeDays == 0 {
		cfg.Escalation.FormalNoticeDays = 21
	}
	if cfg.Escalation.BatchLimit == 0 {
		cfg.Escalation.BatchLimit = 100
	}
	if cfg.Escalation.ProcessingLease == 0 {
		cfg.Escalation.ProcessingLease = 10 * time.Minute
	}
	if cfg.Escalation.Workers == 0 {
		cfg.Escalation.Workers = 4
	}

	if cfg.Carriers.Timeout == 0 {
		cfg.Carriers.Timeout = 15 * time.Second
	}
	if cfg.Carriers.CacheTTL == 0 {
		cfg.Carriers.CacheTTL = 30 * time.Minute
	}

	if cfg.Reports.Dir == "" {
		cfg.Reports.Dir = "reports"
	}
}
