package app

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	StudyPath string
	// Vars override study file variables.
	Vars map[string]string
	// Workflows selects what to run. Empty means every workflow the study
	// has inputs for.
	Workflows []string

	WorkDir    string
	NThreads   int
	NFibers    int
	Workers    int
	Rerun      bool
	MaxRetries int
	MRtrixBin  string

	LogFormat       string
	LogLevel        string
	LogFile         string
	HealthcheckPort int
}

// NewConfig validates cfg and returns a copy with defaults applied.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.StudyPath == "" {
		return nil, errors.New("a study file is required")
	}
	if cfg.WorkDir == "" {
		return nil, errors.New("a working directory is required")
	}
	if cfg.NThreads < 0 {
		return nil, fmt.Errorf("nthreads must not be negative, got %d", cfg.NThreads)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("retries must not be negative, got %d", cfg.MaxRetries)
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, errors.New("invalid log-format: must be 'text' or 'json'")
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	return &cfg, nil
}
