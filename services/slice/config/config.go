// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the slicing service configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the YAML file nor the environment sets a
// value.
const (
	DefaultProvider           = "openai"
	DefaultMaxCallDepth       = 5
	DefaultMaxQueries         = 0 // unlimited
	DefaultWorkers            = 4
	DefaultCallTimeoutSeconds = 120
	DefaultMaxAttempts        = 3
	DefaultResultDir          = "result"
	DefaultBadgerPath         = "data/slice-reports"
	DefaultListenAddr         = ":8084"
)

// Config is the full slicing service configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	// Provider selects the oracle backend: "openai" or "ollama".
	Provider string `yaml:"provider"`

	// Model overrides the provider's model env var when non-empty.
	Model string `yaml:"model"`

	// BaseURL overrides the provider endpoint when non-empty. Used by
	// tests and self-hosted gateways.
	BaseURL string `yaml:"base_url"`

	// MaxCallDepth bounds call-boundary crossings from the seed.
	MaxCallDepth int `yaml:"max_call_depth"`

	// MaxQueries caps oracle invocations per run. 0 means unlimited.
	MaxQueries int `yaml:"max_queries"`

	// Workers is the concurrent oracle-query limit.
	Workers int `yaml:"workers"`

	// CallTimeoutSeconds bounds one oracle round trip.
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`

	// RateLimitPerMinute caps oracle queries per minute. 0 disables.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	// MaxAttempts is the retry limit for unparseable oracle answers.
	MaxAttempts int `yaml:"max_attempts"`

	// ResultDir is where slice reports are written as JSON.
	ResultDir string `yaml:"result_dir"`

	// BadgerPath is the BadgerDB directory for the report store.
	BadgerPath string `yaml:"badger_path"`

	// ListenAddr is the HTTP listen address for serve mode.
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	return &Config{
		Provider:           DefaultProvider,
		MaxCallDepth:       DefaultMaxCallDepth,
		MaxQueries:         DefaultMaxQueries,
		Workers:            DefaultWorkers,
		CallTimeoutSeconds: DefaultCallTimeoutSeconds,
		MaxAttempts:        DefaultMaxAttempts,
		ResultDir:          DefaultResultDir,
		BadgerPath:         DefaultBadgerPath,
		ListenAddr:         DefaultListenAddr,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides, then validation.
//
// Outputs:
//   - *Config: The effective configuration.
//   - error: Non-nil for unreadable files, bad YAML, or invalid values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from SLICE_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("SLICE_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("SLICE_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("SLICE_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("SLICE_RESULT_DIR"); v != "" {
		c.ResultDir = v
	}
	if v := os.Getenv("SLICE_BADGER_PATH"); v != "" {
		c.BadgerPath = v
	}
	if v := os.Getenv("SLICE_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	envInt("SLICE_MAX_CALL_DEPTH", &c.MaxCallDepth)
	envInt("SLICE_MAX_QUERIES", &c.MaxQueries)
	envInt("SLICE_WORKERS", &c.Workers)
	envInt("SLICE_CALL_TIMEOUT_SECONDS", &c.CallTimeoutSeconds)
	envInt("SLICE_RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute)
	envInt("SLICE_MAX_ATTEMPTS", &c.MaxAttempts)
}

func envInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}

// Validate checks value ranges and the provider name.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("config: unknown provider %q (want openai or ollama)", c.Provider)
	}
	if c.MaxCallDepth < 0 {
		return fmt.Errorf("config: max_call_depth must be >= 0, got %d", c.MaxCallDepth)
	}
	if c.MaxQueries < 0 {
		return fmt.Errorf("config: max_queries must be >= 0, got %d", c.MaxQueries)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1, got %d", c.Workers)
	}
	if c.CallTimeoutSeconds < 1 {
		return fmt.Errorf("config: call_timeout_seconds must be >= 1, got %d", c.CallTimeoutSeconds)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("config: rate_limit_per_minute must be >= 0, got %d", c.RateLimitPerMinute)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("config: max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	return nil
}
