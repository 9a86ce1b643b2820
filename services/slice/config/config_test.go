// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", cfg.Provider)
	}
	if cfg.MaxCallDepth != 5 {
		t.Errorf("MaxCallDepth = %d, want 5", cfg.MaxCallDepth)
	}
	if cfg.MaxQueries != 0 {
		t.Errorf("MaxQueries = %d, want 0 (unlimited)", cfg.MaxQueries)
	}
	if cfg.Workers != 4 || cfg.CallTimeoutSeconds != 120 || cfg.MaxAttempts != 3 {
		t.Errorf("tuning defaults = %+v", cfg)
	}
	if cfg.ResultDir != "result" || cfg.ListenAddr != ":8084" {
		t.Errorf("path defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != DefaultProvider || cfg.Workers != DefaultWorkers {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `provider: ollama
model: qwen2.5-coder
max_call_depth: 3
max_queries: 50
workers: 2
result_dir: /tmp/out
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "ollama" || cfg.Model != "qwen2.5-coder" {
		t.Errorf("provider/model = %q/%q", cfg.Provider, cfg.Model)
	}
	if cfg.MaxCallDepth != 3 || cfg.MaxQueries != 50 || cfg.Workers != 2 {
		t.Errorf("tuning = %+v", cfg)
	}
	if cfg.ResultDir != "/tmp/out" {
		t.Errorf("ResultDir = %q", cfg.ResultDir)
	}
	// Untouched fields keep defaults.
	if cfg.CallTimeoutSeconds != DefaultCallTimeoutSeconds {
		t.Errorf("CallTimeoutSeconds = %d, want default", cfg.CallTimeoutSeconds)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: openai\nworkers: 2\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv("SLICE_PROVIDER", "ollama")
	t.Setenv("SLICE_WORKERS", "8")
	t.Setenv("SLICE_MAX_QUERIES", "25")
	t.Setenv("SLICE_LISTEN_ADDR", ":9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "ollama" {
		t.Errorf("Provider = %q, env must win", cfg.Provider)
	}
	if cfg.Workers != 8 || cfg.MaxQueries != 25 {
		t.Errorf("tuning = %+v, env must win", cfg)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
}

func TestLoad_IgnoresUnparseableEnvInt(t *testing.T) {
	t.Setenv("SLICE_WORKERS", "many")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want default when env value is not an int", cfg.Workers)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("provider: [unclosed"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider = "gemini" }},
		{"negative depth", func(c *Config) { c.MaxCallDepth = -1 }},
		{"negative queries", func(c *Config) { c.MaxQueries = -5 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"zero timeout", func(c *Config) { c.CallTimeoutSeconds = 0 }},
		{"negative rate limit", func(c *Config) { c.RateLimitPerMinute = -1 }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate accepted %+v", cfg)
			}
		})
	}
}
