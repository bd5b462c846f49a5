// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TenantConfig holds per-tenant credentials for the reservation system.
type TenantConfig struct {
	Alias         string `yaml:"alias"`
	SednaBaseURL  string `yaml:"sedna_base_url"`
	SednaUsername string `yaml:"sedna_username"`
	SednaPassword string `yaml:"sedna_password"`
	// OperatorID is the tour-operator id this tenant books under. It is
	// stamped into every stop-sale and reservation payload.
	OperatorID   int64  `yaml:"operator_id"`
	OperatorCode string `yaml:"operator_code"`
}

// Config holds all configuration for the sync service.
type Config struct {
	Tenants []TenantConfig

	// Extraction
	OpenAIKey           string
	OpenAIModel         string
	ConfidenceThreshold float64

	// Resolution / reference data
	CacheTTL      time.Duration
	FuzzyMinScore float64
	FuzzyLimit    int

	// Outbound API
	SednaTimeout time.Duration
	SednaRetries int
	CallSpacing  time.Duration

	// Sync orchestration
	SyncWorkers int

	// Storage
	PostgresDSN string
	RedisURL    string

	// Server
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Tenants []struct {
		Alias         string `yaml:"alias"`
		SednaBaseURL  string `yaml:"sedna_base_url"`
		SednaUsername string `yaml:"sedna_username"`
		SednaPassword string `yaml:"sedna_password"`
		OperatorID    int64  `yaml:"operator_id"`
		OperatorCode  string `yaml:"operator_code"`
	} `yaml:"tenants"`
	OpenAI struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		OpenAIKey:           firstNonEmpty(raw.OpenAI.APIKey, envOrDefault("OPENAI_API_KEY", "")),
		OpenAIModel:         firstNonEmpty(raw.OpenAI.Model, envOrDefault("OPENAI_MODEL", "gpt-4o-mini")),
		ConfidenceThreshold: envOrDefaultFloat("CONFIDENCE_THRESHOLD", 0.85),
		CacheTTL:            envOrDefaultDuration("CACHE_TTL", 24*time.Hour),
		FuzzyMinScore:       envOrDefaultFloat("FUZZY_MIN_SCORE", 0.5),
		FuzzyLimit:          envOrDefaultInt("FUZZY_LIMIT", 10),
		SednaTimeout:        envOrDefaultDuration("SEDNA_TIMEOUT", 30*time.Second),
		SednaRetries:        envOrDefaultInt("SEDNA_RETRIES", 3),
		CallSpacing:         envOrDefaultDuration("SEDNA_CALL_SPACING", 200*time.Millisecond),
		SyncWorkers:         envOrDefaultInt("SYNC_WORKERS", 4),
		PostgresDSN:         firstNonEmpty(raw.Postgres.DSN, envOrDefault("POSTGRES_DSN", "postgres://localhost:5432/hotelsync")),
		RedisURL:            firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		Port:                envOrDefaultInt("PORT", 8080),
	}

	// Build tenant configs
	for _, t := range raw.Tenants {
		tc := TenantConfig{
			Alias:         t.Alias,
			SednaBaseURL:  strings.TrimRight(t.SednaBaseURL, "/"),
			SednaUsername: t.SednaUsername,
			SednaPassword: t.SednaPassword,
			OperatorID:    t.OperatorID,
			OperatorCode:  t.OperatorCode,
		}

		// Skip tenants with empty credentials (commented out in YAML)
		if tc.SednaBaseURL == "" || tc.SednaUsername == "" || tc.SednaPassword == "" {
			continue
		}

		if tc.Alias == "" {
			tc.Alias = tc.SednaUsername
		}

		cfg.Tenants = append(cfg.Tenants, tc)
	}

	if len(cfg.Tenants) == 0 {
		return nil, fmt.Errorf("no tenants configured — check config.yaml and environment variables")
	}

	return cfg, nil
}

// Tenant returns the tenant block for the given alias, or nil.
func (c *Config) Tenant(alias string) *TenantConfig {
	for i := range c.Tenants {
		if c.Tenants[i].Alias == alias {
			return &c.Tenants[i]
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
