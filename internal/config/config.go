// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

// Package config provides layered application configuration.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in values for every optional setting
//  2. Config file: optional YAML file (config.yaml)
//  3. Environment variables: override any setting
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pressrank/config.yaml",
	"/etc/pressrank/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Storage     StorageConfig     `koanf:"storage"`
	Remote      RemoteConfig      `koanf:"remote"`
	Artifact    ArtifactConfig    `koanf:"artifact"`
	Ranker      RankerConfig      `koanf:"ranker"`
	Sync        SyncConfig        `koanf:"sync"`
	Personalize PersonalizeConfig `koanf:"personalize"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// StorageConfig holds the embedded preference and artifact store settings.
type StorageConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// RemoteConfig holds settings for the remote preference and artifact
// services. When disabled the engine runs fully local: no mirror, no
// artifact downloads.
type RemoteConfig struct {
	Enabled           bool          `koanf:"enabled"`
	BaseURL           string        `koanf:"base_url"`
	Timeout           time.Duration `koanf:"timeout" validate:"min=1s"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int           `koanf:"burst" validate:"min=1"`
}

// ArtifactConfig controls scoring artifact refresh behaviour.
type ArtifactConfig struct {
	RefreshInterval  time.Duration `koanf:"refresh_interval" validate:"min=1m"`
	RefreshOnStartup bool          `koanf:"refresh_on_startup"`
}

// WeightsConfig is one blend weight profile. The four weights must sum
// to 1.0 within a small tolerance.
type WeightsConfig struct {
	Artifact float64 `koanf:"artifact" validate:"min=0"`
	Local    float64 `koanf:"local" validate:"min=0"`
	Recency  float64 `koanf:"recency" validate:"min=0"`
	Trending float64 `koanf:"trending" validate:"min=0"`
}

// RankerConfig holds hybrid ranking settings.
type RankerConfig struct {
	UseArtifactBlend bool          `koanf:"use_artifact_blend"`
	RecencyHalfLife  time.Duration `koanf:"recency_half_life" validate:"min=1m"`
	Default          WeightsConfig `koanf:"default_weights"`
	RuleHeavy        WeightsConfig `koanf:"rule_heavy_weights"`
}

// SyncConfig controls the background preference sync worker.
type SyncConfig struct {
	Enabled     bool          `koanf:"enabled"`
	PushTimeout time.Duration `koanf:"push_timeout" validate:"min=1s"`
}

// PersonalizeConfig holds behaviour settings for the preference store.
type PersonalizeConfig struct {
	// KnownCategories seeds a balanced starting profile for brand-new
	// users so favorite-category partitioning has material to work with.
	KnownCategories []string `koanf:"known_categories"`
	RNGSeed         int64    `koanf:"rng_seed"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. These are applied
// first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8460,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Storage: StorageConfig{
			Path:     "/data/pressrank",
			InMemory: false,
		},
		Remote: RemoteConfig{
			Enabled:           false,
			BaseURL:           "",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Artifact: ArtifactConfig{
			RefreshInterval:  6 * time.Hour,
			RefreshOnStartup: true,
		},
		Ranker: RankerConfig{
			UseArtifactBlend: false,
			RecencyHalfLife:  24 * time.Hour,
			Default: WeightsConfig{
				Artifact: 0.30,
				Local:    0.40,
				Recency:  0.20,
				Trending: 0.10,
			},
			RuleHeavy: WeightsConfig{
				Artifact: 0.05,
				Local:    0.65,
				Recency:  0.20,
				Trending: 0.10,
			},
		},
		Sync: SyncConfig{
			Enabled:     true,
			PushTimeout: 15 * time.Second,
		},
		Personalize: PersonalizeConfig{
			KnownCategories: []string{},
			RNGSeed:         0, // 0 = non-deterministic ordering within tiers
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Remote.Enabled && c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required when remote.enabled is true")
	}
	if c.Ranker.UseArtifactBlend && !c.Remote.Enabled {
		return fmt.Errorf("ranker.use_artifact_blend requires remote.enabled")
	}
	if err := c.Ranker.Default.validateSum("ranker.default_weights"); err != nil {
		return err
	}
	if err := c.Ranker.RuleHeavy.validateSum("ranker.rule_heavy_weights"); err != nil {
		return err
	}
	return nil
}

// weightSumTolerance bounds floating point drift in configured weights.
const weightSumTolerance = 0.01

func (w WeightsConfig) validateSum(section string) error {
	sum := w.Artifact + w.Local + w.Recency + w.Trending
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("%s: weights must sum to 1.0, got %.4f", section, sum)
	}
	return nil
}

// findConfigFile returns the first config file found, or empty string.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings translates well-known environment variables to config paths.
// Explicit mapping avoids ambiguity between underscores inside a key name
// and underscores separating path segments.
var envMappings = map[string]string{
	"server_host":              "server.host",
	"server_port":              "server.port",
	"server_timeout":           "server.timeout",
	"server_shutdown_timeout":  "server.shutdown_timeout",
	"server_rate_limit_reqs":   "server.rate_limit_reqs",
	"server_rate_limit_window": "server.rate_limit_window",
	"server_cors_origins":      "server.cors_origins",

	"storage_path":      "storage.path",
	"storage_in_memory": "storage.in_memory",

	"remote_enabled":             "remote.enabled",
	"remote_base_url":            "remote.base_url",
	"remote_timeout":             "remote.timeout",
	"remote_requests_per_second": "remote.requests_per_second",
	"remote_burst":               "remote.burst",

	"artifact_refresh_interval":   "artifact.refresh_interval",
	"artifact_refresh_on_startup": "artifact.refresh_on_startup",

	"ranker_use_artifact_blend": "ranker.use_artifact_blend",
	"ranker_recency_half_life":  "ranker.recency_half_life",

	"sync_enabled":      "sync.enabled",
	"sync_push_timeout": "sync.push_timeout",

	"personalize_known_categories": "personalize.known_categories",
	"personalize_rng_seed":         "personalize.rng_seed",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unknown variables are dropped so unrelated process environment never
// leaks into the configuration.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// sliceConfigPaths lists paths parsed as comma-separated slices when set
// from environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"personalize.known_categories",
}

// processSliceFields converts comma-separated strings to slices for known
// slice fields. Values that arrived as YAML arrays pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}
