// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

// Package config defines the Watchdeck configuration model and its loading
// rules. Configuration is layered: built-in defaults, then an optional YAML
// file, then environment variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Watchdeck server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Upstream UpstreamConfig `koanf:"upstream"`
	TVLookup TVLookupConfig `koanf:"tvlookup"`
	Store    StoreConfig    `koanf:"store"`
	Images   ImagesConfig   `koanf:"images"`
	Client   ClientConfig   `koanf:"client"`
	API      APIConfig      `koanf:"api"`
	Auth     AuthConfig     `koanf:"auth"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// UpstreamConfig configures the media server this portal fronts.
type UpstreamConfig struct {
	URL     string        `koanf:"url" validate:"required,url"`
	Token   string        `koanf:"token" validate:"required"`
	Timeout time.Duration `koanf:"timeout"`
}

// TVLookupConfig configures the external TV-episode lookup service used to
// resolve cross-reference links.
type TVLookupConfig struct {
	// Enabled gates all lookup traffic. When false, enrichment still runs
	// but never resolves TV links through the external service.
	Enabled bool          `koanf:"enabled"`
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`

	// RatePerSecond bounds outbound lookup calls. The service is a shared
	// third-party catalog; we must not swamp it.
	RatePerSecond float64 `koanf:"rate_per_second" validate:"gte=0"`
}

// StoreConfig configures the persistent link/color caches.
type StoreConfig struct {
	Path       string        `koanf:"path" validate:"required"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// ImagesConfig configures the filesystem image cache read by the
// color-averaging step.
type ImagesConfig struct {
	CacheDir string `koanf:"cache_dir"`
}

// ClientConfig configures the polling display client.
type ClientConfig struct {
	// ProgressInterval is the cadence of lightweight progress polls.
	ProgressInterval time.Duration `koanf:"progress_interval"`
}

// APIConfig configures the HTTP API surface.
type APIConfig struct {
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gt=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// AuthConfig is the boundary to the external authentication collaborator.
// Watchdeck does not manage accounts or cookies; it only maps presented
// tokens to privilege levels.
type AuthConfig struct {
	// Tokens maps a bearer token to a privilege level (0-100).
	Tokens map[string]int `koanf:"tokens"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
