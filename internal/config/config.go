/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment     string
	HTTPBind        string
	HTTPPort        int
	BaseURL         string // Public base URL (e.g., https://waveform.example.com)
	DBBackend       DatabaseBackend
	DBDSN           string
	MediaRoot       string
	JWTSigningKey   string
	JWTTokenTTL     time.Duration
	MaxUploadSizeMB int // Optional global multipart upload limit override for web handlers (MB)

	// S3 Object Storage configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3PublicBaseURL   string // Optional CDN/CloudFront URL
	S3UsePathStyle    bool   // Required for MinIO

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Cache / player-state persistence
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Cross-process event relay (optional)
	NATSURL string

	// SoundCloud resolution service
	SoundCloudAPIBase   string
	SoundCloudStreamAPI string        // stream extraction endpoint (cobalt-compatible)
	ResolveTimeout      time.Duration // hard deadline on a single resolution call
	ResolveCacheTTL     time.Duration // redis TTL for resolved stream URLs

	InstanceID        string
	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:     getEnvAny([]string{"WAVEFORM_ENV", "WF_ENV"}, "development"),
		HTTPBind:        getEnvAny([]string{"WAVEFORM_HTTP_BIND", "WF_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:        getEnvIntAny([]string{"WAVEFORM_HTTP_PORT", "WF_HTTP_PORT"}, 8080),
		BaseURL:         getEnvAny([]string{"WAVEFORM_BASE_URL", "WF_BASE_URL"}, ""),
		DBBackend:       DatabaseBackend(getEnvAny([]string{"WAVEFORM_DB_BACKEND", "WF_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:           getEnvAny([]string{"WAVEFORM_DB_DSN", "WF_DB_DSN"}, ""),
		MediaRoot:       getEnvAny([]string{"WAVEFORM_MEDIA_ROOT", "WF_MEDIA_ROOT"}, "./media"),
		JWTSigningKey:   getEnvAny([]string{"WAVEFORM_JWT_SIGNING_KEY", "WF_JWT_SIGNING_KEY"}, ""),
		JWTTokenTTL:     time.Duration(getEnvIntAny([]string{"WAVEFORM_JWT_TTL_HOURS", "WF_JWT_TTL_HOURS"}, 72)) * time.Hour,
		MaxUploadSizeMB: getEnvIntAny([]string{"WAVEFORM_MAX_UPLOAD_SIZE_MB", "WF_MAX_UPLOAD_SIZE_MB"}, 0),

		// S3 Object Storage configuration
		S3AccessKeyID:     getEnvAny([]string{"WAVEFORM_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"WAVEFORM_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"WAVEFORM_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"WAVEFORM_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"WAVEFORM_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3PublicBaseURL:   getEnvAny([]string{"WAVEFORM_S3_PUBLIC_BASE_URL", "S3_PUBLIC_BASE_URL"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"WAVEFORM_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),

		// Tracing configuration
		TracingEnabled:    getEnvBoolAny([]string{"WAVEFORM_TRACING_ENABLED", "WF_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"WAVEFORM_OTLP_ENDPOINT", "WF_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"WAVEFORM_TRACING_SAMPLE_RATE", "WF_TRACING_SAMPLE_RATE"}, 1.0),

		RedisAddr:     getEnvAny([]string{"WAVEFORM_REDIS_ADDR", "WF_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"WAVEFORM_REDIS_PASSWORD", "WF_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"WAVEFORM_REDIS_DB", "WF_REDIS_DB"}, 0),

		NATSURL: getEnvAny([]string{"WAVEFORM_NATS_URL", "WF_NATS_URL"}, ""),

		SoundCloudAPIBase:   getEnvAny([]string{"WAVEFORM_SOUNDCLOUD_API_BASE", "SOUNDCLOUD_API_BASE"}, "https://api-v2.soundcloud.com"),
		SoundCloudStreamAPI: getEnvAny([]string{"WAVEFORM_SOUNDCLOUD_STREAM_API", "SOUNDCLOUD_STREAM_API"}, ""),
		ResolveTimeout:      time.Duration(getEnvIntAny([]string{"WAVEFORM_RESOLVE_TIMEOUT_SECONDS", "WF_RESOLVE_TIMEOUT_SECONDS"}, 12)) * time.Second,
		ResolveCacheTTL:     time.Duration(getEnvIntAny([]string{"WAVEFORM_RESOLVE_CACHE_TTL_SECONDS", "WF_RESOLVE_CACHE_TTL_SECONDS"}, 120)) * time.Second,

		InstanceID: getEnvAny([]string{"WAVEFORM_INSTANCE_ID", "WF_INSTANCE_ID"}, ""),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("WAVEFORM_DB_DSN or WF_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("WAVEFORM_JWT_SIGNING_KEY or WF_JWT_SIGNING_KEY must be provided")
	}

	if cfg.ResolveTimeout < 10*time.Second || cfg.ResolveTimeout > 15*time.Second {
		return nil, fmt.Errorf("WAVEFORM_RESOLVE_TIMEOUT_SECONDS must be between 10 and 15, got %s", cfg.ResolveTimeout)
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if len(cfg.JWTSigningKey) < 16 {
			return nil, fmt.Errorf("WAVEFORM_JWT_SIGNING_KEY must be at least 16 characters in production")
		}
		if cfg.SoundCloudStreamAPI == "" {
			return nil, fmt.Errorf("WAVEFORM_SOUNDCLOUD_STREAM_API must be set in production")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT":     "use WAVEFORM_ENV (or WF_ENV)",
		"JWT_SIGNING_KEY": "use WAVEFORM_JWT_SIGNING_KEY (or WF_JWT_SIGNING_KEY)",
		"DATABASE_URL":    "use WAVEFORM_DB_DSN (or WF_DB_DSN)",
		"TRACING_ENABLED": "use WAVEFORM_TRACING_ENABLED (or WF_TRACING_ENABLED)",
		"OTLP_ENDPOINT":   "use WAVEFORM_OTLP_ENDPOINT (or WF_OTLP_ENDPOINT)",
		"REDIS_ADDR":      "use WAVEFORM_REDIS_ADDR (or WF_REDIS_ADDR)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// MaxUploadSizeBytes returns the configured upload limit in bytes.
// A value of 0 means "not configured" and callers should use endpoint defaults.
func (c *Config) MaxUploadSizeBytes() int64 {
	if c == nil || c.MaxUploadSizeMB <= 0 {
		return 0
	}
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
