// Package config loads process configuration from the environment,
// following the same env-var-with-default idiom used throughout this
// codebase's cmd/ entrypoints.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the top-level process configuration for the reader service.
type Config struct {
	// HTTP server
	ListenAddr string

	// Browser pool
	BrowserRemoteURL string // optional CDP endpoint; empty launches a local browser
	BrowserStealth   bool
	BrowserMaxCtx    int // loaded but not applied: the pool always sizes itself from free memory

	// LLM provider
	LLMBaseURL string
	LLMAPIKey  string

	// SearchWeb tool backend; empty disables the searchWeb built-in tool
	SearchWebBaseURL string

	// Object storage
	StorageBucket string
	CrunchPrefix  string
	CrunchRev     int

	// Cruncher schedule
	CruncherTMinusDays int
	CruncherBatchSize  int

	// AuthSecret enables the JWT ambient auth surface when non-empty (see
	// internal/api.Server.AuthSecret). Empty disables it.
	AuthSecret string

	// SQLite paths
	StoreDBPath         string
	ObservabilityDBPath string
	TraceDBPath         string
	SQLTrace            bool

	LogLevel string
}

// Load builds a Config from the environment, applying defaults matching
// spec.md's documented values (B=10000, T-minus 31 days, rev 1, etc.).
func Load() *Config {
	return &Config{
		ListenAddr: env("READER_LISTEN_ADDR", ":8080"),

		BrowserRemoteURL: env("READER_BROWSER_REMOTE_URL", ""),
		BrowserStealth:   envBool("READER_BROWSER_STEALTH", true),
		BrowserMaxCtx:    envInt("READER_BROWSER_MAX_CTX", 0),

		LLMBaseURL: env("READER_LLM_BASE_URL", ""),
		LLMAPIKey:  env("READER_LLM_API_KEY", ""),

		SearchWebBaseURL: env("READER_SEARCHWEB_BASE_URL", ""),

		AuthSecret: env("READER_AUTH_SECRET", ""),

		StorageBucket: env("READER_STORAGE_BUCKET", ""),
		CrunchPrefix:  env("READER_CRUNCH_PREFIX", "crunch"),
		CrunchRev:     envInt("READER_CRUNCH_REV", 1),

		CruncherTMinusDays: envInt("READER_CRUNCHER_TMINUS_DAYS", 31),
		CruncherBatchSize:  envInt("READER_CRUNCHER_BATCH_SIZE", 10000),

		StoreDBPath:         env("READER_STORE_DB", "reader.db"),
		ObservabilityDBPath: env("READER_OBSERVABILITY_DB", "reader_observability.db"),
		TraceDBPath:         env("READER_TRACE_DB", "reader_traces.db"),
		SQLTrace:            envBool("READER_SQL_TRACE", false),

		LogLevel: env("LOG_LEVEL", "info"),
	}
}

// NextCruncherRun returns the next 02:00 UTC instant strictly after now.
func NextCruncherRun(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
