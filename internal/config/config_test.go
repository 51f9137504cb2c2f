package config

import (
	"os"
	"testing"
	"time"
)

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	original, existed := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset %s: %v", key, err)
	}
	t.Cleanup(func() {
		if !existed {
			_ = os.Unsetenv(key)
			return
		}
		_ = os.Setenv(key, original)
	})
}

func TestContentDefaults(t *testing.T) {
	for _, key := range []string{"CONTENT_SCHEMA_VERSION", "IMPORT_CONCURRENCY", "MAX_IMPORT_BATCH", "BACKFILL_ON_START", "CACHE_TTL_SECONDS"} {
		unsetEnv(t, key)
	}

	cfg := New()
	if cfg.ContentSchemaVersion != 1 {
		t.Fatalf("expected schema version 1, got %d", cfg.ContentSchemaVersion)
	}
	if cfg.ImportConcurrency != 4 || cfg.MaxImportBatch != 500 {
		t.Fatalf("unexpected import defaults: %d / %d", cfg.ImportConcurrency, cfg.MaxImportBatch)
	}
	if cfg.BackfillOnStart {
		t.Fatalf("expected backfill to be off by default")
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Fatalf("expected 10 minute cache ttl, got %s", cfg.CacheTTL)
	}
}

func TestInvalidSchemaVersionFallsBack(t *testing.T) {
	t.Setenv("CONTENT_SCHEMA_VERSION", "-3")
	t.Setenv("IMPORT_CONCURRENCY", "zero")

	cfg := New()
	if cfg.ContentSchemaVersion != 1 {
		t.Fatalf("expected fallback to version 1, got %d", cfg.ContentSchemaVersion)
	}
	if cfg.ImportConcurrency != 4 {
		t.Fatalf("expected unparseable concurrency to use the default, got %d", cfg.ImportConcurrency)
	}
}

func TestLogLevelFollowsEnvironment(t *testing.T) {
	unsetEnv(t, "LOG_LEVEL")
	t.Setenv("ENVIRONMENT", "production")

	if cfg := New(); cfg.LogLevel != "info" {
		t.Fatalf("expected info level in production, got %q", cfg.LogLevel)
	}

	t.Setenv("LOG_LEVEL", "warn")
	if cfg := New(); cfg.LogLevel != "warn" {
		t.Fatalf("expected explicit level to win, got %q", cfg.LogLevel)
	}
}

func TestCORSOriginsAreTrimmed(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")

	cfg := New()
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
}
