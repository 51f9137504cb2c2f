package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	// Database
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	DatabaseURL string

	// Redis
	EnableRedis bool
	RedisURL    string
	CacheTTL    time.Duration

	// Server
	Port        string
	Environment string
	LogLevel    string

	// CORS
	CORSOrigins []string

	// Rate Limiting
	RateLimitRequests int
	RateLimitWindow   int
	RateLimitBurst    int

	// Features
	EnableMetrics bool

	// Content migration
	ContentSchemaVersion int
	ImportConcurrency    int
	MaxImportBatch       int
	BackfillOnStart      bool
	BackfillBatchSize    int
}

func New() *Config {
	c := &Config{
		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "curriculum"),
		DBPassword: getEnv("DB_PASSWORD", "curriculum"),
		DBName:     getEnv("DB_NAME", "curriculum"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Redis
		EnableRedis: getEnvAsBool("ENABLE_REDIS", true),
		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),
		CacheTTL:    time.Duration(getEnvAsInt("CACHE_TTL_SECONDS", 600)) * time.Second,

		// Server
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// CORS
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080")),

		// Rate Limiting
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvAsInt("RATE_LIMIT_WINDOW", 60),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 0),

		// Features
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),

		// Content migration
		ContentSchemaVersion: getEnvAsInt("CONTENT_SCHEMA_VERSION", 1),
		ImportConcurrency:    getEnvAsInt("IMPORT_CONCURRENCY", 4),
		MaxImportBatch:       getEnvAsInt("MAX_IMPORT_BATCH", 500),
		BackfillOnStart:      getEnvAsBool("BACKFILL_ON_START", false),
		BackfillBatchSize:    getEnvAsInt("BACKFILL_BATCH_SIZE", 200),
	}

	defaultLevel := "debug"
	if c.IsProduction() {
		defaultLevel = "info"
	}
	c.LogLevel = getEnv("LOG_LEVEL", defaultLevel)

	if c.ContentSchemaVersion <= 0 {
		c.ContentSchemaVersion = 1
	}
	if c.ImportConcurrency <= 0 {
		c.ImportConcurrency = 1
	}
	if c.BackfillBatchSize <= 0 {
		c.BackfillBatchSize = 200
	}

	// Build DSN
	c.DatabaseURL = fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)

	return c
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return valueStr == "true" || valueStr == "1"
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
