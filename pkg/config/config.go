package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every environment variable is read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External data sources
	MarketData MarketDataConfig

	// Engine defaults
	Engine EngineConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration for the quote cache.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// MarketDataConfig holds external market-data source configuration.
type MarketDataConfig struct {
	BaseURL         string
	APIKey          string
	CalendarBaseURL string
	RequestsPerSec  float64
	Timeout         time.Duration
}

// EngineConfig holds defaults for screening and trade simulation.
type EngineConfig struct {
	TrailingStopPct     float64       // default trailing-stop distance, percent
	MaxPositions        int           // default concurrent position slots
	MinEarningsSurprise float64       // default qualifying surprise, percent
	CutoffHour          int           // session cutoff for time-based exits
	CutoffMinute        int
	WatchdogStaleAfter  time.Duration // RUNNING runs older than this are failed
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8084"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		MarketData: MarketDataConfig{
			BaseURL:         getEnv("MARKET_DATA_BASE_URL", "https://data.alphascreen.dev/v1"),
			APIKey:          getEnv("MARKET_DATA_API_KEY", ""),
			CalendarBaseURL: getEnv("EARNINGS_CALENDAR_BASE_URL", "https://data.alphascreen.dev"),
			RequestsPerSec:  getEnvAsFloat("MARKET_DATA_RPS", 5),
			Timeout:         getEnvAsDuration("MARKET_DATA_TIMEOUT", "15s"),
		},

		Engine: EngineConfig{
			TrailingStopPct:     getEnvAsFloat("ENGINE_TRAILING_STOP_PCT", 10),
			MaxPositions:        getEnvAsInt("ENGINE_MAX_POSITIONS", 3),
			MinEarningsSurprise: getEnvAsFloat("ENGINE_MIN_EARNINGS_SURPRISE", 5),
			CutoffHour:          getEnvAsInt("ENGINE_CUTOFF_HOUR", 15),
			CutoffMinute:        getEnvAsInt("ENGINE_CUTOFF_MINUTE", 45),
			WatchdogStaleAfter:  getEnvAsDuration("ENGINE_WATCHDOG_STALE_AFTER", "30m"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Engine.TrailingStopPct <= 0 || c.Engine.TrailingStopPct >= 100 {
		return fmt.Errorf("ENGINE_TRAILING_STOP_PCT must be in (0, 100)")
	}

	if c.Engine.MaxPositions < 1 {
		return fmt.Errorf("ENGINE_MAX_POSITIONS must be at least 1")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
