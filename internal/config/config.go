// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for the local cache database (always absolute)
	BackendURL string // Base URL of the investment-tracker REST backend
	LogLevel   string
	Port       int
	DevMode    bool

	// Synchronization
	PollInterval time.Duration // How often cached collections are refreshed
	StaleAfter   time.Duration // Age after which a cached value is considered stale

	// Benchmark constants for the risk metrics. These approximate the
	// benchmark with fixed expected figures instead of a historical series;
	// defaults are the IBOVESPA/SELIC values the dashboards were built around.
	MarketReturn     float64 // Expected annual benchmark return, percent
	MarketVolatility float64 // Typical benchmark volatility, percent
	RiskFreeRate     float64 // Risk-free rate, percent

	// TrendWindow is the SMA/EMA period over the sampled portfolio value.
	TrendWindow int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := os.Getenv("PATRIMONIO_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir %q: %w", dataDir, err)
	}
	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %q: %w", absDataDir, err)
	}

	port, err := getEnvInt("PATRIMONIO_PORT", 8090)
	if err != nil {
		return nil, err
	}

	pollInterval, err := getEnvDuration("PATRIMONIO_POLL_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, err
	}

	staleAfter, err := getEnvDuration("PATRIMONIO_STALE_AFTER", 25*time.Second)
	if err != nil {
		return nil, err
	}

	marketReturn, err := getEnvFloat("PATRIMONIO_MARKET_RETURN", 15)
	if err != nil {
		return nil, err
	}
	marketVolatility, err := getEnvFloat("PATRIMONIO_MARKET_VOLATILITY", 25)
	if err != nil {
		return nil, err
	}
	riskFreeRate, err := getEnvFloat("PATRIMONIO_RISK_FREE_RATE", 12)
	if err != nil {
		return nil, err
	}

	trendWindow, err := getEnvInt("PATRIMONIO_TREND_WINDOW", 20)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:          absDataDir,
		BackendURL:       getEnv("PATRIMONIO_BACKEND_URL", "http://localhost:8000"),
		LogLevel:         getEnv("PATRIMONIO_LOG_LEVEL", "info"),
		Port:             port,
		DevMode:          getEnv("PATRIMONIO_DEV_MODE", "") == "true",
		PollInterval:     pollInterval,
		StaleAfter:       staleAfter,
		MarketReturn:     marketReturn,
		MarketVolatility: marketVolatility,
		RiskFreeRate:     riskFreeRate,
		TrendWindow:      trendWindow,
	}

	if cfg.StaleAfter > cfg.PollInterval {
		return nil, fmt.Errorf("stale window (%s) must not exceed poll interval (%s)", cfg.StaleAfter, cfg.PollInterval)
	}

	return cfg, nil
}

// CacheDBPath returns the path of the local cache database.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
