// Package config loads the bot configuration from the environment.
// A .env file is read if present; explicit environment variables win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every recognized configuration option.
type Config struct {
	// Required at startup.
	RPCEndpoint string
	WSEndpoint  string

	// WalletPublicKey is the trading wallet address.
	WalletPublicKey string

	// Upstream API keys. Empty keys disable the premium provider.
	BirdeyeAPIKey string

	// Trading parameters.
	MaxActivePositions int
	StopLossPct        float64 // percent below entry
	TakeProfitPct      float64 // percent above entry
	TakeProfitSellPct  float64 // fraction of holdings sold on take-profit, percent
	SlippageBps        int
	DefaultInvestment  float64 // SOL per snipe
	MaxHoldDuration    time.Duration

	// Discovery parameters.
	ScanInterval        time.Duration
	ErrorScanInterval   time.Duration
	MinLiquidity        float64
	MinTokenAgeHours    float64
	MaxTokenAgeHours    float64
	MaxLiquidityWait    time.Duration
	BlockedNamePatterns []string

	// Market data parameters.
	MonitorInterval  time.Duration
	RateLimitRetries int
	RequestQueueSize int

	// Validity gate thresholds.
	MaxLiquidity    float64
	MaxPrice        float64
	VolumeMultiple  float64
	MaxValidAgeDays float64

	// Persistence.
	DataDir string

	// Observability.
	LogLevel    string
	LogDir      string
	MetricsAddr string

	// Shutdown.
	ShutdownGrace time.Duration
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		RPCEndpoint:     os.Getenv("SOLANA_RPC_ENDPOINT"),
		WSEndpoint:      os.Getenv("SOLANA_WS_ENDPOINT"),
		WalletPublicKey: os.Getenv("WALLET_PUBLIC_KEY"),
		BirdeyeAPIKey:   os.Getenv("BIRDEYE_API_KEY"),

		MaxActivePositions: getEnvAsIntOrDefault("MAX_ACTIVE_POSITIONS", 3),
		StopLossPct:        getEnvAsFloatOrDefault("STOP_LOSS_PCT", 50),
		TakeProfitPct:      getEnvAsFloatOrDefault("TAKE_PROFIT_PCT", 200),
		TakeProfitSellPct:  getEnvAsFloatOrDefault("TAKE_PROFIT_SELL_PCT", 80),
		SlippageBps:        getEnvAsIntOrDefault("SLIPPAGE_BPS", 300),
		DefaultInvestment:  getEnvAsFloatOrDefault("DEFAULT_INVESTMENT_SOL", 0.1),
		MaxHoldDuration:    getEnvAsDurationOrDefault("MAX_HOLD_HOURS", 24*time.Hour),

		ScanInterval:      getEnvAsSecondsOrDefault("SCAN_INTERVAL_SECS", 5*time.Second),
		ErrorScanInterval: getEnvAsSecondsOrDefault("ERROR_SCAN_INTERVAL_SECS", 2*time.Second),
		MinLiquidity:      getEnvAsFloatOrDefault("MIN_LIQUIDITY_THRESHOLD", 1000),
		MinTokenAgeHours:  getEnvAsFloatOrDefault("MIN_TOKEN_AGE_HOURS", 0),
		MaxTokenAgeHours:  getEnvAsFloatOrDefault("MAX_TOKEN_AGE_HOURS", 720),
		MaxLiquidityWait:  getEnvAsSecondsOrDefault("MAX_LIQUIDITY_WAIT_SECS", 300*time.Second),

		MonitorInterval:  getEnvAsSecondsOrDefault("MONITOR_INTERVAL_SECS", 15*time.Second),
		RateLimitRetries: getEnvAsIntOrDefault("RATE_LIMIT_RETRIES", 15),
		RequestQueueSize: getEnvAsIntOrDefault("REQUEST_QUEUE_SIZE", 50),

		MaxLiquidity:    getEnvAsFloatOrDefault("MAX_LIQUIDITY_THRESHOLD", 1_000_000),
		MaxPrice:        getEnvAsFloatOrDefault("MAX_PRICE_THRESHOLD", 10_000),
		VolumeMultiple:  getEnvAsFloatOrDefault("MAX_VOLUME_LIQUIDITY_MULTIPLE", 100),
		MaxValidAgeDays: getEnvAsFloatOrDefault("MAX_VALID_AGE_DAYS", 30),

		DataDir: getEnvOrDefault("DATA_DIR", "data"),

		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogDir:      getEnvOrDefault("LOG_DIR", "logs"),
		MetricsAddr: getEnvOrDefault("METRICS_ADDR", ":9090"),

		ShutdownGrace: getEnvAsSecondsOrDefault("SHUTDOWN_GRACE_SECS", 5*time.Second),
	}

	if raw := os.Getenv("BLOCKED_NAME_PATTERNS"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.BlockedNamePatterns = append(cfg.BlockedNamePatterns, strings.ToLower(p))
			}
		}
	} else {
		cfg.BlockedNamePatterns = []string{"test", "scam", "rug"}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required startup configuration is present.
// Missing steady-state options fall back to defaults; a missing RPC
// endpoint is fatal.
func (c *Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("SOLANA_RPC_ENDPOINT is required")
	}
	if c.WSEndpoint == "" {
		return fmt.Errorf("SOLANA_WS_ENDPOINT is required")
	}
	if c.WalletPublicKey == "" {
		return fmt.Errorf("WALLET_PUBLIC_KEY is required")
	}
	if c.MaxActivePositions <= 0 {
		return fmt.Errorf("MAX_ACTIVE_POSITIONS must be positive, got %d", c.MaxActivePositions)
	}
	if c.StopLossPct <= 0 || c.StopLossPct >= 100 {
		return fmt.Errorf("STOP_LOSS_PCT must be in (0, 100), got %v", c.StopLossPct)
	}
	if c.TakeProfitPct < 0 {
		return fmt.Errorf("TAKE_PROFIT_PCT must not be negative, got %v", c.TakeProfitPct)
	}
	if c.TakeProfitSellPct <= 0 || c.TakeProfitSellPct > 100 {
		return fmt.Errorf("TAKE_PROFIT_SELL_PCT must be in (0, 100], got %v", c.TakeProfitSellPct)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsSecondsOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if hours, err := strconv.ParseFloat(value, 64); err == nil && hours > 0 {
			return time.Duration(hours * float64(time.Hour))
		}
	}
	return defaultValue
}
