package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Run mode: "sim" runs the engine in-process against the simulated
	// exchange page; "hub" runs only the scheduler side and waits for page
	// agents to connect over /ws.
	RunMode string

	// Engine
	IntervalMode  string // "fast" or "medium"
	TokenAddress  string
	OrderCooldown time.Duration

	// Bus
	HubURL            string
	BusDialTimeout    time.Duration
	BusReplyTimeout   time.Duration
	BusReconnectDelay time.Duration

	// Scheduler
	WakeInterval time.Duration

	// Simulated exchange (sim mode only)
	SimTokenSymbol    string
	SimStartBalance   float64
	SimStartPrice     float64
	SimFillDelayMin   time.Duration
	SimFillDelayMax   time.Duration
	SimSlowFillChance float64

	// Storage
	StorageMode  string // "postgres" or "memory"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string

	// Telegram notifications (optional; log notifier used when unset)
	TelegramBotToken string
	TelegramChatID   int64
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),
		RunMode:  getEnvOrDefault("RUN_MODE", "sim"),

		// Engine defaults
		IntervalMode:  getEnvOrDefault("INTERVAL_MODE", "medium"),
		TokenAddress:  os.Getenv("TOKEN_ADDRESS"),
		OrderCooldown: getDurationOrDefault("ORDER_COOLDOWN", 5*time.Second),

		// Bus defaults
		HubURL:            getEnvOrDefault("HUB_URL", "ws://localhost:8080/ws"),
		BusDialTimeout:    getDurationOrDefault("BUS_DIAL_TIMEOUT", 10*time.Second),
		BusReplyTimeout:   getDurationOrDefault("BUS_REPLY_TIMEOUT", 15*time.Second),
		BusReconnectDelay: getDurationOrDefault("BUS_RECONNECT_DELAY", 2*time.Second),

		// Scheduler defaults
		WakeInterval: getDurationOrDefault("WAKE_INTERVAL", time.Minute),

		// Sim defaults
		SimTokenSymbol:    getEnvOrDefault("SIM_TOKEN_SYMBOL", "SIM"),
		SimStartBalance:   getFloat64OrDefault("SIM_START_BALANCE", 1000.0),
		SimStartPrice:     getFloat64OrDefault("SIM_START_PRICE", 0.02),
		SimFillDelayMin:   getDurationOrDefault("SIM_FILL_DELAY_MIN", 500*time.Millisecond),
		SimFillDelayMax:   getDurationOrDefault("SIM_FILL_DELAY_MAX", 3*time.Second),
		SimSlowFillChance: getFloat64OrDefault("SIM_SLOW_FILL_CHANCE", 0.05),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "memory"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "alphapilot"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "alphapilot"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "alpha_pilot"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),

		// Telegram defaults
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   getInt64OrDefault("TELEGRAM_CHAT_ID", 0),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.RunMode != "sim" && c.RunMode != "hub" {
		return fmt.Errorf("RUN_MODE must be 'sim' or 'hub', got %q", c.RunMode)
	}

	if c.IntervalMode != "fast" && c.IntervalMode != "medium" {
		return fmt.Errorf("INTERVAL_MODE must be 'fast' or 'medium', got %q", c.IntervalMode)
	}

	if c.StorageMode != "memory" && c.StorageMode != "postgres" {
		return fmt.Errorf("STORAGE_MODE must be 'memory' or 'postgres', got %q", c.StorageMode)
	}

	if c.SimFillDelayMax < c.SimFillDelayMin {
		return fmt.Errorf("SIM_FILL_DELAY_MAX must be >= SIM_FILL_DELAY_MIN")
	}

	if c.SimSlowFillChance < 0 || c.SimSlowFillChance > 1 {
		return fmt.Errorf("SIM_SLOW_FILL_CHANCE must be in [0,1], got %f", c.SimSlowFillChance)
	}

	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID required when TELEGRAM_BOT_TOKEN is set")
	}

	return nil
}

// PostgresDSN assembles the connection string for the postgres store.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPass, c.PostgresDB, c.PostgresSSL)
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
