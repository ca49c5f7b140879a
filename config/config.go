package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries all runtime settings. Values come from environment
// variables (main loads .env via godotenv first) with paper-trading
// defaults.
type Config struct {
	Port         string
	DatabasePath string
	JournalDir   string

	AlpacaAPIKey    string
	AlpacaAPISecret string
	AlpacaBaseURL   string
	AlpacaDataURL   string

	TradierToken   string
	TradierSandbox bool

	// Exit supervision
	PollInterval     time.Duration
	EntryFillTimeout time.Duration
	UseMarketForTP   bool

	// Per-direction exit multipliers applied to the entry fill price
	CallTakeProfitMult float64
	CallStopMult       float64
	PutTakeProfitMult  float64
	PutStopMult        float64
}

// Load reads configuration from the environment
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "data/trader.db"),
		JournalDir:   getEnv("JOURNAL_DIR", "data/journal"),

		AlpacaAPIKey:    getEnv("ALPACA_API_KEY", ""),
		AlpacaAPISecret: getEnv("ALPACA_API_SECRET", ""),
		AlpacaBaseURL:   getEnv("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
		AlpacaDataURL:   getEnv("ALPACA_DATA_URL", "https://data.alpaca.markets"),

		TradierToken:   getEnv("TRADIER_TOKEN", ""),
		TradierSandbox: getEnvBool("TRADIER_SANDBOX", true),

		PollInterval:     getEnvDuration("EXIT_POLL_INTERVAL", 2*time.Second),
		EntryFillTimeout: getEnvDuration("ENTRY_FILL_TIMEOUT", 90*time.Second),
		UseMarketForTP:   getEnvBool("USE_MARKET_FOR_TP", true),

		CallTakeProfitMult: getEnvFloat("CALL_TAKE_PROFIT_MULT", 1.90),
		CallStopMult:       getEnvFloat("CALL_STOP_MULT", 0.50),
		PutTakeProfitMult:  getEnvFloat("PUT_TAKE_PROFIT_MULT", 1.50),
		PutStopMult:        getEnvFloat("PUT_STOP_MULT", 0.50),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
