package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Marketplace API
	APIURL string
	WSURL  string
	Token  string

	// Platform constants. The engine treats these as opaque injected
	// values; they only change when the platform repartitions hardware
	// or re-denominates prices.
	GPUsPerNode         int64
	CenticentsPerDollar int64

	// Fill polling
	PollInterval time.Duration
	PollAttempts int

	// Local order history
	HistoryPath string

	// Telemetry
	LogLevel string
}

// Load reads .env, the credentials file, then the environment, in
// increasing order of precedence.
func Load() *Config {
	_ = godotenv.Load()

	creds, _ := LoadCredentials(DefaultCredentialsPath())

	cfg := &Config{
		APIURL: envStr("SFC_API_URL", creds.APIURL),
		WSURL:  envStr("SFC_WS_URL", ""),
		Token:  envStr("SFC_TOKEN", creds.Token),

		GPUsPerNode:         envInt64("SFC_GPUS_PER_NODE", 8),
		CenticentsPerDollar: 10_000,

		PollInterval: time.Duration(envInt64("SFC_POLL_INTERVAL_MS", 500)) * time.Millisecond,
		PollAttempts: int(envInt64("SFC_POLL_ATTEMPTS", 10)),

		HistoryPath: envStr("SFC_HISTORY_PATH", defaultHistoryPath()),

		LogLevel: envStr("SFC_LOG_LEVEL", "info"),
	}

	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.sfcompute.com"
	}
	return cfg
}

// HasToken reports whether an auth token is available. Commands that hit
// the marketplace check this before doing any work.
func (c *Config) HasToken() bool { return c.Token != "" }

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sfc-history.db"
	}
	return filepath.Join(home, ".sfcompute", "history.db")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
