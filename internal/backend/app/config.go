package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/askbar/pkg/httpx"
)

type Config struct {
	Issuer   string   // Issuer claim for tokens (default: askbar-identity)
	Audience []string // Audience claim for tokens, comma separated (default: askbar)

	KeyFile              string        // Optional: PEM Ed25519 key; generated on first start. Empty means ephemeral keys
	DatabaseFile         string        // Path to SQLite database file (default: ./askbar.db)
	PepperFile           string        // Path to file containing pepper for password hashing (default: ./pepper)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired token cleanup interval (default: 1h)
	AccessTTL            time.Duration // Access token lifetime (default: 15m)
	RefreshTTL           time.Duration // Refresh token lifetime (default: 30d)
	MetricsEnabled       bool          // Serve /metrics (default: true)

	Limits httpx.Limits
}

func LoadConfig() Config {
	return Config{
		Issuer:               getEnvOrDefault("ASKBAR_ISSUER", "askbar-identity"),
		Audience:             splitList(getEnvOrDefault("ASKBAR_AUDIENCE", "askbar")),
		KeyFile:              os.Getenv("ASKBAR_KEY_FILE"),
		DatabaseFile:         getEnvOrDefault("ASKBAR_DATABASE_FILE", "askbar.db"),
		PepperFile:           getEnvOrDefault("ASKBAR_PEPPER_FILE", "pepper"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		AccessTTL:            getEnvDurationOrDefault("ASKBAR_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:           getEnvDurationOrDefault("ASKBAR_REFRESH_TTL", 30*24*time.Hour),
		MetricsEnabled:       getEnvBoolOrDefault("METRICS_ENABLED", true),
		Limits:               httpx.LimitsFromEnv(),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
