package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	LogLevel          string
	HTTPListenAddr    string
	DatabaseURL       string
	WhatsAppStorePath string
	WhatsAppDeviceJID string
	WhatsAppLogLevel  string
	GeminiAPIKey      string
	GeminiModel       string
	GeminiTimeout     time.Duration
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITimeout     time.Duration
	AIFailureLimit    int
	AICooldown        time.Duration
	MetricsNamespace  string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisTLS          bool
	SessionTTL        time.Duration
	CashbackRecipient string
	CashbackPercent   float64
}

// Load returns configuration populated from environment variables with fallbacks.
// The AI keys are optional: a missing key only disables that adapter, the
// deterministic fallback keeps the bot usable.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:            getenvDefault("APP_ENV", "development"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
		HTTPListenAddr:    getenvDefault("HTTP_LISTEN_ADDR", ":8080"),
		DatabaseURL:       trimmedEnv("DATABASE_URL"),
		WhatsAppStorePath: getenvDefault("WHATSAPP_STORE_PATH", "data/wa-store.db"),
		WhatsAppDeviceJID: trimmedEnv("WHATSAPP_DEVICE_JID"),
		WhatsAppLogLevel:  getenvDefault("WHATSAPP_LOG_LEVEL", "INFO"),
		GeminiAPIKey:      trimmedEnv("GEMINI_API_KEY"),
		GeminiModel:       getenvDefault("GEMINI_MODEL", "gemini-2.5-flash-lite"),
		OpenAIAPIKey:      trimmedEnv("OPENAI_API_KEY"),
		OpenAIModel:       getenvDefault("OPENAI_MODEL", "gpt-4o"),
		MetricsNamespace:  getenvDefault("METRICS_NAMESPACE", "bot_chitieu"),
		RedisAddr:         getenvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     trimmedEnv("REDIS_PASSWORD"),
		CashbackRecipient: trimmedEnv("CASHBACK_DEFAULT_PERSON"),
	}

	var err error
	if cfg.GeminiTimeout, err = durationEnv("GEMINI_TIMEOUT", "20s"); err != nil {
		return nil, err
	}
	if cfg.OpenAITimeout, err = durationEnv("OPENAI_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.AICooldown, err = durationEnv("AI_COOLDOWN", "5m"); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", "30m"); err != nil {
		return nil, err
	}

	limitStr := getenvDefault("AI_FAILURE_THRESHOLD", "3")
	limit, convErr := strconv.Atoi(limitStr)
	if convErr != nil || limit < 1 {
		return nil, fmt.Errorf("invalid AI_FAILURE_THRESHOLD value %q", limitStr)
	}
	cfg.AIFailureLimit = limit

	if pctStr := getenvDefault("CASHBACK_DEFAULT_PERCENT", "0"); pctStr != "" {
		pct, convErr := strconv.ParseFloat(strings.TrimSpace(pctStr), 64)
		if convErr != nil {
			return nil, fmt.Errorf("invalid CASHBACK_DEFAULT_PERCENT value: %w", convErr)
		}
		if pct < 0 {
			pct = 0
		}
		cfg.CashbackPercent = pct
	}

	if redisDBStr := getenvDefault("REDIS_DB", "0"); redisDBStr != "" {
		db, convErr := strconv.Atoi(redisDBStr)
		if convErr != nil {
			return nil, fmt.Errorf("invalid REDIS_DB value: %w", convErr)
		}
		cfg.RedisDB = db
	}

	cfg.RedisTLS = strings.EqualFold(getenvDefault("REDIS_TLS", "false"), "true")

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func durationEnv(key, fallback string) (time.Duration, error) {
	raw := getenvDefault(key, fallback)
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return dur, nil
}

func getenvDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func trimmedEnv(key string) string {
	if val, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(val)
	}
	return ""
}
