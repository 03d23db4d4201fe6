package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the health-coach service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	DatabaseURL string
	RedisURL    string

	AIAPIKey      string
	AIModel       string
	AIBaseURL     string
	AITemperature float64
	AIMaxTokens   int
	AITimeout     time.Duration

	MaxContextMessages       int
	MaxInputTokens           int
	MemoryExtractionInterval int

	// Per-user message sends per second, with burst. Protects the model
	// endpoint from a single chatty client.
	ChatRatePerSecond float64
	ChatRateBurst     int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "disha"),
		AllowAnyOrigin:   false,
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		RedisURL:         stringsTrimSpace("REDIS_URL"),
		AIAPIKey:         stringsTrimSpace("OPENROUTER_API_KEY"),
		AIModel:          envOrDefault("AI_MODEL", "openai/gpt-4o-mini"),
		AIBaseURL:        envOrDefault("AI_BASE_URL", "https://openrouter.ai/api/v1"),
		// Matches the model-side defaults: mildly creative, chat-sized replies.
		AITemperature:            0.7,
		AIMaxTokens:              500,
		AITimeout:                60 * time.Second,
		MaxContextMessages:       15,
		MaxInputTokens:           3000,
		MemoryExtractionInterval: 5,
		ChatRatePerSecond:        1,
		ChatRateBurst:            3,
		ShutdownTimeout:          15 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.AITemperature, err = floatFromEnv("AI_TEMPERATURE", cfg.AITemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.AIMaxTokens, err = intFromEnv("AI_MAX_TOKENS", cfg.AIMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.AITimeout, err = durationFromEnv("AI_TIMEOUT", cfg.AITimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxContextMessages, err = intFromEnv("MAX_CONTEXT_MESSAGES", cfg.MaxContextMessages)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxInputTokens, err = intFromEnv("MAX_INPUT_TOKENS", cfg.MaxInputTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryExtractionInterval, err = intFromEnv("MEMORY_EXTRACTION_INTERVAL", cfg.MemoryExtractionInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatRatePerSecond, err = floatFromEnv("CHAT_RATE_PER_SECOND", cfg.ChatRatePerSecond)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatRateBurst, err = intFromEnv("CHAT_RATE_BURST", cfg.ChatRateBurst)
	if err != nil {
		return Config{}, err
	}

	if cfg.MaxContextMessages <= 0 {
		return Config{}, fmt.Errorf("MAX_CONTEXT_MESSAGES must be positive")
	}
	if cfg.MaxInputTokens <= 500 {
		return Config{}, fmt.Errorf("MAX_INPUT_TOKENS must be greater than 500")
	}
	if cfg.MemoryExtractionInterval <= 0 {
		return Config{}, fmt.Errorf("MEMORY_EXTRACTION_INTERVAL must be positive")
	}
	if cfg.AITemperature < 0 || cfg.AITemperature > 2 {
		return Config{}, fmt.Errorf("AI_TEMPERATURE must be between 0 and 2")
	}
	if cfg.AIMaxTokens <= 0 {
		return Config{}, fmt.Errorf("AI_MAX_TOKENS must be positive")
	}
	if cfg.ChatRatePerSecond <= 0 {
		return Config{}, fmt.Errorf("CHAT_RATE_PER_SECOND must be positive")
	}
	if cfg.ChatRateBurst <= 0 {
		return Config{}, fmt.Errorf("CHAT_RATE_BURST must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
