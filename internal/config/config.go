package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	deepSeekBaseURL = "https://api.deepseek.com"
	openAIBaseURL   = "https://api.openai.com/v1"
	deepSeekModel   = "deepseek-chat"
	openAIModel     = "gpt-3.5-turbo"
)

// Config centralizes runtime settings for the relay.
type Config struct {
	Port string

	AuthToken string

	LineAccessToken     string
	LineChannelSecret   string
	LineAPIBaseURL      string
	LineSignatureStrict bool

	// CompletionAPIKey is the DeepSeek key when present, else the OpenAI
	// key. Empty means fallback-only mode.
	CompletionAPIKey      string
	CompletionProvider    string
	CompletionBaseURL     string
	CompletionModel       string
	CompletionTimeoutMS   int
	CompletionMaxRetries  int
	CompletionTemperature float64
	CompletionMaxTokens   int

	MaxTurns    int
	PersonaPath string

	DeliveryMode    string
	ReplyTokenTTLMS int
	DeliveryRPS     float64
	DeliveryBurst   int

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DedupeTTLSeconds int
	DedupeMaxEntries int

	IngestStoreTimeoutMS int

	LogLevel  string
	LogFormat string
}

func Load() Config {
	provider, apiKey := completionCredential()
	defaultBaseURL, defaultModel := deepSeekBaseURL, deepSeekModel
	if provider == "openai" {
		defaultBaseURL, defaultModel = openAIBaseURL, openAIModel
	}

	return Config{
		Port: getEnv("PORT", "3000"),

		AuthToken: getEnv("API_AUTH_TOKEN", ""),

		LineAccessToken:     getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LineChannelSecret:   getEnv("LINE_CHANNEL_SECRET", ""),
		LineAPIBaseURL:      getEnv("LINE_API_BASE_URL", "https://api.line.me"),
		LineSignatureStrict: getEnvBool("LINE_SIGNATURE_STRICT", false),

		CompletionAPIKey:      apiKey,
		CompletionProvider:    provider,
		CompletionBaseURL:     getEnv("COMPLETION_BASE_URL", defaultBaseURL),
		CompletionModel:       getEnv("AI_MODEL_NAME", defaultModel),
		CompletionTimeoutMS:   getEnvInt("COMPLETION_TIMEOUT_MS", 3500),
		CompletionMaxRetries:  getEnvInt("COMPLETION_MAX_RETRIES", 1),
		CompletionTemperature: getEnvFloat("COMPLETION_TEMPERATURE", 0.8),
		CompletionMaxTokens:   getEnvInt("COMPLETION_MAX_TOKENS", 150),

		MaxTurns:    getEnvInt("MAX_TURNS", 10),
		PersonaPath: getEnv("PERSONA_PATH", ""),

		DeliveryMode:    strings.ToLower(getEnv("DELIVERY_MODE", "push")),
		ReplyTokenTTLMS: getEnvInt("REPLY_TOKEN_TTL_MS", 50000),
		DeliveryRPS:     getEnvFloat("DELIVERY_RPS", 10),
		DeliveryBurst:   getEnvInt("DELIVERY_BURST", 20),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DedupeTTLSeconds: getEnvInt("DEDUPE_TTL_SECONDS", 600),
		DedupeMaxEntries: getEnvInt("DEDUPE_MAX_ENTRIES", 10000),

		IngestStoreTimeoutMS: getEnvInt("INGEST_STORE_TIMEOUT_MS", 300),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

func (c Config) AIEnabled() bool {
	return c.CompletionAPIKey != ""
}

func (c Config) CompletionTimeout() time.Duration {
	return time.Duration(c.CompletionTimeoutMS) * time.Millisecond
}

func (c Config) ReplyTokenTTL() time.Duration {
	return time.Duration(c.ReplyTokenTTLMS) * time.Millisecond
}

func (c Config) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLSeconds) * time.Second
}

func (c Config) IngestStoreTimeout() time.Duration {
	return time.Duration(c.IngestStoreTimeoutMS) * time.Millisecond
}

func completionCredential() (provider, apiKey string) {
	if key := strings.TrimSpace(os.Getenv("DEEPSEEK_API_KEY")); key != "" {
		return "deepseek", key
	}
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		return "openai", key
	}
	return "", ""
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
