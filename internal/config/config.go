package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Score failure policies for the message validator.
const (
	ScoreFailClosed = "closed"
	ScoreFailOpen   = "open"
)

// State backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendGorm   = "gorm"
)

type Config struct {
	Port     string
	LogLevel string

	// Messaging gateway
	GatewayBaseURL   string
	GatewayToken     string
	GatewayRateLimit float64
	DeviceID         string
	DevicePhone      string
	WebhookURL       string

	// Persistence
	StateBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DBDriver      string
	DBDSN         string

	// Language model
	OpenAIKey     string
	OpenAIBaseURL string
	ScoreModel    string
	TTSModel      string
	Voice         string
	VoiceSpeed    float64
	ScoreTimeout  time.Duration
	TTSTimeout    time.Duration
	TurnTimeout   time.Duration

	// Message validation
	MinLength             int
	AuthenticityThreshold float64
	ScoreFailurePolicy    string

	// Limits
	MaxMessagesPerChat int
	QuotaWindow        time.Duration
	ChatHistoryLimit   int
	MaxAudioChars      int

	// Eligibility
	NumbersWhitelist   []string
	NumbersBlacklist   []string
	SkipChatWithLabels []string
	SkipArchivedChats  bool

	// Post-send bookkeeping
	SetLabelsOnBotChats   []string
	SetMetadataOnBotChats []MetadataEntry

	// Features
	AudioOutput bool
	AudioOnly   bool

	TempPath    string
	ProfilePath string

	// Warnings lists values that were ignored while loading, for the caller to log.
	Warnings []string
}

// MetadataEntry is a key/value pair pushed to the gateway after bot replies.
type MetadataEntry struct {
	Key   string
	Value string
}

func LoadConfig() (*Config, error) {
	env := &envReader{}
	if err := godotenv.Load(); err != nil {
		env.warn("no .env file loaded: %v", err)
	}

	cfg := &Config{
		Port:     env.getEnv("PORT", "8080"),
		LogLevel: env.getEnv("LOG_LEVEL", "info"),

		GatewayBaseURL:   env.getEnv("GATEWAY_API_URL", "https://api.wassenger.com/v1"),
		GatewayToken:     env.getEnv("GATEWAY_API_TOKEN", ""),
		GatewayRateLimit: env.getEnvFloat("GATEWAY_RATE_LIMIT", 5),
		DeviceID:         env.getEnv("DEVICE_ID", ""),
		DevicePhone:      env.getEnv("DEVICE_PHONE", ""),
		WebhookURL:       env.getEnv("WEBHOOK_URL", ""),

		StateBackend:  strings.ToLower(env.getEnv("STATE_BACKEND", BackendMemory)),
		RedisAddr:     env.getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: env.getEnv("REDIS_PASSWORD", ""),
		RedisDB:       env.getEnvInt("REDIS_DB", 0),
		DBDriver:      env.getEnv("DB_DRIVER", "sqlite"),
		DBDSN:         env.getEnv("DB_DSN", "./concierge.db"),

		OpenAIKey:     env.getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: env.getEnv("OPENAI_BASE_URL", ""),
		ScoreModel:    env.getEnv("SCORE_MODEL", "gpt-3.5-turbo"),
		TTSModel:      env.getEnv("TTS_MODEL", "tts-1"),
		Voice:         env.getEnv("TTS_VOICE", "alloy"),
		VoiceSpeed:    env.getEnvFloat("TTS_SPEED", 1.0),
		ScoreTimeout:  env.getEnvDuration("SCORE_TIMEOUT", 15*time.Second),
		TTSTimeout:    env.getEnvDuration("TTS_TIMEOUT", 30*time.Second),
		TurnTimeout:   env.getEnvDuration("TURN_TIMEOUT", 2*time.Minute),

		MinLength:             env.getEnvInt("MESSAGE_MIN_LENGTH", 100),
		AuthenticityThreshold: env.getEnvFloat("AUTHENTICITY_THRESHOLD", 0.6),
		ScoreFailurePolicy:    strings.ToLower(env.getEnv("SCORE_FAILURE_POLICY", ScoreFailClosed)),

		MaxMessagesPerChat: env.getEnvInt("MAX_MESSAGES_PER_CHAT", 500),
		QuotaWindow:        time.Duration(env.getEnvInt("MAX_MESSAGES_WINDOW_SECONDS", 24*60*60)) * time.Second,
		ChatHistoryLimit:   env.getEnvInt("CHAT_HISTORY_LIMIT", 20),
		MaxAudioChars:      env.getEnvInt("MAX_AUDIO_CHARS", 4096),

		NumbersWhitelist:   env.getEnvList("NUMBERS_WHITELIST"),
		NumbersBlacklist:   env.getEnvList("NUMBERS_BLACKLIST"),
		SkipChatWithLabels: env.getEnvList("SKIP_CHAT_WITH_LABELS"),
		SkipArchivedChats:  env.getEnvBool("SKIP_ARCHIVED_CHATS", true),

		SetLabelsOnBotChats:   env.getEnvList("SET_LABELS_ON_BOT_CHATS"),
		SetMetadataOnBotChats: parseMetadata(env.getEnvList("SET_METADATA_ON_BOT_CHATS")),

		AudioOutput: env.getEnvBool("FEATURE_AUDIO_OUTPUT", false),
		AudioOnly:   env.getEnvBool("FEATURE_AUDIO_ONLY", false),

		TempPath:    env.getEnv("TEMP_PATH", filepath.Join(os.TempDir(), "whatsapp-concierge")),
		ProfilePath: env.getEnv("PROFILE_PATH", ""),
	}
	cfg.Warnings = env.warnings

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a turn.
func (c *Config) Validate() error {
	switch c.StateBackend {
	case BackendMemory, BackendRedis, BackendGorm:
	default:
		return fmt.Errorf("STATE_BACKEND must be memory, redis or gorm, got %q", c.StateBackend)
	}
	switch c.ScoreFailurePolicy {
	case ScoreFailClosed, ScoreFailOpen:
	default:
		return fmt.Errorf("SCORE_FAILURE_POLICY must be closed or open, got %q", c.ScoreFailurePolicy)
	}
	if c.AuthenticityThreshold < 0 || c.AuthenticityThreshold > 1 {
		return fmt.Errorf("AUTHENTICITY_THRESHOLD must be within [0,1], got %v", c.AuthenticityThreshold)
	}
	if c.MaxMessagesPerChat <= 0 {
		return fmt.Errorf("MAX_MESSAGES_PER_CHAT must be positive")
	}
	if c.QuotaWindow <= 0 {
		return fmt.Errorf("MAX_MESSAGES_WINDOW_SECONDS must be positive")
	}
	if c.AudioOutput && c.WebhookURL == "" {
		return fmt.Errorf("WEBHOOK_URL is required when FEATURE_AUDIO_OUTPUT is enabled")
	}
	return nil
}

// envReader reads typed variables and records the ones it had to ignore.
type envReader struct {
	warnings []string
}

func (e *envReader) warn(format string, args ...any) {
	e.warnings = append(e.warnings, fmt.Sprintf(format, args...))
}

func (e *envReader) getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func (e *envReader) getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		e.warn("invalid integer for %s: %q, using default", key, value)
		return fallback
	}
	return parsed
}

func (e *envReader) getEnvFloat(key string, fallback float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		e.warn("invalid number for %s: %q, using default", key, value)
		return fallback
	}
	return parsed
}

func (e *envReader) getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		e.warn("invalid boolean for %s: %q, using default", key, value)
		return fallback
	}
	return parsed
}

func (e *envReader) getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		e.warn("invalid duration for %s: %q, using default", key, value)
		return fallback
	}
	return parsed
}

// getEnvList splits a comma separated variable, dropping blanks.
func (e *envReader) getEnvList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseMetadata turns "key=value" items into entries; items without a key or value are skipped.
func parseMetadata(items []string) []MetadataEntry {
	var out []MetadataEntry
	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			continue
		}
		out = append(out, MetadataEntry{Key: key, Value: value})
	}
	return out
}
