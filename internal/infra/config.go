package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	DatabaseURL       string
	JWTSecret         string
	SupabaseURL       string
	SupabaseAnonKey   string
	GenerationWebhook string
	NotifyWebhook     string
	ElevenLabsAPIKey  string
	ElevenLabsVoice   string
	ElevenLabsBaseURL string
	StoragePath       string
	QueueSnapshotPath string
	GeoIPDBPath       string
	DefaultLocale     string
	WebhookTimeout    time.Duration
	WebhookMaxRetries int
	QueuePollInterval time.Duration
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		SupabaseURL:       os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey:   os.Getenv("SUPABASE_ANON_KEY"),
		GenerationWebhook: os.Getenv("N8N_WEBHOOK_URL"),
		NotifyWebhook:     os.Getenv("NOTIFY_WEBHOOK_URL"),
		ElevenLabsAPIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoice:   getEnv("ELEVENLABS_VOICE", "charlotte"),
		ElevenLabsBaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		QueueSnapshotPath: getEnv("QUEUE_SNAPSHOT_PATH", "./storage/queue.json"),
		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:     getEnv("DEFAULT_LOCALE", "fr"),
		WebhookTimeout:    time.Second * time.Duration(getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 30)),
		WebhookMaxRetries: getEnvInt("WEBHOOK_MAX_RETRIES", 2),
		QueuePollInterval: time.Second * time.Duration(getEnvInt("QUEUE_POLL_INTERVAL_SECONDS", 120)),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
