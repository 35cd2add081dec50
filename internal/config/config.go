package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Redis（空の場合はプロセス内ロックを使う）
	RedisURL string

	// Auth
	JWTSecret string
	JWTTTL    time.Duration

	// Provisioning
	ProvisionDefaultPassword string

	// Webhook
	WebhookSecret       string
	WebhookMaxBodyBytes int64

	// Quota
	QuotaLocation        *time.Location
	QuotaFailOpen        bool
	LoveSketchDailyLimit int

	// Generation
	GenerationAPIKey     string
	GenerationBaseURL    string
	GenerationImageModel string
	GenerationTextModel  string
	GenerationTimeout    time.Duration

	// Rate Limit（1分あたり）
	RateLimitGeneral int
	RateLimitWebhook int

	// Cleanup
	LogRetentionDays int
	CleanupInterval  time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既に設定済みの環境変数が優先）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.ProvisionDefaultPassword = os.Getenv("PROVISION_DEFAULT_PASSWORD")
	if cfg.ProvisionDefaultPassword == "" {
		missing = append(missing, "PROVISION_DEFAULT_PASSWORD")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	tzName := getEnvString("QUOTA_TIME_ZONE", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid QUOTA_TIME_ZONE %q: %w", tzName, err)
	}
	cfg.QuotaLocation = loc

	// Optional fields with defaults
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.JWTTTL = getEnvDuration("JWT_TTL", 24*time.Hour)
	cfg.WebhookSecret = getEnvString("WEBHOOK_SECRET", "")
	cfg.WebhookMaxBodyBytes = getEnvInt64("WEBHOOK_MAX_BODY_BYTES", 256*1024)
	cfg.QuotaFailOpen = getEnvBool("QUOTA_FAIL_OPEN", true)
	cfg.LoveSketchDailyLimit = getEnvInt("LOVE_SKETCH_DAILY_LIMIT", 2)
	cfg.GenerationAPIKey = getEnvString("GENERATION_API_KEY", "")
	cfg.GenerationBaseURL = getEnvString("GENERATION_BASE_URL", "https://api.openai.com/v1")
	cfg.GenerationImageModel = getEnvString("GENERATION_IMAGE_MODEL", "dall-e-3")
	cfg.GenerationTextModel = getEnvString("GENERATION_TEXT_MODEL", "gpt-4o-mini")
	cfg.GenerationTimeout = getEnvDuration("GENERATION_TIMEOUT", 60*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWebhook = getEnvInt("RATE_LIMIT_WEBHOOK", 60)
	cfg.LogRetentionDays = getEnvInt("LOG_RETENTION_DAYS", 30)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
