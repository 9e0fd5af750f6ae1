// Package config はサーバー全体の設定を環境変数から読み込みます。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"surveillance_backend/internal/platform/db"
	"surveillance_backend/internal/platform/mongo"
	"surveillance_backend/internal/platform/redis"
)

// Config はサーバー設定です。
type Config struct {
	Host            string
	Port            string
	RequestTimeout  time.Duration // 1回の検出リクエスト全体の上限
	ProviderTimeout time.Duration // 種類ごとの設定が無い場合のプロバイダータイムアウト
	CacheTTL        time.Duration
	ShutdownTimeout time.Duration
	LogLevel        slog.Level

	JWTSecret           string
	ProvidersConfigPath string

	VisionEnabled bool
	GeminiEnabled bool
	GeminiModel   string

	EvidenceConnectionString string
	EvidenceAccountName      string
	EvidenceAccountKey       string
	EvidenceContainer        string

	DB    db.Config
	Mongo mongo.Config
	Redis redis.Config
}

// ServerAddress は host:port 形式の待ち受けアドレスを返します。
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strings.TrimSpace(c.Port))
}

// EvidenceEnabled は証拠画像の保存先が設定されているかを返します。
// 接続文字列、またはアカウント名とキーの組のどちらかが必要です。
func (c *Config) EvidenceEnabled() bool {
	return c.EvidenceConnectionString != "" || (c.EvidenceAccountName != "" && c.EvidenceAccountKey != "")
}

// LoadFromEnv は環境変数から設定を読み込み、検証します。
// 不正な値はまとめてエラーとして返します。
func LoadFromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		Host:                     getEnvOrDefault("HOST", "0.0.0.0"),
		Port:                     getEnvOrDefault("PORT", "8080"),
		JWTSecret:                os.Getenv("JWT_SECRET"),
		ProvidersConfigPath:      os.Getenv("PROVIDERS_CONFIG"),
		GeminiModel:              os.Getenv("GEMINI_MODEL"),
		EvidenceConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
		EvidenceAccountName:      os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
		EvidenceAccountKey:       os.Getenv("AZURE_STORAGE_ACCOUNT_KEY"),
		EvidenceContainer:        getEnvOrDefault("EVIDENCE_CONTAINER", "evidence"),
		DB:                       db.LoadConfigFromEnv(),
		Mongo:                    mongo.LoadConfigFromEnv(),
		Redis:                    redis.LoadConfigFromEnv(),
	}

	cfg.RequestTimeout = parseDuration("DETECTION_REQUEST_TIMEOUT", 30*time.Second, &errs)
	cfg.ProviderTimeout = parseDuration("PROVIDER_DEFAULT_TIMEOUT", 10*time.Second, &errs)
	cfg.CacheTTL = parseDuration("PROVIDER_CACHE_TTL", 30*time.Second, &errs)
	cfg.ShutdownTimeout = parseDuration("SHUTDOWN_TIMEOUT", 15*time.Second, &errs)
	cfg.VisionEnabled = parseBool("VISION_ENABLED", &errs)
	cfg.GeminiEnabled = parseBool("GEMINI_ENABLED", &errs)

	level, err := parseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.LogLevel = level

	// Validate port is numeric and in range
	if p, err := strconv.Atoi(strings.TrimSpace(cfg.Port)); err != nil || p < 1 || p > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT: %q", cfg.Port))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be a positive duration (got %q)", key, value))
		return defaultValue
	}
	return d
}

func parseBool(key string, errs *[]error) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return false
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a boolean (got %q)", key, value))
		return false
	}
	return b
}

func parseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL: %q", s)
	}
	return level, nil
}
