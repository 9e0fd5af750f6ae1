// Package redis はプロバイダー結果キャッシュ用のRedisクライアントを提供します。
package redis

import (
	"context"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// pingTimeout は起動時の接続確認に使う上限時間です。
const pingTimeout = 5 * time.Second

// Config はRedis接続設定です。
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// LoadConfigFromEnv は環境変数からRedis設定を読み込みます。
// REDIS_PORTが未設定の場合は6379、REDIS_DBが不正な場合は0を使います。
func LoadConfigFromEnv() Config {
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	db, err := strconv.Atoi(os.Getenv("REDIS_DB"))
	if err != nil || db < 0 {
		db = 0
	}
	return Config{
		Host:     os.Getenv("REDIS_HOST"),
		Port:     port,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}
}

// Enabled はREDIS_HOSTが設定されているかを返します。
func (c Config) Enabled() bool { return c.Host != "" }

// Addr は host:port 形式のアドレスを返します。
func (c Config) Addr() string { return net.JoinHostPort(c.Host, c.Port) }

// NewRedisClient はRedisクライアントを作成し、接続を確認します。
func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	addr := cfg.Addr()
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 接続確認
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Error("Redis connection failed", "address", addr, "error", err)
		_ = rdb.Close()
		return nil, err
	}

	slog.Info("Redis connection successful", "address", addr)
	return rdb, nil
}
