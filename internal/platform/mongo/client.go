// Package mongo はカメラ登録用のMongoDBクライアントを提供します。
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	// DefaultDatabase はMONGO_DATABASE未設定時のデータベース名です。
	DefaultDatabase = "surveillance"

	connectTimeout = 10 * time.Second
)

// Config はMongoDB接続設定です。
type Config struct {
	URI      string
	Database string
}

// LoadConfigFromEnv は環境変数からMongoDB設定を読み込みます。
func LoadConfigFromEnv() Config {
	name := os.Getenv("MONGO_DATABASE")
	if name == "" {
		name = DefaultDatabase
	}
	return Config{URI: os.Getenv("MONGO_URI"), Database: name}
}

// Enabled はMONGO_URIが設定されているかを返します。
func (c Config) Enabled() bool { return c.URI != "" }

// Connect はMongoDBに接続し、到達できることを確認します。
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetConnectTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		slog.Error("MongoDB connection failed", "database", cfg.Database, "error", err)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	slog.Info("MongoDB connection successful", "database", cfg.Database)
	return client, nil
}
