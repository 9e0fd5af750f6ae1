// Package db はカメラ登録用のgorm接続を提供します。
package db

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	cameraadapters "surveillance_backend/internal/feature/camera/adapters"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// DefaultSQLitePath はDB_PATH未設定時のSQLiteファイルです。
	DefaultSQLitePath = "surveillance.db"

	connectTimeout = 60 * time.Second
)

// retryInterval は接続リトライの間隔です。
var retryInterval = 3 * time.Second

// Config はデータベース接続設定です。
type Config struct {
	Driver       string
	User         string
	Password     string
	Name         string
	Host         string
	Port         string
	SSLMode      string
	InstanceName string // Cloud SQLのインスタンス接続名
	Path         string // SQLiteのファイルパス
}

// LoadConfigFromEnv は環境変数からデータベース設定を読み込みます。
func LoadConfigFromEnv() Config {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if driver == "" {
		driver = DriverPostgres
	}
	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}
	path := os.Getenv("DB_PATH")
	if path == "" {
		path = DefaultSQLitePath
	}
	return Config{
		Driver:       driver,
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         os.Getenv("DB_NAME"),
		Host:         os.Getenv("DB_HOST"),
		Port:         os.Getenv("DB_PORT"),
		SSLMode:      sslMode,
		InstanceName: os.Getenv("INSTANCE_CONNECTION_NAME"),
		Path:         path,
	}
}

// BuildDSN は設定からDSN文字列を生成します。
// SQLiteではファイルパスを、PostgreSQLではkey=value形式を返します。
// InstanceNameが設定されている場合はCloud SQLのUnixソケットを優先します。
func BuildDSN(cfg Config) string {
	if cfg.Driver == DriverSQLite {
		return cfg.Path
	}
	host := cfg.Host
	if cfg.InstanceName != "" {
		host = "/cloudsql/" + cfg.InstanceName
	}
	parts := []string{
		"host=" + host,
		"user=" + cfg.User,
		"password=" + cfg.Password,
		"dbname=" + cfg.Name,
	}
	if cfg.Port != "" && cfg.InstanceName == "" {
		parts = append(parts, "port="+cfg.Port)
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts = append(parts, "sslmode="+sslMode, "TimeZone=UTC")
	return strings.Join(parts, " ")
}

// Dialector は設定されたドライバーのgorm.Dialectorを返します。
func Dialector(cfg Config, dsn string) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

// ConnectWithRetry はtimeoutに達するまでopenerを繰り返し呼び出します。
func ConnectWithRetry(dsn string, timeout time.Duration, opener func(dsn string) (*gorm.DB, error)) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := opener(dsn)
		if err == nil {
			return db, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("DB connect failed after %s: %w", timeout, err)
		}
		slog.Warn("DB connect failed, retrying", "error", err)
		time.Sleep(min(retryInterval, remaining))
	}
}

// OpenDB は設定に従ってデータベースに接続します。
// SQLiteまたはRUN_MIGRATIONS=trueの場合はカメラテーブルをマイグレーションします。
func OpenDB(cfg Config) (*gorm.DB, error) {
	dsn := BuildDSN(cfg)
	dialector, err := Dialector(cfg, dsn)
	if err != nil {
		return nil, err
	}

	db, err := ConnectWithRetry(dsn, connectTimeout, func(string) (*gorm.DB, error) {
		return gorm.Open(dialector, &gorm.Config{TranslateError: true})
	})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite || os.Getenv("RUN_MIGRATIONS") == "true" {
		// マイグレーション（Camera）
		if err := db.AutoMigrate(&cameraadapters.CameraModel{}); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}

	slog.Info("DB connection successful", "driver", cfg.Driver)
	return db, nil
}
