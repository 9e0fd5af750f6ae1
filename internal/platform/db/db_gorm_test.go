package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	cameraadapters "surveillance_backend/internal/feature/camera/adapters"
)

// TestBuildDSN はドライバーと接続先ごとにDSN文字列が正しく生成されることを検証します。
func TestBuildDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      Config
		expected string
	}{
		{
			name: "postgres tcp",
			cfg: Config{
				Driver: DriverPostgres, User: "testuser", Password: "testpass", Name: "testdb",
				Host: "localhost", Port: "5432", SSLMode: "require",
			},
			expected: "host=localhost user=testuser password=testpass dbname=testdb port=5432 sslmode=require TimeZone=UTC",
		},
		{
			name: "postgres default sslmode",
			cfg: Config{
				Driver: DriverPostgres, User: "u", Password: "p", Name: "d", Host: "db",
			},
			expected: "host=db user=u password=p dbname=d sslmode=disable TimeZone=UTC",
		},
		{
			name: "cloud sql takes precedence over host and port",
			cfg: Config{
				Driver: DriverPostgres, User: "testuser", Password: "testpass", Name: "testdb",
				Host: "localhost", Port: "5432", InstanceName: "project:region:instance",
			},
			expected: "host=/cloudsql/project:region:instance user=testuser password=testpass dbname=testdb sslmode=disable TimeZone=UTC",
		},
		{
			name:     "sqlite path",
			cfg:      Config{Driver: DriverSQLite, Path: "/tmp/cams.db", Host: "ignored"},
			expected: "/tmp/cams.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, BuildDSN(tt.cfg))
		})
	}
}

func TestDialector(t *testing.T) {
	t.Parallel()

	d, err := Dialector(Config{Driver: DriverPostgres}, "host=x")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = Dialector(Config{Driver: DriverSQLite}, ":memory:")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	_, err = Dialector(Config{Driver: "mysql"}, "")
	assert.Error(t, err)
}

// TestConnectWithRetry_SuccessOnFirstTry は初回接続成功時にリトライせずDBを返すことを検証します。
func TestConnectWithRetry_SuccessOnFirstTry(t *testing.T) {
	t.Parallel()

	mockDB := &gorm.DB{}
	attempts := 0
	db, err := ConnectWithRetry("test-dsn", 5*time.Second, func(dsn string) (*gorm.DB, error) {
		attempts++
		assert.Equal(t, "test-dsn", dsn)
		return mockDB, nil
	})

	require.NoError(t, err)
	assert.Same(t, mockDB, db)
	assert.Equal(t, 1, attempts)
}

// TestConnectWithRetry_RetriesOnFailure は接続失敗時にリトライして最終的に成功することを検証します。
func TestConnectWithRetry_RetriesOnFailure(t *testing.T) {
	// Not parallel: shortens the package-level retry interval
	orig := retryInterval
	retryInterval = 10 * time.Millisecond
	t.Cleanup(func() { retryInterval = orig })

	mockDB := &gorm.DB{}
	attempts := 0
	db, err := ConnectWithRetry("test-dsn", 5*time.Second, func(string) (*gorm.DB, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("connection refused")
		}
		return mockDB, nil
	})

	require.NoError(t, err)
	assert.Same(t, mockDB, db)
	assert.Equal(t, 3, attempts)
}

// TestConnectWithRetry_TimeoutAfterRetries はタイムアウト後に最後のエラーを包んで返すことを検証します。
func TestConnectWithRetry_TimeoutAfterRetries(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	attempts := 0
	start := time.Now()
	_, err := ConnectWithRetry("test-dsn", 100*time.Millisecond, func(string) (*gorm.DB, error) {
		attempts++
		return nil, cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.GreaterOrEqual(t, attempts, 1)
	assert.Less(t, time.Since(start), 2*time.Second, "sleep is capped at the remaining time")
}

// TestLoadConfigFromEnv は環境変数からデータベース設定が正しく読み込まれることを検証します。
func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_USER", "envuser")
	t.Setenv("DB_PASSWORD", "envpass")
	t.Setenv("DB_NAME", "envdb")
	t.Setenv("DB_HOST", "envhost")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_SSLMODE", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("INSTANCE_CONNECTION_NAME", "")

	cfg := LoadConfigFromEnv()

	assert.Equal(t, Config{
		Driver:   DriverPostgres,
		User:     "envuser",
		Password: "envpass",
		Name:     "envdb",
		Host:     "envhost",
		Port:     "5433",
		SSLMode:  "disable",
		Path:     DefaultSQLitePath,
	}, cfg)
}

func TestLoadConfigFromEnv_DefaultDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	assert.Equal(t, DriverPostgres, LoadConfigFromEnv().Driver)
}

// TestOpenDB_SQLite はSQLiteファイルに接続しカメラテーブルが作成されることを検証します。
func TestOpenDB_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cams.db")

	db, err := OpenDB(Config{Driver: DriverSQLite, Path: path})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	assert.True(t, db.Migrator().HasTable(&cameraadapters.CameraModel{}))
}

func TestOpenDB_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := OpenDB(Config{Driver: "oracle"})
	assert.Error(t, err)
}
