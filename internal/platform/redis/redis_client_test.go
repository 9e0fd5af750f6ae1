package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestLoadConfigFromEnv は環境変数からRedis設定が読み込まれることを検証します。
func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected Config
	}{
		{
			name:     "defaults",
			env:      map[string]string{"REDIS_HOST": "", "REDIS_PORT": "", "REDIS_PASSWORD": "", "REDIS_DB": ""},
			expected: Config{Port: "6379"},
		},
		{
			name:     "all set",
			env:      map[string]string{"REDIS_HOST": "cache", "REDIS_PORT": "6380", "REDIS_PASSWORD": "pw", "REDIS_DB": "2"},
			expected: Config{Host: "cache", Port: "6380", Password: "pw", DB: 2},
		},
		{
			name:     "invalid db falls back to 0",
			env:      map[string]string{"REDIS_HOST": "cache", "REDIS_PORT": "", "REDIS_PASSWORD": "", "REDIS_DB": "-1"},
			expected: Config{Host: "cache", Port: "6379"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := LoadConfigFromEnv()
			assert.Equal(t, tt.expected, cfg)
			assert.Equal(t, tt.expected.Host != "", cfg.Enabled())
		})
	}
}

func TestConfig_Addr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "localhost:6379", Config{Host: "localhost", Port: "6379"}.Addr())
	assert.Equal(t, "[::1]:6379", Config{Host: "::1", Port: "6379"}.Addr())
}

// TestNewRedisClient_Unreachable は接続できない場合にエラーを返すことを検証します。
func TestNewRedisClient_Unreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rdb, err := NewRedisClient(ctx, Config{Host: "127.0.0.1", Port: "1"})
	assert.Error(t, err)
	assert.Nil(t, rdb)
}
