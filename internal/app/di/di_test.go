package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveillance_backend/internal/app/config"
	"surveillance_backend/internal/feature/camera/domain/entity"
	detectionentity "surveillance_backend/internal/feature/detection/domain/entity"
	"surveillance_backend/internal/platform/db"
)

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout:  30 * time.Second,
		ProviderTimeout: 10 * time.Second,
		CacheTTL:        30 * time.Second,
	}
}

func TestNewProviders_NoAPIKey(t *testing.T) {
	t.Setenv("ROBOFLOW_API_KEY", "")

	p, err := NewProviders(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	defer p.Close()

	assert.Empty(t, p.List)
	d := NewDispatcher(p)
	assert.False(t, d.Supports(detectionentity.KindKnife))
}

func TestNewProviders_Roboflow(t *testing.T) {
	t.Setenv("ROBOFLOW_API_KEY", "test-key")
	t.Setenv("PROVIDERS_GUN_TIMEOUT", "4s")
	t.Setenv("PROVIDERS_EMOTION_ENABLED", "false")

	p, err := NewProviders(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	defer p.Close()

	kinds := make([]detectionentity.ProviderKind, 0, len(p.List))
	for _, pr := range p.List {
		kinds = append(kinds, pr.Kind())
	}
	assert.ElementsMatch(t, []detectionentity.ProviderKind{
		detectionentity.KindMask, detectionentity.KindKnife, detectionentity.KindGun,
	}, kinds)

	d := NewDispatcher(p)
	assert.True(t, d.Supports(detectionentity.KindGun))
	assert.False(t, d.Supports(detectionentity.KindEmotion))
	assert.Equal(t, 4*time.Second, d.TimeoutFor(detectionentity.KindGun))
}

func TestNewProviders_InvalidConfigFile(t *testing.T) {
	cfg := testConfig()
	cfg.ProvidersConfigPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewProviders(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewEvidenceArchiver_Disabled(t *testing.T) {
	t.Parallel()

	a, err := NewEvidenceArchiver(testConfig())
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestNewEvidenceArchiver_InvalidConnectionString(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.EvidenceConnectionString = "not-a-connection-string"
	cfg.EvidenceContainer = "evidence"

	_, err := NewEvidenceArchiver(cfg)
	assert.Error(t, err)
}

func TestNewEvidenceArchiver_SharedKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.EvidenceAccountName = "acct"
	cfg.EvidenceAccountKey = "c2VjcmV0LWtleQ=="
	cfg.EvidenceContainer = "evidence"

	a, err := NewEvidenceArchiver(cfg)
	require.NoError(t, err)
	assert.NotNil(t, a)
}

// TestNewCameraStore_SQLite はMONGO_URI未設定時にgormのストアが選ばれることを検証します。
func TestNewCameraStore_SQLite(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.DB = db.Config{Driver: db.DriverSQLite, Path: filepath.Join(t.TempDir(), "cams.db")}

	ctx := context.Background()
	store, cleanup, err := NewCameraStore(ctx, cfg)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Create(ctx, &entity.Camera{CameraID: "cam-1", CameraName: "Lobby", CreatedAt: time.Now().UTC()}))

	cams, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, cams, 1)
	assert.Equal(t, "cam-1", cams[0].CameraID)
}
