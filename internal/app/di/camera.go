package di

import (
	"context"
	"fmt"
	"log/slog"

	"surveillance_backend/internal/app/config"
	cameraadapters "surveillance_backend/internal/feature/camera/adapters"
	"surveillance_backend/internal/feature/camera/usecase"
	"surveillance_backend/internal/platform/db"
	"surveillance_backend/internal/platform/mongo"
)

// CameraStore is a camera repository that can report its readiness.
type CameraStore interface {
	usecase.CameraRepository
	Ping(ctx context.Context) error
}

// NewCameraStore creates the camera registry store.
// If MONGO_URI is set, it returns a MongoDB-backed implementation.
// Otherwise, it falls back to gorm (postgres or sqlite).
// The returned cleanup releases the underlying connection.
func NewCameraStore(ctx context.Context, cfg *config.Config) (CameraStore, func(), error) {
	if cfg.Mongo.Enabled() {
		client, err := mongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				slog.Warn("failed to disconnect MongoDB", "error", err)
			}
		}
		repo := cameraadapters.NewCameraMongo(client.Database(cfg.Mongo.Database))
		if err := repo.EnsureIndexes(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		slog.Info("camera store selected", "backend", "mongodb")
		return repo, cleanup, nil
	}

	gdb, err := db.OpenDB(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("get sql.DB: %w", err)
	}
	cleanup := func() {
		if err := sqlDB.Close(); err != nil {
			slog.Warn("failed to close DB", "error", err)
		}
	}
	slog.Info("camera store selected", "backend", cfg.DB.Driver)
	return cameraadapters.NewCameraGorm(gdb), cleanup, nil
}
