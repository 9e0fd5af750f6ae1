// Package adapters provides the camera registry's repository implementations.
package adapters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"surveillance_backend/internal/feature/camera/domain/entity"
	"surveillance_backend/internal/feature/camera/usecase"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// CameraModel is the GORM persistence model for cameras.
type CameraModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)"`
	CameraID   string    `gorm:"column:camera_id;size:128;not null;uniqueIndex"`
	CameraName string    `gorm:"column:camera_name;size:255;not null"`
	People     int       `gorm:"not null;default:0"`
	Threats    int       `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

// TableName overrides the table name used by GORM.
func (CameraModel) TableName() string { return "cameras" }

// cameraGorm is the SQL implementation of CameraRepository (PostgreSQL in production, SQLite locally).
type cameraGorm struct {
	db *gorm.DB
}

var _ usecase.CameraRepository = (*cameraGorm)(nil)

// NewCameraGorm creates a cameraGorm repository using the given connection.
func NewCameraGorm(db *gorm.DB) *cameraGorm {
	return &cameraGorm{db: db}
}

// Create inserts cam and assigns a UUID primary key.
// A duplicate camera_id is reported as usecase.ErrCameraAlreadyExists.
func (r *cameraGorm) Create(ctx context.Context, cam *entity.Camera) error {
	m := toModel(cam)
	m.ID = uuid.NewString()
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return usecase.ErrCameraAlreadyExists
		}
		return err
	}
	cam.ID = m.ID
	cam.CreatedAt = m.CreatedAt
	return nil
}

// List returns all cameras ordered by creation time.
func (r *cameraGorm) List(ctx context.Context) ([]entity.Camera, error) {
	var models []CameraModel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]entity.Camera, 0, len(models))
	for _, m := range models {
		out = append(out, toEntity(m))
	}
	return out, nil
}

// DeleteByCameraID removes the camera with the given camera_id.
// usecase.ErrCameraNotFound is returned when nothing was deleted.
func (r *cameraGorm) DeleteByCameraID(ctx context.Context, cameraID string) error {
	res := r.db.WithContext(ctx).Where("camera_id = ?", cameraID).Delete(&CameraModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return usecase.ErrCameraNotFound
	}
	return nil
}

// Ping verifies the underlying connection is alive.
func (r *cameraGorm) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}
	// SQLite without TranslateError
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toModel(cam *entity.Camera) CameraModel {
	return CameraModel{
		ID:         cam.ID,
		CameraID:   cam.CameraID,
		CameraName: cam.CameraName,
		People:     cam.People,
		Threats:    cam.Threats,
		CreatedAt:  cam.CreatedAt,
	}
}

func toEntity(m CameraModel) entity.Camera {
	return entity.Camera{
		ID:         m.ID,
		CameraID:   m.CameraID,
		CameraName: m.CameraName,
		People:     m.People,
		Threats:    m.Threats,
		CreatedAt:  m.CreatedAt,
	}
}
