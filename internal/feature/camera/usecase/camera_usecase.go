// Package usecase implements the business logic for the camera registry.
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"surveillance_backend/internal/feature/camera/domain/entity"
)

// CameraRepository abstracts the persistence layer for cameras.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
//
// Implementations translate driver errors into ErrCameraAlreadyExists and ErrCameraNotFound.
type CameraRepository interface {
	// Create stores cam and fills in cam.ID. CreatedAt is set by the caller.
	Create(ctx context.Context, cam *entity.Camera) error
	// List returns every camera ordered by creation time.
	List(ctx context.Context) ([]entity.Camera, error)
	// DeleteByCameraID removes the camera with the given cameraId.
	DeleteByCameraID(ctx context.Context, cameraID string) error
}

// AddCameraInput is the request to register a camera. Nil counters default to 0.
type AddCameraInput struct {
	CameraID   string
	CameraName string
	People     *int
	Threats    *int
}

// CameraUsecase provides business logic for camera registry operations.
type CameraUsecase struct {
	repo CameraRepository
	now  func() time.Time
}

// NewCameraUsecase creates a new CameraUsecase with the given repository.
func NewCameraUsecase(r CameraRepository) *CameraUsecase {
	return &CameraUsecase{repo: r, now: time.Now}
}

// Add validates in and registers a new camera.
func (u *CameraUsecase) Add(ctx context.Context, in AddCameraInput) (*entity.Camera, error) {
	cameraID := strings.TrimSpace(in.CameraID)
	cameraName := strings.TrimSpace(in.CameraName)
	if cameraID == "" || cameraName == "" {
		return nil, ErrCameraIDAndNameRequired
	}
	people, threats := valueOrZero(in.People), valueOrZero(in.Threats)
	if people < 0 || threats < 0 {
		return nil, ErrInvalidCounter
	}

	cam := &entity.Camera{
		CameraID:   cameraID,
		CameraName: cameraName,
		People:     people,
		Threats:    threats,
		CreatedAt:  u.now().UTC(),
	}
	if err := u.repo.Create(ctx, cam); err != nil {
		return nil, fmt.Errorf("add camera %q: %w", cameraID, err)
	}
	return cam, nil
}

// List returns all registered cameras.
func (u *CameraUsecase) List(ctx context.Context) ([]entity.Camera, error) {
	cams, err := u.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	return cams, nil
}

// Delete removes the camera registered under cameraID.
func (u *CameraUsecase) Delete(ctx context.Context, cameraID string) error {
	cameraID = strings.TrimSpace(cameraID)
	if cameraID == "" {
		return ErrCameraNotFound
	}
	if err := u.repo.DeleteByCameraID(ctx, cameraID); err != nil {
		return fmt.Errorf("delete camera %q: %w", cameraID, err)
	}
	return nil
}

func valueOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
