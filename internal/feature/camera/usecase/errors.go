package usecase

import "errors"

var (
	// ErrCameraIDAndNameRequired is returned when cameraId or cameraName is missing or blank.
	ErrCameraIDAndNameRequired = errors.New("cameraId and cameraName required")
	// ErrInvalidCounter is returned when people or threats is negative.
	ErrInvalidCounter = errors.New("people and threats must be non-negative")
	// ErrCameraAlreadyExists is returned by repositories when cameraId is already registered.
	ErrCameraAlreadyExists = errors.New("camera already exists")
	// ErrCameraNotFound is returned by repositories when no camera has the given cameraId.
	ErrCameraNotFound = errors.New("camera not found")
)
