// Package dto defines data transfer objects for the camera registry HTTP API.
package dto

import "surveillance_backend/internal/feature/camera/domain/entity"

// AddCameraRequest is the body of POST /api/cameras/add/.
// Counters are pointers so that an omitted field can default to 0.
type AddCameraRequest struct {
	CameraID   string `json:"cameraId"`
	CameraName string `json:"cameraName"`
	People     *int   `json:"people"`
	Threats    *int   `json:"threats"`
}

// CameraItem represents a camera in API responses.
type CameraItem struct {
	ID         string `json:"_id"`
	CameraID   string `json:"cameraId"`
	CameraName string `json:"cameraName"`
	People     int    `json:"people"`
	Threats    int    `json:"threats"`
}

// AddCameraResponse is returned with 201 Created.
type AddCameraResponse struct {
	Message string     `json:"message"`
	Camera  CameraItem `json:"camera"`
}

// CameraListResponse wraps the camera list.
type CameraListResponse struct {
	Cameras []CameraItem `json:"cameras"`
}

// FromEntity converts a domain camera into its API representation.
func FromEntity(c entity.Camera) CameraItem {
	return CameraItem{
		ID:         c.ID,
		CameraID:   c.CameraID,
		CameraName: c.CameraName,
		People:     c.People,
		Threats:    c.Threats,
	}
}
