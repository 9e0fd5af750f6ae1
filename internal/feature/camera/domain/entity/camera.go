// Package entity defines the camera registry's domain types.
package entity

import "time"

// Camera is a registered surveillance camera.
// CameraID is the operator-chosen identifier and is unique across the registry;
// ID is the store-assigned identifier (UUID for SQL stores, ObjectID hex for MongoDB).
type Camera struct {
	ID         string
	CameraID   string
	CameraName string
	People     int
	Threats    int
	CreatedAt  time.Time
}
