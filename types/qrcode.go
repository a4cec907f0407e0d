package types

import "time"

// QR code statuses. Any status may move to any other; the enum is
// validated but transitions are unrestricted.
const (
	StatusInactive    = "inactive"
	StatusActive      = "active"
	StatusDeactivated = "deactivated"
	StatusScanned     = "scanned"
)

// ValidStatus reports whether s is a known QR code status.
func ValidStatus(s string) bool {
	switch s {
	case StatusInactive, StatusActive, StatusDeactivated, StatusScanned:
		return true
	}
	return false
}

// QRCode represents one generated code tracked by the registry.
type QRCode struct {
	// ID is the opaque unique identifier encoded into the code. It is
	// the primary key and is never reused, even after deletion.
	ID string `json:"id" db:"id"`

	// ImageData is the rendered raster as a base64 PNG, produced once at
	// creation and immutable thereafter (it can be regenerated from ID).
	ImageData string `json:"imageData,omitempty" db:"image_data"`

	// Status is the current lifecycle status of the code. It is mutated
	// only by scan resolution or administrative action.
	Status string `json:"status" db:"status"`

	// CreatedAt is the timestamp when the code was registered.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
