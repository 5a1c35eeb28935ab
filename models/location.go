package models

import "time"

// LocationSample is a geolocation capture attached to a clock event.
// Coordinates are kept only on the attendance record they belong to.
type LocationSample struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy"`
	Source         string    `json:"source,omitempty"` // e.g. "gps", "network"
	CapturedAt     time.Time `json:"captured_at,omitempty"`
}

// SiteCoordinate is the registered coordinate of a rotation site plus its
// geofence radius. A rotation without a fixed site has no SiteCoordinate.
type SiteCoordinate struct {
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	GeofenceRadiusM float64 `json:"geofence_radius_m"`
}
