package models

import "time"

// Request/response shapes for the attendance and sync endpoints.

type ClockInRequest struct {
	RotationID string          `json:"rotation_id"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
	Location   *LocationSample `json:"location,omitempty"`
	Notes      string          `json:"notes,omitempty"`

	// Sync fields, present only for clients with a registered session.
	ClientID        string     `json:"client_id,omitempty"`
	ClientTime      *time.Time `json:"client_time,omitempty"`
	SyncedTimestamp *time.Time `json:"synced_timestamp,omitempty"`
}

type SyncData struct {
	ClientID           string    `json:"client_id"`
	ServerTime         time.Time `json:"server_time"`
	CorrectedTimestamp time.Time `json:"corrected_timestamp"`
	DriftMs            int64     `json:"drift_ms"`
	SyncAccuracy       string    `json:"sync_accuracy"`
}

type ClockInResponse struct {
	IsClocked          bool               `json:"is_clocked"`
	RecordID           string             `json:"record_id"`
	ClockInTime        time.Time          `json:"clock_in_time"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	SyncData           *SyncData          `json:"sync_data,omitempty"`
}

type ClockOutRequest struct {
	TimeRecordID string          `json:"time_record_id,omitempty"`
	Timestamp    *time.Time      `json:"timestamp,omitempty"`
	Location     *LocationSample `json:"location,omitempty"`
	Notes        string          `json:"notes,omitempty"`

	// Sync fields, present only for clients with a registered session.
	ClientID   string     `json:"client_id,omitempty"`
	ClientTime *time.Time `json:"client_time,omitempty"`

	// Force confirms a clock-out whose location verification failed.
	// The record is closed with verification_status=flagged.
	Force bool `json:"force,omitempty"`
}

type VerificationDTO struct {
	IsValid        bool     `json:"is_valid"`
	DistanceMeters *float64 `json:"distance_meters"`
	Errors         []string `json:"errors,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

type ClockOutResponse struct {
	TotalHours   string           `json:"total_hours"` // HH:MM:SS
	ClockOutTime time.Time        `json:"clock_out_time"`
	Flagged      bool             `json:"flagged,omitempty"`
	Verification *VerificationDTO `json:"verification,omitempty"`
}

type HeartbeatRequest struct {
	ClientID   string     `json:"client_id"`
	ClientTime *time.Time `json:"client_time,omitempty"`
}

type HeartbeatResponse struct {
	ServerTime   time.Time `json:"server_time"`
	DriftMs      int64     `json:"drift_ms"`
	SyncAccuracy string    `json:"sync_accuracy"`
}

type SyncStatusResponse struct {
	QualityScore     int        `json:"quality_score"`
	Uptime           string     `json:"uptime"`
	SyncCount        int64      `json:"sync_count"`
	ErrorCount       int64      `json:"error_count"`
	AverageDriftMs   float64    `json:"average_drift_ms"`
	ConnectionHealth string     `json:"connection_health"`
	LastSyncTime     *time.Time `json:"last_sync_time,omitempty"`
	Recommendations  []string   `json:"recommendations,omitempty"`
}
