package models

import "time"

// SynchronizedClockRecord annotates one TimeRecord clock event with the
// drift data that was in force when the event was captured. Written
// best-effort after the record itself; its absence never invalidates
// the attendance record.
type SynchronizedClockRecord struct {
	TimeRecordID       string             `json:"time_record_id"`
	SessionID          string             `json:"session_id"`
	SyncedClockTime    time.Time          `json:"synced_clock_time"`
	DriftMs            int64              `json:"drift_ms"`      // absolute value at capture
	SyncAccuracy       string             `json:"sync_accuracy"` // high | medium | low
	VerificationStatus VerificationStatus `json:"verification_status"`
	CreatedAt          time.Time          `json:"created_at"`
}
