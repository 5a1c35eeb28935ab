package models

import (
	"time"
)

type SyncEventType string

const (
	EventHeartbeat      SyncEventType = "heartbeat"
	EventSyncedClockIn  SyncEventType = "synchronized_clock_in"
	EventSyncedClockOut SyncEventType = "synchronized_clock_out"
)

// SyncEvent is an append-only audit row. Rows are immutable once written
// and ordered by ServerTime.
type SyncEvent struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"session_id"` // SyncSession.ClientID
	EventType  SyncEventType     `json:"event_type"`
	ServerTime time.Time         `json:"server_time"`
	ClientTime *time.Time        `json:"client_time,omitempty"`
	DriftMs    int64             `json:"drift_ms"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
