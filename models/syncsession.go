package models

import "time"

type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionExpired SessionStatus = "expired"
)

// SyncSession tracks a logical client/device that has registered for
// clock synchronization. The client id is client-generated and opaque.
type SyncSession struct {
	ClientID     string        `json:"client_id"`
	Status       SessionStatus `json:"status"`
	RegisteredAt time.Time     `json:"registered_at"`
	LastSeenAt   time.Time     `json:"last_seen_at"`
}
