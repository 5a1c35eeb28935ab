package attendance

import (
	"context"
	"time"

	"github.com/rotaclock/backend/models"
)

// Store is the persistence boundary of the attendance state machine.
//
// The one guarantee the state machine cannot provide on its own and
// therefore demands from every implementation: CreateOpen must be
// atomic with the no-open-record check, so two concurrent clock-ins
// for the same user resolve to exactly one winner. PGStore gets this
// from a partial unique index, MemStore from a mutex.
type Store interface {
	// CreateOpen persists a new open record. Returns ErrAlreadyClockedIn
	// if the user already has an open record.
	CreateOpen(ctx context.Context, rec *models.TimeRecord) error

	// FindOpen returns the user's open record, or ErrNotClockedIn.
	FindOpen(ctx context.Context, userID string) (*models.TimeRecord, error)

	// GetRecord returns a record by id, or ErrRecordNotFound.
	GetRecord(ctx context.Context, id string) (*models.TimeRecord, error)

	// CloseRecord closes an open record. The update is conditional on
	// status still being open; losing that race yields ErrNotClockedIn.
	CloseRecord(ctx context.Context, id string, close CloseUpdate) error

	// ListByUser returns the user's records, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]models.TimeRecord, error)

	// SaveSyncRecord and AppendSyncEvent are the best-effort secondary
	// writes. Callers log their failures and move on.
	SaveSyncRecord(ctx context.Context, rec *models.SynchronizedClockRecord) error
	AppendSyncEvent(ctx context.Context, ev *models.SyncEvent) error

	// UpsertSession and GetSession persist sync registrations so a
	// clock-in can validate a session registered before a restart.
	// GetSession returns (nil, nil) for an unknown client.
	UpsertSession(ctx context.Context, s models.SyncSession) error
	GetSession(ctx context.Context, clientID string) (*models.SyncSession, error)
}

// CloseUpdate carries the fields a clock-out writes onto the record.
type CloseUpdate struct {
	ClockOutTime       time.Time
	Location           *models.LocationSample
	VerificationStatus models.VerificationStatus
	Notes              string
}
