package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rotaclock/backend/geo"
	"github.com/rotaclock/backend/models"
	"github.com/rotaclock/backend/timesync"
)

// SiteLookup resolves the site coordinate for a rotation. A rotation
// without a fixed site returns (nil, 0, nil) and location verification
// does not apply.
type SiteLookup interface {
	SiteForRotation(ctx context.Context, rotationID string) (*geo.Coordinate, float64, error)
}

// Config holds the collaborators of the attendance service.
type Config struct {
	Store     Store
	Registry  *timesync.Registry
	Estimator *timesync.Estimator
	Verifier  geo.Verifier
	Sites     SiteLookup
	Now       func() time.Time
	Logger    *slog.Logger
}

// Service is the attendance state machine: not-clocked-in → clocked-in
// → not-clocked-in, one open record per user, authoritative timestamps
// derived from the synced → candidate → server-now fallback.
//
// The primary record write is atomic and fatal on failure. The sync
// annotation and audit event are written afterwards, best-effort: their
// failure is logged and the clock event still reports success, just
// without sync data.
type Service struct {
	store     Store
	registry  *timesync.Registry
	estimator *timesync.Estimator
	verifier  geo.Verifier
	sites     SiteLookup
	now       func() time.Time
	logger    *slog.Logger
}

func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("attendance: Store is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("attendance: Registry is required")
	}
	if cfg.Estimator == nil {
		return nil, fmt.Errorf("attendance: Estimator is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     cfg.Store,
		registry:  cfg.Registry,
		estimator: cfg.Estimator,
		verifier:  cfg.Verifier,
		sites:     cfg.Sites,
		now:       now,
		logger:    logger,
	}, nil
}

type ClockInInput struct {
	UserID     string
	RotationID string
	Notes      string

	Timestamp       *time.Time
	SyncedTimestamp *time.Time

	Location *models.LocationSample

	ClientID   string
	ClientTime *time.Time
}

type ClockInResult struct {
	RecordID           string
	ClockInTime        time.Time
	VerificationStatus models.VerificationStatus
	SyncData           *models.SyncData
	Verification       *geo.Result
}

// ClockIn executes the not-clocked-in → clocked-in transition.
func (s *Service) ClockIn(ctx context.Context, in ClockInInput) (*ClockInResult, error) {
	if in.UserID == "" || in.RotationID == "" {
		return nil, fmt.Errorf("attendance: user id and rotation id are required")
	}
	serverNow := s.now()

	ts, err := ResolveTimestamp(in.SyncedTimestamp, in.Timestamp, serverNow)
	if err != nil {
		return nil, err
	}

	syncData := s.resolveSync(ctx, in.ClientID, in.ClientTime, serverNow, ts)

	site, radius := s.lookupSite(ctx, in.RotationID)

	var verification *geo.Result
	if in.Location != nil {
		res, err := s.verifier.Verify(geo.Sample{
			Coordinate:     geo.Coordinate{Latitude: in.Location.Latitude, Longitude: in.Location.Longitude},
			AccuracyMeters: in.Location.AccuracyMeters,
		}, site, radius)
		if err != nil {
			return nil, err
		}
		verification = &res
	}

	rec := &models.TimeRecord{
		ID:                 uuid.NewString(),
		UserID:             in.UserID,
		RotationID:         in.RotationID,
		ClockInTime:        ts,
		Status:             models.StatusOpen,
		VerificationStatus: statusFor(verification, syncData != nil),
		Notes:              in.Notes,
		LocationAtClockIn:  in.Location,
		CreatedAt:          serverNow,
	}
	if site != nil {
		rec.Site = &models.SiteCoordinate{
			Latitude:        site.Latitude,
			Longitude:       site.Longitude,
			GeofenceRadiusM: radius,
		}
	}

	// Primary write. Exactly one of two concurrent attempts for the
	// same user survives this call.
	if err := s.store.CreateOpen(ctx, rec); err != nil {
		return nil, err
	}

	if syncData != nil {
		s.writeSyncAnnotations(ctx, rec, syncData, in.ClientTime, models.EventSyncedClockIn)
	}

	return &ClockInResult{
		RecordID:           rec.ID,
		ClockInTime:        rec.ClockInTime,
		VerificationStatus: rec.VerificationStatus,
		SyncData:           syncData,
		Verification:       verification,
	}, nil
}

type ClockOutInput struct {
	UserID       string
	TimeRecordID string
	Notes        string

	Timestamp *time.Time
	Location  *models.LocationSample

	ClientID   string
	ClientTime *time.Time

	// Force closes the record even when location verification fails;
	// the record is then persisted as flagged for human review.
	Force bool
}

type ClockOutResult struct {
	// Closed is false when verification failed and Force was not set.
	// The record stays open and Verification carries the verdict for
	// the caller's confirmation flow.
	Closed bool

	RecordID     string
	TotalHours   string
	ClockOutTime time.Time
	Flagged      bool
	Verification *geo.Result
}

// ClockOut executes the clocked-in → not-clocked-in transition. A
// failed location verification does not close the record unless the
// caller confirms with Force; the verdict is returned either way and
// the override decision stays with the caller.
func (s *Service) ClockOut(ctx context.Context, in ClockOutInput) (*ClockOutResult, error) {
	serverNow := s.now()

	rec, err := s.openRecord(ctx, in)
	if err != nil {
		return nil, err
	}

	ts, err := ResolveTimestamp(nil, in.Timestamp, serverNow)
	if err != nil {
		return nil, err
	}
	if ts.Before(rec.ClockInTime) {
		return nil, fmt.Errorf("%w: clock-out %v precedes clock-in %v",
			ErrInvalidDuration, ts, rec.ClockInTime)
	}

	// Verify against the site snapshot taken at clock-in. No snapshot
	// means the rotation had no fixed site: verification is skipped,
	// never a failure.
	var verification *geo.Result
	if in.Location != nil {
		var site *geo.Coordinate
		var radius float64
		if rec.Site != nil {
			site = &geo.Coordinate{Latitude: rec.Site.Latitude, Longitude: rec.Site.Longitude}
			radius = rec.Site.GeofenceRadiusM
		}
		res, err := s.verifier.Verify(geo.Sample{
			Coordinate:     geo.Coordinate{Latitude: in.Location.Latitude, Longitude: in.Location.Longitude},
			AccuracyMeters: in.Location.AccuracyMeters,
		}, site, radius)
		if err != nil {
			return nil, err
		}
		verification = &res
	}

	flagged := verification != nil && !verification.IsValid
	if flagged && !in.Force {
		return &ClockOutResult{
			Closed:       false,
			RecordID:     rec.ID,
			Verification: verification,
		}, nil
	}

	status := rec.VerificationStatus
	if flagged {
		status = models.VerificationFlagged
	}

	if err := s.store.CloseRecord(ctx, rec.ID, CloseUpdate{
		ClockOutTime:       ts,
		Location:           in.Location,
		VerificationStatus: status,
		Notes:              in.Notes,
	}); err != nil {
		return nil, err
	}

	if in.ClientID != "" {
		if syncData := s.resolveSync(ctx, in.ClientID, in.ClientTime, serverNow, ts); syncData != nil {
			rec.VerificationStatus = status
			s.writeSyncAnnotations(ctx, rec, syncData, in.ClientTime, models.EventSyncedClockOut)
		}
	}

	return &ClockOutResult{
		Closed:       true,
		RecordID:     rec.ID,
		TotalHours:   FormatDuration(ts.Sub(rec.ClockInTime)),
		ClockOutTime: ts,
		Flagged:      flagged,
		Verification: verification,
	}, nil
}

// OpenRecord returns the user's current open record, or ErrNotClockedIn.
func (s *Service) OpenRecord(ctx context.Context, userID string) (*models.TimeRecord, error) {
	return s.store.FindOpen(ctx, userID)
}

// Record returns one record, restricted to its owner when ownerID is
// non-empty.
func (s *Service) Record(ctx context.Context, id, ownerID string) (*models.TimeRecord, error) {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && rec.UserID != ownerID {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

// Records lists a user's attendance history, newest first.
func (s *Service) Records(ctx context.Context, userID string, limit int) ([]models.TimeRecord, error) {
	return s.store.ListByUser(ctx, userID, limit)
}

// openRecord locates the record a clock-out targets: by id when given
// (checking ownership), by the user's open record otherwise.
func (s *Service) openRecord(ctx context.Context, in ClockOutInput) (*models.TimeRecord, error) {
	if in.TimeRecordID == "" {
		return s.store.FindOpen(ctx, in.UserID)
	}
	rec, err := s.store.GetRecord(ctx, in.TimeRecordID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrNotClockedIn
	}
	if err != nil {
		return nil, err
	}
	if in.UserID != "" && rec.UserID != in.UserID {
		return nil, ErrNotClockedIn
	}
	if !rec.IsOpen() {
		return nil, ErrNotClockedIn
	}
	return rec, nil
}

// resolveSync decides whether a clock event is synchronized. Any
// failure here (unknown session, expired session, malformed client
// time) degrades to the unsynchronized path and never blocks the
// caller.
func (s *Service) resolveSync(ctx context.Context, clientID string, clientTime *time.Time, serverNow, corrected time.Time) *models.SyncData {
	if clientID == "" {
		return nil
	}

	_, err := s.registry.Lookup(clientID)
	if errors.Is(err, timesync.ErrSessionNotFound) {
		// The registry is in-process; a registration made before a
		// restart may survive only in storage. Re-seed it if so.
		stored, serr := s.store.GetSession(ctx, clientID)
		if serr == nil && stored != nil && stored.Status == models.SessionActive {
			s.registry.Register(clientID)
			err = nil
		}
	}
	if err != nil {
		s.logger.Info("clock event proceeding unsynchronized",
			"client_id", clientID, "reason", err)
		return nil
	}

	driftMs, tier, err := timesync.Drift(clientTime, serverNow)
	if err != nil {
		s.estimator.ObserveError()
		s.logger.Warn("rejecting client time, treating event as unsynchronized",
			"client_id", clientID, "error", err)
		return nil
	}
	s.estimator.Observe(clientID, driftMs, serverNow)
	_ = s.registry.Touch(clientID)

	return &models.SyncData{
		ClientID:           clientID,
		ServerTime:         serverNow,
		CorrectedTimestamp: corrected,
		DriftMs:            driftMs,
		SyncAccuracy:       tier,
	}
}

// lookupSite fetches the rotation's site. Lookup failure degrades to
// "no site" (verification skipped) rather than blocking attendance.
func (s *Service) lookupSite(ctx context.Context, rotationID string) (*geo.Coordinate, float64) {
	if s.sites == nil {
		return nil, 0
	}
	site, radius, err := s.sites.SiteForRotation(ctx, rotationID)
	if err != nil {
		s.logger.Warn("site lookup failed, skipping location verification",
			"rotation_id", rotationID, "error", err)
		return nil, 0
	}
	return site, radius
}

// writeSyncAnnotations performs the two best-effort secondary writes.
// They run outside the primary write on purpose: their failure must
// never roll back or fail the attendance record.
func (s *Service) writeSyncAnnotations(ctx context.Context, rec *models.TimeRecord, sd *models.SyncData, clientTime *time.Time, eventType models.SyncEventType) {
	abs := sd.DriftMs
	if abs < 0 {
		abs = -abs
	}

	if err := s.store.SaveSyncRecord(ctx, &models.SynchronizedClockRecord{
		TimeRecordID:       rec.ID,
		SessionID:          sd.ClientID,
		SyncedClockTime:    sd.CorrectedTimestamp,
		DriftMs:            abs,
		SyncAccuracy:       sd.SyncAccuracy,
		VerificationStatus: rec.VerificationStatus,
		CreatedAt:          sd.ServerTime,
	}); err != nil {
		s.logger.Warn("could not save synchronized clock record",
			"time_record_id", rec.ID, "error", err)
	}

	if err := s.store.AppendSyncEvent(ctx, &models.SyncEvent{
		ID:         uuid.NewString(),
		SessionID:  sd.ClientID,
		EventType:  eventType,
		ServerTime: sd.ServerTime,
		ClientTime: clientTime,
		DriftMs:    sd.DriftMs,
		Metadata:   map[string]string{"time_record_id": rec.ID},
	}); err != nil {
		s.logger.Warn("could not append sync event",
			"time_record_id", rec.ID, "error", err)
	}
}

// statusFor derives the clock-in verification status. A failed location
// verdict flags the record for review (the clock-in itself still
// proceeds). Verified requires both: a synchronized session and a valid
// location verdict. Everything else is unverified.
func statusFor(verification *geo.Result, synced bool) models.VerificationStatus {
	switch {
	case verification != nil && !verification.IsValid:
		return models.VerificationFlagged
	case verification != nil && synced:
		return models.VerificationVerified
	default:
		return models.VerificationUnverified
	}
}
