package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rotaclock/backend/db"
	"github.com/rotaclock/backend/models"
)

// PGStore persists attendance data in Postgres.
//
// The single-open-record invariant is enforced by the database, not by
// application-level locking:
//
//	CREATE UNIQUE INDEX uniq_open_time_record
//	    ON time_records (user_id) WHERE status = 'open';
//
// Two concurrent clock-ins race on that index; the loser's INSERT fails
// with SQLSTATE 23505, which CreateOpen maps to ErrAlreadyClockedIn.
type PGStore struct {
	database *db.Database
}

func NewPGStore(database *db.Database) *PGStore {
	return &PGStore{database: database}
}

const uniqueViolation = "23505"

func (p *PGStore) CreateOpen(ctx context.Context, rec *models.TimeRecord) error {
	query := `
		INSERT INTO time_records (
			id, user_id, rotation_id, clock_in_time, status,
			verification_status, notes,
			in_lat, in_lng, in_accuracy_m, in_source, in_captured_at,
			site_lat, site_lng, site_radius_m,
			created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`

	var inLat, inLng, inAcc *float64
	var inSource *string
	var inCaptured *time.Time
	if loc := rec.LocationAtClockIn; loc != nil {
		inLat, inLng, inAcc = &loc.Latitude, &loc.Longitude, &loc.AccuracyMeters
		if loc.Source != "" {
			inSource = &loc.Source
		}
		if !loc.CapturedAt.IsZero() {
			t := loc.CapturedAt
			inCaptured = &t
		}
	}

	var siteLat, siteLng, siteRadius *float64
	if rec.Site != nil {
		siteLat, siteLng, siteRadius = &rec.Site.Latitude, &rec.Site.Longitude, &rec.Site.GeofenceRadiusM
	}

	_, err := p.database.Pool().Exec(ctx, query,
		rec.ID, rec.UserID, rec.RotationID, rec.ClockInTime, rec.Status,
		rec.VerificationStatus, rec.Notes,
		inLat, inLng, inAcc, inSource, inCaptured,
		siteLat, siteLng, siteRadius,
		rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyClockedIn
		}
		return fmt.Errorf("insert time record: %w", err)
	}
	return nil
}

const timeRecordColumns = `
	id, user_id, rotation_id, clock_in_time, clock_out_time, status,
	verification_status, notes,
	in_lat, in_lng, in_accuracy_m, in_source, in_captured_at,
	out_lat, out_lng, out_accuracy_m, out_source, out_captured_at,
	site_lat, site_lng, site_radius_m,
	created_at, updated_at
`

func scanTimeRecord(row pgx.Row) (*models.TimeRecord, error) {
	var rec models.TimeRecord
	var inLat, inLng, inAcc, outLat, outLng, outAcc *float64
	var inSource, outSource *string
	var inCaptured, outCaptured *time.Time
	var siteLat, siteLng, siteRadius *float64

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.RotationID, &rec.ClockInTime, &rec.ClockOutTime, &rec.Status,
		&rec.VerificationStatus, &rec.Notes,
		&inLat, &inLng, &inAcc, &inSource, &inCaptured,
		&outLat, &outLng, &outAcc, &outSource, &outCaptured,
		&siteLat, &siteLng, &siteRadius,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if inLat != nil && inLng != nil {
		rec.LocationAtClockIn = assembleLocation(*inLat, *inLng, inAcc, inSource, inCaptured)
	}
	if outLat != nil && outLng != nil {
		rec.LocationAtClockOut = assembleLocation(*outLat, *outLng, outAcc, outSource, outCaptured)
	}
	if siteLat != nil && siteLng != nil {
		site := models.SiteCoordinate{Latitude: *siteLat, Longitude: *siteLng}
		if siteRadius != nil {
			site.GeofenceRadiusM = *siteRadius
		}
		rec.Site = &site
	}
	return &rec, nil
}

func assembleLocation(lat, lng float64, acc *float64, source *string, captured *time.Time) *models.LocationSample {
	loc := models.LocationSample{Latitude: lat, Longitude: lng}
	if acc != nil {
		loc.AccuracyMeters = *acc
	}
	if source != nil {
		loc.Source = *source
	}
	if captured != nil {
		loc.CapturedAt = *captured
	}
	return &loc
}

func (p *PGStore) FindOpen(ctx context.Context, userID string) (*models.TimeRecord, error) {
	query := `SELECT ` + timeRecordColumns + ` FROM time_records WHERE user_id = $1 AND status = 'open'`

	rec, err := scanTimeRecord(p.database.Pool().QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotClockedIn
	}
	if err != nil {
		return nil, fmt.Errorf("select open record: %w", err)
	}
	return rec, nil
}

func (p *PGStore) GetRecord(ctx context.Context, id string) (*models.TimeRecord, error) {
	query := `SELECT ` + timeRecordColumns + ` FROM time_records WHERE id = $1`

	rec, err := scanTimeRecord(p.database.Pool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select time record: %w", err)
	}
	return rec, nil
}

func (p *PGStore) CloseRecord(ctx context.Context, id string, close CloseUpdate) error {
	// Conditional on status='open' so a concurrent close loses cleanly
	// instead of overwriting.
	query := `
		UPDATE time_records
		SET clock_out_time = $1,
		    status = 'closed',
		    verification_status = $2,
		    notes = CASE WHEN $3 <> '' THEN $3 ELSE notes END,
		    out_lat = $4, out_lng = $5, out_accuracy_m = $6,
		    out_source = $7, out_captured_at = $8,
		    updated_at = now()
		WHERE id = $9 AND status = 'open'
	`

	var outLat, outLng, outAcc *float64
	var outSource *string
	var outCaptured *time.Time
	if loc := close.Location; loc != nil {
		outLat, outLng, outAcc = &loc.Latitude, &loc.Longitude, &loc.AccuracyMeters
		if loc.Source != "" {
			outSource = &loc.Source
		}
		if !loc.CapturedAt.IsZero() {
			t := loc.CapturedAt
			outCaptured = &t
		}
	}

	cmd, err := p.database.Pool().Exec(ctx, query,
		close.ClockOutTime, close.VerificationStatus, close.Notes,
		outLat, outLng, outAcc, outSource, outCaptured,
		id,
	)
	if err != nil {
		return fmt.Errorf("close time record: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotClockedIn
	}
	return nil
}

func (p *PGStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.TimeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + timeRecordColumns + `
		FROM time_records
		WHERE user_id = $1
		ORDER BY clock_in_time DESC
		LIMIT $2`

	rows, err := p.database.Pool().Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list time records: %w", err)
	}
	defer rows.Close()

	var out []models.TimeRecord
	for rows.Next() {
		rec, err := scanTimeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (p *PGStore) SaveSyncRecord(ctx context.Context, rec *models.SynchronizedClockRecord) error {
	query := `
		INSERT INTO synchronized_clock_records (
			time_record_id, session_id, synced_clock_time,
			drift_ms, sync_accuracy, verification_status, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err := p.database.Pool().Exec(ctx, query,
		rec.TimeRecordID, rec.SessionID, rec.SyncedClockTime,
		rec.DriftMs, rec.SyncAccuracy, rec.VerificationStatus, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert synchronized clock record: %w", err)
	}
	return nil
}

func (p *PGStore) AppendSyncEvent(ctx context.Context, ev *models.SyncEvent) error {
	query := `
		INSERT INTO sync_events (
			id, session_id, event_type, server_time, client_time, drift_ms, metadata
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err := p.database.Pool().Exec(ctx, query,
		ev.ID, ev.SessionID, ev.EventType, ev.ServerTime, ev.ClientTime, ev.DriftMs, ev.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert sync event: %w", err)
	}
	return nil
}

func (p *PGStore) UpsertSession(ctx context.Context, s models.SyncSession) error {
	query := `
		INSERT INTO sync_sessions (client_id, status, registered_at, last_seen_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (client_id) DO UPDATE
		SET status = EXCLUDED.status, last_seen_at = EXCLUDED.last_seen_at
	`
	_, err := p.database.Pool().Exec(ctx, query, s.ClientID, s.Status, s.RegisteredAt, s.LastSeenAt)
	if err != nil {
		return fmt.Errorf("upsert sync session: %w", err)
	}
	return nil
}

func (p *PGStore) GetSession(ctx context.Context, clientID string) (*models.SyncSession, error) {
	query := `SELECT client_id, status, registered_at, last_seen_at FROM sync_sessions WHERE client_id = $1`

	var s models.SyncSession
	err := p.database.Pool().QueryRow(ctx, query, clientID).Scan(
		&s.ClientID, &s.Status, &s.RegisteredAt, &s.LastSeenAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select sync session: %w", err)
	}
	return &s, nil
}
