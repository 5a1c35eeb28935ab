package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rotaclock/backend/db"
	"github.com/rotaclock/backend/geo"
)

// PGSites resolves rotation sites from the rotations table. A rotation
// with NULL coordinates has no fixed site.
type PGSites struct {
	database *db.Database
}

func NewPGSites(database *db.Database) *PGSites {
	return &PGSites{database: database}
}

func (p *PGSites) SiteForRotation(ctx context.Context, rotationID string) (*geo.Coordinate, float64, error) {
	query := `SELECT site_lat, site_lng, geofence_radius_m FROM rotations WHERE rotation_id = $1`

	var lat, lng, radius *float64
	err := p.database.Pool().QueryRow(ctx, query, rotationID).Scan(&lat, &lng, &radius)
	if errors.Is(err, pgx.ErrNoRows) {
		// Unknown rotation: no site, verification does not apply.
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("select rotation site: %w", err)
	}
	if lat == nil || lng == nil {
		return nil, 0, nil
	}
	r := 0.0
	if radius != nil {
		r = *radius
	}
	return &geo.Coordinate{Latitude: *lat, Longitude: *lng}, r, nil
}

// StaticSites is a fixed rotation → site map for tests and dev mode.
type StaticSites map[string]struct {
	Site    geo.Coordinate
	RadiusM float64
}

func (s StaticSites) SiteForRotation(_ context.Context, rotationID string) (*geo.Coordinate, float64, error) {
	entry, ok := s[rotationID]
	if !ok {
		return nil, 0, nil
	}
	site := entry.Site
	return &site, entry.RadiusM, nil
}
