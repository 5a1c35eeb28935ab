// Package db wraps the pgx connection pool. Schema management lives
// outside this service; the tables it expects are:
//
//	users(id, user_id, name, password, username, email, program, cohort, status, role, created_at)
//	rotations(rotation_id, name, site_lat, site_lng, geofence_radius_m)
//	time_records(... see attendance.PGStore ...)
//	sync_sessions(client_id PK, status, registered_at, last_seen_at)
//	sync_events(id, session_id, event_type, server_time, client_time, drift_ms, metadata jsonb)
//	synchronized_clock_records(time_record_id, session_id, synced_clock_time, drift_ms, sync_accuracy, verification_status, created_at)
//
// plus the partial unique index that backs the attendance invariant:
//
//	CREATE UNIQUE INDEX uniq_open_time_record ON time_records (user_id) WHERE status = 'open';
package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

type Database struct {
	pool *pgxpool.Pool
}

func NewPool() (*Database, error) {
	godotenv.Load()

	user := url.QueryEscape(os.Getenv("DB_USER"))
	pass := url.QueryEscape(os.Getenv("DB_PASS"))
	dbname := url.QueryEscape(os.Getenv("DB_NAME"))
	host := url.QueryEscape(os.Getenv("DB_HOST"))
	port := os.Getenv("DB_PORT")

	slog.Info("connecting to database", "host", host, "port", port, "name", dbname)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port, dbname)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	return &Database{pool: pool}, nil
}

func (d *Database) Pool() *pgxpool.Pool {
	return d.pool
}

func (d *Database) Close() {
	slog.Info("closing database pool")
	d.pool.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}
