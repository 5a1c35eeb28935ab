package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rotaclock/backend/attendance"
	"github.com/rotaclock/backend/cors"
	"github.com/rotaclock/backend/db"
	"github.com/rotaclock/backend/geo"
	middleware "github.com/rotaclock/backend/middlewares"
	"github.com/rotaclock/backend/models"
	"github.com/rotaclock/backend/routes"
	"github.com/rotaclock/backend/timesync"
)

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	var store attendance.Store
	var sites attendance.SiteLookup
	var database *db.Database

	if os.Getenv("DB_HOST") != "" {
		var err error
		database, err = db.NewPool()
		if err != nil {
			logger.Error("error connecting database", "error", err)
			os.Exit(1)
		}
		defer database.Close()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := database.Ping(pingCtx); err != nil {
			pingCancel()
			logger.Error("database not reachable", "error", err)
			os.Exit(1)
		}
		pingCancel()

		store = attendance.NewPGStore(database)
		sites = attendance.NewPGSites(database)
	} else {
		// Dev mode: in-memory everything, no login/user routes.
		logger.Warn("DB_HOST not set, running with in-memory storage")
		store = attendance.NewMemStore()
		sites = attendance.StaticSites{}
	}

	registry := timesync.NewRegistry(envDuration("SYNC_SESSION_TTL", timesync.DefaultSessionTTL), nil)
	estimator := timesync.NewEstimator()
	monitor := timesync.NewMonitor(estimator, registry, nil)

	verifier := geo.NewVerifier(
		envFloat("GEOFENCE_RADIUS_M", geo.DefaultGeofenceRadiusM),
		envFloat("ACCURACY_THRESHOLD_M", geo.DefaultAccuracyThresholdM),
	)

	svc, err := attendance.New(attendance.Config{
		Store:     store,
		Registry:  registry,
		Estimator: estimator,
		Verifier:  verifier,
		Sites:     sites,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("error building attendance service", "error", err)
		os.Exit(1)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	auth := middleware.AuthJWT(jwtSecret)
	studentOnly := middleware.RequireRoles(models.RoleStudent)
	staffOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	mux := http.NewServeMux()

	// Health check
	mux.Handle("GET /api/hello", routes.Hello)

	if database != nil {
		mux.HandleFunc("POST /api/login", routes.Login(database))
		mux.Handle("POST /api/users", auth(adminOnly(routes.CreateUser(database))))
		mux.Handle("GET /api/users/{id}", auth(adminOnly(routes.GetUser(database))))
	}

	// Attendance
	mux.Handle("POST /api/attendance/clock-in", auth(studentOnly(routes.ClockIn(svc))))
	mux.Handle("POST /api/attendance/clock-out", auth(studentOnly(routes.ClockOut(svc))))
	mux.Handle("GET /api/attendance/records", auth(routes.ListRecords(svc)))
	mux.Handle("GET /api/attendance/records/{id}", auth(routes.GetRecord(svc)))

	// Clock sync
	mux.Handle("POST /api/sync/register", auth(routes.RegisterSync(registry, store)))
	mux.Handle("POST /api/sync/heartbeat", auth(routes.Heartbeat(registry, estimator, store)))
	mux.Handle("GET /api/sync/ws", auth(routes.SyncWS(registry, estimator, store)))
	mux.Handle("GET /api/sync/status", auth(staffOnly(routes.SyncStatus(monitor))))
	mux.Handle("GET /api/sync/clients/{id}", auth(staffOnly(routes.ClientDrift(estimator))))

	allowedOrigins := []string{
		"http://localhost:3000", // dev frontend
	}
	handler := cors.Cors(allowedOrigins, true)(mux)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{Addr: ":" + port, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Drop sync sessions that have been idle for a week.
	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := registry.Sweep(7 * 24 * time.Hour); n > 0 {
					logger.Info("swept stale sync sessions", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid value, using default", "key", key, "value", v)
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid value, using default", "key", key, "value", v)
		return fallback
	}
	return d
}
