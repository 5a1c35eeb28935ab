package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rotaclock/backend/attendance"
	"github.com/rotaclock/backend/models"
	"github.com/rotaclock/backend/timesync"
)

// RegisterSync handles POST /api/sync/register. Registration is
// idempotent; the session is also persisted best-effort so it survives
// a server restart.
func RegisterSync(registry *timesync.Registry, store attendance.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.HeartbeatRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ClientID == "" {
			writeError(w, http.StatusBadRequest, "client_id is required")
			return
		}

		session := registry.Register(req.ClientID)

		ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		defer cancel()
		if err := store.UpsertSession(ctx, session); err != nil {
			slog.Warn("could not persist sync session", "client_id", req.ClientID, "error", err)
		}

		writeJSON(w, http.StatusOK, session)
	}
}

// Heartbeat handles POST /api/sync/heartbeat for clients without
// websocket support: one drift sample in, the server's view back.
func Heartbeat(registry *timesync.Registry, estimator *timesync.Estimator, store attendance.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.HeartbeatRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		resp, status, errMsg := handleHeartbeat(registry, estimator, store, req, time.Now())
		if errMsg != "" {
			writeError(w, status, errMsg)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleHeartbeat applies one heartbeat sample. Shared between the
// POST endpoint and the websocket loop. The audit row is appended
// best-effort: its failure is logged and the drift answer still goes
// out.
func handleHeartbeat(registry *timesync.Registry, estimator *timesync.Estimator, store attendance.Store, req models.HeartbeatRequest, serverNow time.Time) (models.HeartbeatResponse, int, string) {
	if req.ClientID == "" {
		return models.HeartbeatResponse{}, http.StatusBadRequest, "client_id is required"
	}

	if err := registry.Touch(req.ClientID); err != nil {
		estimator.ObserveError()
		switch {
		case errors.Is(err, timesync.ErrSessionNotFound):
			return models.HeartbeatResponse{}, http.StatusNotFound, "client not registered"
		default:
			return models.HeartbeatResponse{}, http.StatusGone, "session expired; re-register"
		}
	}

	driftMs, tier, err := timesync.Drift(req.ClientTime, serverNow)
	if err != nil {
		estimator.ObserveError()
		return models.HeartbeatResponse{}, http.StatusBadRequest, "invalid client_time"
	}
	estimator.Observe(req.ClientID, driftMs, serverNow)

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	if err := store.AppendSyncEvent(ctx, &models.SyncEvent{
		ID:         uuid.NewString(),
		SessionID:  req.ClientID,
		EventType:  models.EventHeartbeat,
		ServerTime: serverNow,
		ClientTime: req.ClientTime,
		DriftMs:    driftMs,
	}); err != nil {
		slog.Warn("could not append heartbeat event", "client_id", req.ClientID, "error", err)
	}

	return models.HeartbeatResponse{
		ServerTime:   serverNow,
		DriftMs:      driftMs,
		SyncAccuracy: tier,
	}, http.StatusOK, ""
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is handled by the CORS layer and the JWT check;
	// browser clients connect from the approved frontends.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsError struct {
	Error string `json:"error"`
}

// SyncWS handles GET /api/sync/ws: a stream of heartbeat frames, one
// drift answer per frame. Errors that only concern a single frame are
// reported in-band; the connection stays up.
func SyncWS(registry *timesync.Registry, estimator *timesync.Estimator, store attendance.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		for {
			var req models.HeartbeatRequest
			if err := conn.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("sync websocket closed unexpectedly", "error", err)
				}
				return
			}

			resp, _, errMsg := handleHeartbeat(registry, estimator, store, req, time.Now())
			if errMsg != "" {
				if err := conn.WriteJSON(wsError{Error: errMsg}); err != nil {
					return
				}
				continue
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}
}

// SyncStatus handles GET /api/sync/status. Admin/coordinator only.
func SyncStatus(monitor *timesync.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, monitor.Status())
	}
}

// ClientDrift handles GET /api/sync/clients/{id}: the rolling drift
// statistics of one client.
func ClientDrift(estimator *timesync.Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := r.PathValue("id")
		if clientID == "" {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		stats, ok := estimator.Stats(clientID)
		if !ok {
			writeError(w, http.StatusNotFound, "no drift samples for client")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"client_id":        clientID,
			"sample_count":     stats.Count,
			"average_drift_ms": stats.AverageDrift,
			"std_dev_ms":       stats.StdDev,
			"max_drift_ms":     stats.MaxDrift,
			"trend":            stats.Trend,
		})
	}
}
