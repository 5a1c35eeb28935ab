package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rotaclock/backend/attendance"
	middleware "github.com/rotaclock/backend/middlewares"
	"github.com/rotaclock/backend/models"
)

// ListRecords handles GET /api/attendance/records. Students see their
// own history; admins and coordinators may query any user with
// ?user_id=.
func ListRecords(svc *attendance.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		target := userID
		if q := r.URL.Query().Get("user_id"); q != "" && q != userID {
			if !middleware.HasRole(r.Context(), models.RoleAdmin) &&
				!middleware.HasRole(r.Context(), models.RoleCoordinator) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			target = q
		}

		limit := 50
		if q := r.URL.Query().Get("limit"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}

		ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		defer cancel()

		records, err := svc.Records(ctx, target, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "error fetching records")
			return
		}
		if records == nil {
			records = []models.TimeRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

// GetRecord handles GET /api/attendance/records/{id}. Owners and
// admins/coordinators only.
func GetRecord(svc *attendance.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		id := r.PathValue("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}

		owner := userID
		if middleware.HasRole(r.Context(), models.RoleAdmin) ||
			middleware.HasRole(r.Context(), models.RoleCoordinator) {
			owner = "" // unrestricted
		}

		ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		defer cancel()

		rec, err := svc.Record(ctx, id, owner)
		if errors.Is(err, attendance.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "error fetching record")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}
