package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rotaclock/backend/attendance"
	"github.com/rotaclock/backend/geo"
	middleware "github.com/rotaclock/backend/middlewares"
	"github.com/rotaclock/backend/models"
)

// ClockIn handles POST /api/attendance/clock-in. The user id comes from
// the token, never from the body: a student clocks in only for
// themselves.
func ClockIn(svc *attendance.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req models.ClockInRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.RotationID == "" {
			writeError(w, http.StatusBadRequest, "rotation_id is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		defer cancel()

		res, err := svc.ClockIn(ctx, attendance.ClockInInput{
			UserID:          userID,
			RotationID:      req.RotationID,
			Notes:           req.Notes,
			Timestamp:       req.Timestamp,
			SyncedTimestamp: req.SyncedTimestamp,
			Location:        req.Location,
			ClientID:        req.ClientID,
			ClientTime:      req.ClientTime,
		})
		if err != nil {
			clockInError(w, r, svc, userID, err)
			return
		}

		writeJSON(w, http.StatusCreated, models.ClockInResponse{
			IsClocked:          true,
			RecordID:           res.RecordID,
			ClockInTime:        res.ClockInTime,
			VerificationStatus: res.VerificationStatus,
			SyncData:           res.SyncData,
		})
	}
}

// clockInError maps service failures onto HTTP. AlreadyClockedIn
// carries the existing open record id so a retrying client can treat
// 409 as success-equivalent.
func clockInError(w http.ResponseWriter, r *http.Request, svc *attendance.Service, userID string, err error) {
	switch {
	case errors.Is(err, attendance.ErrAlreadyClockedIn):
		payload := map[string]any{"error": "already clocked in"}
		if open, ferr := svc.OpenRecord(r.Context(), userID); ferr == nil {
			payload["record_id"] = open.ID
			payload["clock_in_time"] = open.ClockInTime
		}
		writeJSON(w, http.StatusConflict, payload)
	case errors.Is(err, attendance.ErrInvalidTimestamp):
		writeError(w, http.StatusBadRequest, "invalid timestamp")
	case errors.Is(err, geo.ErrInvalidCoordinate):
		writeError(w, http.StatusBadRequest, "invalid coordinates")
	default:
		slog.Error("clock-in failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "clock-in failed")
	}
}

// ClockOut handles POST /api/attendance/clock-out. A failed location
// verification returns 409 with the verdict; the client confirms with
// force=true and the record closes flagged.
func ClockOut(svc *attendance.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req models.ClockOutRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		defer cancel()

		res, err := svc.ClockOut(ctx, attendance.ClockOutInput{
			UserID:       userID,
			TimeRecordID: req.TimeRecordID,
			Notes:        req.Notes,
			Timestamp:    req.Timestamp,
			Location:     req.Location,
			ClientID:     req.ClientID,
			ClientTime:   req.ClientTime,
			Force:        req.Force,
		})
		if err != nil {
			switch {
			case errors.Is(err, attendance.ErrNotClockedIn):
				writeError(w, http.StatusConflict, "not clocked in")
			case errors.Is(err, attendance.ErrInvalidDuration):
				writeError(w, http.StatusUnprocessableEntity, "clock-out time precedes clock-in time")
			case errors.Is(err, attendance.ErrInvalidTimestamp):
				writeError(w, http.StatusBadRequest, "invalid timestamp")
			case errors.Is(err, geo.ErrInvalidCoordinate):
				writeError(w, http.StatusBadRequest, "invalid coordinates")
			default:
				slog.Error("clock-out failed", "user_id", userID, "error", err)
				writeError(w, http.StatusInternalServerError, "clock-out failed")
			}
			return
		}

		if !res.Closed {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":                 "location verification failed",
				"confirmation_required": true,
				"record_id":             res.RecordID,
				"verification":          verificationDTO(res.Verification),
			})
			return
		}

		writeJSON(w, http.StatusOK, models.ClockOutResponse{
			TotalHours:   res.TotalHours,
			ClockOutTime: res.ClockOutTime,
			Flagged:      res.Flagged,
			Verification: verificationDTO(res.Verification),
		})
	}
}

func verificationDTO(res *geo.Result) *models.VerificationDTO {
	if res == nil {
		return nil
	}
	return &models.VerificationDTO{
		IsValid:        res.IsValid,
		DistanceMeters: res.DistanceMeters,
		Errors:         res.Errors,
		Warnings:       res.Warnings,
	}
}
