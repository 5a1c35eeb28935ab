package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotaclock/backend/attendance"
	"github.com/rotaclock/backend/geo"
	middleware "github.com/rotaclock/backend/middlewares"
	"github.com/rotaclock/backend/models"
	"github.com/rotaclock/backend/timesync"
)

var handlerNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*attendance.Service, *timesync.Registry, *attendance.MemStore) {
	t.Helper()

	store := attendance.NewMemStore()
	registry := timesync.NewRegistry(timesync.DefaultSessionTTL, func() time.Time { return handlerNow })
	svc, err := attendance.New(attendance.Config{
		Store:     store,
		Registry:  registry,
		Estimator: timesync.NewEstimator(),
		Verifier:  geo.NewVerifier(100, 500),
		Sites: attendance.StaticSites{
			"rot-icu": {Site: geo.Coordinate{Latitude: 40, Longitude: -74}, RadiusM: 100},
		},
		Now:    func() time.Time { return handlerNow },
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("attendance.New: %v", err)
	}
	return svc, registry, store
}

// authedRequest builds a JSON request carrying the identity the JWT
// middleware would have injected.
func authedRequest(t *testing.T, method, target, userID string, roles []string, body any) *http.Request {
	t.Helper()

	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	r := httptest.NewRequest(method, target, bytes.NewReader(buf))
	ctx := context.WithValue(r.Context(), middleware.CtxUserID, userID)
	ctx = context.WithValue(ctx, middleware.CtxRole, roles)
	return r.WithContext(ctx)
}

func TestClockInHandler(t *testing.T) {
	svc, registry, _ := newTestService(t)
	registry.Register("c1")
	handler := ClockIn(svc)

	clientTime := handlerNow.Add(-40 * time.Millisecond)
	req := models.ClockInRequest{
		RotationID: "rot-icu",
		ClientID:   "c1",
		ClientTime: &clientTime,
	}

	w := httptest.NewRecorder()
	handler(w, authedRequest(t, http.MethodPost, "/api/attendance/clock-in", "u1", []string{models.RoleStudent}, req))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var resp models.ClockInResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.IsClocked || resp.RecordID == "" {
		t.Errorf("response = %+v", resp)
	}
	if resp.SyncData == nil || resp.SyncData.SyncAccuracy != timesync.AccuracyHigh {
		t.Errorf("sync data = %+v, want high accuracy", resp.SyncData)
	}
}

func TestClockInHandlerConflictCarriesRecordID(t *testing.T) {
	svc, _, _ := newTestService(t)
	handler := ClockIn(svc)
	req := models.ClockInRequest{RotationID: "rot-icu"}

	w := httptest.NewRecorder()
	handler(w, authedRequest(t, http.MethodPost, "/api/attendance/clock-in", "u1", []string{models.RoleStudent}, req))
	if w.Code != http.StatusCreated {
		t.Fatalf("first clock-in status = %d", w.Code)
	}
	var first models.ClockInResponse
	_ = json.Unmarshal(w.Body.Bytes(), &first)

	w = httptest.NewRecorder()
	handler(w, authedRequest(t, http.MethodPost, "/api/attendance/clock-in", "u1", []string{models.RoleStudent}, req))
	if w.Code != http.StatusConflict {
		t.Fatalf("second clock-in status = %d, want 409", w.Code)
	}

	var conflict map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &conflict); err != nil {
		t.Fatalf("decode conflict body: %v", err)
	}
	if conflict["record_id"] != first.RecordID {
		t.Errorf("conflict record_id = %v, want %s", conflict["record_id"], first.RecordID)
	}
}

func TestClockInHandlerRequiresRotation(t *testing.T) {
	svc, _, _ := newTestService(t)
	w := httptest.NewRecorder()
	ClockIn(svc)(w, authedRequest(t, http.MethodPost, "/api/attendance/clock-in", "u1", []string{models.RoleStudent}, models.ClockInRequest{}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestClockOutHandlerConfirmationFlow(t *testing.T) {
	svc, _, _ := newTestService(t)

	near := &models.LocationSample{Latitude: 40.0002, Longitude: -74, AccuracyMeters: 10}
	far := &models.LocationSample{Latitude: 40.05, Longitude: -74, AccuracyMeters: 10}

	w := httptest.NewRecorder()
	ClockIn(svc)(w, authedRequest(t, http.MethodPost, "/api/attendance/clock-in", "u1", []string{models.RoleStudent},
		models.ClockInRequest{RotationID: "rot-icu", Location: near}))
	if w.Code != http.StatusCreated {
		t.Fatalf("clock-in status = %d", w.Code)
	}

	// Out of range without force: 409 plus the verdict.
	w = httptest.NewRecorder()
	ClockOut(svc)(w, authedRequest(t, http.MethodPost, "/api/attendance/clock-out", "u1", []string{models.RoleStudent},
		models.ClockOutRequest{Location: far}))
	if w.Code != http.StatusConflict {
		t.Fatalf("unforced clock-out status = %d, want 409: %s", w.Code, w.Body.String())
	}
	var conflict struct {
		ConfirmationRequired bool                    `json:"confirmation_required"`
		Verification         *models.VerificationDTO `json:"verification"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &conflict); err != nil {
		t.Fatalf("decode conflict: %v", err)
	}
	if !conflict.ConfirmationRequired || conflict.Verification == nil || conflict.Verification.IsValid {
		t.Fatalf("conflict body = %s", w.Body.String())
	}

	// Confirmed: the record closes flagged.
	w = httptest.NewRecorder()
	ClockOut(svc)(w, authedRequest(t, http.MethodPost, "/api/attendance/clock-out", "u1", []string{models.RoleStudent},
		models.ClockOutRequest{Location: far, Force: true}))
	if w.Code != http.StatusOK {
		t.Fatalf("forced clock-out status = %d: %s", w.Code, w.Body.String())
	}
	var resp models.ClockOutResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Flagged {
		t.Error("forced close must report flagged")
	}
	if resp.TotalHours != "00:00:00" {
		t.Errorf("total hours = %q, want 00:00:00 with a frozen clock", resp.TotalHours)
	}
}

func TestClockOutHandlerForwardsSyncFields(t *testing.T) {
	svc, registry, store := newTestService(t)
	registry.Register("c1")

	w := httptest.NewRecorder()
	ClockIn(svc)(w, authedRequest(t, http.MethodPost, "/api/attendance/clock-in", "u1", []string{models.RoleStudent},
		models.ClockInRequest{RotationID: "rot-icu"}))
	if w.Code != http.StatusCreated {
		t.Fatalf("clock-in status = %d", w.Code)
	}

	clientTime := handlerNow.Add(-90 * time.Millisecond)
	w = httptest.NewRecorder()
	ClockOut(svc)(w, authedRequest(t, http.MethodPost, "/api/attendance/clock-out", "u1", []string{models.RoleStudent},
		models.ClockOutRequest{ClientID: "c1", ClientTime: &clientTime}))
	if w.Code != http.StatusOK {
		t.Fatalf("clock-out status = %d: %s", w.Code, w.Body.String())
	}

	events := store.Events()
	if len(events) == 0 || events[len(events)-1].EventType != models.EventSyncedClockOut {
		t.Fatalf("events = %+v, want a synchronized_clock_out audit row", events)
	}
}

func TestClockOutHandlerNotClockedIn(t *testing.T) {
	svc, _, _ := newTestService(t)
	w := httptest.NewRecorder()
	ClockOut(svc)(w, authedRequest(t, http.MethodPost, "/api/attendance/clock-out", "u1", []string{models.RoleStudent},
		models.ClockOutRequest{}))
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestListRecordsRoleGate(t *testing.T) {
	svc, _, _ := newTestService(t)

	w := httptest.NewRecorder()
	ClockIn(svc)(w, authedRequest(t, http.MethodPost, "/api/attendance/clock-in", "u1", []string{models.RoleStudent},
		models.ClockInRequest{RotationID: "rot-icu"}))
	if w.Code != http.StatusCreated {
		t.Fatalf("clock-in status = %d", w.Code)
	}

	// A student cannot read another user's records.
	w = httptest.NewRecorder()
	ListRecords(svc)(w, authedRequest(t, http.MethodGet, "/api/attendance/records?user_id=u1", "u2", []string{models.RoleStudent}, nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("student cross-user status = %d, want 403", w.Code)
	}

	// A coordinator can.
	w = httptest.NewRecorder()
	ListRecords(svc)(w, authedRequest(t, http.MethodGet, "/api/attendance/records?user_id=u1", "u2", []string{models.RoleCoordinator}, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("coordinator status = %d, want 200", w.Code)
	}
	var records []models.TimeRecord
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 1 || records[0].UserID != "u1" {
		t.Errorf("records = %+v", records)
	}
}
