package attendance

import (
	"context"
	"sort"
	"sync"

	"github.com/rotaclock/backend/models"
)

// MemStore is an in-memory Store. It backs the test suite and the
// dev mode of the server (no database configured). The single mutex
// makes the open-record check and the insert one atomic step, which is
// the whole point of the Store contract.
type MemStore struct {
	mu          sync.Mutex
	records     map[string]*models.TimeRecord
	openByUser  map[string]string // userID → open record id
	syncRecords map[string]*models.SynchronizedClockRecord
	events      []models.SyncEvent
	sessions    map[string]models.SyncSession
}

func NewMemStore() *MemStore {
	return &MemStore{
		records:     make(map[string]*models.TimeRecord),
		openByUser:  make(map[string]string),
		syncRecords: make(map[string]*models.SynchronizedClockRecord),
		sessions:    make(map[string]models.SyncSession),
	}
}

func (m *MemStore) CreateOpen(_ context.Context, rec *models.TimeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, open := m.openByUser[rec.UserID]; open {
		return ErrAlreadyClockedIn
	}
	cp := *rec
	m.records[rec.ID] = &cp
	m.openByUser[rec.UserID] = rec.ID
	return nil
}

func (m *MemStore) FindOpen(_ context.Context, userID string) (*models.TimeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.openByUser[userID]
	if !ok {
		return nil, ErrNotClockedIn
	}
	cp := *m.records[id]
	return &cp, nil
}

func (m *MemStore) GetRecord(_ context.Context, id string) (*models.TimeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemStore) CloseRecord(_ context.Context, id string, close CloseUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok || rec.Status != models.StatusOpen {
		return ErrNotClockedIn
	}
	t := close.ClockOutTime
	rec.ClockOutTime = &t
	rec.Status = models.StatusClosed
	rec.VerificationStatus = close.VerificationStatus
	rec.LocationAtClockOut = close.Location
	if close.Notes != "" {
		rec.Notes = close.Notes
	}
	rec.UpdatedAt = &t
	delete(m.openByUser, rec.UserID)
	return nil
}

func (m *MemStore) ListByUser(_ context.Context, userID string, limit int) ([]models.TimeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.TimeRecord
	for _, rec := range m.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ClockInTime.After(out[j].ClockInTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) SaveSyncRecord(_ context.Context, rec *models.SynchronizedClockRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	m.syncRecords[rec.TimeRecordID] = &cp
	return nil
}

func (m *MemStore) AppendSyncEvent(_ context.Context, ev *models.SyncEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, *ev)
	return nil
}

func (m *MemStore) UpsertSession(_ context.Context, s models.SyncSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ClientID] = s
	return nil
}

func (m *MemStore) GetSession(_ context.Context, clientID string) (*models.SyncSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[clientID]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

// SyncRecord returns the sync annotation for a time record, if any.
// Used by record queries and tests.
func (m *MemStore) SyncRecord(id string) (*models.SynchronizedClockRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.syncRecords[id]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// Events returns a copy of the append-only event log.
func (m *MemStore) Events() []models.SyncEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.SyncEvent, len(m.events))
	copy(out, m.events)
	return out
}
