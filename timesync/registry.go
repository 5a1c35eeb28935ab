package timesync

import (
	"errors"
	"sync"
	"time"

	"github.com/rotaclock/backend/models"
)

var (
	ErrSessionNotFound = errors.New("timesync: session not found")
	ErrSessionExpired  = errors.New("timesync: session expired")
)

// DefaultSessionTTL is the inactivity window after which a session is
// considered expired on the next lookup.
const DefaultSessionTTL = 24 * time.Hour

// Registry tracks the sync sessions of known clients. All access goes
// through the mutex; callers receive copies, never the stored structs.
// Expiry is lazy: a session idle past the TTL is marked expired when it
// is next looked at, and Sweep drops long-dead entries periodically.
type Registry struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*models.SyncSession
}

func NewRegistry(ttl time.Duration, now func() time.Time) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{
		ttl:      ttl,
		now:      now,
		sessions: make(map[string]*models.SyncSession),
	}
}

// Register creates or refreshes a session. It is idempotent: an active
// session just gets its last-seen time bumped, an expired one is
// reactivated as a new logical session.
func (r *Registry) Register(clientID string) models.SyncSession {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[clientID]
	if !ok || s.Status == models.SessionExpired {
		s = &models.SyncSession{
			ClientID:     clientID,
			Status:       models.SessionActive,
			RegisteredAt: now,
			LastSeenAt:   now,
		}
		r.sessions[clientID] = s
		return *s
	}
	s.LastSeenAt = now
	return *s
}

// Lookup returns the session for a client. An unknown client yields
// ErrSessionNotFound; a session idle past the TTL is marked expired and
// yields ErrSessionExpired together with the (now expired) session, so
// callers can distinguish "never registered" from "went stale".
func (r *Registry) Lookup(clientID string) (models.SyncSession, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[clientID]
	if !ok {
		return models.SyncSession{}, ErrSessionNotFound
	}
	if s.Status == models.SessionActive && now.Sub(s.LastSeenAt) > r.ttl {
		s.Status = models.SessionExpired
	}
	if s.Status == models.SessionExpired {
		return *s, ErrSessionExpired
	}
	return *s, nil
}

// Touch refreshes an active session's last-seen time. Expired and
// unknown sessions are rejected; new sync writes require re-registering.
func (r *Registry) Touch(clientID string) error {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[clientID]
	if !ok {
		return ErrSessionNotFound
	}
	if s.Status == models.SessionExpired || now.Sub(s.LastSeenAt) > r.ttl {
		s.Status = models.SessionExpired
		return ErrSessionExpired
	}
	s.LastSeenAt = now
	return nil
}

// Sweep removes sessions that have been idle for longer than retain and
// returns how many were dropped. Meant to run on a background ticker.
func (r *Registry) Sweep(retain time.Duration) int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for id, s := range r.sessions {
		if now.Sub(s.LastSeenAt) > retain {
			delete(r.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Counts returns the number of active and expired sessions, applying
// lazy expiry as it scans.
func (r *Registry) Counts() (active, expired int) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.Status == models.SessionActive && now.Sub(s.LastSeenAt) > r.ttl {
			s.Status = models.SessionExpired
		}
		if s.Status == models.SessionActive {
			active++
		} else {
			expired++
		}
	}
	return active, expired
}
