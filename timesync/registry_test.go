package timesync

import (
	"errors"
	"testing"
	"time"

	"github.com/rotaclock/backend/models"
)

// fakeClock is a settable now() for registry tests.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestRegistry(ttl time.Duration) (*Registry, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	return NewRegistry(ttl, clk.now), clk
}

func TestRegisterIdempotent(t *testing.T) {
	r, clk := newTestRegistry(time.Hour)

	first := r.Register("c1")
	if first.Status != models.SessionActive {
		t.Fatalf("status = %q, want active", first.Status)
	}

	clk.advance(10 * time.Minute)
	second := r.Register("c1")

	if !second.RegisteredAt.Equal(first.RegisteredAt) {
		t.Errorf("re-register changed RegisteredAt: %v → %v", first.RegisteredAt, second.RegisteredAt)
	}
	if !second.LastSeenAt.After(first.LastSeenAt) {
		t.Errorf("re-register did not refresh LastSeenAt")
	}
}

func TestLookupUnknown(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)
	_, err := r.Lookup("nope")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestLazyExpiry(t *testing.T) {
	r, clk := newTestRegistry(time.Hour)
	r.Register("c1")

	clk.advance(30 * time.Minute)
	if _, err := r.Lookup("c1"); err != nil {
		t.Fatalf("lookup within ttl: %v", err)
	}

	clk.advance(45 * time.Minute) // 75m idle, past the 1h ttl
	s, err := r.Lookup("c1")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if s.Status != models.SessionExpired {
		t.Errorf("status = %q, want expired", s.Status)
	}

	// Expired sessions reject new sync writes.
	if err := r.Touch("c1"); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("touch expired: err = %v, want ErrSessionExpired", err)
	}

	// Re-registration reactivates as a fresh logical session.
	fresh := r.Register("c1")
	if fresh.Status != models.SessionActive {
		t.Errorf("reactivated status = %q, want active", fresh.Status)
	}
	if !fresh.RegisteredAt.Equal(clk.t) {
		t.Errorf("reactivation did not reset RegisteredAt")
	}
}

func TestTouchRefreshes(t *testing.T) {
	r, clk := newTestRegistry(time.Hour)
	r.Register("c1")

	// Keep touching every 45 minutes; the session must never expire.
	for i := 0; i < 4; i++ {
		clk.advance(45 * time.Minute)
		if err := r.Touch("c1"); err != nil {
			t.Fatalf("touch %d: %v", i, err)
		}
	}

	if err := r.Touch("ghost"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("touch unknown: err = %v, want ErrSessionNotFound", err)
	}
}

func TestSweep(t *testing.T) {
	r, clk := newTestRegistry(time.Hour)
	r.Register("old")
	clk.advance(48 * time.Hour)
	r.Register("fresh")

	if n := r.Sweep(24 * time.Hour); n != 1 {
		t.Fatalf("sweep dropped %d, want 1", n)
	}
	if _, err := r.Lookup("old"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("swept session still present: %v", err)
	}
	if _, err := r.Lookup("fresh"); err != nil {
		t.Errorf("fresh session swept: %v", err)
	}
}

func TestCounts(t *testing.T) {
	r, clk := newTestRegistry(time.Hour)
	r.Register("a")
	r.Register("b")
	clk.advance(2 * time.Hour)
	r.Register("c")

	active, expired := r.Counts()
	if active != 1 || expired != 2 {
		t.Errorf("counts = (%d, %d), want (1, 2)", active, expired)
	}
}
