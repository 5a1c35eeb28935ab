package timesync

import (
	"errors"
	"math"
	"sync"
	"time"
)

// Accuracy tiers for a single drift observation.
const (
	AccuracyHigh   = "high"   // |drift| < 100ms
	AccuracyMedium = "medium" // 100ms <= |drift| < 500ms
	AccuracyLow    = "low"    // |drift| >= 500ms
)

// Trend of a client's drift relative to its rolling average.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

var ErrInvalidTimestamp = errors.New("timesync: invalid timestamp")

// ComputeDrift returns serverTime - clientTime in milliseconds, signed.
// Positive drift means the client clock is behind the server.
func ComputeDrift(clientTime, serverTime time.Time) int64 {
	return serverTime.Sub(clientTime).Milliseconds()
}

// ClassifyAccuracy maps a drift magnitude onto a coarse tier. The tier
// boundaries are exact: 99ms is high, 100ms is medium, 500ms is low.
func ClassifyAccuracy(driftMs int64) string {
	abs := driftMs
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs < 100:
		return AccuracyHigh
	case abs < 500:
		return AccuracyMedium
	default:
		return AccuracyLow
	}
}

// Drift computes drift and tier for an optional client-reported time.
// A nil or zero clientTime is not an error: the caller gets drift 0 and
// the low tier so the clock event can still proceed unsynchronized.
// A clientTime before the Unix epoch is structurally invalid and is
// rejected; the caller must fall back to the unsynchronized path.
func Drift(clientTime *time.Time, serverTime time.Time) (int64, string, error) {
	if clientTime == nil || clientTime.IsZero() {
		return 0, AccuracyLow, nil
	}
	if clientTime.Unix() < 0 {
		return 0, AccuracyLow, ErrInvalidTimestamp
	}
	d := ComputeDrift(*clientTime, serverTime)
	return d, ClassifyAccuracy(d), nil
}

// DriftStats keeps rolling statistics over the absolute drift of one
// client using Welford's online update, so memory stays constant no
// matter how many samples arrive.
type DriftStats struct {
	Count int64
	mean  float64
	m2    float64
	max   int64
	last  int64
}

// Add folds one signed drift sample into the stats.
func (s *DriftStats) Add(driftMs int64) {
	abs := driftMs
	if abs < 0 {
		abs = -abs
	}
	s.Count++
	delta := float64(abs) - s.mean
	s.mean += delta / float64(s.Count)
	s.m2 += delta * (float64(abs) - s.mean)
	if abs > s.max {
		s.max = abs
	}
	s.last = abs
}

func (s *DriftStats) Mean() float64 {
	return s.mean
}

func (s *DriftStats) StdDev() float64 {
	if s.Count < 2 {
		return 0
	}
	return math.Sqrt(s.m2 / float64(s.Count))
}

func (s *DriftStats) Max() int64 {
	return s.max
}

// Trend compares the most recent sample to the rolling average: more
// than one standard deviation above means increasing, more than one
// below means decreasing, anything else is stable.
func (s *DriftStats) Trend() string {
	if s.Count < 2 {
		return TrendStable
	}
	sd := s.StdDev()
	if sd == 0 {
		return TrendStable
	}
	switch {
	case float64(s.last) > s.mean+sd:
		return TrendIncreasing
	case float64(s.last) < s.mean-sd:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// StatsView is a copy of one client's drift statistics at a point in
// time, safe to hand out without holding the estimator lock.
type StatsView struct {
	Count        int64
	AverageDrift float64
	StdDev       float64
	MaxDrift     int64
	Trend        string
}

// Estimator aggregates drift statistics per client. State is kept
// in-process only; restart loses history, which is acceptable because
// the statistics feed monitoring, never correctness decisions.
type Estimator struct {
	mu       sync.Mutex
	clients  map[string]*DriftStats
	syncs    int64
	errors   int64
	sumDrift float64
	lastSync time.Time
}

func NewEstimator() *Estimator {
	return &Estimator{clients: make(map[string]*DriftStats)}
}

// Observe records one drift sample for a client.
func (e *Estimator) Observe(clientID string, driftMs int64, at time.Time) {
	abs := driftMs
	if abs < 0 {
		abs = -abs
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.clients[clientID]
	if !ok {
		st = &DriftStats{}
		e.clients[clientID] = st
	}
	st.Add(driftMs)
	e.syncs++
	e.sumDrift += float64(abs)
	if at.After(e.lastSync) {
		e.lastSync = at
	}
}

// ObserveError counts a rejected sync sample (malformed timestamp,
// expired session) for the monitoring surface.
func (e *Estimator) ObserveError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// Stats returns a copy of one client's statistics.
func (e *Estimator) Stats(clientID string) (StatsView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.clients[clientID]
	if !ok {
		return StatsView{}, false
	}
	return StatsView{
		Count:        st.Count,
		AverageDrift: st.Mean(),
		StdDev:       st.StdDev(),
		MaxDrift:     st.Max(),
		Trend:        st.Trend(),
	}, true
}

// Totals returns the global counters used by the monitoring surface.
func (e *Estimator) Totals() (syncs, errCount int64, avgDrift float64, lastSync time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	avg := 0.0
	if e.syncs > 0 {
		avg = e.sumDrift / float64(e.syncs)
	}
	return e.syncs, e.errors, avg, e.lastSync
}
