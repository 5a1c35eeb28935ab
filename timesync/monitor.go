package timesync

import (
	"fmt"
	"time"

	"github.com/rotaclock/backend/models"
)

// Connection health buckets derived from the quality score.
const (
	HealthExcellent    = "excellent"
	HealthGood         = "good"
	HealthDegraded     = "degraded"
	HealthPoor         = "poor"
	HealthDisconnected = "disconnected"
)

// Monitor is the read-only reporting surface over the estimator and
// the registry. It holds no state of its own beyond the start time.
type Monitor struct {
	estimator *Estimator
	registry  *Registry
	startedAt time.Time
	now       func() time.Time
}

func NewMonitor(estimator *Estimator, registry *Registry, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		estimator: estimator,
		registry:  registry,
		startedAt: now(),
		now:       now,
	}
}

// Status aggregates sync quality into a single report. The score starts
// at 100 and loses points for drift magnitude, rejected samples, and
// staleness; the health bucket follows from the score.
func (m *Monitor) Status() models.SyncStatusResponse {
	now := m.now()
	syncs, errCount, avgDrift, lastSync := m.estimator.Totals()
	active, expired := m.registry.Counts()

	resp := models.SyncStatusResponse{
		Uptime:         now.Sub(m.startedAt).Truncate(time.Second).String(),
		SyncCount:      syncs,
		ErrorCount:     errCount,
		AverageDriftMs: avgDrift,
	}

	if syncs == 0 {
		resp.QualityScore = 0
		resp.ConnectionHealth = HealthDisconnected
		resp.Recommendations = []string{"no sync samples received yet; clients must register and send heartbeats"}
		return resp
	}

	ls := lastSync
	resp.LastSyncTime = &ls

	score := 100
	var recs []string

	switch {
	case avgDrift >= 500:
		score -= 40
		recs = append(recs, fmt.Sprintf("average drift %.0fms is in the low-accuracy tier; prompt clients to resync their clocks", avgDrift))
	case avgDrift >= 100:
		score -= 15
		recs = append(recs, fmt.Sprintf("average drift %.0fms; monitor for further increase", avgDrift))
	}

	if total := syncs + errCount; errCount > 0 {
		rate := float64(errCount) / float64(total)
		score -= int(rate * 40)
		if rate > 0.1 {
			recs = append(recs, "more than 10% of sync samples rejected; check client timestamp formats")
		}
	}

	if age := now.Sub(lastSync); age > 5*time.Minute {
		score -= 20
		recs = append(recs, fmt.Sprintf("no sync sample for %s; clients may have gone offline", age.Truncate(time.Second)))
	}

	if active == 0 && expired > 0 {
		recs = append(recs, "all registered sessions have expired")
	}

	if score < 0 {
		score = 0
	}
	resp.QualityScore = score
	resp.ConnectionHealth = healthFor(score)
	resp.Recommendations = recs
	return resp
}

func healthFor(score int) string {
	switch {
	case score >= 90:
		return HealthExcellent
	case score >= 70:
		return HealthGood
	case score >= 40:
		return HealthDegraded
	default:
		return HealthPoor
	}
}
