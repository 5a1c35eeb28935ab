package attendance

import (
	"fmt"
	"time"
)

// ResolveTimestamp picks the authoritative timestamp for a clock event
// from an explicit ordered fallback: the client's drift-corrected
// timestamp if present, else the raw candidate timestamp, else the
// server's own clock. Not every caller carries corrected time; students
// without a sync registration hit the second or third level.
//
// A supplied timestamp that is pre-epoch is rejected rather than
// silently replaced, so a malformed client clock cannot masquerade as
// a deliberate value.
func ResolveTimestamp(synced, candidate *time.Time, serverNow time.Time) (time.Time, error) {
	pick := func(t *time.Time) (time.Time, bool, error) {
		if t == nil || t.IsZero() {
			return time.Time{}, false, nil
		}
		if t.Unix() < 0 {
			return time.Time{}, false, fmt.Errorf("%w: pre-epoch time %v", ErrInvalidTimestamp, *t)
		}
		return *t, true, nil
	}

	if t, ok, err := pick(synced); err != nil {
		return time.Time{}, err
	} else if ok {
		return t, nil
	}
	if t, ok, err := pick(candidate); err != nil {
		return time.Time{}, err
	} else if ok {
		return t, nil
	}
	return serverNow, nil
}

// FormatDuration renders a duration as HH:MM:SS. Hours are not wrapped
// at 24, so a 30-hour record reads "30:00:00".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
