package attendance

import "errors"

var (
	// ErrAlreadyClockedIn means an open record already exists for the
	// user. Retrying clients should treat this as success-equivalent:
	// the common cause is a retry of a clock-in that already landed.
	ErrAlreadyClockedIn = errors.New("attendance: already clocked in")

	// ErrNotClockedIn means no open record exists to clock out of.
	ErrNotClockedIn = errors.New("attendance: not clocked in")

	// ErrInvalidDuration means the resolved clock-out time precedes the
	// clock-in time. Nothing is persisted in that case.
	ErrInvalidDuration = errors.New("attendance: clock-out before clock-in")

	// ErrInvalidTimestamp means a caller-supplied timestamp is
	// structurally unusable (zero value forced through, pre-epoch).
	ErrInvalidTimestamp = errors.New("attendance: invalid timestamp")

	// ErrRecordNotFound means the requested time record does not exist
	// or belongs to another user.
	ErrRecordNotFound = errors.New("attendance: time record not found")
)
