package models

import "time"

type RecordStatus string

const (
	StatusOpen   RecordStatus = "open"
	StatusClosed RecordStatus = "closed"
)

type VerificationStatus string

const (
	VerificationVerified   VerificationStatus = "verified"
	VerificationUnverified VerificationStatus = "unverified"
	VerificationFlagged    VerificationStatus = "flagged"
)

// TimeRecord is one attendance session: created open by a clock-in,
// closed by the matching clock-out. At most one open record may exist
// per user at any time.
type TimeRecord struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"user_id"`
	RotationID         string             `json:"rotation_id"`
	ClockInTime        time.Time          `json:"clock_in_time"`
	ClockOutTime       *time.Time         `json:"clock_out_time"`
	Status             RecordStatus       `json:"status"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	Notes              string             `json:"notes,omitempty"`
	LocationAtClockIn  *LocationSample    `json:"location_at_clock_in,omitempty"`
	LocationAtClockOut *LocationSample    `json:"location_at_clock_out,omitempty"`

	// Site snapshot taken at clock-in so clock-out verifies against the
	// site that was in force then, not whatever the rotation points to now.
	Site *SiteCoordinate `json:"site,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (r *TimeRecord) IsOpen() bool {
	return r.Status == StatusOpen
}
