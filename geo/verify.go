package geo

import "fmt"

// Defaults used when the verifier is constructed from an empty config.
const (
	DefaultGeofenceRadiusM    = 100.0
	DefaultAccuracyThresholdM = 500.0
)

// Sample is a captured device location with its reported accuracy
// radius in meters.
type Sample struct {
	Coordinate
	AccuracyMeters float64
}

// Result is the verification verdict. "Too far" and "too imprecise"
// are data carried in Errors/Warnings, never Go errors: the caller
// decides whether a failed verdict blocks anything.
type Result struct {
	IsValid        bool     `json:"is_valid"`
	DistanceMeters *float64 `json:"distance_meters"`
	Errors         []string `json:"errors,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Verifier checks a captured location against a site geofence.
type Verifier struct {
	GeofenceRadiusM    float64
	AccuracyThresholdM float64
}

func NewVerifier(geofenceRadiusM, accuracyThresholdM float64) Verifier {
	if geofenceRadiusM <= 0 {
		geofenceRadiusM = DefaultGeofenceRadiusM
	}
	if accuracyThresholdM <= 0 {
		accuracyThresholdM = DefaultAccuracyThresholdM
	}
	return Verifier{GeofenceRadiusM: geofenceRadiusM, AccuracyThresholdM: accuracyThresholdM}
}

// Verify applies the decision rules in order: no site means verification
// does not apply; poor GPS accuracy only warns; distance beyond the
// geofence radius invalidates. Only structurally invalid coordinates
// produce a Go error, and the caller must then treat verification as
// skipped or reject the input.
//
// radiusM overrides the verifier's default geofence radius when > 0,
// so a site can carry its own radius.
func (v Verifier) Verify(sample Sample, site *Coordinate, radiusM float64) (Result, error) {
	if err := sample.validate(); err != nil {
		return Result{}, err
	}

	if site == nil {
		return Result{IsValid: true}, nil
	}
	if err := site.validate(); err != nil {
		return Result{}, err
	}

	radius := v.GeofenceRadiusM
	if radiusM > 0 {
		radius = radiusM
	}

	res := Result{IsValid: true}

	if sample.AccuracyMeters > v.AccuracyThresholdM {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("low GPS accuracy: %.0fm exceeds %.0fm threshold", sample.AccuracyMeters, v.AccuracyThresholdM))
	}

	d := Distance(sample.Coordinate, *site)
	res.DistanceMeters = &d

	if d > radius {
		res.IsValid = false
		res.Errors = append(res.Errors,
			fmt.Sprintf("outside approved site radius: %.0fm from site, limit %.0fm", d, radius))
	}

	return res, nil
}
