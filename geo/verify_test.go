package geo

import (
	"errors"
	"math"
	"testing"
)

// metersOfLatitude converts a north offset in meters to degrees.
func metersOfLatitude(m float64) float64 {
	return m / 111194.9266
}

func TestVerifyNoSite(t *testing.T) {
	v := NewVerifier(100, 500)
	res, err := v.Verify(Sample{
		Coordinate:     Coordinate{Latitude: 10, Longitude: 10},
		AccuracyMeters: 25,
	}, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsValid {
		t.Error("no site configured must be valid")
	}
	if res.DistanceMeters != nil {
		t.Errorf("distance = %v, want nil when no site", *res.DistanceMeters)
	}
	if len(res.Warnings) != 0 || len(res.Errors) != 0 {
		t.Errorf("unexpected warnings/errors: %v / %v", res.Warnings, res.Errors)
	}
}

func TestVerifyInsideGeofence(t *testing.T) {
	v := NewVerifier(100, 500)
	site := Coordinate{Latitude: 40, Longitude: -74}
	sample := Sample{
		Coordinate:     Coordinate{Latitude: 40 + metersOfLatitude(30), Longitude: -74},
		AccuracyMeters: 10,
	}

	res, err := v.Verify(sample, &site, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsValid {
		t.Errorf("30m from site with 100m radius must be valid: %v", res.Errors)
	}
	if res.DistanceMeters == nil || math.Abs(*res.DistanceMeters-30) > 1 {
		t.Errorf("distance = %v, want ~30m", res.DistanceMeters)
	}
}

func TestVerifyOutsideGeofence(t *testing.T) {
	v := NewVerifier(100, 500)
	site := Coordinate{Latitude: 40, Longitude: -74}
	sample := Sample{
		Coordinate:     Coordinate{Latitude: 40 + metersOfLatitude(5000), Longitude: -74},
		AccuracyMeters: 10,
	}

	res, err := v.Verify(sample, &site, 0)
	if err != nil {
		t.Fatalf("far away must not be a Go error, got %v", err)
	}
	if res.IsValid {
		t.Error("5000m from a 100m geofence must be invalid")
	}
	if len(res.Errors) == 0 {
		t.Error("expected an out-of-radius error entry")
	}
}

func TestVerifyLowAccuracyOnlyWarns(t *testing.T) {
	v := NewVerifier(100, 500)
	site := Coordinate{Latitude: 40, Longitude: -74}
	sample := Sample{
		Coordinate:     Coordinate{Latitude: 40 + metersOfLatitude(30), Longitude: -74},
		AccuracyMeters: 800, // past the 500m threshold
	}

	res, err := v.Verify(sample, &site, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsValid {
		t.Error("low accuracy alone must not invalidate")
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want exactly one low-accuracy warning", res.Warnings)
	}
}

func TestVerifySiteRadiusOverride(t *testing.T) {
	v := NewVerifier(100, 500)
	site := Coordinate{Latitude: 40, Longitude: -74}
	sample := Sample{
		Coordinate:     Coordinate{Latitude: 40 + metersOfLatitude(300), Longitude: -74},
		AccuracyMeters: 10,
	}

	// 300m fails the default 100m radius but passes a 400m site radius.
	res, err := v.Verify(sample, &site, 400)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsValid {
		t.Errorf("site radius override not applied: %v", res.Errors)
	}
}

func TestVerifyMalformedCoordinate(t *testing.T) {
	v := NewVerifier(100, 500)
	site := Coordinate{Latitude: 40, Longitude: -74}

	_, err := v.Verify(Sample{
		Coordinate: Coordinate{Latitude: math.NaN(), Longitude: -74},
	}, &site, 0)
	if !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("err = %v, want ErrInvalidCoordinate", err)
	}
}
