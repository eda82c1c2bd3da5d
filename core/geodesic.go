package core

import (
	"math"

	"github.com/golang/geo/s1"

	"github.com/signalsfoundry/globe-scale/model"
)

// Ring resolution bounds. DefaultSegments is used when callers pass
// segments <= 0; larger requests are capped at MaxSegments.
const (
	DefaultSegments = 128
	MaxSegments     = 4096
)

// ClampSegments maps a requested ring resolution into [1, MaxSegments],
// substituting DefaultSegments for non-positive values.
func ClampSegments(segments int) int {
	if segments <= 0 {
		return DefaultSegments
	}
	if segments > MaxSegments {
		return MaxSegments
	}
	return segments
}

// CirclePoints returns the closed ring of points at radiusMeters from
// center, solving the spherical direct geodesic problem once per bearing.
// The ring holds segments+1 points and its last point equals its first;
// segments is first passed through ClampSegments.
//
// A non-positive or non-finite radius yields an empty ring: nothing to
// draw. Radii at or beyond LimitRadiusM are not rejected here (the
// BoundaryAdvisor owns that check) but the resulting geometry is
// meaningless.
func CirclePoints(center model.GeoPoint, radiusMeters float64, segments int) []model.GeoPoint {
	if !finite(radiusMeters) || radiusMeters <= 0 {
		return []model.GeoPoint{}
	}
	if !finite(center.LatDeg) || !finite(center.LonDeg) {
		return []model.GeoPoint{}
	}
	segments = ClampSegments(segments)

	phi1 := (s1.Angle(center.LatDeg) * s1.Degree).Radians()
	lambda1 := (s1.Angle(center.LonDeg) * s1.Degree).Radians()
	delta := AngularRadiusRad(radiusMeters)

	sinPhi1, cosPhi1 := math.Sincos(phi1)
	sinDelta, cosDelta := math.Sincos(delta)

	points := make([]model.GeoPoint, segments+1)
	for i := 0; i < segments; i++ {
		theta := 2 * math.Pi * float64(i) / float64(segments)
		sinTheta, cosTheta := math.Sincos(theta)

		sinPhi2 := sinPhi1*cosDelta + cosPhi1*sinDelta*cosTheta
		phi2 := math.Asin(clampUnit(sinPhi2))
		lambda2 := lambda1 + math.Atan2(sinTheta*sinDelta*cosPhi1, cosDelta-sinPhi1*sinPhi2)

		points[i] = model.GeoPoint{
			LonDeg: NormalizeLon(s1.Angle(lambda2).Degrees()),
			LatDeg: s1.Angle(phi2).Degrees(),
		}
	}
	points[segments] = points[0]
	return points
}

// clampUnit guards asin against rounding just outside [-1, 1].
func clampUnit(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
