package core

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/signalsfoundry/globe-scale/model"
)

// PlanetRadiusM is the IUGG mean Earth radius in metres. All geometry in
// this package treats the planet as a sphere of this radius.
const PlanetRadiusM = 6371008.8

// LimitRadiusM is the geodesic radius that reaches the antipode from any
// center: the largest radius that still describes a simple, uniquely
// centered circle on the sphere.
const LimitRadiusM = math.Pi * PlanetRadiusM

// finite reports whether x is neither NaN nor ±Inf.
func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// NormalizeLon wraps a longitude in degrees into [-180, 180).
func NormalizeLon(lonDeg float64) float64 {
	if !finite(lonDeg) {
		return lonDeg
	}
	lon := math.Mod(lonDeg+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// Antipode returns the point diametrically opposite p.
func Antipode(p model.GeoPoint) model.GeoPoint {
	return model.GeoPoint{
		LonDeg: NormalizeLon(p.LonDeg + 180),
		LatDeg: -p.LatDeg,
	}
}

// AngularRadiusRad converts a surface radius into the angle it subtends at
// the planet's center.
func AngularRadiusRad(radiusMeters float64) float64 {
	return radiusMeters / PlanetRadiusM
}

// toLatLng converts a GeoPoint into an s2.LatLng without normalisation.
func toLatLng(p model.GeoPoint) s2.LatLng {
	return s2.LatLng{
		Lat: s1.Angle(p.LatDeg) * s1.Degree,
		Lng: s1.Angle(p.LonDeg) * s1.Degree,
	}
}

// DistanceMeters returns the great-circle (haversine) distance between two
// points on the reference sphere.
func DistanceMeters(a, b model.GeoPoint) float64 {
	return toLatLng(a).Distance(toLatLng(b)).Radians() * PlanetRadiusM
}
