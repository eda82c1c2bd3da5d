package model

// GeoPoint is a geographic position in degrees on the reference sphere.
// Longitude lies in [-180, 180), latitude in [-90, 90].
type GeoPoint struct {
	LonDeg float64 `json:"lon_deg"`
	LatDeg float64 `json:"lat_deg"`
}

// Circle is a geodesic circle: every point at RadiusMeters great-circle
// distance from Center.
type Circle struct {
	Center       GeoPoint `json:"center"`
	RadiusMeters float64  `json:"radius_m"`
}

// CameraPlacement tells the rendering collaborator where to fly the camera.
type CameraPlacement struct {
	Target         GeoPoint `json:"target"`
	AltitudeMeters float64  `json:"altitude_m"`
	// Antipodal is set when Target is the antipode of the circle's center.
	Antipodal bool `json:"antipodal"`
}
