// Package export turns engine output into GeoJSON for the drawing layer.
package export

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/signalsfoundry/globe-scale/model"
)

// Ring converts points into an orb ring. The input is expected to be
// closed already, as core.CirclePoints returns it; an open ring is closed
// here.
func Ring(points []model.GeoPoint) orb.Ring {
	if len(points) == 0 {
		return nil
	}
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, orb.Point{p.LonDeg, p.LatDeg})
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

// RingFeature wraps points in a Polygon feature carrying props. An empty
// ring has nothing to draw and yields nil.
func RingFeature(points []model.GeoPoint, props map[string]any) *geojson.Feature {
	ring := Ring(points)
	if ring == nil {
		return nil
	}
	f := geojson.NewFeature(orb.Polygon{ring})
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// PlacementFeature renders a camera placement as a Point feature on its
// target with the altitude as a property.
func PlacementFeature(p model.CameraPlacement) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{p.Target.LonDeg, p.Target.LatDeg})
	f.Properties["kind"] = "camera"
	f.Properties["altitude_m"] = p.AltitudeMeters
	f.Properties["antipodal"] = p.Antipodal
	return f
}

// Collection gathers the non-nil features into a FeatureCollection.
func Collection(features ...*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		if f != nil {
			fc.Append(f)
		}
	}
	return fc
}

// MarshalCollection renders the features as GeoJSON bytes.
func MarshalCollection(features ...*geojson.Feature) ([]byte, error) {
	raw, err := Collection(features...).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal feature collection: %w", err)
	}
	return raw, nil
}
