package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/globe-scale/model"
)

func TestCirclePointsRingClosure(t *testing.T) {
	center := model.GeoPoint{LonDeg: 2.35, LatDeg: 48.85}
	for _, segments := range []int{3, 16, 128, 360} {
		pts := CirclePoints(center, 250_000, segments)
		if len(pts) != segments+1 {
			t.Fatalf("segments=%d: got %d points, want %d", segments, len(pts), segments+1)
		}
		if pts[0] != pts[len(pts)-1] {
			t.Fatalf("segments=%d: ring not closed: %+v != %+v", segments, pts[0], pts[len(pts)-1])
		}
	}
}

func TestCirclePointsDefaultSegments(t *testing.T) {
	pts := CirclePoints(model.GeoPoint{}, 1000, 0)
	if len(pts) != DefaultSegments+1 {
		t.Fatalf("got %d points, want %d", len(pts), DefaultSegments+1)
	}
}

func TestCirclePointsEmptyForDegenerateRadius(t *testing.T) {
	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		pts := CirclePoints(model.GeoPoint{LonDeg: 10, LatDeg: 10}, r, 64)
		if pts == nil || len(pts) != 0 {
			t.Errorf("radius %v: got %d points, want empty non-nil ring", r, len(pts))
		}
	}
}

func TestCirclePointsSmallRadiusDistance(t *testing.T) {
	centers := []model.GeoPoint{
		{LonDeg: 0, LatDeg: 0},
		{LonDeg: -73.98, LatDeg: 40.75},
		{LonDeg: 179.9995, LatDeg: -33.9},
		{LonDeg: 45, LatDeg: 89.99},
	}
	for _, c := range centers {
		for _, p := range CirclePoints(c, 1000, 128) {
			if d := DistanceMeters(c, p); !approxEqual(d, 1000, 1e-3) {
				t.Fatalf("center %+v: distance to %+v = %.6f, want 1000", c, p, d)
			}
		}
	}
}

func TestCirclePointsLargeRadiusDistance(t *testing.T) {
	c := model.GeoPoint{LonDeg: 151.2, LatDeg: -33.87}
	r := 0.9 * LimitRadiusM
	for _, p := range CirclePoints(c, r, 90) {
		if d := DistanceMeters(c, p); !relEqual(d, r, 1e-9) {
			t.Fatalf("distance to %+v = %.3f, want %.3f", p, d, r)
		}
	}
}

func TestCirclePointsCoordinateRanges(t *testing.T) {
	c := model.GeoPoint{LonDeg: 179, LatDeg: 70}
	for _, p := range CirclePoints(c, 3_000_000, 256) {
		if p.LonDeg < -180 || p.LonDeg >= 180 {
			t.Fatalf("longitude %v out of [-180, 180)", p.LonDeg)
		}
		if p.LatDeg < -90 || p.LatDeg > 90 {
			t.Fatalf("latitude %v out of [-90, 90]", p.LatDeg)
		}
	}
}

func TestCirclePointsFirstBearingIsNorth(t *testing.T) {
	c := model.GeoPoint{LonDeg: 10, LatDeg: 0}
	pts := CirclePoints(c, 111_195, 4)

	// Bearing 0 moves due north by ~1 degree of latitude.
	if !approxEqual(pts[0].LonDeg, 10, 1e-9) || !approxEqual(pts[0].LatDeg, 1, 1e-3) {
		t.Fatalf("first point = %+v, want ≈ (10, 1)", pts[0])
	}
	// Bearing 180 moves due south.
	if !approxEqual(pts[2].LonDeg, 10, 1e-9) || !approxEqual(pts[2].LatDeg, -1, 1e-3) {
		t.Fatalf("third point = %+v, want ≈ (10, -1)", pts[2])
	}
}

func TestCirclePointsCapsSegments(t *testing.T) {
	for _, segments := range []int{MaxSegments + 1, 1 << 40, math.MaxInt} {
		got := CirclePoints(model.GeoPoint{}, 1000, segments)
		if len(got) != MaxSegments+1 {
			t.Fatalf("segments=%d: got %d points, want %d", segments, len(got), MaxSegments+1)
		}
		if got[0] != got[MaxSegments] {
			t.Fatalf("segments=%d: ring not closed", segments)
		}
	}
}

func TestClampSegments(t *testing.T) {
	cases := map[int]int{
		math.MinInt:     DefaultSegments,
		0:               DefaultSegments,
		1:               1,
		64:              64,
		MaxSegments:     MaxSegments,
		MaxSegments + 1: MaxSegments,
		math.MaxInt:     MaxSegments,
	}
	for in, want := range cases {
		if got := ClampSegments(in); got != want {
			t.Errorf("ClampSegments(%d) = %d, want %d", in, got, want)
		}
	}
}
