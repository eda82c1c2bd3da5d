package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func TestRunPrintsRingsAndCamera(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-mode", "size",
		"-ref-value", "12742000",
		"-ref-length", "2",
		"-targets", "1391000000, 1e16",
		"-lat", "48.85", "-lon", "2.35",
		"-segments", "24",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	fc, err := geojson.UnmarshalFeatureCollection(stdout.Bytes())
	if err != nil {
		t.Fatalf("output is not a FeatureCollection: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want ring + camera", len(fc.Features))
	}
	poly, ok := fc.Features[0].Geometry.(orb.Polygon)
	if !ok || len(poly[0]) != 25 {
		t.Fatalf("first feature should be a 25-point ring, got %#v", fc.Features[0].Geometry)
	}
	if _, ok := fc.Features[1].Geometry.(orb.Point); !ok {
		t.Fatalf("second feature should be the camera point")
	}

	log := stderr.String()
	if !strings.Contains(log, "too large") {
		t.Fatalf("stderr missing too-large summary: %s", log)
	}
	if !strings.Contains(log, "camera:") {
		t.Fatalf("stderr missing camera summary: %s", log)
	}
}

func TestRunFitRescalesBaseline(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-mode", "mass",
		"-ref-value", "1",
		"-ref-length", "1000000",
		"-targets", "1e20",
		"-fit",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stderr.String(), "baseline rescaled") {
		t.Fatalf("expected rescale notice, got %s", stderr.String())
	}
	fc, err := geojson.UnmarshalFeatureCollection(stdout.Bytes())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("fitted target should be drawable, features = %d", len(fc.Features))
	}
}

func TestRunListModes(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-list-modes"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"size", "AREA_PRESERVING", "radius"} {
		if !strings.Contains(out, want) {
			t.Fatalf("mode listing missing %q:\n%s", want, out)
		}
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	cases := map[string][]string{
		"no targets":   {"-ref-value", "1", "-ref-length", "1"},
		"bad target":   {"-ref-value", "1", "-ref-length", "1", "-targets", "1,abc"},
		"unknown mode": {"-mode", "volume", "-ref-value", "1", "-ref-length", "1", "-targets", "1"},
		"degenerate":   {"-ref-value", "0", "-ref-length", "1", "-targets", "1"},
		"segment cap":  {"-ref-value", "1", "-ref-length", "1", "-targets", "1", "-segments", "5000"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(context.Background(), args, &stdout, &stderr); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestMaxFinite(t *testing.T) {
	if _, ok := maxFinite([]float64{-1, 0}); ok {
		t.Fatalf("no positive values should report !ok")
	}
	if v, ok := maxFinite([]float64{3, 9, 1}); !ok || v != 9 {
		t.Fatalf("maxFinite = %v, %v", v, ok)
	}
}
