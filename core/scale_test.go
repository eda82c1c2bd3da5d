package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/globe-scale/model"
)

var (
	refValues  = []float64{1e-6, 0.5, 1, 100, 12_742_000, 7.9e9}
	refLengths = []float64{0, 0.01, 2, 10, 1_000_000}
	targets    = []float64{1e-3, 1, 42, 1.391e9, 8e9, 1e20}
)

func TestSetBaselineScaleFactor(t *testing.T) {
	b := SetBaseline(100, 10, model.ScaleAreaPreserving)
	if !approxEqual(b.ScaleFactor, 1, 1e-12) {
		t.Fatalf("ScaleFactor = %v, want 1", b.ScaleFactor)
	}
	b = SetBaseline(4, 2, model.ScaleLinear)
	if !approxEqual(b.ScaleFactor, 0.5, 1e-12) {
		t.Fatalf("ScaleFactor = %v, want 0.5", b.ScaleFactor)
	}
}

func TestSetBaselineDegenerateInputs(t *testing.T) {
	cases := []struct {
		name   string
		value  float64
		length float64
		kind   model.ScaleKind
	}{
		{"zero value", 0, 10, model.ScaleLinear},
		{"negative value", -1, 10, model.ScaleLinear},
		{"negative length", 1, -10, model.ScaleAreaPreserving},
		{"nan value", math.NaN(), 10, model.ScaleLinear},
		{"inf value", math.Inf(1), 10, model.ScaleLinear},
		{"nan length", 1, math.NaN(), model.ScaleLinear},
		{"inf length", 1, math.Inf(1), model.ScaleAreaPreserving},
		{"unknown kind", 1, 10, model.ScaleUnknown},
	}
	for _, tc := range cases {
		b := SetBaseline(tc.value, tc.length, tc.kind)
		if b.ScaleFactor != 0 {
			t.Errorf("%s: ScaleFactor = %v, want 0", tc.name, b.ScaleFactor)
		}
		if b.Valid() {
			t.Errorf("%s: Valid() = true, want false", tc.name)
		}
		if got := b.Project(5); got != 0 {
			t.Errorf("%s: Project(5) = %v, want 0", tc.name, got)
		}
	}
}

func TestProjectNonPositiveTargets(t *testing.T) {
	b := SetBaseline(10, 10, model.ScaleLinear)
	for _, v := range []float64{0, -3, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := Project(b, v); got != 0 {
			t.Errorf("Project(%v) = %v, want 0", v, got)
		}
	}
}

func TestProjectLinearLaw(t *testing.T) {
	for _, v1 := range refValues {
		for _, l1 := range refLengths {
			b := SetBaseline(v1, l1, model.ScaleLinear)
			for _, v2 := range targets {
				want := l1 * v2 / v1
				if got := Project(b, v2); !relEqual(got, want, 1e-12) {
					t.Errorf("linear v1=%v L1=%v v2=%v: got %v, want %v", v1, l1, v2, got, want)
				}
			}
		}
	}
}

func TestProjectAreaPreservingLaw(t *testing.T) {
	for _, v1 := range refValues {
		for _, l1 := range refLengths {
			b := SetBaseline(v1, l1, model.ScaleAreaPreserving)
			for _, v2 := range targets {
				want := l1 * math.Sqrt(v2/v1)
				if got := Project(b, v2); !relEqual(got, want, 1e-12) {
					t.Errorf("area v1=%v L1=%v v2=%v: got %v, want %v", v1, l1, v2, got, want)
				}
			}
		}
	}
}

func TestProjectSelfConsistency(t *testing.T) {
	for _, kind := range []model.ScaleKind{model.ScaleLinear, model.ScaleAreaPreserving} {
		for _, v1 := range refValues {
			for _, l1 := range refLengths {
				b := SetBaseline(v1, l1, kind)
				if got := b.Project(v1); !relEqual(got, l1, 1e-12) {
					t.Errorf("%s v1=%v L1=%v: Project(v1) = %v, want %v", kind, v1, l1, got, l1)
				}
			}
		}
	}
}

func TestWithReferenceLengthLeavesOriginalUntouched(t *testing.T) {
	b := SetBaseline(100, 10, model.ScaleAreaPreserving)
	c := b.WithReferenceLength(20)

	if b.ReferenceLengthMeters != 10 || !approxEqual(b.ScaleFactor, 1, 1e-12) {
		t.Fatalf("original baseline changed: %+v", b)
	}
	if c.ReferenceValue != 100 || c.Kind != model.ScaleAreaPreserving || !approxEqual(c.ScaleFactor, 2, 1e-12) {
		t.Fatalf("rescaled baseline = %+v", c)
	}
}
