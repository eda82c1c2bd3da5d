package core

import (
	"math"

	"github.com/signalsfoundry/globe-scale/model"
)

// Baseline anchors a comparison session: ReferenceValue is drawn with
// ReferenceLengthMeters under the scaling law Kind.
//
// A Baseline is a value. It is never mutated after SetBaseline returns;
// callers replace it wholesale, which keeps it safe to share between
// goroutines projecting against it concurrently.
//
// Whether the lengths are diameters or radii is the caller's convention;
// projections preserve whichever one the reference length used.
type Baseline struct {
	ReferenceValue        float64         `json:"reference_value"`
	ReferenceLengthMeters float64         `json:"reference_length_m"`
	Kind                  model.ScaleKind `json:"scale_kind"`
	// ScaleFactor is ReferenceLengthMeters / ReferenceValue^e, or 0 when the
	// inputs cannot support a comparison.
	ScaleFactor float64 `json:"scale_factor"`
}

// SetBaseline builds a Baseline. It never fails: non-finite inputs, a
// non-positive reference value, a negative reference length or an unknown
// scale kind all yield ScaleFactor == 0.
func SetBaseline(referenceValue, referenceLengthMeters float64, kind model.ScaleKind) Baseline {
	b := Baseline{
		ReferenceValue:        referenceValue,
		ReferenceLengthMeters: referenceLengthMeters,
		Kind:                  kind,
	}
	if !finite(referenceValue) || !finite(referenceLengthMeters) {
		return b
	}
	if referenceValue <= 0 || referenceLengthMeters < 0 || !kind.Valid() {
		return b
	}

	factor := referenceLengthMeters / math.Pow(referenceValue, kind.Exponent())
	if finite(factor) {
		b.ScaleFactor = factor
	}
	return b
}

// Valid reports whether projections against b can produce non-zero
// lengths. A zero reference length is valid input but projects everything
// to 0, so it reports false as well.
func (b Baseline) Valid() bool {
	return b.ScaleFactor > 0
}

// Project maps targetValue to a length under the baseline's law. It returns
// 0 for non-positive or non-finite targets and for degenerate baselines.
func (b Baseline) Project(targetValue float64) float64 {
	if b.ScaleFactor == 0 || !finite(targetValue) || targetValue <= 0 {
		return 0
	}
	if targetValue == b.ReferenceValue {
		// Exact self-consistency, without a pow round trip.
		return b.ReferenceLengthMeters
	}
	return b.ScaleFactor * math.Pow(targetValue, b.Kind.Exponent())
}

// WithReferenceLength returns a new Baseline sharing b's reference value
// and law but anchored at a different length. b itself is unchanged.
func (b Baseline) WithReferenceLength(referenceLengthMeters float64) Baseline {
	return SetBaseline(b.ReferenceValue, referenceLengthMeters, b.Kind)
}

// Project is the free-function form of Baseline.Project.
func Project(b Baseline, targetValue float64) float64 {
	return b.Project(targetValue)
}
