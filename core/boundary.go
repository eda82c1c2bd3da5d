package core

import "math"

// Verdict is the BoundaryAdvisor's answer for one projected length.
type Verdict struct {
	TooLarge bool `json:"too_large"`
	// RequiredBaselineLengthMeters is the original baseline length rescaled
	// so the same comparison lands exactly on LimitRadiusM. It is 0 when
	// TooLarge is false, or when no finite rescaling exists.
	RequiredBaselineLengthMeters float64 `json:"required_baseline_length_m"`
}

// ProjectionResult is the outcome of projecting one comparison object.
type ProjectionResult struct {
	LengthMeters                 float64 `json:"length_m"`
	RadiusMeters                 float64 `json:"radius_m"`
	TooLarge                     bool    `json:"too_large"`
	RequiredBaselineLengthMeters float64 `json:"required_baseline_length_m"`
}

// Drawable reports whether the result describes a circle that can be
// turned into a point ring.
func (r ProjectionResult) Drawable() bool {
	return !r.TooLarge && r.RadiusMeters > 0
}

// RadiusOf converts a projected length into a radius under the caller's
// diameter/radius convention.
func RadiusOf(lengthMeters float64, lengthIsRadius bool) float64 {
	if lengthIsRadius {
		return lengthMeters
	}
	return lengthMeters / 2
}

// Evaluate decides whether a projected length wraps past the antipode.
// The limit is inclusive: a radius of exactly LimitRadiusM is too large.
//
// The remedy relies only on the projected length being linear in the
// baseline's reference length, so it holds for every scale kind.
func Evaluate(lengthMeters float64, lengthIsRadius bool, originalBaselineLengthMeters float64) Verdict {
	radius := RadiusOf(lengthMeters, lengthIsRadius)
	if math.IsNaN(radius) || radius < LimitRadiusM {
		return Verdict{}
	}

	v := Verdict{TooLarge: true}
	required := originalBaselineLengthMeters * (LimitRadiusM / radius)
	if finite(required) && required > 0 {
		v.RequiredBaselineLengthMeters = required
	}
	return v
}

// Assess projects targetValue against b and evaluates the result.
func Assess(b Baseline, targetValue float64, lengthIsRadius bool) ProjectionResult {
	length := b.Project(targetValue)
	v := Evaluate(length, lengthIsRadius, b.ReferenceLengthMeters)
	return ProjectionResult{
		LengthMeters:                 length,
		RadiusMeters:                 RadiusOf(length, lengthIsRadius),
		TooLarge:                     v.TooLarge,
		RequiredBaselineLengthMeters: v.RequiredBaselineLengthMeters,
	}
}
