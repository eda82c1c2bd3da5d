package core

import (
	"math"

	"github.com/golang/geo/s1"

	"github.com/signalsfoundry/globe-scale/model"
)

// Framing defaults. The field-of-view and altitude bounds are tunables;
// see FramerConfig.
const (
	DefaultMarginFactor = 1.15
	DefaultMinFOVDeg    = 15.0
	DefaultMaxFOVDeg    = 90.0
	DefaultFOVDeg       = 60.0
	DefaultMinAltitudeM = 50.0
	DefaultMaxAltitudeM = 30_000_000.0

	// DefaultAntipodeThresholdRad is the angular radius above which the
	// camera frames the antipode instead of the center. The comparison is
	// strict: a circle of exactly 90° is framed from its own center.
	DefaultAntipodeThresholdRad = math.Pi / 2
)

// FramerConfig holds the centrally owned camera tunables.
type FramerConfig struct {
	MarginFactor         float64 `json:"margin_factor"`
	MinFOVDeg            float64 `json:"min_fov_deg"`
	MaxFOVDeg            float64 `json:"max_fov_deg"`
	DefaultFOVDeg        float64 `json:"default_fov_deg"`
	MinAltitudeM         float64 `json:"min_altitude_m"`
	MaxAltitudeM         float64 `json:"max_altitude_m"`
	AntipodeThresholdRad float64 `json:"antipode_threshold_rad"`
}

// DefaultFramerConfig returns the built-in framing tunables.
func DefaultFramerConfig() FramerConfig {
	return FramerConfig{
		MarginFactor:         DefaultMarginFactor,
		MinFOVDeg:            DefaultMinFOVDeg,
		MaxFOVDeg:            DefaultMaxFOVDeg,
		DefaultFOVDeg:        DefaultFOVDeg,
		MinAltitudeM:         DefaultMinAltitudeM,
		MaxAltitudeM:         DefaultMaxAltitudeM,
		AntipodeThresholdRad: DefaultAntipodeThresholdRad,
	}
}

// normalized replaces unusable fields with defaults so a Framer never has
// to re-check its own configuration.
func (c FramerConfig) normalized() FramerConfig {
	d := DefaultFramerConfig()
	if !finite(c.MarginFactor) || c.MarginFactor <= 0 {
		c.MarginFactor = d.MarginFactor
	}
	// FOV must stay inside (0°, 180°) for tan(fov/2) to be positive.
	if !finite(c.MinFOVDeg) || !finite(c.MaxFOVDeg) ||
		c.MinFOVDeg <= 0 || c.MaxFOVDeg >= 180 || c.MinFOVDeg > c.MaxFOVDeg {
		c.MinFOVDeg, c.MaxFOVDeg = d.MinFOVDeg, d.MaxFOVDeg
	}
	if !finite(c.DefaultFOVDeg) || c.DefaultFOVDeg <= 0 {
		c.DefaultFOVDeg = d.DefaultFOVDeg
	}
	c.DefaultFOVDeg = clamp(c.DefaultFOVDeg, c.MinFOVDeg, c.MaxFOVDeg)
	if !finite(c.MinAltitudeM) || !finite(c.MaxAltitudeM) ||
		c.MinAltitudeM < 0 || c.MinAltitudeM > c.MaxAltitudeM {
		c.MinAltitudeM, c.MaxAltitudeM = d.MinAltitudeM, d.MaxAltitudeM
	}
	if !finite(c.AntipodeThresholdRad) || c.AntipodeThresholdRad <= 0 || c.AntipodeThresholdRad > math.Pi {
		c.AntipodeThresholdRad = d.AntipodeThresholdRad
	}
	return c
}

// Framer decides where the camera looks and how high it sits to frame a
// geodesic circle. A Framer is immutable and safe for concurrent use.
type Framer struct {
	cfg FramerConfig
}

// NewFramer builds a Framer. Invalid fields in cfg fall back to defaults.
func NewFramer(cfg FramerConfig) *Framer {
	return &Framer{cfg: cfg.normalized()}
}

// Config returns the effective (normalised) configuration.
func (f *Framer) Config() FramerConfig {
	return f.cfg
}

// EffectiveTarget returns the antipode of center when the circle covers
// more than the threshold angle (a hemisphere by default) and center
// otherwise. The cap around the antipode has angular radius π − δ and is
// the legible region to frame.
func (f *Framer) EffectiveTarget(center model.GeoPoint, radiusMeters float64) model.GeoPoint {
	if f.flips(radiusMeters) {
		return Antipode(center)
	}
	return center
}

func (f *Framer) flips(radiusMeters float64) bool {
	return AngularRadiusRad(radiusMeters) > f.cfg.AntipodeThresholdRad
}

// EstimateAltitudeMeters is EstimateAltitudeWithMargin using the
// configured margin factor.
func (f *Framer) EstimateAltitudeMeters(radiusMeters, fovDegrees float64) float64 {
	return f.EstimateAltitudeWithMargin(radiusMeters, fovDegrees, f.cfg.MarginFactor)
}

// EstimateAltitudeWithMargin returns the camera height that fits the
// visible cap into the field of view:
//
//	altitude = margin × R × δ_eff / tan(fov/2),  δ_eff = min(δ, π − δ)
//
// clamped to the configured altitude range. Degenerate radii land on the
// minimum altitude; a non-finite fov uses the default fov; a non-positive
// or non-finite margin uses the configured margin.
func (f *Framer) EstimateAltitudeWithMargin(radiusMeters, fovDegrees, marginFactor float64) float64 {
	if !finite(marginFactor) || marginFactor <= 0 {
		marginFactor = f.cfg.MarginFactor
	}
	fovRad := (s1.Angle(f.clampFOV(fovDegrees)) * s1.Degree).Radians()

	delta := AngularRadiusRad(radiusMeters)
	deltaEff := 0.0
	if finite(delta) && delta > 0 {
		deltaEff = math.Max(0, math.Min(delta, math.Pi-delta))
	}

	altitude := marginFactor * PlanetRadiusM * deltaEff / math.Tan(fovRad/2)
	return clamp(altitude, f.cfg.MinAltitudeM, f.cfg.MaxAltitudeM)
}

func (f *Framer) clampFOV(fovDegrees float64) float64 {
	if !finite(fovDegrees) {
		fovDegrees = f.cfg.DefaultFOVDeg
	}
	return clamp(fovDegrees, f.cfg.MinFOVDeg, f.cfg.MaxFOVDeg)
}

// Frame returns the camera placement for circle.
func (f *Framer) Frame(circle model.Circle, fovDegrees float64) model.CameraPlacement {
	return model.CameraPlacement{
		Target:         f.EffectiveTarget(circle.Center, circle.RadiusMeters),
		AltitudeMeters: f.EstimateAltitudeMeters(circle.RadiusMeters, fovDegrees),
		Antipodal:      f.flips(circle.RadiusMeters),
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

var defaultFramer = NewFramer(DefaultFramerConfig())

// EffectiveTarget frames with the default configuration.
func EffectiveTarget(center model.GeoPoint, radiusMeters float64) model.GeoPoint {
	return defaultFramer.EffectiveTarget(center, radiusMeters)
}

// EstimateAltitudeMeters frames with the default configuration and the
// given margin factor.
func EstimateAltitudeMeters(radiusMeters, fovDegrees, marginFactor float64) float64 {
	return defaultFramer.EstimateAltitudeWithMargin(radiusMeters, fovDegrees, marginFactor)
}

// Frame frames circle with the default configuration.
func Frame(circle model.Circle, fovDegrees float64) model.CameraPlacement {
	return defaultFramer.Frame(circle, fovDegrees)
}
