package model

// Mode is the per-comparison-mode configuration: which scaling law the
// mode uses and whether its lengths are radii or diameters.
type Mode struct {
	Name           string    `json:"name" yaml:"name"`
	ScaleKind      ScaleKind `json:"scale_kind" yaml:"scale_kind"`
	LengthIsRadius bool      `json:"length_is_radius" yaml:"length_is_radius"`
	Description    string    `json:"description,omitempty" yaml:"description,omitempty"`
}
