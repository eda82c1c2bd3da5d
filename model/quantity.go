package model

import (
	"fmt"
	"strings"
)

// Quantity is a positive real-world measurement. UnitLabel is display-only.
type Quantity struct {
	Value     float64 `json:"value" yaml:"value"`
	UnitLabel string  `json:"unit_label,omitempty" yaml:"unit_label,omitempty"`
}

// ScaleKind selects the law that maps value ratios onto circle sizes.
type ScaleKind int

const (
	ScaleUnknown ScaleKind = iota
	// ScaleLinear makes the ratio of values equal the ratio of lengths.
	ScaleLinear
	// ScaleAreaPreserving makes the ratio of values equal the ratio of circle areas.
	ScaleAreaPreserving
)

// Exponent returns the power applied to values under this law, or 0 for
// an unknown kind.
func (k ScaleKind) Exponent() float64 {
	switch k {
	case ScaleLinear:
		return 1
	case ScaleAreaPreserving:
		return 0.5
	default:
		return 0
	}
}

// Valid reports whether k is one of the known scaling laws.
func (k ScaleKind) Valid() bool {
	return k == ScaleLinear || k == ScaleAreaPreserving
}

func (k ScaleKind) String() string {
	switch k {
	case ScaleLinear:
		return "LINEAR"
	case ScaleAreaPreserving:
		return "AREA_PRESERVING"
	default:
		return "UNKNOWN"
	}
}

// ParseScaleKind accepts the canonical names plus a few lowercase aliases
// ("linear", "area", "area_preserving", "sqrt").
func ParseScaleKind(s string) (ScaleKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LINEAR":
		return ScaleLinear, nil
	case "AREA_PRESERVING", "AREA", "SQRT":
		return ScaleAreaPreserving, nil
	default:
		return ScaleUnknown, fmt.Errorf("unknown scale kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ScaleKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ScaleKind) UnmarshalText(text []byte) error {
	parsed, err := ParseScaleKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
