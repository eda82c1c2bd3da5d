package api

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/globe-scale/core"
	"github.com/signalsfoundry/globe-scale/internal/session"
	"github.com/signalsfoundry/globe-scale/model"
)

// ErrInvalidRequest indicates a request envelope that does not decode into
// the method's request shape.
var ErrInvalidRequest = errors.New("invalid request")

// EstablishRequest anchors a session.
type EstablishRequest struct {
	SessionID             string  `json:"session_id"`
	Mode                  string  `json:"mode"`
	ReferenceValue        float64 `json:"reference_value"`
	ReferenceLengthMeters float64 `json:"reference_length_m"`
}

// SessionRequest names a session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// CompareRequest projects targets against a session.
type CompareRequest struct {
	SessionID string         `json:"session_id"`
	Targets   []float64      `json:"targets"`
	Center    model.GeoPoint `json:"center"`
	Segments  int            `json:"segments"`
	WithRing  bool           `json:"with_ring"`
	// GeoJSON adds a FeatureCollection of the drawable rings.
	GeoJSON bool `json:"geojson"`
}

// FitRequest asks the session to make Value drawable.
type FitRequest struct {
	SessionID string  `json:"session_id"`
	Value     float64 `json:"value"`
}

// CircleRequest describes a geodesic circle. FOVDeg is only read by Frame;
// a missing FOVDeg selects the configured default.
type CircleRequest struct {
	Center       model.GeoPoint `json:"center"`
	RadiusMeters float64        `json:"radius_m"`
	Segments     int            `json:"segments"`
	FOVDeg       *float64       `json:"fov_deg"`
}

// SessionInfo is the wire view of a session.Session.
type SessionInfo struct {
	ID                    string          `json:"id"`
	Mode                  string          `json:"mode"`
	ScaleKind             model.ScaleKind `json:"scale_kind"`
	LengthIsRadius        bool            `json:"length_is_radius"`
	ReferenceValue        float64         `json:"reference_value"`
	ReferenceLengthMeters float64         `json:"reference_length_m"`
	ScaleFactor           float64         `json:"scale_factor"`
	EstablishedAt         string          `json:"established_at"`
}

// Result is the wire view of a session.Comparison.
type Result struct {
	Value                        float64          `json:"value"`
	LengthMeters                 float64          `json:"length_m"`
	RadiusMeters                 float64          `json:"radius_m"`
	TooLarge                     bool             `json:"too_large"`
	RequiredBaselineLengthMeters float64          `json:"required_baseline_length_m"`
	Degenerate                   bool             `json:"degenerate"`
	Ring                         []model.GeoPoint `json:"ring"`
}

// ModesResponse lists the mode table.
type ModesResponse struct {
	Modes []model.Mode `json:"modes"`
}

// SessionResponse carries one session.
type SessionResponse struct {
	Session SessionInfo `json:"session"`
}

// CompareResponse carries per-target results in request order.
type CompareResponse struct {
	SessionID string         `json:"session_id"`
	Results   []Result       `json:"results"`
	GeoJSON   map[string]any `json:"geojson"`
}

// FitResponse reports the outcome of a fit.
type FitResponse struct {
	Adjusted bool        `json:"adjusted"`
	Session  SessionInfo `json:"session"`
	Result   Result      `json:"result"`
}

// PointsResponse carries a point ring.
type PointsResponse struct {
	Points []model.GeoPoint `json:"points"`
}

func decodeStruct(in *structpb.Struct, out any) error {
	var raw map[string]any
	if in != nil {
		raw = in.AsMap()
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		DecodeHook:  mapstructure.TextUnmarshallerHookFunc(),
		Result:      out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// checkSegments rejects ring resolutions above core.MaxSegments. Zero and
// negative values select the server default.
func checkSegments(segments int) error {
	if segments > core.MaxSegments {
		return fmt.Errorf("%w: segments %d exceeds %d", ErrInvalidRequest, segments, core.MaxSegments)
	}
	return nil
}

func encodeStruct(fields map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return st, nil
}

func pointFields(p model.GeoPoint) map[string]any {
	return map[string]any{"lon_deg": p.LonDeg, "lat_deg": p.LatDeg}
}

func pointsList(pts []model.GeoPoint) []any {
	out := make([]any, 0, len(pts))
	for _, p := range pts {
		out = append(out, pointFields(p))
	}
	return out
}

func floatsList(vs []float64) []any {
	out := make([]any, 0, len(vs))
	for _, v := range vs {
		out = append(out, v)
	}
	return out
}

func modeFields(m model.Mode) map[string]any {
	return map[string]any{
		"name":             m.Name,
		"scale_kind":       m.ScaleKind.String(),
		"length_is_radius": m.LengthIsRadius,
		"description":      m.Description,
	}
}

func newSessionInfo(s session.Session) SessionInfo {
	return SessionInfo{
		ID:                    s.ID,
		Mode:                  s.Mode.Name,
		ScaleKind:             s.Mode.ScaleKind,
		LengthIsRadius:        s.Mode.LengthIsRadius,
		ReferenceValue:        s.Baseline.ReferenceValue,
		ReferenceLengthMeters: s.Baseline.ReferenceLengthMeters,
		ScaleFactor:           s.Baseline.ScaleFactor,
		EstablishedAt:         s.EstablishedAt.Format(time.RFC3339Nano),
	}
}

func (s SessionInfo) fields() map[string]any {
	return map[string]any{
		"id":                 s.ID,
		"mode":               s.Mode,
		"scale_kind":         s.ScaleKind.String(),
		"length_is_radius":   s.LengthIsRadius,
		"reference_value":    s.ReferenceValue,
		"reference_length_m": s.ReferenceLengthMeters,
		"scale_factor":       s.ScaleFactor,
		"established_at":     s.EstablishedAt,
	}
}

func newResult(c session.Comparison) Result {
	return Result{
		Value:                        c.Value,
		LengthMeters:                 c.LengthMeters,
		RadiusMeters:                 c.RadiusMeters,
		TooLarge:                     c.TooLarge,
		RequiredBaselineLengthMeters: c.RequiredBaselineLengthMeters,
		Degenerate:                   c.Degenerate,
		Ring:                         c.Ring,
	}
}

func (r Result) fields() map[string]any {
	return map[string]any{
		"value":                      r.Value,
		"length_m":                   r.LengthMeters,
		"radius_m":                   r.RadiusMeters,
		"too_large":                  r.TooLarge,
		"required_baseline_length_m": r.RequiredBaselineLengthMeters,
		"degenerate":                 r.Degenerate,
		"ring":                       pointsList(r.Ring),
	}
}

func placementFields(p model.CameraPlacement) map[string]any {
	return map[string]any{
		"target":     pointFields(p.Target),
		"altitude_m": p.AltitudeMeters,
		"antipodal":  p.Antipodal,
	}
}

// Request encoders used by Client.

func (r EstablishRequest) fields() map[string]any {
	return map[string]any{
		"session_id":         r.SessionID,
		"mode":               r.Mode,
		"reference_value":    r.ReferenceValue,
		"reference_length_m": r.ReferenceLengthMeters,
	}
}

func (r SessionRequest) fields() map[string]any {
	return map[string]any{"session_id": r.SessionID}
}

func (r CompareRequest) fields() map[string]any {
	return map[string]any{
		"session_id": r.SessionID,
		"targets":    floatsList(r.Targets),
		"center":     pointFields(r.Center),
		"segments":   float64(r.Segments),
		"with_ring":  r.WithRing,
		"geojson":    r.GeoJSON,
	}
}

func (r FitRequest) fields() map[string]any {
	return map[string]any{"session_id": r.SessionID, "value": r.Value}
}

func (r CircleRequest) fields() map[string]any {
	f := map[string]any{
		"center":   pointFields(r.Center),
		"radius_m": r.RadiusMeters,
		"segments": float64(r.Segments),
	}
	if r.FOVDeg != nil {
		f["fov_deg"] = *r.FOVDeg
	}
	return f
}

func (r CircleRequest) fov() float64 {
	if r.FOVDeg == nil {
		return math.NaN()
	}
	return *r.FOVDeg
}
