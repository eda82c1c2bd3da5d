// Package api exposes the scale engine over gRPC as globescale.v1.ScaleService.
//
// Messages are google.protobuf.Struct envelopes; each method documents the
// keys it reads and writes through the typed request and response structs
// in messages.go.
package api

import (
	"context"

	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/globe-scale/internal/export"
	"github.com/signalsfoundry/globe-scale/internal/logging"
	"github.com/signalsfoundry/globe-scale/internal/observability"
	"github.com/signalsfoundry/globe-scale/internal/session"
	"github.com/signalsfoundry/globe-scale/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "globescale.v1.ScaleService"

// ScaleServer is the server API for ScaleService.
type ScaleServer interface {
	ListModes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EstablishBaseline(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Compare(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FitBaseline(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CirclePoints(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Frame(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes ScaleService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScaleServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListModes", ScaleServer.ListModes),
		unary("EstablishBaseline", ScaleServer.EstablishBaseline),
		unary("ResetSession", ScaleServer.ResetSession),
		unary("Compare", ScaleServer.Compare),
		unary("FitBaseline", ScaleServer.FitBaseline),
		unary("CirclePoints", ScaleServer.CirclePoints),
		unary("Frame", ScaleServer.Frame),
	},
	Metadata: "globescale/v1/scale_service",
}

// RegisterScaleServer registers srv on s.
func RegisterScaleServer(s grpc.ServiceRegistrar, srv ScaleServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type structCall func(ScaleServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call structCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ScaleServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ScaleServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ScaleService implements ScaleServer over a session.Store.
type ScaleService struct {
	store *session.Store
	log   logging.Logger
}

// NewScaleService builds the service.
func NewScaleService(store *session.Store, log logging.Logger) *ScaleService {
	if log == nil {
		log = logging.Noop()
	}
	if store == nil {
		store = session.NewStore(nil, session.WithLogger(log))
	}
	return &ScaleService{store: store, log: log}
}

func (s *ScaleService) logger(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, s.log)
}

// ListModes returns the mode table sorted by name.
func (s *ScaleService) ListModes(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	modes := s.store.Modes().ListModes()
	list := make([]any, 0, len(modes))
	for _, m := range modes {
		list = append(list, modeFields(m))
	}
	out, err := encodeStruct(map[string]any{"modes": list})
	return out, ToStatusError(err)
}

// EstablishBaseline creates or replaces a session.
func (s *ScaleService) EstablishBaseline(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req EstablishRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}

	sess, err := s.store.Establish(ctx, req.SessionID, req.Mode, req.ReferenceValue, req.ReferenceLengthMeters)
	if err != nil {
		return nil, ToStatusError(err)
	}
	out, err := encodeStruct(map[string]any{"session": newSessionInfo(sess).fields()})
	return out, ToStatusError(err)
}

// ResetSession drops a session.
func (s *ScaleService) ResetSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SessionRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	if err := s.store.Reset(ctx, req.SessionID); err != nil {
		return nil, ToStatusError(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
}

// Compare projects a batch of targets against a session.
func (s *ScaleService) Compare(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CompareRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	if err := checkSegments(req.Segments); err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := observability.StartSpan(ctx, "session.Compare",
		attribute.String("session_id", req.SessionID),
		attribute.Int("targets", len(req.Targets)),
	)
	defer span.End()

	withRing := req.WithRing || req.GeoJSON
	comparisons, err := s.store.Compare(ctx, req.SessionID, session.CompareRequest{
		Targets:  req.Targets,
		Center:   req.Center,
		Segments: req.Segments,
		WithRing: withRing,
	})
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}

	results := make([]any, 0, len(comparisons))
	for _, c := range comparisons {
		r := newResult(c)
		if !req.WithRing {
			r.Ring = nil
		}
		results = append(results, r.fields())
	}
	fields := map[string]any{
		"session_id": req.SessionID,
		"results":    results,
	}

	if req.GeoJSON {
		fc, err := comparisonsGeoJSON(comparisons)
		if err != nil {
			s.logger(ctx).Error(ctx, "geojson export failed", logging.Err(err))
			return nil, ToStatusError(err)
		}
		fields["geojson"] = fc
	}

	out, err := encodeStruct(fields)
	return out, ToStatusError(err)
}

// FitBaseline re-anchors a session so value becomes drawable.
func (s *ScaleService) FitBaseline(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req FitRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	res, err := s.store.Fit(ctx, req.SessionID, req.Value)
	if err != nil {
		return nil, ToStatusError(err)
	}
	out, err := encodeStruct(map[string]any{
		"adjusted": res.Adjusted,
		"session":  newSessionInfo(res.Session).fields(),
		"result":   newResult(res.Comparison).fields(),
	})
	return out, ToStatusError(err)
}

// CirclePoints generates a point ring. Degenerate radii return an empty
// ring, not an error.
func (s *ScaleService) CirclePoints(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CircleRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	if err := checkSegments(req.Segments); err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := observability.StartSpan(ctx, "session.Ring",
		attribute.Float64("radius_m", req.RadiusMeters),
		attribute.Int("segments", req.Segments),
	)
	pts := s.store.Ring(ctx, req.Center, req.RadiusMeters, req.Segments)
	span.SetAttributes(attribute.Int("points", len(pts)))
	span.End()

	out, err := encodeStruct(map[string]any{"points": pointsList(pts)})
	return out, ToStatusError(err)
}

// Frame places the camera for a circle using the active framer.
func (s *ScaleService) Frame(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CircleRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}

	_, span := observability.StartSpan(ctx, "core.Frame", attribute.Float64("radius_m", req.RadiusMeters))
	p := s.store.Frame(model.Circle{Center: req.Center, RadiusMeters: req.RadiusMeters}, req.fov())
	span.SetAttributes(attribute.Bool("antipodal", p.Antipodal))
	span.End()

	out, err := encodeStruct(placementFields(p))
	return out, ToStatusError(err)
}

func comparisonsGeoJSON(comparisons []session.Comparison) (map[string]any, error) {
	features := make([]*geojson.Feature, 0, len(comparisons))
	for i, c := range comparisons {
		features = append(features, export.RingFeature(c.Ring, map[string]any{
			"index":    i,
			"value":    c.Value,
			"radius_m": c.RadiusMeters,
		}))
	}
	raw, err := export.MarshalCollection(features...)
	if err != nil {
		return nil, err
	}

	st := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, st); err != nil {
		return nil, err
	}
	return st.AsMap(), nil
}
