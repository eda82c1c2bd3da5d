package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Collector bundles the Prometheus metrics of the scale service: the RPC
// surface plus engine-level outcomes recorded by sessions and the ring
// cache.
type Collector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	Projections      *prometheus.CounterVec
	RingsGenerated   prometheus.Counter
	RingPoints       prometheus.Histogram
	RingCacheLookups *prometheus.CounterVec
	Framings         *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
}

// NewCollector registers the service metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Collectors that are already registered are reused.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.RPCRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scale_rpc_requests_total",
		Help: "Total number of handled ScaleService RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "scale_rpc_requests_total"); err != nil {
		return nil, err
	}

	if c.RPCDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scale_rpc_duration_seconds",
		Help:    "ScaleService RPC latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"}), "scale_rpc_duration_seconds"); err != nil {
		return nil, err
	}

	if c.Projections, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scale_projections_total",
		Help: "Projected comparison objects, labeled by mode and outcome (fits, too_large, degenerate).",
	}, []string{"mode", "outcome"}), "scale_projections_total"); err != nil {
		return nil, err
	}

	if c.RingsGenerated, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scale_rings_generated_total",
		Help: "Point rings computed by the geodesic projector (cache misses included).",
	}), "scale_rings_generated_total"); err != nil {
		return nil, err
	}

	if c.RingPoints, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scale_ring_points",
		Help:    "Number of points per generated ring.",
		Buckets: []float64{8, 16, 32, 64, 129, 257, 513, 1025},
	}), "scale_ring_points"); err != nil {
		return nil, err
	}

	if c.RingCacheLookups, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scale_ring_cache_lookups_total",
		Help: "Ring cache lookups, labeled by result (hit, miss).",
	}, []string{"result"}), "scale_ring_cache_lookups_total"); err != nil {
		return nil, err
	}

	if c.Framings, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scale_framings_total",
		Help: "Camera placements computed, labeled by target (center, antipode).",
	}, []string{"target"}), "scale_framings_total"); err != nil {
		return nil, err
	}

	if c.ActiveSessions, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scale_active_sessions",
		Help: "Current number of comparison sessions holding a baseline.",
	}), "scale_active_sessions"); err != nil {
		return nil, err
	}

	return c, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}

		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

// register adds col to reg, returning the previously registered collector
// of the same type when one exists under the same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
