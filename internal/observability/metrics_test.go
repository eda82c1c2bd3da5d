package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/globescale.v1.ScaleService/Compare"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("ScaleService", "Compare", "OK")); got != 1 {
		t.Fatalf("scale_rpc_requests_total = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "scale_rpc_duration_seconds", map[string]string{
		"service": "ScaleService",
		"method":  "Compare",
	}); count != 1 {
		t.Fatalf("scale_rpc_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/globescale.v1.ScaleService/EstablishBaseline"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "no such mode")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("ScaleService", "EstablishBaseline", "NotFound")); got != 1 {
		t.Fatalf("scale_rpc_requests_total error label = %v, want 1", got)
	}
}

func TestNewCollectorReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("first NewCollector: %v", err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}

	first.ObserveProjection("size", OutcomeFits)
	if got := testutil.ToFloat64(second.Projections.WithLabelValues("size", OutcomeFits)); got != 1 {
		t.Fatalf("second collector did not share counters, got %v", got)
	}
}

func TestEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	c.ObserveProjection("population", OutcomeTooLarge)
	c.ObserveProjection("", OutcomeDegenerate)
	c.ObserveRing(129)
	c.ObserveCacheLookup(true)
	c.ObserveCacheLookup(false)
	c.ObserveCacheLookup(false)
	c.ObserveFraming(true)
	c.SetActiveSessions(3)

	if got := testutil.ToFloat64(c.Projections.WithLabelValues("population", OutcomeTooLarge)); got != 1 {
		t.Fatalf("too_large projections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Projections.WithLabelValues("unknown", OutcomeDegenerate)); got != 1 {
		t.Fatalf("degenerate projections with empty mode = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.RingsGenerated); got != 1 {
		t.Fatalf("rings generated = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.RingCacheLookups.WithLabelValues("miss")); got != 2 {
		t.Fatalf("cache misses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Framings.WithLabelValues("antipode")); got != 1 {
		t.Fatalf("antipodal framings = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ActiveSessions); got != 3 {
		t.Fatalf("active sessions = %v, want 3", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ObserveProjection("size", OutcomeFits)
	c.ObserveRing(10)
	c.ObserveCacheLookup(true)
	c.ObserveFraming(false)
	c.SetActiveSessions(1)
}

func TestMetricsHandlerExposesEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	collector.SetActiveSessions(7)
	collector.ObserveProjection("size", OutcomeFits)
	collector.ObserveRing(129)
	collector.ObserveCacheLookup(true)
	collector.ObserveFraming(false)
	collector.RPCRequests.WithLabelValues("svc", "method", "OK").Inc()
	collector.RPCDurations.WithLabelValues("svc", "method").Observe(0.01)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"scale_rpc_requests_total",
		"scale_rpc_duration_seconds",
		"scale_projections_total",
		"scale_rings_generated_total",
		"scale_ring_points",
		"scale_ring_cache_lookups_total",
		"scale_framings_total",
		"scale_active_sessions 7",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	cases := map[string][2]string{
		"":                                   {"unknown", "unknown"},
		"/globescale.v1.ScaleService/Frame":  {"ScaleService", "Frame"},
		"ScaleService/Frame":                 {"ScaleService", "Frame"},
		"/Frame":                             {"unknown", "unknown"},
		"/globescale.v1.ScaleService/":       {"ScaleService", "unknown"},
	}
	for in, want := range cases {
		service, method := SplitMethod(in)
		if service != want[0] || method != want[1] {
			t.Errorf("SplitMethod(%q) = (%q, %q), want (%q, %q)", in, service, method, want[0], want[1])
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
