package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/signalsfoundry/globe-scale/internal/logging"
)

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("GLOBESCALE_TRACING_ENABLED", "TRUE")
	t.Setenv("GLOBESCALE_TRACING_EXPORTER", "OTLP")
	t.Setenv("GLOBESCALE_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("GLOBESCALE_TRACING_SERVICE_NAME", "")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.SampleRatio != 0.25 || cfg.ServiceName != "globe-scale" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	t.Setenv("GLOBESCALE_TRACING_SAMPLE_RATIO", "7")
	if got := TracingConfigFromEnv().SampleRatio; got != 1 {
		t.Fatalf("out-of-range sample ratio = %v, want 1", got)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}

func TestStartSpanUsesGlobalProvider(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartSpan(context.Background(), "ring")
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 || ended[0].Name() != "ring" {
		t.Fatalf("recorded spans = %v", ended)
	}
}

func TestShutdownWithTimeoutSwallowsErrors(t *testing.T) {
	called := false
	ShutdownWithTimeout(context.Background(), func(context.Context) error {
		called = true
		return errors.New("flush failed")
	}, nil)
	if !called {
		t.Fatalf("shutdown function not invoked")
	}
	ShutdownWithTimeout(context.Background(), nil, nil)
}
