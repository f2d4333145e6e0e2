package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/signalsfoundry/wlan-hidden-sim/internal/logging"
)

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("WLANSIM_TRACING_ENABLED", "TRUE")
	t.Setenv("WLANSIM_TRACING_EXPORTER", "OTLP")
	t.Setenv("WLANSIM_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("WLANSIM_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("WLANSIM_TRACING_SERVICE_NAME", "")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ServiceName != "wlansim" {
		t.Fatalf("ServiceName = %q, want wlansim", cfg.ServiceName)
	}
}

func TestTracingConfigIgnoresBadRatio(t *testing.T) {
	t.Setenv("WLANSIM_TRACING_SAMPLE_RATIO", "2")
	if got := TracingConfigFromEnv().SampleRatio; got != 1 {
		t.Fatalf("SampleRatio = %v, want default 1", got)
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
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin", SampleRatio: 1}, nil)
	if err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func TestSamplerForBatchRuns(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{ratio: 1, want: sdktrace.AlwaysSample().Description()},
		{ratio: 0, want: sdktrace.NeverSample().Description()},
		{ratio: 0.25, want: sdktrace.TraceIDRatioBased(0.25).Description()},
	}
	for _, tc := range cases {
		if got := samplerFor(tc.ratio).Description(); got != tc.want {
			t.Fatalf("samplerFor(%v) = %q, want %q", tc.ratio, got, tc.want)
		}
	}
}

func TestTracerProviderTagsCommand(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	cfg := TracingConfig{Enabled: true, ServiceName: "wlansim", Exporter: "stdout", SampleRatio: 1, Command: "sweep"}
	tp, err := newTracerProvider(context.Background(), cfg, exp)
	if err != nil {
		t.Fatalf("newTracerProvider: %v", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "simulation.run")
	span.End()

	// Stdout spans are exported synchronously, before any flush.
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans before flush, want 1", len(spans))
	}
	want := map[attribute.Key]string{
		"service.name":    "wlansim",
		"wlansim.command": "sweep",
		"wlansim.clock":   "simulated",
	}
	for _, kv := range spans[0].Resource.Attributes() {
		if v, ok := want[kv.Key]; ok {
			if kv.Value.AsString() != v {
				t.Fatalf("%s = %q, want %q", kv.Key, kv.Value.AsString(), v)
			}
			delete(want, kv.Key)
		}
	}
	if len(want) != 0 {
		t.Fatalf("resource missing %v", want)
	}
}

func TestTracerProviderOmitsEmptyCommand(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := newTracerProvider(context.Background(), TracingConfig{ServiceName: "wlansim", SampleRatio: 1}, exp)
	if err != nil {
		t.Fatalf("newTracerProvider: %v", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "simulation.run")
	span.End()
	for _, kv := range exp.GetSpans()[0].Resource.Attributes() {
		if kv.Key == "wlansim.command" {
			t.Fatalf("unexpected command attribute %q", kv.Value.AsString())
		}
	}
}
