package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("LOCATOR_TRACING_ENABLED", "TRUE")
	t.Setenv("LOCATOR_TRACING_EXPORTER", "OTLP")
	t.Setenv("LOCATOR_TRACING_SERVICE_NAME", "")
	t.Setenv("LOCATOR_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("LOCATOR_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.ServiceName != "geolocator" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("unexpected sampler/endpoint: %+v", cfg)
	}
}

func TestTracingConfigIgnoresBadRatio(t *testing.T) {
	t.Setenv("LOCATOR_TRACING_SAMPLE_RATIO", "1.5")
	if cfg := TracingConfigFromEnv(); cfg.SampleRatio != 1 {
		t.Fatalf("SampleRatio = %v, want default 1", cfg.SampleRatio)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Fatalf("noop provider produced a valid span context")
	}
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)
}

func TestInitTracingStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "locator.acquire")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "locator.acquire") {
		t.Fatalf("exported spans missing name: %s", buf.String())
	}

	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, nil); err != nil {
		t.Fatalf("reset tracing: %v", err)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}

func TestSessionSampler(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{ratio: 1, want: "AlwaysOnSampler"},
		{ratio: 2, want: "AlwaysOnSampler"},
		{ratio: 0, want: "AlwaysOffSampler"},
		{ratio: 0.5, want: "TraceIDRatioBased{0.5}"},
	}
	for _, tc := range cases {
		if got := sessionSampler(tc.ratio).Description(); !strings.Contains(got, tc.want) {
			t.Fatalf("sessionSampler(%v) = %q, want it to contain %q", tc.ratio, got, tc.want)
		}
	}
}

func TestInitTracingRecordsRunAttributes(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Sensor:      "replay",
		TimeMode:    "accelerated",
		Writer:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "locator.acquire")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"locator.sensor", "replay", "locator.time_mode", "accelerated"} {
		if !strings.Contains(out, want) {
			t.Fatalf("exported span missing %q: %s", want, out)
		}
	}

	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, nil); err != nil {
		t.Fatalf("reset tracing: %v", err)
	}
}
