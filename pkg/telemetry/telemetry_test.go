package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, true},
		{"otlp without endpoint", func(c *Config) { c.Tracing.Exporter = "otlp" }, true},
		{"otlp with endpoint", func(c *Config) {
			c.Tracing.Exporter = "otlp"
			c.Tracing.Endpoint = "localhost:4317"
		}, false},
		{"sampling out of range", func(c *Config) { c.Tracing.SamplingRate = 2 }, true},
		{"no service name", func(c *Config) { c.ServiceName = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.NewComponentLogger("resolver").WithResolutionID("abc").WithMode("build").Debug("resolved")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	for key, want := range map[string]string{
		"component":     "resolver",
		"resolution_id": "abc",
		"mode":          "build",
		"message":       "resolved",
		"level":         "debug",
	} {
		if got := entry[key]; got != want {
			t.Errorf("%s = %v, want %s", key, got, want)
		}
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info message logged at warn level: %q", buf.String())
	}
	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn message missing: %q", buf.String())
	}
}

func TestFromContextWithoutLogger(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext() returned nil")
	}
}

func TestMetricsTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imagectl.prom")
	m := NewMetrics(MetricsConfig{Namespace: "imagectl", TextfilePath: path})

	m.RecordResolution("build", OutcomeResolved)
	m.RecordError("lookup")
	m.RecordError("")
	m.RecordStep("lookup_package", 0)
	m.RecordViolation("windows-devices", "warning")

	if err := m.WriteTextfile(); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`imagectl_resolutions_total{mode="build",outcome="resolved"} 1`,
		`imagectl_errors_total{kind="lookup"} 1`,
		`imagectl_errors_total{kind="internal"} 1`,
		`imagectl_step_duration_seconds_count{step="lookup_package"} 1`,
		`imagectl_policy_violations_total{policy="windows-devices",severity="warning"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics file missing %q", want)
		}
	}
}

func TestMetricsTextfileDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Namespace: "imagectl"})
	if err := m.WriteTextfile(); err != nil {
		t.Errorf("WriteTextfile() without a path error = %v", err)
	}
}

func TestStdoutTracerWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer, err := NewTracer(TracingConfig{Exporter: "stdout", SamplingRate: 1}, "imagectl", "test", &buf)
	if err != nil {
		t.Fatalf("NewTracer() error = %v", err)
	}

	ctx, span := tracer.StartResolutionSpan(context.Background(), "id-1", "build")
	_, step := tracer.StartStepSpan(ctx, "default_python")
	RecordError(step, errors.New("boom"))
	step.End()
	RecordSuccess(span)
	span.End()

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	for _, want := range []string{"step.default_python", "resolution", "id-1"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("exported spans missing %q", want)
		}
	}
}

func TestNopTelemetry(t *testing.T) {
	tel := Nop()
	ctx := tel.WithContext(context.Background())
	if FromTelemetryContext(ctx) != tel {
		t.Error("FromTelemetryContext() did not return the stored telemetry")
	}

	ic := tel.StartOperation(ctx, "noop")
	ic.End(nil)
	if TraceID(ic.Ctx) != "" {
		t.Error("no-op tracer produced a valid trace id")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
