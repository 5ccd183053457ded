// Package telemetry provides logging, tracing and metrics for imagectl.
//
// The package integrates structured logging (zerolog), tracing (OpenTelemetry)
// and metrics (Prometheus) behind a single Telemetry value that is carried in
// the context of a resolution.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Logging.Level = "debug"
//	cfg.Metrics.TextfilePath = "/var/lib/node_exporter/imagectl.prom"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// Logs go to stderr so that stdout only carries the resolved configuration:
//
//	logger := tel.Logger.NewComponentLogger("resolver").WithResolutionID(id)
//	logger.Debugf("step %s done", name)
//
// # Tracing
//
// Every resolution gets a root span and one child span per pipeline step.
// Exporters: none (default), stdout (pretty JSON on stderr) and otlp (gRPC).
//
// # Metrics
//
// A CLI process is short-lived, so metrics are not served over HTTP. When
// MetricsConfig.TextfilePath is set they are written in the Prometheus text
// format on Shutdown, ready for the node_exporter textfile collector:
//
//	imagectl_resolutions_total{mode="build",outcome="resolved"} 1
//	imagectl_errors_total{kind="lookup"} 0
//	imagectl_step_duration_seconds_bucket{step="lookup_package",le="0.001"} 1
package telemetry
