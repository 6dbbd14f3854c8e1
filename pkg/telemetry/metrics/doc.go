// Package metrics exposes Prometheus instrumentation for the balancer.
//
// A Collector owns every metric family and a dedicated registry, so
// tests and embedding applications never collide on the global default
// registry. Metric names follow the namespace and subsystem from
// config.MetricsConfig, gemproxy_balancer_* by default.
//
// # Basic Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics)
//	collector.RecordSelection("key-1")
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// When metrics are disabled in configuration every Record and Update
// method is a no-op, so callers instrument unconditionally.
package metrics
