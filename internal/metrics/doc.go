// Package metrics records compilation metrics.
//
// Components receive a Recorder and default to NoopRecorder, so metrics stay
// optional. The serve command wires a PrometheusRecorder and exposes it
// through HTTPHandler at /metrics:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	builder := build.New(cfg, build.WithRecorder(rec))
//	router.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
