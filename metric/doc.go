// Package metric provides the Prometheus metrics of the listen client and the HTTP
// server exposing them.
//
// NewMetricsRegistry registers the listen metrics (channels, frames, polls, commands,
// targets, deferred removals, correlation latency, pool and NATS publishing) plus the Go
// runtime collectors. Channels and pools take the *Metrics through options; a nil
// *Metrics records nothing, so instrumentation is optional everywhere.
//
//	registry := metric.NewMetricsRegistry()
//	ch, err := listen.Open(ctx, baseURL, database, credential,
//	    listen.WithMetrics(registry.CoreMetrics()))
//
//	server := metric.NewServer(9090, "/metrics", registry)
//	go server.Start()
//	defer server.Stop()
package metric
