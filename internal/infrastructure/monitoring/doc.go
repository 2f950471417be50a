/*
Package monitoring provides Prometheus metrics for the streaming service.

# Overview

Metrics cover the HTTP API, the session lifecycle (phase, begins,
failures, duration), host control requests, the event bus and WebSocket
subscribers.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(metrics, "launch")
	// ... perform request ...
	timer.Stop("ok")

Tests should use NewMetricsWith(prometheus.NewRegistry()) so collectors
do not collide in the default registry.

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
