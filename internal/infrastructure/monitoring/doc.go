/*
Package monitoring provides metrics and telemetry collection.

# Overview

Metrics are Prometheus collectors registered on a per-instance registry. The
same Metrics value doubles as the telemetry sink: components call
Record(event) for lifecycle events (restores, cleanups, sweeps, downloads,
blocked requests) and the counts are exported as ghostview_events_total.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	metrics.Record(monitoring.EventCleanup)

	timer := monitoring.NewTimer(metrics, "save")
	// ... save tab ...
	timer.Stop("ok")
*/
package monitoring
