/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry provides Prometheus metrics and OpenTelemetry tracing.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP requests by method, endpoint and status.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waveform_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIRequestDuration observes request latency in seconds.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waveform_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "waveform_api_active_connections",
			Help: "Number of in-flight API requests",
		},
	)

	// APIWebSocketConnections gauges open WebSocket connections.
	APIWebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "waveform_api_websocket_connections",
			Help: "Number of open WebSocket connections",
		},
	)

	// PlayerActiveSessions gauges playback sessions held in memory.
	PlayerActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "waveform_player_active_sessions",
			Help: "Number of playback sessions in memory",
		},
	)

	// PlayerConnectedOutputs gauges devices attached to an output socket.
	PlayerConnectedOutputs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "waveform_player_connected_outputs",
			Help: "Number of devices connected to a player output socket",
		},
	)

	// PlayerTracksStarted counts tracks that reached playback, by source.
	PlayerTracksStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waveform_player_tracks_started_total",
			Help: "Total tracks that started playing",
		},
		[]string{"source"},
	)

	// PlayerResolutionsTotal counts stream URL resolutions by outcome.
	PlayerResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waveform_player_resolutions_total",
			Help: "Total stream URL resolutions",
		},
		[]string{"outcome"},
	)

	// PlayerErrorsTotal counts terminal playback failures.
	PlayerErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waveform_player_errors_total",
			Help: "Total terminal playback failures",
		},
	)

	// DatabaseQueryDuration observes query latency by operation and table.
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waveform_database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// DatabaseErrorsTotal counts failed database operations.
	DatabaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waveform_database_errors_total",
			Help: "Total database errors",
		},
		[]string{"operation", "kind"},
	)

	// DatabaseConnectionsActive gauges open connections in the pool.
	DatabaseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "waveform_database_connections_active",
			Help: "Open database connections",
		},
	)

	// CacheOperationsTotal counts cache operations by outcome.
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waveform_cache_operations_total",
			Help: "Total cache operations",
		},
		[]string{"operation", "result"},
	)
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
