// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

// Package metrics provides Prometheus instrumentation for Watchdeck.
//
// Metrics cover the session pipeline (snapshot assembly, classification,
// enrichment), the persistent caches, outbound calls to the upstream media
// server and the TV lookup service, and the HTTP API surface. Everything is
// exported at /metrics in Prometheus text format.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session pipeline metrics
	SnapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_snapshot_duration_seconds",
			Help:    "Time to assemble a full session snapshot (fetch, classify, enrich, aggregate)",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_snapshot_errors_total",
			Help: "Total number of snapshot assembly failures",
		},
		[]string{"stage"}, // "fetch", "classify", "enrich", "aggregate"
	)

	ActiveSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of active playback sessions by state",
		},
		[]string{"state"}, // "playing", "paused", "buffering"
	)

	ClassifierUnknownKind = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classifier_unknown_kind_total",
			Help: "Sessions whose library section kind could not be classified",
		},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "link", "color"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheStaleEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_stale_evictions_total",
			Help: "Cached entries discarded on read because they exceeded their staleness window",
		},
		[]string{"cache_type"},
	)

	// Upstream media server metrics
	UpstreamCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_calls_total",
			Help: "Total number of calls to the upstream media server",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_call_duration_seconds",
			Help:    "Duration of upstream media server calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// TV lookup service metrics
	TVLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvlookup_requests_total",
			Help: "Total number of TV lookup service requests",
		},
		[]string{"operation", "status"}, // operation: "login", "episode", "series"
	)

	TVLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tvlookup_request_duration_seconds",
			Help:    "Duration of TV lookup service requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Polling client metrics
	ClientPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_polls_total",
			Help: "Total number of progress polls issued by the display client",
		},
		[]string{"status"}, // "ok", "skipped", "error", "unauthorized"
	)

	ClientReconcileOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_reconcile_ops_total",
			Help: "Display mutations applied during reconciliation",
		},
		[]string{"op"}, // "insert", "patch", "remove", "reorder"
	)
)

// RecordSnapshot records a completed snapshot assembly.
func RecordSnapshot(duration time.Duration, err error, stage string) {
	if err != nil {
		SnapshotErrors.WithLabelValues(stage).Inc()
		return
	}
	SnapshotDuration.Observe(duration.Seconds())
}

// SetActiveSessions updates the per-state session gauges. States absent from
// the counts map are reset to zero.
func SetActiveSessions(counts map[string]int) {
	for _, state := range []string{"playing", "paused", "buffering"} {
		ActiveSessions.WithLabelValues(state).Set(float64(counts[state]))
	}
}

// RecordCacheRead records the outcome of a cache lookup. A stale hit counts
// as both a miss and a stale eviction.
func RecordCacheRead(cacheType string, hit, stale bool) {
	switch {
	case stale:
		CacheStaleEvictions.WithLabelValues(cacheType).Inc()
		CacheMisses.WithLabelValues(cacheType).Inc()
	case hit:
		CacheHits.WithLabelValues(cacheType).Inc()
	default:
		CacheMisses.WithLabelValues(cacheType).Inc()
	}
}

// RecordUpstreamCall records one call to the upstream media server.
func RecordUpstreamCall(endpoint string, statusCode int, duration time.Duration) {
	UpstreamCalls.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	UpstreamCallDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordTVLookup records one TV lookup service request.
func RecordTVLookup(operation string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	TVLookups.WithLabelValues(operation, status).Inc()
	TVLookupDuration.Observe(duration.Seconds())
}

// RecordAPIRequest records one handled API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// SetCircuitBreakerState updates the gauge for a named breaker.
// 0=closed, 1=half-open, 2=open.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
