// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

// Package metrics provides Prometheus instrumentation for the worker
// runtime and its collaborators. Metrics are exposed on the ops server's
// /metrics endpoint in Prometheus text format.
//
// Available metrics:
//
//   - resonate_jobs_processed_total{queue,type,status}: processed jobs
//   - resonate_job_duration_seconds{queue,type}: handler latency
//   - resonate_queue_fetch_errors_total{queue}: failed queue fetches
//   - resonate_malformed_jobs_total{queue}: dropped unparseable payloads
//   - resonate_cache_writes_total{status}: personalization cache writes
//   - resonate_embedder_requests_total{operation,status}: inference calls
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonate_jobs_processed_total",
			Help: "Total jobs processed, labeled by queue, job type and result status.",
		},
		[]string{"queue", "type", "status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resonate_job_duration_seconds",
			Help:    "Job processing duration from dispatch to result.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"queue", "type"},
	)

	queueFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonate_queue_fetch_errors_total",
			Help: "Total queue fetch failures.",
		},
		[]string{"queue"},
	)

	malformedJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonate_malformed_jobs_total",
			Help: "Total jobs dropped because their payload could not be parsed.",
		},
		[]string{"queue"},
	)

	cacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonate_cache_writes_total",
			Help: "Personalization cache writes by outcome.",
		},
		[]string{"status"},
	)

	embedderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonate_embedder_requests_total",
			Help: "Embedder inference requests by operation and outcome.",
		},
		[]string{"operation", "status"},
	)
)

// RecordJob records one processed job and its duration.
func RecordJob(queue, jobType, status string, elapsed time.Duration) {
	jobsProcessed.WithLabelValues(queue, jobType, status).Inc()
	jobDuration.WithLabelValues(queue, jobType).Observe(elapsed.Seconds())
}

// RecordFetchError records a failed queue fetch.
func RecordFetchError(queue string) {
	queueFetchErrors.WithLabelValues(queue).Inc()
}

// RecordMalformedJob records a dropped unparseable payload.
func RecordMalformedJob(queue string) {
	malformedJobs.WithLabelValues(queue).Inc()
}

// RecordCacheWrite records a personalization cache write outcome
// ("ok" or "error").
func RecordCacheWrite(status string) {
	cacheWrites.WithLabelValues(status).Inc()
}

// RecordEmbedderRequest records an inference call outcome. Operation is
// "text" or "audio"; status is "ok", "error" or "rejected" (breaker open).
func RecordEmbedderRequest(operation, status string) {
	embedderRequests.WithLabelValues(operation, status).Inc()
}
