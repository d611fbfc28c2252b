// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the orchestrator.
//
// # Description
//
// Metrics cover the tutoring pipeline end to end:
//   - Request counters by intent and outcome
//   - Degradation counters (classifier fallback, empty retrieval)
//   - Rate-limit rejections
//   - Per-stage latency histograms
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "studymate"
	tutorSubsystem   = "tutor"
)

// =============================================================================
// Counters
// =============================================================================

var (
	// RequestsTotal counts chat requests by classified intent and outcome.
	// Labels: intent (academic, chat, debug, followup, safety, unknown),
	// status (ok, refused, client_error, rate_limited, upstream_error,
	// internal_error).
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: tutorSubsystem,
			Name:      "requests_total",
			Help:      "Chat requests by intent and outcome",
		},
		[]string{"intent", "status"},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: tutorSubsystem,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-user rate limiter",
		},
	)

	// ClassifierFallbackTotal counts turns where classification failed
	// and the safe default was used instead.
	ClassifierFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: tutorSubsystem,
			Name:      "classifier_fallback_total",
			Help:      "Turns answered with the safe default classification",
		},
	)

	// RetrievalEmptyTotal counts retrieval attempts that produced no
	// usable excerpts (failure or genuinely empty).
	RetrievalEmptyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: tutorSubsystem,
			Name:      "retrieval_empty_total",
			Help:      "Retrieval attempts that yielded no excerpts",
		},
	)

	// SanitizerStrippedTotal counts responses the sanitizer actually
	// changed (framing artifacts were present).
	SanitizerStrippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: tutorSubsystem,
			Name:      "sanitizer_stripped_total",
			Help:      "Responses that required artifact stripping",
		},
	)

	// SafetyRefusalsTotal counts turns refused by the safety gate.
	SafetyRefusalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: tutorSubsystem,
			Name:      "safety_refusals_total",
			Help:      "Turns refused by the safety gate",
		},
	)

	// SessionsExpiredTotal counts sessions removed by the retention
	// sweeper.
	SessionsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: tutorSubsystem,
			Name:      "sessions_expired_total",
			Help:      "Sessions removed after their retention window lapsed",
		},
	)
)

// =============================================================================
// Histograms
// =============================================================================

// StageDurationSeconds measures per-stage pipeline latency.
// Labels: stage (classify, retrieve, assemble, generate, sanitize, store).
var StageDurationSeconds = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: tutorSubsystem,
		Name:      "stage_duration_seconds",
		Help:      "Pipeline stage latency",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	},
	[]string{"stage"},
)

// ObserveStage records one stage duration. Intended as a defer:
//
//	defer observability.ObserveStage("classify", time.Now())
func ObserveStage(stage string, start time.Time) {
	StageDurationSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
