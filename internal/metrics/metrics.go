// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

// Package metrics exposes Prometheus instrumentation for the
// personalization engine: interaction ingestion, ranking latency, artifact
// lifecycle, and the fire-and-forget sync pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InteractionEvents counts ingested behavior events by type
	// (click, read, bookmark).
	InteractionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pressrank_interaction_events_total",
			Help: "Total number of ingested user interaction events",
		},
		[]string{"type"},
	)

	// LocalPersistErrors counts fatal local preference write failures.
	LocalPersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pressrank_local_persist_errors_total",
			Help: "Total number of local preference persistence failures",
		},
	)

	// RankRequests counts ranking calls by blend mode (local, hybrid).
	RankRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pressrank_rank_requests_total",
			Help: "Total number of ranking requests",
		},
		[]string{"mode"},
	)

	// RankLatency observes end-to-end ranking latency.
	RankLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pressrank_rank_duration_seconds",
			Help:    "Duration of ranking calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ArtifactFetches counts artifact fetch outcomes
	// (cache_hit, downloaded, fetch_error, invalid).
	ArtifactFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pressrank_artifact_fetches_total",
			Help: "Total number of artifact fetch attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SyncAttempts counts remote preference mirror pushes by outcome
	// (ok, error).
	SyncAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pressrank_sync_attempts_total",
			Help: "Total number of remote preference sync attempts by outcome",
		},
		[]string{"outcome"},
	)

	// HTTPRequests counts API requests by route and status class.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pressrank_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)
)
