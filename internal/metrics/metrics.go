// Package metrics exposes Prometheus instrumentation for the triage core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Normalization metrics
	EventsNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radlab_triage_events_normalized_total",
			Help: "Total number of canonical events emitted per artifact type",
		},
		[]string{"artifact"},
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radlab_triage_records_skipped_total",
			Help: "Total number of records skipped during normalization",
		},
		[]string{"artifact", "reason"},
	)

	FilesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radlab_triage_files_failed_total",
			Help: "Total number of artifact files that could not be decoded at all",
		},
		[]string{"artifact"},
	)

	NormalizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "radlab_triage_normalization_duration_seconds",
			Help:    "Duration of per-file normalization in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Scoring metrics
	FindingsEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radlab_triage_findings_emitted_total",
			Help: "Total number of category findings emitted (pre-cap)",
		},
	)

	CandidatesRanked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radlab_triage_candidates_ranked_total",
			Help: "Total number of free-text candidates scored",
		},
	)

	// Semantic index metrics
	EmbedBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radlab_semantic_embed_batches_total",
			Help: "Total number of embedding batches requested",
		},
	)

	EmbedDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "radlab_semantic_embed_duration_seconds",
			Help:    "Duration of embedding batches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	IndexErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radlab_semantic_index_errors_total",
			Help: "Total number of failed ingest or query operations",
		},
	)
)
