// Package metrics provides Prometheus metrics for the clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DuplicateQueriesTotal tracks duplicate detection queries by mode (lead, tenant)
	DuplicateQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "detection",
			Name:      "queries_total",
			Help:      "Total number of duplicate detection queries by mode",
		},
		[]string{"mode"},
	)

	// DuplicateGroupsFound tracks the number of groups found per tenant scan
	DuplicateGroupsFound = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "detection",
			Name:      "groups_found",
			Help:      "Number of duplicate groups found per tenant scan",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
	)

	// MergesTotal tracks merges by strategy and outcome
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "merges_total",
			Help:      "Total number of merge attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// MergeDuration tracks merge transaction duration in seconds
	MergeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Duration of merge transactions in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// LeadsMergedTotal tracks the number of duplicate leads removed by merges
	LeadsMergedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "leads_merged_total",
			Help:      "Total number of duplicate leads merged away",
		},
	)

	// EventPublishFailures tracks merge events that could not be published
	EventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "events",
			Name:      "publish_failures_total",
			Help:      "Total number of merge events that failed to publish",
		},
	)

	// LineageFailures tracks merges whose lineage could not be written to the graph
	LineageFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "graph",
			Name:      "lineage_failures_total",
			Help:      "Total number of merges whose lineage projection failed",
		},
	)
)

// Merge outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeFailure  = "failure"
)
