// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshesTotal tracks refresh cycles by outcome
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "refresh",
			Name:      "cycles_total",
			Help:      "Total number of refresh cycles by outcome",
		},
		[]string{"outcome"},
	)

	// RefreshDuration tracks refresh cycle duration in seconds
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "refresh",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of refresh cycles in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// CountriesUpserted tracks rows written per refresh cycle
	CountriesUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "refresh",
			Name:      "countries_upserted_total",
			Help:      "Total number of country rows written by refresh cycles",
		},
		[]string{"operation"},
	)

	// HTTPRequestsTotal tracks outbound HTTP requests to the data sources
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"method", "status_code"},
	)

	// HTTPRequestDuration tracks outbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// SummaryFailuresTotal tracks summary artifact generation failures
	SummaryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "summary",
			Name:      "failures_total",
			Help:      "Total number of summary artifact generation failures",
		},
	)
)
