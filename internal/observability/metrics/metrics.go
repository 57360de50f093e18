// Package metrics registers Prometheus instrumentation for protection
// studies and device settings storage.
package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "coordination_"

	resultSuccess = "success"
	resultError   = "error"

	outcomeTrip   = "trip"
	outcomeNoTrip = "no_trip"
)

var (
	registerOnce sync.Once

	studyTotal   *prometheus.CounterVec
	studyLatency *prometheus.HistogramVec

	tripEvaluations *prometheus.CounterVec

	diagnosticsTotal *prometheus.CounterVec

	breakerTrips prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		studyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "study_total",
				Help: "Total protection studies by kind and result",
			},
			[]string{"study", "result"},
		)
		studyLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "study_latency_seconds",
				Help:    "Protection study latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"study", "result"},
		)

		tripEvaluations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "trip_evaluations_total",
				Help: "Total relay trip evaluations by fault type and outcome",
			},
			[]string{"fault_type", "outcome"},
		)

		diagnosticsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "diagnostics_total",
				Help: "Total study diagnostics by code",
			},
			[]string{"code"},
		)

		breakerTrips = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "breaker_trips_total",
				Help: "Total breakers opened by trip evaluations",
			},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by path and status",
			},
			[]string{"path", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_latency_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		)

		prometheus.MustRegister(
			studyTotal,
			studyLatency,
			tripEvaluations,
			diagnosticsTotal,
			breakerTrips,
			httpRequests,
			httpLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveStudy records one study run with its duration and result.
func ObserveStudy(study, result string, duration time.Duration) {
	if study == "" {
		study = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if studyTotal != nil {
		studyTotal.WithLabelValues(study, result).Inc()
	}
	if studyLatency != nil {
		studyLatency.WithLabelValues(study, result).Observe(duration.Seconds())
	}
}

// IncTripEvaluation counts one relay evaluation.
func IncTripEvaluation(faultType string, operated bool) {
	if faultType == "" {
		faultType = "unknown"
	}
	outcome := outcomeNoTrip
	if operated {
		outcome = outcomeTrip
	}
	if tripEvaluations != nil {
		tripEvaluations.WithLabelValues(faultType, outcome).Inc()
	}
}

// IncDiagnostic counts one raised diagnostic.
func IncDiagnostic(code string) {
	if code == "" {
		code = "unknown"
	}
	if diagnosticsTotal != nil {
		diagnosticsTotal.WithLabelValues(code).Inc()
	}
}

// IncBreakerTrip counts one breaker opened by a trip evaluation.
func IncBreakerTrip() {
	if breakerTrips != nil {
		breakerTrips.Inc()
	}
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(path, status string, duration time.Duration) {
	if path == "" {
		path = "unknown"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(path, status).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(path).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
