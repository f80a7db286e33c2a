package obs

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// EstimatesCreatedTotal counts persisted estimates per partner slug.
	EstimatesCreatedTotal *prometheus.CounterVec
	// ReferenceCollisionsTotal counts reference numbers rejected by the unique constraint.
	ReferenceCollisionsTotal prometheus.Counter
	// CompensationsTotal counts compensating header deletes by result.
	CompensationsTotal *prometheus.CounterVec
	// EstimateFailuresTotal counts estimate creation failures by kind.
	EstimateFailuresTotal *prometheus.CounterVec
	// EstimateBuildLatency records end-to-end estimate creation latency in milliseconds.
	EstimateBuildLatency prometheus.Histogram
	// DBQueryLatency records statement latency in milliseconds by operation and outcome.
	DBQueryLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics builds the estimate and database collectors.
// Only the first call registers; later calls are no-ops.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		EstimatesCreatedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimates_created_total",
			Help:      "Estimates persisted, by partner.",
		}, []string{"partner"}))
		ReferenceCollisionsTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimate_reference_collisions_total",
			Help:      "Reference numbers rejected because they already existed.",
		}))
		CompensationsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimate_compensations_total",
			Help:      "Compensating deletes of estimate headers, by result.",
		}, []string{"result"}))
		EstimateFailuresTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimate_creation_failures_total",
			Help:      "Estimate creation failures, by kind.",
		}, []string{"kind"}))
		EstimateBuildLatency = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "estimate_build_duration_ms",
			Help:      "Estimate creation latency in milliseconds.",
			Buckets:   defaultLatencyBuckets,
		}))
		DBQueryLatency = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_ms",
			Help:      "Postgres statement latency in milliseconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		}, []string{"op", "ok"}))
	})
}

// RecordEstimateCreated increments the created counter when domain metrics are registered.
func RecordEstimateCreated(partner string) {
	if EstimatesCreatedTotal != nil {
		EstimatesCreatedTotal.WithLabelValues(partner).Inc()
	}
}

// RecordReferenceCollision notes a duplicate reference number.
func RecordReferenceCollision() {
	if ReferenceCollisionsTotal != nil {
		ReferenceCollisionsTotal.Inc()
	}
}

// RecordCompensation notes a compensating delete with result "ok" or "failed".
func RecordCompensation(result string) {
	if CompensationsTotal != nil {
		CompensationsTotal.WithLabelValues(result).Inc()
	}
}

// RecordEstimateFailure notes a failed estimate creation.
func RecordEstimateFailure(kind string) {
	if EstimateFailuresTotal != nil {
		EstimateFailuresTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveEstimateBuild records creation latency in milliseconds.
func ObserveEstimateBuild(ms float64) {
	if EstimateBuildLatency != nil {
		EstimateBuildLatency.Observe(ms)
	}
}

func observeQuery(op string, ok bool, d time.Duration) {
	if DBQueryLatency != nil {
		DBQueryLatency.WithLabelValues(op, strconv.FormatBool(ok)).Observe(DurationMillis(d))
	}
}
