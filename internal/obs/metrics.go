package obs

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var defaultLatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// HTTPMetrics holds the collectors fed by Observer.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics builds the HTTP collectors and registers them on reg,
// reusing collectors a previous call already registered.
func NewHTTPMetrics(namespace string, buckets []float64, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = defaultLatencyBuckets
	}
	buckets = slices.Sorted(slices.Values(buckets))

	return &HTTPMetrics{
		Requests: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route pattern and status.",
		}, []string{"method", "route", "status"})),
		Latency: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   buckets,
		}, []string{"method", "route"})),
		InFlight: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Requests currently being served.",
		})),
	}
}

// register adds c to reg. If an equal collector is already registered the
// existing one is returned so repeated construction in tests keeps working.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(fmt.Errorf("register metric: %w", err))
}

// ParseBucketsCSV reads "5,10,25" style bucket lists. Entries that are not
// positive numbers are skipped.
func ParseBucketsCSV(csv string) []float64 {
	var out []float64
	for part := range strings.SplitSeq(csv, ",") {
		if v, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err == nil && v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// DurationMillis converts d to fractional milliseconds.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
