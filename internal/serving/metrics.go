package serving

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	admittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enferd",
			Subsystem: "serving",
			Name:      "requests_admitted_total",
			Help:      "Requests accepted by the admission controller",
		},
		[]string{"model"},
	)

	rejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enferd",
			Subsystem: "serving",
			Name:      "requests_rejected_total",
			Help:      "Requests rejected before enqueue",
		},
		[]string{"model", "reason"},
	)

	batchSizeObserved = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "enferd",
			Subsystem: "serving",
			Name:      "batch_size",
			Help:      "Requests per dispatched batch",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		},
	)

	batchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "enferd",
			Subsystem: "serving",
			Name:      "batch_duration_seconds",
			Help:      "Native execution duration per batch",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	queueWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "enferd",
			Subsystem: "serving",
			Name:      "queue_wait_seconds",
			Help:      "Time from enqueue to dispatch",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"model"},
	)

	batchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enferd",
			Subsystem: "serving",
			Name:      "batch_failures_total",
			Help:      "Batches ending in a non-completed terminal state",
		},
		[]string{"model", "state"},
	)
)

func init() {
	prometheus.MustRegister(admittedTotal, rejectedTotal, batchSizeObserved, batchDuration, queueWaitDuration, batchFailures)
}
