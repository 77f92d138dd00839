// Package telemetry holds the Prometheus collectors shared by the worker
// pool, the aggregator and the HTTP layer.
package telemetry

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "strideminder"

var (
	batchesTotal      *prometheus.CounterVec
	processingSeconds *prometheus.HistogramVec
	cadence           *prometheus.HistogramVec
	rollupsTotal      *prometheus.CounterVec
	requestsTotal     *prometheus.CounterVec
	requestSeconds    *prometheus.HistogramVec

	initOnce sync.Once
)

// Init registers the collectors with reg, or with the default registry
// when reg is nil. Calls after the first are no-ops.
func Init(reg prometheus.Registerer) {
	initOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		batchesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Total number of processed sample batches by outcome.",
			},
			[]string{"device", "outcome"},
		)
		processingSeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_processing_seconds",
				Help:      "Histogram of gait pipeline run time per batch in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"device"},
		)
		cadence = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cadence_strides_per_minute",
				Help:      "Histogram of cadence of walking batches.",
				Buckets:   prometheus.LinearBuckets(20, 10, 12),
			},
			[]string{"device"},
		)
		rollupsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollups_total",
				Help:      "Total number of aggregate records written by granularity.",
			},
			[]string{"granularity"},
		)
		requestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests served.",
			},
			[]string{"route", "method", "status"},
		)
		requestSeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Histogram of HTTP request durations in seconds.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"route", "method"},
		)
		reg.MustRegister(batchesTotal, processingSeconds, cadence, rollupsTotal, requestsTotal, requestSeconds)
	})
}

// ObserveBatch records one pipeline run. cadenceSPM is ignored unless the
// batch was walking.
func ObserveBatch(device, outcome string, took time.Duration, walking bool, cadenceSPM float64) {
	if batchesTotal == nil {
		return
	}
	batchesTotal.WithLabelValues(device, outcome).Inc()
	processingSeconds.WithLabelValues(device).Observe(took.Seconds())
	if walking {
		cadence.WithLabelValues(device).Observe(cadenceSPM)
	}
}

// ObserveRollup counts an aggregate record written at granularity.
func ObserveRollup(granularity string) {
	if rollupsTotal == nil {
		return
	}
	rollupsTotal.WithLabelValues(granularity).Inc()
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(route, method string, status int, took time.Duration) {
	if requestsTotal == nil {
		return
	}
	requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	requestSeconds.WithLabelValues(route, method).Observe(took.Seconds())
}
