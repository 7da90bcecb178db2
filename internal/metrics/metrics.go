// Package metrics exposes Prometheus instruments for record building and
// sample transforms. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors used across the module
type Metrics struct {
	recordsBuilt      *prometheus.CounterVec
	mappingFallbacks  *prometheus.CounterVec
	samples           *prometheus.CounterVec
	transformDuration *prometheus.HistogramVec
	instancesDropped  prometheus.Counter
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		recordsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detection_records_built_total",
			Help: "Dataset records produced by the record builders.",
		}, []string{"variant"}),
		mappingFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detection_category_mapping_fallbacks_total",
			Help: "Annotations that kept their raw category id because no mapping applied.",
		}, []string{"dataset"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detection_samples_total",
			Help: "Samples produced by the sample transforms.",
		}, []string{"variant", "mode", "result"}),
		transformDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "detection_sample_transform_seconds",
			Help:    "Time spent turning one record into a sample.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"variant", "mode"}),
		instancesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "detection_instances_dropped_total",
			Help: "Instances removed because their box or mask was empty.",
		}),
	}
	reg.MustRegister(m.recordsBuilt, m.mappingFallbacks, m.samples, m.transformDuration, m.instancesDropped)
	return m
}

// RecordsBuilt counts n records from a builder variant
func (m *Metrics) RecordsBuilt(variant string, n int) {
	if m == nil {
		return
	}
	m.recordsBuilt.WithLabelValues(variant).Add(float64(n))
}

// MappingFallback counts one annotation that kept its raw category id
func (m *Metrics) MappingFallback(dataset string) {
	if m == nil {
		return
	}
	m.mappingFallbacks.WithLabelValues(dataset).Inc()
}

// SampleDone records the outcome and latency of one transform
func (m *Metrics) SampleDone(variant string, train bool, err error, d time.Duration) {
	if m == nil {
		return
	}
	mode := "inference"
	if train {
		mode = "train"
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.samples.WithLabelValues(variant, mode, result).Inc()
	m.transformDuration.WithLabelValues(variant, mode).Observe(d.Seconds())
}

// InstancesDropped counts instances removed as empty
func (m *Metrics) InstancesDropped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.instancesDropped.Add(float64(n))
}
