package monitoring

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MetricsCollector accumulates counters and gauges for the worker binaries.
// Trimmed from the API server's collector: no HTTP alert thresholds, no
// Prometheus/Datadog exporters (neither worker serves request traffic to
// alert on), just the recording primitives cmd/stabilizer and
// cmd/replayworker call around each run.
type MetricsCollector struct {
	logger zerolog.Logger
	config MetricsConfig
	mutex  sync.RWMutex

	metrics      map[string]*Metric
	errorCounts  map[string]int64
	runDurations map[string][]time.Duration
}

// MetricsConfig defines monitoring configuration
type MetricsConfig struct {
	ServiceName string
	Environment string
}

// Metric represents a single metric
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels"`
	Timestamp time.Time         `json:"timestamp"`
}

// MetricType defines the type of metric
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(logger zerolog.Logger, config MetricsConfig) *MetricsCollector {
	return &MetricsCollector{
		logger:       logger,
		config:       config,
		metrics:      make(map[string]*Metric),
		errorCounts:  make(map[string]int64),
		runDurations: make(map[string][]time.Duration),
	}
}

// RecordRunDuration records how long one job run (stabilization pass,
// replay lease cycle) took.
func (mc *MetricsCollector) RecordRunDuration(job string, duration time.Duration) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	mc.runDurations[job] = append(mc.runDurations[job], duration)
	if len(mc.runDurations[job]) > 1000 {
		mc.runDurations[job] = mc.runDurations[job][len(mc.runDurations[job])-500:]
	}

	mc.metrics[mc.buildMetricKey("job_duration_seconds", map[string]string{"job": job})] = &Metric{
		Name:      "job_duration_seconds",
		Type:      MetricTypeHistogram,
		Value:     duration.Seconds(),
		Labels:    map[string]string{"job": job},
		Timestamp: time.Now(),
	}
}

// RecordError records an error occurrence for a job.
func (mc *MetricsCollector) RecordError(job string, errorType string) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	key := job + ":" + errorType
	mc.errorCounts[key]++

	mc.metrics[mc.buildMetricKey("job_error_total", map[string]string{"job": job, "type": errorType})] = &Metric{
		Name:      "job_error_total",
		Type:      MetricTypeCounter,
		Value:     float64(mc.errorCounts[key]),
		Labels:    map[string]string{"job": job, "type": errorType},
		Timestamp: time.Now(),
	}
}

// RecordCustomMetric records an arbitrary gauge or counter, e.g. ladders
// processed in a stabilization pass or matches replayed.
func (mc *MetricsCollector) RecordCustomMetric(name string, value float64, labels map[string]string, metricType MetricType) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	mc.metrics[mc.buildMetricKey(name, labels)] = &Metric{
		Name:      name,
		Type:      metricType,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	}
}

// buildMetricKey builds a unique key for a metric
func (mc *MetricsCollector) buildMetricKey(name string, labels map[string]string) string {
	key := name
	for k, v := range labels {
		key += ":" + k + "=" + v
	}
	return key
}

// GetMetrics returns all current metrics
func (mc *MetricsCollector) GetMetrics() map[string]*Metric {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	result := make(map[string]*Metric)
	for k, v := range mc.metrics {
		result[k] = v
	}
	return result
}

// DefaultMetricsConfig returns the default metrics configuration for a
// worker binary.
func DefaultMetricsConfig(serviceName string) MetricsConfig {
	return MetricsConfig{
		ServiceName: serviceName,
		Environment: "production",
	}
}
