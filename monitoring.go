package credx

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Metric names emitted by the broker.
const (
	MetricOperationStarted   = "credx.operation.started"
	MetricOperationCompleted = "credx.operation.completed"
	MetricOperationFailed    = "credx.operation.failed"
	MetricOperationDuration  = "credx.operation.duration"
	MetricRoleAssumption     = "credx.role_assumption"
	MetricErrors             = "credx.errors"
)

// MetricsCollector defines the interface for collecting and reporting metrics
type MetricsCollector interface {
	// Counters
	IncrementCounter(name string, tags map[string]string)
	IncrementCounterBy(name string, value int64, tags map[string]string)

	// Gauges
	SetGauge(name string, value float64, tags map[string]string)

	// Histograms/Timing
	RecordTiming(name string, duration time.Duration, tags map[string]string)
	RecordValue(name string, value float64, tags map[string]string)

	// Flush any buffered metrics
	Flush() error
}

// ObservabilityHook receives broker operation events. Metadata carries the
// scope and request id, never key material or secret values.
type ObservabilityHook interface {
	// Called before an operation starts
	OnOperationStart(ctx context.Context, operation string, metadata map[string]any)

	// Called after an operation completes (success or failure)
	OnOperationComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any)

	// Called when errors occur
	OnError(ctx context.Context, operation string, err error, metadata map[string]any)

	// Called once credentials are resolved for an operation
	OnCredentialsResolved(ctx context.Context, accessKeyRef string, elevated bool, metadata map[string]any)
}

// NoOpMetricsCollector is a no-op implementation of MetricsCollector
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) IncrementCounter(name string, tags map[string]string)                 {}
func (n *NoOpMetricsCollector) IncrementCounterBy(name string, value int64, tags map[string]string) {}
func (n *NoOpMetricsCollector) SetGauge(name string, value float64, tags map[string]string)         {}
func (n *NoOpMetricsCollector) RecordTiming(name string, duration time.Duration, tags map[string]string) {
}
func (n *NoOpMetricsCollector) RecordValue(name string, value float64, tags map[string]string) {}
func (n *NoOpMetricsCollector) Flush() error                                                  { return nil }

// NoOpObservabilityHook is a no-op implementation of ObservabilityHook
type NoOpObservabilityHook struct{}

func (n *NoOpObservabilityHook) OnOperationStart(ctx context.Context, operation string, metadata map[string]any) {
}
func (n *NoOpObservabilityHook) OnOperationComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any) {
}
func (n *NoOpObservabilityHook) OnError(ctx context.Context, operation string, err error, metadata map[string]any) {
}
func (n *NoOpObservabilityHook) OnCredentialsResolved(ctx context.Context, accessKeyRef string, elevated bool, metadata map[string]any) {
}

// InMemoryMetricsCollector is a simple in-memory implementation for testing and development
type InMemoryMetricsCollector struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	timings  []TimingMetric
	values   []ValueMetric
}

type TimingMetric struct {
	Name     string
	Duration time.Duration
	Tags     map[string]string
	Time     time.Time
}

type ValueMetric struct {
	Name  string
	Value float64
	Tags  map[string]string
	Time  time.Time
}

// NewInMemoryMetricsCollector creates a new in-memory metrics collector
func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	return &InMemoryMetricsCollector{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
	}
}

func (m *InMemoryMetricsCollector) IncrementCounter(name string, tags map[string]string) {
	m.IncrementCounterBy(name, 1, tags)
}

func (m *InMemoryMetricsCollector) IncrementCounterBy(name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[buildMetricKey(name, tags)] += value
}

func (m *InMemoryMetricsCollector) SetGauge(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[buildMetricKey(name, tags)] = value
}

func (m *InMemoryMetricsCollector) RecordTiming(name string, duration time.Duration, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timings = append(m.timings, TimingMetric{
		Name:     name,
		Duration: duration,
		Tags:     copyTags(tags),
		Time:     time.Now(),
	})
}

func (m *InMemoryMetricsCollector) RecordValue(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = append(m.values, ValueMetric{
		Name:  name,
		Value: value,
		Tags:  copyTags(tags),
		Time:  time.Now(),
	})
}

func (m *InMemoryMetricsCollector) Flush() error {
	return nil
}

// GetCounterValue returns the current value of a counter
func (m *InMemoryMetricsCollector) GetCounterValue(name string, tags map[string]string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[buildMetricKey(name, tags)]
}

// CounterTotal sums a counter across every tag combination.
func (m *InMemoryMetricsCollector) CounterTotal(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for key, v := range m.counters {
		if key == name || len(key) > len(name) && key[:len(name)] == name && key[len(name)] == ',' {
			total += v
		}
	}
	return total
}

// GetGaugeValue returns the current value of a gauge
func (m *InMemoryMetricsCollector) GetGaugeValue(name string, tags map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[buildMetricKey(name, tags)]
}

// GetTimings returns all recorded timing metrics
func (m *InMemoryMetricsCollector) GetTimings() []TimingMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TimingMetric(nil), m.timings...)
}

// GetValues returns all recorded value metrics
func (m *InMemoryMetricsCollector) GetValues() []ValueMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ValueMetric(nil), m.values...)
}

func buildMetricKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}

	// Sort tags to ensure deterministic key generation
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := name
	for _, k := range keys {
		key += "," + k + ":" + tags[k]
	}
	return key
}

func copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}

	copied := make(map[string]string, len(tags))
	for k, v := range tags {
		copied[k] = v
	}
	return copied
}

// StandardObservabilityHook forwards hook events to a MetricsCollector.
type StandardObservabilityHook struct {
	metrics MetricsCollector
}

// NewStandardObservabilityHook creates a new standard observability hook
func NewStandardObservabilityHook(metrics MetricsCollector) *StandardObservabilityHook {
	if metrics == nil {
		metrics = &NoOpMetricsCollector{}
	}

	return &StandardObservabilityHook{
		metrics: metrics,
	}
}

func (h *StandardObservabilityHook) OnOperationStart(ctx context.Context, operation string, metadata map[string]any) {
	tags := h.buildTags(metadata)
	tags["operation"] = operation

	h.metrics.IncrementCounter("credx.hook.started", tags)
}

func (h *StandardObservabilityHook) OnOperationComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any) {
	tags := h.buildTags(metadata)
	tags["operation"] = operation

	if err != nil {
		tags["status"] = "error"
	} else {
		tags["status"] = "success"
	}
	h.metrics.RecordTiming("credx.hook.duration", duration, tags)
}

func (h *StandardObservabilityHook) OnError(ctx context.Context, operation string, err error, metadata map[string]any) {
	tags := h.buildTags(metadata)
	tags["operation"] = operation
	tags["error_type"] = errorType(err)

	h.metrics.IncrementCounter(MetricErrors, tags)
}

func (h *StandardObservabilityHook) OnCredentialsResolved(ctx context.Context, accessKeyRef string, elevated bool, metadata map[string]any) {
	tags := h.buildTags(metadata)
	tags["elevated"] = "false"
	if elevated {
		tags["elevated"] = "true"
	}

	h.metrics.IncrementCounter("credx.credentials.resolved", tags)
}

// buildTags keeps only low-cardinality string metadata.
func (h *StandardObservabilityHook) buildTags(metadata map[string]any) map[string]string {
	tags := make(map[string]string)
	for _, k := range []string{"tenant", "caller", "stage"} {
		if str, ok := metadata[k].(string); ok {
			tags[k] = str
		}
	}
	return tags
}

func errorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsNotFound(err):
		return "not_found"
	case IsIntegrityError(err):
		return "integrity"
	case IsAuthError(err):
		return "auth"
	case IsRemoteError(err):
		return "remote"
	case IsConfigurationError(err):
		return "configuration"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "general_error"
	}
}
