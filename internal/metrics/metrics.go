// Package metrics exports broker metrics through a Prometheus registry.
//
// Collector satisfies the credx MetricsCollector interface. Dotted metric
// names become underscored Prometheus names; counters gain a _total suffix and
// timings are observed in seconds.
package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector lazily creates one vector per metric name. The label set seen on
// the first call for a name is fixed for that name; later calls keep only
// those labels and fill missing ones with "".
type Collector struct {
	registry *prometheus.Registry
	textfile string
	buckets  []float64

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

type Option func(*Collector)

// WithTextfile makes Flush write the registry to path in the node exporter
// textfile format.
func WithTextfile(path string) Option {
	return func(c *Collector) {
		c.textfile = path
	}
}

// WithBuckets overrides the histogram buckets used for timings and values.
func WithBuckets(buckets []float64) Option {
	return func(c *Collector) {
		c.buckets = buckets
	}
}

func New(opts ...Option) *Collector {
	c := &Collector{
		registry:   prometheus.NewRegistry(),
		buckets:    prometheus.ExponentialBuckets(0.001, 2, 15),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry exposes the underlying registry, e.g. to add process collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) IncrementCounter(name string, tags map[string]string) {
	c.IncrementCounterBy(name, 1, tags)
}

func (c *Collector) IncrementCounterBy(name string, value int64, tags map[string]string) {
	if value < 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	fq := promName(name) + "_total"
	vec, ok := c.counters[fq]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fq,
			Help: "Counter " + name + ".",
		}, c.labelNames(fq, tags))
		if err := c.registry.Register(vec); err != nil {
			return
		}
		c.counters[fq] = vec
	}
	vec.With(c.labelValues(fq, tags)).Add(float64(value))
}

func (c *Collector) SetGauge(name string, value float64, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fq := promName(name)
	vec, ok := c.gauges[fq]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: fq,
			Help: "Gauge " + name + ".",
		}, c.labelNames(fq, tags))
		if err := c.registry.Register(vec); err != nil {
			return
		}
		c.gauges[fq] = vec
	}
	vec.With(c.labelValues(fq, tags)).Set(value)
}

func (c *Collector) RecordTiming(name string, duration time.Duration, tags map[string]string) {
	c.observe(promName(name)+"_seconds", name, duration.Seconds(), tags)
}

func (c *Collector) RecordValue(name string, value float64, tags map[string]string) {
	c.observe(promName(name), name, value, tags)
}

// Flush writes the textfile when one is configured.
func (c *Collector) Flush() error {
	if c.textfile == "" {
		return nil
	}
	return c.WriteTextfile(c.textfile)
}

// WriteTextfile writes the registry to path in the node exporter textfile
// format. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

func (c *Collector) observe(fq, name string, value float64, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vec, ok := c.histograms[fq]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    fq,
			Help:    "Histogram " + name + ".",
			Buckets: c.buckets,
		}, c.labelNames(fq, tags))
		if err := c.registry.Register(vec); err != nil {
			return
		}
		c.histograms[fq] = vec
	}
	vec.With(c.labelValues(fq, tags)).Observe(value)
}

// labelNames fixes the label set for fq on first use. Callers hold mu.
func (c *Collector) labelNames(fq string, tags map[string]string) []string {
	if names, ok := c.labels[fq]; ok {
		return names
	}
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, promName(k))
	}
	sort.Strings(names)
	c.labels[fq] = names
	return names
}

func (c *Collector) labelValues(fq string, tags map[string]string) prometheus.Labels {
	names := c.labels[fq]
	out := make(prometheus.Labels, len(names))
	for _, n := range names {
		out[n] = ""
	}
	for k, v := range tags {
		n := promName(k)
		if _, ok := out[n]; ok {
			out[n] = v
		}
	}
	return out
}

func promName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
