package jsonable

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements the Metrics interface using Prometheus
type PrometheusMetrics struct {
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
// If registry is nil, uses the default Prometheus registry
func NewPrometheusMetrics(registry *prometheus.Registry) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer.(*prometheus.Registry)
	}

	pm := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		registry:   registry,
	}

	pm.registerDefaultMetrics()
	return pm
}

// registerDefaultMetrics registers the metrics the engine emits
func (p *PrometheusMetrics) registerDefaultMetrics() {
	factory := promauto.With(p.registry)

	p.counters[MetricItemOperations] = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jsonable",
			Subsystem: "items",
			Name:      "operations_total",
			Help:      "Total number of item mutations",
		},
		[]string{"operation"},
	)

	p.counters[MetricItemErrors] = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jsonable",
			Subsystem: "items",
			Name:      "errors_total",
			Help:      "Total number of failed item mutations",
		},
		[]string{"operation"},
	)

	p.counters[MetricSchemaRejected] = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jsonable",
			Subsystem: "schema",
			Name:      "rejected_total",
			Help:      "Total number of items rejected by schema shaping",
		},
		[]string{},
	)

	p.counters[MetricParseError] = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jsonable",
			Subsystem: "parse",
			Name:      "errors_total",
			Help:      "Total number of stored values that were not a collection",
		},
		[]string{},
	)

	p.counters[MetricPersistSuccess] = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jsonable",
			Subsystem: "persist",
			Name:      "success_total",
			Help:      "Total number of successful record writes",
		},
		[]string{},
	)

	p.counters[MetricPersistError] = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jsonable",
			Subsystem: "persist",
			Name:      "errors_total",
			Help:      "Total number of failed record writes",
		},
		[]string{},
	)

	p.histograms[MetricPersistDuration] = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jsonable",
			Subsystem: "persist",
			Name:      "duration_seconds",
			Help:      "Record write duration in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{},
	)

	p.gauges[MetricCollectionSize] = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "jsonable",
			Subsystem: "collection",
			Name:      "size",
			Help:      "Number of items in the last persisted collection",
		},
		[]string{},
	)
}

// Increment increments a Prometheus counter
func (p *PrometheusMetrics) Increment(name string, tags ...string) {
	p.mu.Lock()
	counter, ok := p.counters[name]
	if !ok {
		counter = promauto.With(p.registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "jsonable",
				Name:      metricName(name),
				Help:      "Dynamic counter: " + name,
			},
			p.extractLabels(tags),
		)
		p.counters[name] = counter
	}
	p.mu.Unlock()

	counter.With(p.extractLabelValues(tags)).Inc()
}

// Gauge sets a Prometheus gauge value
func (p *PrometheusMetrics) Gauge(name string, value float64, tags ...string) {
	p.mu.Lock()
	gauge, ok := p.gauges[name]
	if !ok {
		gauge = promauto.With(p.registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "jsonable",
				Name:      metricName(name),
				Help:      "Dynamic gauge: " + name,
			},
			p.extractLabels(tags),
		)
		p.gauges[name] = gauge
	}
	p.mu.Unlock()

	gauge.With(p.extractLabelValues(tags)).Set(value)
}

// Histogram records a value in a Prometheus histogram
func (p *PrometheusMetrics) Histogram(name string, value float64, tags ...string) {
	p.mu.Lock()
	histogram, ok := p.histograms[name]
	if !ok {
		histogram = promauto.With(p.registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "jsonable",
				Name:      metricName(name),
				Help:      "Dynamic histogram: " + name,
				Buckets:   prometheus.DefBuckets,
			},
			p.extractLabels(tags),
		)
		p.histograms[name] = histogram
	}
	p.mu.Unlock()

	histogram.With(p.extractLabelValues(tags)).Observe(value)
}

// Timing records a duration in a Prometheus histogram
func (p *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...string) {
	p.Histogram(name, duration.Seconds(), tags...)
}

// extractLabels extracts label names from tags (every even index)
func (p *PrometheusMetrics) extractLabels(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	labels := make([]string, 0, len(tags)/2)
	for i := 0; i < len(tags); i += 2 {
		labels = append(labels, tags[i])
	}
	return labels
}

// extractLabelValues creates a label map from tags (key-value pairs)
func (p *PrometheusMetrics) extractLabelValues(tags []string) prometheus.Labels {
	labels := make(prometheus.Labels)
	for i := 0; i < len(tags)-1; i += 2 {
		labels[tags[i]] = tags[i+1]
	}
	return labels
}

// GetRegistry returns the underlying Prometheus registry
func (p *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return p.registry
}

// metricName turns "jsonable.cache.hits" into "jsonable_cache_hits"
func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
