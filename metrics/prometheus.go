package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "edudiff"

// Collectors holds the Prometheus instruments exposed on /metrics.
type Collectors struct {
	registry *prometheus.Registry

	generations        *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	inFlight           prometheus.Gauge
	modelLoads         *prometheus.CounterVec
	modelLoadDuration  prometheus.Histogram
	apiCalls           *prometheus.HistogramVec
}

// NewCollectors registers the instruments on a fresh registry together
// with the Go runtime and process collectors.
func NewCollectors() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Finished generations by backend, style and outcome.",
		}, []string{"backend", "style", "outcome"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of generations, including queueing.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 90, 120, 180},
		}, []string{"backend"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generations_in_flight",
			Help:      "Generations currently running or queued.",
		}),
		modelLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Local model loads by conditioning key and result.",
		}, []string{"key", "result"}),
		modelLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_load_duration_seconds",
			Help:      "Time to load a local pipeline.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		apiCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_call_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "code"}),
	}

	c.registry.MustRegister(
		c.generations,
		c.generationDuration,
		c.inFlight,
		c.modelLoads,
		c.modelLoadDuration,
		c.apiCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveGeneration counts a finished generation.
func (c *Collectors) ObserveGeneration(backend, style, outcome string, elapsed time.Duration) {
	c.generations.WithLabelValues(backend, style, outcome).Inc()
	c.generationDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// GenerationStarted increments the in-flight gauge; call the returned
// function when the generation ends.
func (c *Collectors) GenerationStarted() func() {
	c.inFlight.Inc()
	return c.inFlight.Dec
}

// ObserveModelLoad records a local model load attempt.
func (c *Collectors) ObserveModelLoad(key string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if key == "" {
		key = "none"
	}
	c.modelLoads.WithLabelValues(key, result).Inc()
	if err == nil {
		c.modelLoadDuration.Observe(elapsed.Seconds())
	}
}

// ObserveAPICall records the latency of one HTTP request.
func (c *Collectors) ObserveAPICall(method, path string, code int, elapsed time.Duration) {
	c.apiCalls.WithLabelValues(method, path, strconv.Itoa(code)).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
