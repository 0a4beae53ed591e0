package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DefaultCollector is the process-wide collector, set by InitGlobal
	DefaultCollector *Collector
	once             sync.Once
)

// Collector aggregates deployment pipeline metrics
type Collector struct {
	registry  *prometheus.Registry
	startTime time.Time

	uptimeSeconds prometheus.Gauge
	jobsActive    prometheus.Gauge

	deploymentsTotal *prometheus.CounterVec

	pipelineDuration prometheus.Histogram
}

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	uptimeSeconds := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dropdeploy_uptime_seconds",
		Help: "Number of seconds since the process started",
	})

	jobsActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dropdeploy_jobs_active",
		Help: "Number of deployment pipelines currently executing",
	})

	deploymentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropdeploy_deployments_total",
			Help: "Total number of finished deployments by status",
		},
		[]string{"status"},
	)

	pipelineDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dropdeploy_pipeline_duration_seconds",
		Help:    "Duration of deployment pipeline runs in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to 2048s (~34min)
	})

	registry.MustRegister(uptimeSeconds, jobsActive, deploymentsTotal, pipelineDuration)

	return &Collector{
		registry:         registry,
		startTime:        time.Now(),
		uptimeSeconds:    uptimeSeconds,
		jobsActive:       jobsActive,
		deploymentsTotal: deploymentsTotal,
		pipelineDuration: pipelineDuration,
	}
}

// InitGlobal initializes the default collector exactly once
func InitGlobal() {
	once.Do(func() {
		DefaultCollector = NewCollector()
	})
}

// Handler serves the collector's registry in Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// IncActiveJobs bumps the active pipeline gauge
func (c *Collector) IncActiveJobs() { c.jobsActive.Inc() }

// DecActiveJobs drops the active pipeline gauge
func (c *Collector) DecActiveJobs() { c.jobsActive.Dec() }

// RecordDeployment counts a finished deployment and its pipeline duration
func (c *Collector) RecordDeployment(status string, duration time.Duration) {
	c.deploymentsTotal.WithLabelValues(status).Inc()
	c.pipelineDuration.Observe(duration.Seconds())
}

// UpdateUptime refreshes the uptime gauge; call it from the scrape path
func (c *Collector) UpdateUptime() {
	c.uptimeSeconds.Set(time.Since(c.startTime).Seconds())
}

// IncActiveJobs bumps the default collector if initialized
func IncActiveJobs() {
	if DefaultCollector != nil {
		DefaultCollector.IncActiveJobs()
	}
}

// DecActiveJobs drops the default collector if initialized
func DecActiveJobs() {
	if DefaultCollector != nil {
		DefaultCollector.DecActiveJobs()
	}
}

// RecordDeployment records on the default collector if initialized
func RecordDeployment(status string, duration time.Duration) {
	if DefaultCollector != nil {
		DefaultCollector.RecordDeployment(status, duration)
	}
}
