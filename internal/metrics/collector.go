package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"burstq/internal/runner"
)

const namespace = "burstq"

// Collector exports run and request metrics. It is a runner.Observer.
type Collector struct {
	registry *prometheus.Registry

	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runActive     prometheus.Gauge
	requests      *prometheus.CounterVec
	latency       prometheus.Histogram
	lastRPS       prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Load test runs accepted.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Load test runs that finished.",
		}),
		runActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_active",
			Help:      "1 while a load test is running.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests issued, by result (success, failure, error).",
		}, []string{"result"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Latency of requests that received a response.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		lastRPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_requests_per_second",
			Help:      "Throughput of the most recent completed run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success_rate_percent",
			Help:      "Success rate of the most recent completed run.",
		}),
	}

	c.registry.MustRegister(
		c.runsStarted, c.runsCompleted, c.runActive,
		c.requests, c.latency, c.lastRPS, c.lastSuccess,
		collectors.NewGoCollector(),
	)
	return c
}

func (c *Collector) RunStarted(string, runner.Config) {
	c.runsStarted.Inc()
	c.runActive.Set(1)
}

func (c *Collector) RequestDone(_ string, _ runner.Config, o runner.Outcome) {
	switch {
	case o.IsError():
		c.requests.WithLabelValues("error").Inc()
		return
	case o.Success():
		c.requests.WithLabelValues("success").Inc()
	default:
		c.requests.WithLabelValues("failure").Inc()
	}
	c.latency.Observe(o.Elapsed.Seconds())
}

func (c *Collector) RunCompleted(res runner.RunResult) {
	c.runsCompleted.Inc()
	c.runActive.Set(0)
	if res.Stats != nil {
		c.lastRPS.Set(res.Stats.RequestsPerSecond)
		c.lastSuccess.Set(res.Stats.SuccessRatePercent)
	} else {
		c.lastRPS.Set(0)
		c.lastSuccess.Set(0)
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
