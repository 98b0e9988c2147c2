package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dan9191/brokerage-service/internal/systematic"
)

// Collector exports engine activity on its own registry
type Collector struct {
	registry          *prometheus.Registry
	executions        *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	runs              prometheus.Counter
	runDuration       prometheus.Histogram
	lastRunPlans      *prometheus.GaugeVec
	staleLocks        prometheus.Counter
	lastRunTimestamp  prometheus.Gauge
}

var _ systematic.Recorder = (*Collector)(nil)

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "systematic_executions_total",
			Help: "Plan executions by plan type and outcome",
		}, []string{"plan_type", "status"}),
		executionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "systematic_execution_duration_seconds",
			Help:    "Time taken to execute a single plan",
			Buckets: prometheus.DefBuckets,
		}, []string{"plan_type"}),
		runs: factory.NewCounter(prometheus.CounterOpts{
			Name: "systematic_runs_total",
			Help: "Total number of execution runs",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "systematic_run_duration_seconds",
			Help:    "Time taken by a full execution run",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
		lastRunPlans: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "systematic_last_run_plans",
			Help: "Plans handled by the most recent run by outcome",
		}, []string{"status"}),
		staleLocks: factory.NewCounter(prometheus.CounterOpts{
			Name: "systematic_stale_locks_released_total",
			Help: "Locks cleared by the stale lock sweep",
		}),
		lastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "systematic_last_run_timestamp_seconds",
			Help: "Unix time the most recent run finished",
		}),
	}
}

func (c *Collector) ObserveExecution(result systematic.ExecutionResult) {
	planType := string(result.PlanType)
	c.executions.WithLabelValues(planType, string(result.Status)).Inc()
	c.executionDuration.WithLabelValues(planType).Observe(msToSeconds(result.DurationMs))
}

func (c *Collector) ObserveRun(summary systematic.RunSummary) {
	c.runs.Inc()
	c.runDuration.Observe(msToSeconds(summary.DurationMs))
	c.lastRunPlans.WithLabelValues("due").Set(float64(summary.TotalDue))
	c.lastRunPlans.WithLabelValues("success").Set(float64(summary.Executed))
	c.lastRunPlans.WithLabelValues("failed").Set(float64(summary.Failed))
	c.lastRunPlans.WithLabelValues("skipped").Set(float64(summary.Skipped))
	c.staleLocks.Add(float64(summary.StaleLocksReleased))
	c.lastRunTimestamp.Set(float64(time.Now().Unix()))
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func msToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}
