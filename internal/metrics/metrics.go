package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/liamcoop/workflowrules/orchestrator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name
const Namespace = "workflowrules"

// UnregisteredWorkflow labels runs of names that have no workflow, so
// arbitrary request paths cannot grow label cardinality
const UnregisteredWorkflow = "_unregistered"

// Metrics holds the Prometheus collectors for workflow runs and the HTTP
// API. A nil *Metrics is a valid no-op.
type Metrics struct {
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	rulesMatched *prometheus.CounterVec
	actions      *prometheus.CounterVec
	escalations  *prometheus.CounterVec
	workflows    prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the collectors on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Workflow runs by workflow and outcome",
			},
			[]string{"workflow", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of workflow runs in seconds",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"workflow"},
		),
		rulesMatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "rules_matched_total",
				Help:      "Rules whose conditions matched",
			},
			[]string{"workflow"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "actions_executed_total",
				Help:      "Actions executed by action type",
			},
			[]string{"action"},
		),
		escalations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "escalations_total",
				Help:      "Runs that ended requiring escalation",
			},
			[]string{"workflow"},
		),
		workflows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "workflows_registered",
				Help:      "Number of registered workflows",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}

	registry.MustRegister(
		m.runs,
		m.runDuration,
		m.rulesMatched,
		m.actions,
		m.escalations,
		m.workflows,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// ObserveRun implements orchestrator.Observer
func (m *Metrics) ObserveRun(_ context.Context, report orchestrator.RunReport) {
	if m == nil {
		return
	}

	workflow := report.Workflow
	status := "ok"
	switch {
	case !report.Registered:
		workflow = UnregisteredWorkflow
		status = "unregistered"
	case report.Err != nil:
		status = "error"
	}

	m.runs.WithLabelValues(workflow, status).Inc()
	m.runDuration.WithLabelValues(workflow).Observe(report.Duration.Seconds())

	if report.Result == nil {
		return
	}
	m.rulesMatched.WithLabelValues(workflow).Add(float64(len(report.Result.MatchedRules)))
	for _, executed := range report.Result.ActionsExecuted {
		m.actions.WithLabelValues(executed.Action).Inc()
	}
	if report.Result.RequiresEscalation {
		m.escalations.WithLabelValues(workflow).Inc()
	}
}

// SetWorkflows records the number of registered workflows
func (m *Metrics) SetWorkflows(n int) {
	if m == nil {
		return
	}
	m.workflows.Set(float64(n))
}

// RecordHTTPRequest records one served request. route is the matched
// route pattern, not the raw path.
func (m *Metrics) RecordHTTPRequest(route, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

var _ orchestrator.Observer = (*Metrics)(nil)
