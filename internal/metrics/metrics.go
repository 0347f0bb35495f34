package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cvrpplan/internal/opt"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// SolveAttempts counts solve attempts by strategy and outcome (improved, accepted, failed)
	SolveAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cvrp_solve_attempts_total", Help: "Solve attempts by strategy and outcome."},
		[]string{"strategy", "outcome"},
	)
	// SolveDuration tracks time spent inside the solving engine per attempt
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "cvrp_solve_attempt_seconds", Help: "Solve attempt duration in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 300}},
		[]string{"strategy"},
	)
	// Restarts counts finished restarts by outcome (improved, found, none)
	Restarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cvrp_restarts_total", Help: "Finished restarts by outcome."},
		[]string{"outcome"},
	)
	// Plans counts planning runs by final status
	Plans = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cvrp_plans_total", Help: "Planning runs by final status."},
		[]string{"status"},
	)
	// PlanDuration records wall time per planning run
	PlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "cvrp_plan_duration_seconds", Help: "Planning run duration in seconds.", Buckets: prometheus.ExponentialBuckets(0.1, 2, 14)},
	)
	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type"},
	)
	// PlansInFlight is the number of planning runs currently executing
	PlansInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "cvrp_plans_in_flight", Help: "Planning runs in progress."},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(SolveAttempts)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(Restarts)
		Registry.MustRegister(Plans)
		Registry.MustRegister(PlanDuration)
		Registry.MustRegister(PlansInFlight)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// PlannerObserver feeds planner progress into the collectors.
type PlannerObserver struct{}

func (PlannerObserver) AttemptFinished(e opt.AttemptEvent) {
	outcome := "failed"
	switch {
	case e.Improved:
		outcome = "improved"
	case e.OK:
		outcome = "accepted"
	}
	s := e.Strategy.String()
	SolveAttempts.WithLabelValues(s, outcome).Inc()
	SolveDuration.WithLabelValues(s).Observe(e.Duration.Seconds())
}

func (PlannerObserver) RestartFinished(e opt.RestartEvent) {
	outcome := "none"
	switch {
	case e.Improved:
		outcome = "improved"
	case e.Found:
		outcome = "found"
	}
	Restarts.WithLabelValues(outcome).Inc()
}

var _ opt.Observer = PlannerObserver{}
