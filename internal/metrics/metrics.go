package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the solver binaries
	Registry = prometheus.NewRegistry()

	// SolverIterations counts search loop iterations by strategy
	SolverIterations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "solver_iterations_total", Help: "Search iterations by strategy."},
		[]string{"strategy"},
	)
	// SolverMoves counts attempted moves by strategy and outcome (accepted, infeasible, rejected)
	SolverMoves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "solver_moves_total", Help: "Attempted moves by strategy and outcome."},
		[]string{"strategy", "outcome"},
	)
	// SolverEmitted counts solutions pushed to a stream
	SolverEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "solver_solutions_emitted_total", Help: "Improving solutions emitted by strategy."},
		[]string{"strategy"},
	)
	SolverBestRoutes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "solver_best_routes", Help: "Route count of the last emitted solution."},
		[]string{"strategy"},
	)
	SolverBestDistance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "solver_best_distance", Help: "Distance of the last emitted solution."},
		[]string{"strategy"},
	)
	// RunDuration records wall time of finished runs in seconds
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "solver_run_duration_seconds", Help: "Run duration in seconds.", Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600}},
		[]string{"strategy", "status"},
	)

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

	// WebhookDeliveries counts run callback delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers all collectors to Registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(SolverIterations)
		Registry.MustRegister(SolverMoves)
		Registry.MustRegister(SolverEmitted)
		Registry.MustRegister(SolverBestRoutes)
		Registry.MustRegister(SolverBestDistance)
		Registry.MustRegister(RunDuration)
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
