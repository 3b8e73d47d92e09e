package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
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

	// Solves counts finished matches by terminal status
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "match_solves_total", Help: "Finished matches by status."},
		[]string{"status"},
	)
	// SolveTimeouts counts searches ended by the wall-clock budget
	SolveTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "match_solver_timeouts_total", Help: "Searches stopped by the solver timeout."},
	)
	// SolveDuration tracks end-to-end match latency in milliseconds
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "match_solve_duration_ms", Help: "Match duration in ms.", Buckets: []float64{10, 50, 100, 250, 500, 1000, 2000, 5000, 10000}},
		[]string{"solver"},
	)
	// DroppedRequests observes the dropped request count of each match
	DroppedRequests = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "match_dropped_requests", Help: "Dropped delivery requests per match.", Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250}},
	)
	// RateLimited counts requests rejected by the solve throttle
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "http_rate_limited_total", Help: "Requests rejected by the rate limiter."},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Solves)
		Registry.MustRegister(SolveTimeouts)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(DroppedRequests)
		Registry.MustRegister(RateLimited)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// ObserveSolve records one finished match.
func ObserveSolve(solver, status string, timedOut bool, elapsed time.Duration, dropped int) {
	Solves.WithLabelValues(status).Inc()
	if timedOut {
		SolveTimeouts.Inc()
	}
	SolveDuration.WithLabelValues(solver).Observe(float64(elapsed.Milliseconds()))
	DroppedRequests.Observe(float64(dropped))
}
