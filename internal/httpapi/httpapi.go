// Package httpapi serves the engine's two HTTP surfaces: Prometheus
// exposition and a JSON health endpoint summarizing scheduler and breaker
// state.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"

	"github.com/priceagg/engine/internal/collector"
	"github.com/priceagg/engine/internal/metrics"
	"github.com/priceagg/engine/internal/resilience"
)

// HealthStatus is the JSON body served by GET /healthz.
type HealthStatus struct {
	SchedulerState string            `json:"scheduler_state"`
	Counters       collector.Counters `json:"counters"`
	BreakerStates  map[string]string `json:"breaker_states"`
}

// Server bundles the metrics and health handlers behind a single router.
type Server struct {
	router    *mux.Router
	scheduler *collector.Scheduler
	breakers  *resilience.BreakerManager
	sources   []string
	gatherer  prometheus.Gatherer
}

// NewServer builds the router. sources lists the source names whose
// breaker state should appear in /healthz.
func NewServer(scheduler *collector.Scheduler, breakers *resilience.BreakerManager, sources []string, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		scheduler: scheduler,
		breakers:  breakers,
		sources:   sources,
		gatherer:  gatherer,
	}
	s.router.Handle("/metrics", metrics.Handler(gatherer)).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		SchedulerState: s.scheduler.State().String(),
		Counters:       s.scheduler.Counters(),
		BreakerStates:  make(map[string]string),
	}
	for _, name := range s.sources {
		status.BreakerStates[name] = breakerStateString(s.breakers.State(name))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func breakerStateString(st gobreaker.State) string {
	switch st {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
