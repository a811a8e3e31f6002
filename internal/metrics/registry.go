// Package metrics exposes simulation and HTTP counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"secnetsim/internal/ids"
	"secnetsim/internal/sim"
)

// Registry holds every metric the simulator records. It implements
// sim.Observer so it can be attached to a Driver directly.
type Registry struct {
	// Simulation
	PathComputations *prometheus.CounterVec
	PathHops         prometheus.Histogram
	NodeVisits       prometheus.Counter
	Transmissions    *prometheus.CounterVec
	IDSAlerts        *prometheus.CounterVec
	KeyRotations     *prometheus.CounterVec
	PhaseTransitions *prometheus.CounterVec
	CurrentPhase     prometheus.Gauge
	CompromisedNodes prometheus.Gauge

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewRegistry creates a registry backed by a private Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initSimulationMetrics()
	r.initHTTPMetrics()
	return r
}

func (r *Registry) initSimulationMetrics() {
	f := promauto.With(r.registry)

	r.PathComputations = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secnetsim_path_computations_total",
			Help: "Shortest path computations by outcome",
		},
		[]string{"result"},
	)
	r.PathHops = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "secnetsim_path_hops",
			Help:    "Number of nodes on each computed path",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
		},
	)
	r.NodeVisits = f.NewCounter(
		prometheus.CounterOpts{
			Name: "secnetsim_node_visits_total",
			Help: "Nodes reported visited during transmission",
		},
	)
	r.Transmissions = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secnetsim_transmissions_total",
			Help: "Completed transmissions by verification result",
		},
		[]string{"result"},
	)
	r.IDSAlerts = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secnetsim_ids_alerts_total",
			Help: "Intrusion alerts by severity",
		},
		[]string{"severity"},
	)
	r.KeyRotations = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secnetsim_key_rotations_total",
			Help: "DKMS key distributions by kind (routine or emergency)",
		},
		[]string{"kind"},
	)
	r.PhaseTransitions = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secnetsim_phase_transitions_total",
			Help: "Driver phase transitions by target phase",
		},
		[]string{"to"},
	)
	r.CurrentPhase = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "secnetsim_phase",
			Help: "Current driver phase (0 idle .. 4 verified)",
		},
	)
	r.CompromisedNodes = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "secnetsim_compromised_nodes",
			Help: "Nodes currently flagged compromised",
		},
	)

	// Export every severity from the start so rate() sees the zeros.
	for _, sev := range ids.Severities() {
		r.IDSAlerts.WithLabelValues(string(sev))
	}
}

func (r *Registry) initHTTPMetrics() {
	f := promauto.With(r.registry)

	r.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secnetsim_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	r.HTTPRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secnetsim_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordHTTPRequest records an HTTP request with its duration.
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetCompromised records how many nodes are compromised.
func (r *Registry) SetCompromised(n int) {
	r.CompromisedNodes.Set(float64(n))
}

func (r *Registry) OnPathChange(path []string, compromised bool) {
	switch {
	case len(path) == 0:
		r.PathComputations.WithLabelValues("unreachable").Inc()
	case compromised:
		r.PathComputations.WithLabelValues("compromised").Inc()
	default:
		r.PathComputations.WithLabelValues("found").Inc()
	}
	if len(path) > 0 {
		r.PathHops.Observe(float64(len(path)))
	}
}

func (r *Registry) OnNodeVisit(string) {
	r.NodeVisits.Inc()
}

func (r *Registry) OnTransmissionComplete(success bool, _ string) {
	if success {
		r.Transmissions.WithLabelValues("verified").Inc()
		return
	}
	r.Transmissions.WithLabelValues("failed").Inc()
}

func (r *Registry) OnIDSAlert(alert ids.Alert) {
	r.IDSAlerts.WithLabelValues(string(alert.Severity)).Inc()
	r.CompromisedNodes.Inc()
}

func (r *Registry) OnPhaseChange(_, to sim.Phase) {
	r.PhaseTransitions.WithLabelValues(to.String()).Inc()
	r.CurrentPhase.Set(float64(to))
}

func (r *Registry) OnKeyRotation(_ map[string]string, emergency bool) {
	if emergency {
		r.KeyRotations.WithLabelValues("emergency").Inc()
		return
	}
	r.KeyRotations.WithLabelValues("routine").Inc()
}
