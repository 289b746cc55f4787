// Package metrics exposes the Prometheus instrumentation shared by the
// Manager, Simulation, Sensor, and Scheduler processes. Unlike the teacher's own
// pkg/monitoring/prometheus, which only queries an already-running
// Prometheus server, this package is a producer: it registers collectors
// and serves them over HTTP for an external Prometheus to scrape.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric this system exposes. Processes that don't
// use a given metric simply never touch it.
type Registry struct {
	reg *prometheus.Registry

	ManagerConnections  prometheus.Gauge
	ManagerAuthFailures prometheus.Counter
	SlotWrites          *prometheus.CounterVec

	SimulationTicks prometheus.Counter
	ActiveFaults    prometheus.Gauge

	SensorAlertsActive prometheus.Gauge

	DroneStateGauge *prometheus.GaugeVec
}

// New builds a Registry with all collectors registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		ManagerConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "windfarm",
			Subsystem: "manager",
			Name:      "connections",
			Help:      "Number of currently connected RPC clients.",
		}),
		ManagerAuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "windfarm",
			Subsystem: "manager",
			Name:      "auth_failures_total",
			Help:      "Number of rejected authentication attempts.",
		}),
		SlotWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "windfarm",
			Subsystem: "manager",
			Name:      "slot_writes_total",
			Help:      "Number of writes per shared-namespace slot.",
		}, []string{"slot"}),
		SimulationTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "windfarm",
			Subsystem: "simulation",
			Name:      "ticks_total",
			Help:      "Number of simulation ticks advanced since startup.",
		}),
		ActiveFaults: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "windfarm",
			Subsystem: "simulation",
			Name:      "active_faults",
			Help:      "Number of active faults across all turbines.",
		}),
		SensorAlertsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "windfarm",
			Subsystem: "sensor",
			Name:      "alerts_active",
			Help:      "Number of turbines currently in sensor_alerts.",
		}),
		DroneStateGauge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "windfarm",
			Subsystem: "scheduler",
			Name:      "drones_in_state",
			Help:      "Number of drones currently in each state.",
		}, []string{"state"}),
	}
}

// Handler returns the promhttp handler to mount under /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve starts a small HTTP listener exposing /metrics and blocks until the
// listener fails or is closed. Intended to run in its own goroutine.
func (r *Registry) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	return http.ListenAndServe(addr, mux)
}
