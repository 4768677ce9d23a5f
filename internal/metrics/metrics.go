// Package metrics exposes Prometheus instrumentation for the guided-task flow.
//
// All methods are safe on a nil *Metrics so packages can run uninstrumented
// in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cognify"

// Metrics holds the collectors registered for one process.
type Metrics struct {
	gatherer prometheus.Gatherer

	commands     *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	hesitations  prometheus.Counter
	profileSaves *prometheus.CounterVec
	liveConns    prometheus.Gauge
	swept        prometheus.Counter
}

// New registers the collectors with a fresh registry, including the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newWithRegistry(reg, reg)
}

func newWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: g,
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Flow commands handled, by command type and result.",
		}, []string{"command", "result"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_transitions_total",
			Help:      "Stage changes caused by commands.",
		}, []string{"from", "to"}),
		hesitations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hesitations_total",
			Help:      "Times the hesitation detector fired.",
		}),
		profileSaves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_saves_total",
			Help:      "Onboarding profile writes, by sink and result.",
		}, []string{"sink", "result"}),
		liveConns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_connections",
			Help:      "Open live-update WebSocket connections.",
		}),
		swept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Sessions removed after the inactivity TTL.",
		}),
	}
}

// Command counts one handled command.
func (m *Metrics) Command(command, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, result).Inc()
}

// Transition counts one stage change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// Hesitation counts one detector hit.
func (m *Metrics) Hesitation() {
	if m == nil {
		return
	}
	m.hesitations.Inc()
}

// ProfileSave counts one profile write attempt.
func (m *Metrics) ProfileSave(sink string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.profileSaves.WithLabelValues(sink, result).Inc()
}

// LiveConnected adjusts the open connection gauge by delta.
func (m *Metrics) LiveConnected(delta int) {
	if m == nil {
		return
	}
	m.liveConns.Add(float64(delta))
}

// Swept counts sessions removed by the TTL sweeper.
func (m *Metrics) Swept(n int) {
	if m == nil {
		return
	}
	m.swept.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
