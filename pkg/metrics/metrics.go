// Package metrics exposes operational counters for the training server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. All collectors live on a
// private registry so tests can instantiate freely.
type Metrics struct {
	registry *prometheus.Registry

	// WSMessages counts dispatched client messages by type.
	WSMessages *prometheus.CounterVec
	// LLMFallbacks counts agent LLM failures that activated a fallback.
	LLMFallbacks prometheus.Counter
	// SimTickDuration records the time one simulation step holds a room's
	// dispatch goroutine.
	SimTickDuration prometheus.Histogram
	// TTSSynthesisDuration records successful synthesis call latency.
	TTSSynthesisDuration prometheus.Histogram
}

// New registers all collectors. activeRooms and activeConnections are polled
// at scrape time; either may be nil.
func New(activeRooms, activeConnections func() int) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		WSMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "temserver_ws_messages_total",
			Help: "Client WebSocket messages dispatched, by message type.",
		}, []string{"type"}),
		LLMFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "temserver_llm_fallbacks_total",
			Help: "AI agent LLM failures that degraded to the deterministic fallback.",
		}),
		SimTickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "temserver_sim_tick_duration_seconds",
			Help:    "Duration of one simulation step on the room dispatcher.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		TTSSynthesisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "temserver_tts_synthesis_duration_seconds",
			Help:    "Latency of successful TTS provider calls.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
	reg.MustRegister(m.WSMessages, m.LLMFallbacks, m.SimTickDuration, m.TTSSynthesisDuration)

	if activeRooms != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "temserver_active_rooms",
			Help: "Rooms currently live in the store.",
		}, func() float64 { return float64(activeRooms()) }))
	}
	if activeConnections != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "temserver_active_connections",
			Help: "Open WebSocket connections.",
		}, func() float64 { return float64(activeConnections()) }))
	}
	return m
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTick adapts SimTickDuration to the simulation runner's hook.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.SimTickDuration.Observe(d.Seconds())
}

// ObserveSynthesis adapts TTSSynthesisDuration to the TTS fan-out's hook.
func (m *Metrics) ObserveSynthesis(d time.Duration) {
	m.TTSSynthesisDuration.Observe(d.Seconds())
}

// CountMessage adapts WSMessages to the gateway's hook.
func (m *Metrics) CountMessage(msgType string) {
	m.WSMessages.WithLabelValues(msgType).Inc()
}

// CountLLMFallback adapts LLMFallbacks to the agent's hook.
func (m *Metrics) CountLLMFallback() {
	m.LLMFallbacks.Inc()
}
