package conversation

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes engine counters. All methods are nil-safe so the engine
// works without a metrics registry, e.g. in tests.
type Metrics struct {
	turns              *prometheus.CounterVec
	sessionsStarted    prometheus.Counter
	sessionsEnded      *prometheus.CounterVec
	validationFailures prometheus.Counter
	activeSessions     prometheus.Gauge
}

// NewMetrics builds and registers the engine collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edubot_engine_turns_total",
			Help: "Total inbound messages handled by the conversation engine",
		}, []string{"outcome"}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edubot_engine_sessions_started_total",
			Help: "Total command sessions started",
		}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edubot_engine_sessions_ended_total",
			Help: "Total command sessions ended, by reason",
		}, []string{"reason"}),
		validationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edubot_engine_validation_failures_total",
			Help: "Total prompt inputs rejected by validation",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edubot_engine_active_sessions",
			Help: "Command sessions currently awaiting input",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.turns, m.sessionsStarted, m.sessionsEnded, m.validationFailures, m.activeSessions)
	}
	return m
}

func (m *Metrics) turn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
	m.activeSessions.Inc()
}

func (m *Metrics) sessionEnded(reason string) {
	if m == nil {
		return
	}
	m.sessionsEnded.WithLabelValues(reason).Inc()
	m.activeSessions.Dec()
}

func (m *Metrics) validationFailed() {
	if m == nil {
		return
	}
	m.validationFailures.Inc()
}

// Evicted records count sessions removed by the store janitor.
func (m *Metrics) Evicted(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.sessionsEnded.WithLabelValues("evicted").Add(float64(count))
	m.activeSessions.Sub(float64(count))
}
