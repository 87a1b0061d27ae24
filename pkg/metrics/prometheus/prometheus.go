// Package prometheus implements metrics.Recorder on a Prometheus registry.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is a Prometheus-backed metrics.Recorder.
type Recorder struct {
	registry *prometheus.Registry

	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge
	sessionsActive    prometheus.Gauge
	messagesTotal     *prometheus.CounterVec
	failuresTotal     *prometheus.CounterVec
	recordsStreamed   prometheus.Counter
}

// NewRecorder creates a Recorder with its own registry, pre-populated with
// the standard Go and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Recorder{
		registry: reg,
		connectionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "boltkit_connections_total",
			Help: "Total number of accepted Bolt connections",
		}),
		connectionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "boltkit_connections_active",
			Help: "Currently open Bolt connections",
		}),
		sessionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "boltkit_sessions_active",
			Help: "Currently registered Bolt sessions",
		}),
		messagesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "boltkit_messages_total",
			Help: "Total handled client messages by type",
		}, []string{"message"}),
		failuresTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "boltkit_failures_total",
			Help: "Total FAILURE replies by status code",
		}, []string{"code"}),
		recordsStreamed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "boltkit_records_streamed_total",
			Help: "Total records streamed to clients",
		}),
	}
}

// Registry exposes the underlying registry for the HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ConnectionOpened() {
	r.connectionsTotal.Inc()
	r.connectionsActive.Inc()
}

func (r *Recorder) ConnectionClosed() {
	r.connectionsActive.Dec()
}

func (r *Recorder) SessionRegistered() {
	r.sessionsActive.Inc()
}

func (r *Recorder) SessionRemoved() {
	r.sessionsActive.Dec()
}

func (r *Recorder) MessageHandled(msg string) {
	r.messagesTotal.WithLabelValues(msg).Inc()
}

func (r *Recorder) FailureSent(code string) {
	r.failuresTotal.WithLabelValues(code).Inc()
}

func (r *Recorder) RecordsStreamed(n int) {
	r.recordsStreamed.Add(float64(n))
}
