package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smart-dag/txevent/pkg/protocol"
)

const metricsNamespace = "txevent"

// Metrics holds the client's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	connected      prometheus.Gauge
	reconnects     prometheus.Counter
	droppedFrames  prometheus.Counter
	pending        prometheus.Gauge
	requests       *prometheus.CounterVec
	transfers      *prometheus.CounterVec
	unknownReplies prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connected",
			Help:      "1 while a hub channel is open.",
		}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconnects_total",
			Help:      "Reconnect attempts after a lost channel.",
		}),
		droppedFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_frames_total",
			Help:      "Inbound frames dropped because they could not be decoded.",
		}),
		pending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_requests",
			Help:      "Requests waiting for a response.",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Outbound requests by outcome.",
		}, []string{"outcome"}),
		transfers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transfers_total",
			Help:      "Classified transfers by direction.",
		}, []string{"direction"}),
		unknownReplies: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "unmatched_responses_total",
			Help:      "Responses whose tag matched no pending request.",
		}),
	}
}

func (m *Metrics) setConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *Metrics) reconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) dropFrame() {
	if m != nil {
		m.droppedFrames.Inc()
	}
}

func (m *Metrics) setPending(n int) {
	if m != nil {
		m.pending.Set(float64(n))
	}
}

func (m *Metrics) request(outcome string) {
	if m != nil {
		m.requests.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) transfer(d protocol.Direction) {
	if m != nil {
		m.transfers.WithLabelValues(string(d)).Inc()
	}
}

func (m *Metrics) unmatchedResponse() {
	if m != nil {
		m.unknownReplies.Inc()
	}
}
