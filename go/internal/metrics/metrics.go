package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Bid results recorded on auction_bids_total.
const (
	BidAccepted        = "accepted"
	BidNoActiveAuction = "no_active_auction"
	BidItemNotActive   = "item_not_active"
	BidTooLow          = "too_low"
	BidError           = "error"
)

// Collector defines the interface for collecting auction metrics
type Collector interface {
	RecordBid(result string)
	RecordRoundStarted()
	RecordRoundEnded(sold bool)
	RecordRoundOverrun(overrun time.Duration)
	RecordSubscribers(count int)
	RecordBroadcastDropped()
}

// NoOpCollector is a no-op implementation for when metrics aren't needed
type NoOpCollector struct{}

func (NoOpCollector) RecordBid(string)                 {}
func (NoOpCollector) RecordRoundStarted()              {}
func (NoOpCollector) RecordRoundEnded(bool)            {}
func (NoOpCollector) RecordRoundOverrun(time.Duration) {}
func (NoOpCollector) RecordSubscribers(int)            {}
func (NoOpCollector) RecordBroadcastDropped()          {}

// Prometheus implements Collector on its own registry.
type Prometheus struct {
	Registry *prometheus.Registry

	bids             *prometheus.CounterVec
	roundsStarted    prometheus.Counter
	roundsEnded      *prometheus.CounterVec
	roundOverrun     prometheus.Gauge
	subscribers      prometheus.Gauge
	broadcastDropped prometheus.Counter
}

func NewPrometheus(namespace string) *Prometheus {
	registry := prometheus.NewRegistry()
	m := &Prometheus{Registry: registry}

	m.bids = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bids_total",
		Help:      "Bid requests by result.",
	}, []string{"result"})
	m.roundsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_started_total",
		Help:      "Rounds opened.",
	})
	m.roundsEnded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_ended_total",
		Help:      "Rounds closed by outcome (sold or unsold).",
	}, []string{"outcome"})
	m.roundOverrun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "round_overrun_seconds",
		Help:      "How far the live round is past its deadline while it cannot be closed.",
	})
	m.subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscribers",
		Help:      "Connected websocket subscribers.",
	})
	m.broadcastDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_dropped_total",
		Help:      "Subscribers dropped because their send buffer was full.",
	})

	registry.MustRegister(
		m.bids,
		m.roundsStarted,
		m.roundsEnded,
		m.roundOverrun,
		m.subscribers,
		m.broadcastDropped,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Prometheus) RecordBid(result string) {
	m.bids.WithLabelValues(result).Inc()
}

func (m *Prometheus) RecordRoundStarted() {
	m.roundsStarted.Inc()
}

func (m *Prometheus) RecordRoundEnded(sold bool) {
	outcome := "unsold"
	if sold {
		outcome = "sold"
	}
	m.roundsEnded.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) RecordRoundOverrun(overrun time.Duration) {
	if overrun < 0 {
		overrun = 0
	}
	m.roundOverrun.Set(overrun.Seconds())
}

func (m *Prometheus) RecordSubscribers(count int) {
	m.subscribers.Set(float64(count))
}

func (m *Prometheus) RecordBroadcastDropped() {
	m.broadcastDropped.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
