// Package metrics exposes Prometheus counters for lobby activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
)

// Collector implements lobby.Metrics and also tracks live sessions.
type Collector struct {
	events      *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	subscribers prometheus.Gauge
	sessions    prometheus.Gauge
}

// NewCollector registers every metric with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nabi_draft_events_total",
			Help: "Session events emitted, by type.",
		}, []string{"type"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nabi_draft_commands_rejected_total",
			Help: "Commands rejected, by operation and error kind.",
		}, []string{"op", "kind"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nabi_draft_subscribers",
			Help: "Live event subscribers across all sessions.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nabi_draft_sessions",
			Help: "Sessions held by the registry.",
		}),
	}

	reg.MustRegister(c.events, c.rejected, c.subscribers, c.sessions)
	return c
}

func (c *Collector) EventEmitted(eventType string) {
	c.events.WithLabelValues(eventType).Inc()
}

func (c *Collector) CommandRejected(op string, err error) {
	c.rejected.WithLabelValues(op, string(drafterr.KindOf(err))).Inc()
}

func (c *Collector) SubscribersChanged(delta int) {
	c.subscribers.Add(float64(delta))
}

// SetSessions matches hub.Options.OnCount.
func (c *Collector) SetSessions(n int) {
	c.sessions.Set(float64(n))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
