// Package metrics exports chain activity to Prometheus. Counters are fed by
// event subscriptions, so they only ever count committed work.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tolelom/degenchain/events"
)

const (
	namespace = "degen"
	subsystem = "chain"
)

// Metrics owns a private registry with the chain collectors.
type Metrics struct {
	reg *prometheus.Registry

	txs         *prometheus.CounterVec
	events      *prometheus.CounterVec
	blocks      prometheus.Counter
	blockHeight prometheus.Gauge
	players     prometheus.Counter
	propsSold   prometheus.Counter
	rewardRuns  prometheus.Counter
}

// New creates the collectors and registers them with a fresh registry
// alongside the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "txs_total",
			Help:      "Executed transactions by type and result",
		}, []string{"type", "result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_total",
			Help:      "Published events by type",
		}, []string{"event"}),
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "blocks_total",
			Help:      "Committed blocks since start",
		}),
		blockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "block_height",
			Help:      "Height of the latest committed block",
		}),
		players: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "players_registered_total",
			Help:      "Player registrations",
		}),
		propsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "props_sold_total",
			Help:      "Store purchases",
		}),
		rewardRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reward_distributions_total",
			Help:      "Completed reward distributions",
		}),
	}
	m.reg.MustRegister(
		m.txs, m.events, m.blocks, m.blockHeight, m.players, m.propsSold, m.rewardRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Attach subscribes the collectors to emitter.
func (m *Metrics) Attach(emitter *events.Emitter) {
	emitter.SubscribeAll(m.observe)
}

// GaugeFunc exports a value sampled on every scrape, e.g. the mempool size.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(ev events.Event) {
	m.events.WithLabelValues(string(ev.Type)).Inc()
	switch ev.Type {
	case events.EventTxExecuted:
		m.txs.WithLabelValues(txType(ev), "ok").Inc()
	case events.EventTxFailed:
		m.txs.WithLabelValues(txType(ev), "failed").Inc()
	case events.EventBlockCommit:
		m.blocks.Inc()
		m.blockHeight.Set(float64(ev.BlockHeight))
	case events.EventPlayerRegistered:
		m.players.Inc()
	case events.EventPropBought:
		m.propsSold.Inc()
	case events.EventRewardDistributed:
		m.rewardRuns.Inc()
	}
}

func txType(ev events.Event) string {
	if t, ok := ev.Data["type"].(string); ok && t != "" {
		return t
	}
	return "unknown"
}
