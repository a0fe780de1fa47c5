// Package telemetry exposes the simulation's aggregate metrics as Prometheus
// gauges.
package telemetry

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/talgya/mini-market/internal/engine"
)

const (
	namespace = "minimarket"
	subsystem = "simulation"
)

// Collector holds one gauge per aggregate metric on its own registry.
type Collector struct {
	Registry *prometheus.Registry

	tick              prometheus.Gauge
	gini              prometheus.Gauge
	totalWealth       prometheus.Gauge
	averageWealth     prometheus.Gauge
	wealthiest        prometheus.Gauge
	agents            *prometheus.GaugeVec
	totalTrades       prometheus.Gauge
	totalInteractions prometheus.Gauge
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

// NewCollector creates the gauges and registers them on a fresh registry.
func NewCollector() (*Collector, error) {
	c := &Collector{
		Registry:          prometheus.NewRegistry(),
		tick:              gauge("tick", "Number of completed ticks"),
		gini:              gauge("gini", "Gini coefficient of agent wealth (NaN when undefined)"),
		totalWealth:       gauge("total_wealth", "Sum of all agents' wealth"),
		averageWealth:     gauge("average_wealth", "Mean wealth per agent"),
		wealthiest:        gauge("wealthiest", "Highest wealth held by any agent"),
		totalTrades:       gauge("trades_total", "Trades completed, summed over agents"),
		totalInteractions: gauge("interactions_total", "Interactions, summed over agents"),
		agents: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "agents",
				Help:      "Agents by wealth class",
			},
			[]string{"class"},
		),
	}

	metrics := []prometheus.Collector{
		c.tick,
		c.gini,
		c.totalWealth,
		c.averageWealth,
		c.wealthiest,
		c.agents,
		c.totalTrades,
		c.totalInteractions,
	}
	for _, metric := range metrics {
		if err := c.Registry.Register(metric); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Observe sets every gauge from one tick's metrics.
func (c *Collector) Observe(m engine.TickMetrics) {
	c.tick.Set(float64(m.Tick))
	c.gini.Set(m.Gini)
	c.totalWealth.Set(m.TotalWealth)
	c.averageWealth.Set(m.AverageWealth)
	if !math.IsNaN(m.Wealthiest) {
		c.wealthiest.Set(m.Wealthiest)
	}
	c.agents.WithLabelValues("wealthy").Set(float64(m.Wealthy))
	c.agents.WithLabelValues("non_wealthy").Set(float64(m.NonWealthy))
	c.totalTrades.Set(float64(m.TotalTrades))
	c.totalInteractions.Set(float64(m.TotalInteractions))
}
