// Aggregate metrics, recomputed from the live population after every tick
// and appended to per-metric series.
package engine

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/talgya/mini-market/internal/agents"
)

// Series names.
const (
	SeriesGini              = "gini"
	SeriesTotalWealth       = "total_wealth"
	SeriesAverageWealth     = "average_wealth"
	SeriesWealthiest        = "wealthiest"
	SeriesWealthy           = "wealthy"
	SeriesNonWealthy        = "non_wealthy"
	SeriesTotalTrades       = "total_trades"
	SeriesTotalInteractions = "total_interactions"
)

var seriesOrder = []string{
	SeriesGini,
	SeriesTotalWealth,
	SeriesAverageWealth,
	SeriesWealthiest,
	SeriesWealthy,
	SeriesNonWealthy,
	SeriesTotalTrades,
	SeriesTotalInteractions,
}

// TickMetrics is the aggregate state of the population after one tick.
// Gini is NaN when undefined (no agents or zero total wealth).
type TickMetrics struct {
	Tick              uint64  `json:"tick"`
	Gini              float64 `json:"gini"`
	TotalWealth       float64 `json:"total_wealth"`
	AverageWealth     float64 `json:"average_wealth"`
	Wealthiest        float64 `json:"wealthiest"`
	Wealthy           int     `json:"wealthy"`
	NonWealthy        int     `json:"non_wealthy"`
	TotalTrades       uint64  `json:"total_trades"`
	TotalInteractions uint64  `json:"total_interactions"`

	AgentWealth map[agents.AgentID]float64 `json:"agent_wealth,omitempty"`
}

// MarshalJSON renders undefined float metrics as null.
func (m TickMetrics) MarshalJSON() ([]byte, error) {
	type plain TickMetrics
	return json.Marshal(struct {
		plain
		Gini          *float64 `json:"gini"`
		AverageWealth *float64 `json:"average_wealth"`
		Wealthiest    *float64 `json:"wealthiest"`
	}{
		plain:         plain(m),
		Gini:          Nullable(m.Gini),
		AverageWealth: Nullable(m.AverageWealth),
		Wealthiest:    Nullable(m.Wealthiest),
	})
}

// Nullable returns nil for NaN or infinite values.
func Nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Value returns the named aggregate.
func (m TickMetrics) Value(series string) (float64, bool) {
	switch series {
	case SeriesGini:
		return m.Gini, true
	case SeriesTotalWealth:
		return m.TotalWealth, true
	case SeriesAverageWealth:
		return m.AverageWealth, true
	case SeriesWealthiest:
		return m.Wealthiest, true
	case SeriesWealthy:
		return float64(m.Wealthy), true
	case SeriesNonWealthy:
		return float64(m.NonWealthy), true
	case SeriesTotalTrades:
		return float64(m.TotalTrades), true
	case SeriesTotalInteractions:
		return float64(m.TotalInteractions), true
	}
	return 0, false
}

// ComputeGini returns the Gini coefficient of the given wealths:
// with x sorted ascending, B = Σ x[i]·(N−i) / (N·Σx) and G = 1 + 1/N − 2B.
// It is NaN when there are no values or they sum to zero.
func ComputeGini(wealths []float64) float64 {
	n := len(wealths)
	if n == 0 {
		return math.NaN()
	}
	x := make([]float64, n)
	copy(x, wealths)
	sort.Float64s(x)

	sum := 0.0
	weighted := 0.0
	for i, xi := range x {
		sum += xi
		weighted += xi * float64(n-i)
	}
	if sum == 0 {
		return math.NaN()
	}
	nf := float64(n)
	b := weighted / (nf * sum)
	return 1 + 1/nf - 2*b
}

// Summarize computes the aggregates of a population. Tick is left zero.
func Summarize(population []*agents.Agent) TickMetrics {
	m := TickMetrics{
		AgentWealth: make(map[agents.AgentID]float64, len(population)),
	}
	wealths := make([]float64, 0, len(population))
	m.Wealthiest = math.Inf(-1)

	for _, a := range population {
		wealths = append(wealths, a.Wealth)
		m.AgentWealth[a.ID] = a.Wealth
		m.TotalWealth += a.Wealth
		if a.Wealth > m.Wealthiest {
			m.Wealthiest = a.Wealth
		}
		if a.Wealth > 0 {
			m.Wealthy++
		} else {
			m.NonWealthy++
		}
		m.TotalTrades += a.TradesCompleted
		m.TotalInteractions += a.Interactions
	}

	m.Gini = ComputeGini(wealths)
	if len(population) == 0 {
		m.AverageWealth = math.NaN()
		m.Wealthiest = math.NaN()
	} else {
		m.AverageWealth = m.TotalWealth / float64(len(population))
	}
	return m
}

// Series is an append-only sequence with one point per tick. NaN points mark
// ticks where the metric was undefined.
type Series struct {
	Name   string
	points []float64
}

// Append records the next point.
func (s *Series) Append(v float64) {
	s.points = append(s.points, v)
}

// Len returns the number of recorded points.
func (s *Series) Len() int {
	return len(s.points)
}

// At returns the point recorded for the i-th tick (0-based).
func (s *Series) At(i int) float64 {
	return s.points[i]
}

// Latest returns the newest point.
func (s *Series) Latest() (float64, bool) {
	if len(s.points) == 0 {
		return 0, false
	}
	return s.points[len(s.points)-1], true
}

// Values returns a copy of every point.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.points))
	copy(out, s.points)
	return out
}

// AgentSeries holds per-agent reporter series.
type AgentSeries struct {
	Wealth       []float64 `json:"wealth"`
	Trades       []float64 `json:"trades"`
	Interactions []float64 `json:"interactions"`
}

// Collector keeps every aggregate series plus per-agent wealth, trade and
// interaction series.
type Collector struct {
	series  map[string]*Series
	history []TickMetrics
	agents  map[agents.AgentID]*AgentSeries
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	c := &Collector{
		series: make(map[string]*Series, len(seriesOrder)),
		agents: make(map[agents.AgentID]*AgentSeries),
	}
	for _, name := range seriesOrder {
		c.series[name] = &Series{Name: name}
	}
	return c
}

// Collect summarizes the population for the given tick and appends one point
// to every series.
func (c *Collector) Collect(tick uint64, population []*agents.Agent) TickMetrics {
	m := Summarize(population)
	m.Tick = tick

	for _, name := range seriesOrder {
		v, _ := m.Value(name)
		c.series[name].Append(v)
	}
	for _, a := range population {
		as, ok := c.agents[a.ID]
		if !ok {
			as = &AgentSeries{}
			c.agents[a.ID] = as
		}
		as.Wealth = append(as.Wealth, a.Wealth)
		as.Trades = append(as.Trades, float64(a.TradesCompleted))
		as.Interactions = append(as.Interactions, float64(a.Interactions))
	}
	c.history = append(c.history, m)
	return m
}

// Len returns the number of collected ticks.
func (c *Collector) Len() int {
	return len(c.history)
}

// SeriesNames lists the aggregate series in a stable order.
func (c *Collector) SeriesNames() []string {
	out := make([]string, len(seriesOrder))
	copy(out, seriesOrder)
	return out
}

// Series returns the named aggregate series.
func (c *Collector) Series(name string) (*Series, bool) {
	s, ok := c.series[name]
	return s, ok
}

// Latest returns the most recent tick's metrics.
func (c *Collector) Latest() (TickMetrics, bool) {
	if len(c.history) == 0 {
		return TickMetrics{}, false
	}
	return c.history[len(c.history)-1], true
}

// History returns a copy of every collected tick.
func (c *Collector) History() []TickMetrics {
	out := make([]TickMetrics, len(c.history))
	copy(out, c.history)
	return out
}

// Agent returns a copy of one agent's reporter series.
func (c *Collector) Agent(id agents.AgentID) (AgentSeries, bool) {
	as, ok := c.agents[id]
	if !ok {
		return AgentSeries{}, false
	}
	return AgentSeries{
		Wealth:       append([]float64(nil), as.Wealth...),
		Trades:       append([]float64(nil), as.Trades...),
		Interactions: append([]float64(nil), as.Interactions...),
	}, true
}
