// Simulation ties together the grid, the agent population, the scheduler and
// the metrics collector, and answers the queries the observation layer needs.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/entropy"
	"github.com/talgya/mini-market/internal/world"
)

// ErrInvalidParams is returned for a population or grid size below one.
var ErrInvalidParams = errors.New("invalid simulation parameters")

// Params configures a run.
type Params struct {
	Agents          int             `json:"agents"`
	Width           int             `json:"width"`
	Height          int             `json:"height"`
	Strategy        agents.Strategy `json:"strategy"`
	InitialWealth   float64         `json:"initial_wealth"`
	Seed            int64           `json:"seed"` // 0 = random
	HistoryCapacity int             `json:"history_capacity"`
}

// Validate checks the sizes and the strategy tag.
func (p Params) Validate() error {
	if p.Agents < 1 {
		return fmt.Errorf("%w: agents=%d", ErrInvalidParams, p.Agents)
	}
	if p.Width < 1 || p.Height < 1 {
		return fmt.Errorf("%w: grid %dx%d", ErrInvalidParams, p.Width, p.Height)
	}
	if !p.Strategy.Valid() {
		return fmt.Errorf("%w: %d", agents.ErrUnknownStrategy, uint8(p.Strategy))
	}
	return nil
}

// Simulation holds the complete run state. Step and the query methods are
// safe to call from different goroutines.
type Simulation struct {
	mu sync.RWMutex

	params     Params
	Grid       *world.Grid[agents.AgentID]
	Agents     []*agents.Agent
	AgentIndex map[agents.AgentID]*agents.Agent

	rng       *entropy.Source
	scheduler *Scheduler
	metrics   *Collector

	requested int  // agent count asked for
	clamped   bool // requested exceeded the cell count
}

// NewSimulation builds the population and places every agent on its own
// random empty cell. More agents than cells are clamped to the cell count.
func NewSimulation(p Params) (*Simulation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	rng := entropy.New(p.Seed)
	p.Seed = rng.Seed()

	grid := world.NewGrid[agents.AgentID](p.Width, p.Height)
	requested := p.Agents
	clamped := false
	if p.Agents > grid.Cells() {
		slog.Warn("more agents than cells, reducing population",
			"requested", p.Agents,
			"cells", grid.Cells(),
		)
		p.Agents = grid.Cells()
		clamped = true
	}

	spawner := agents.NewSpawner(agents.SpawnConfig{
		InitialWealth:   p.InitialWealth,
		Strategy:        p.Strategy,
		HistoryCapacity: p.HistoryCapacity,
	})
	population := spawner.SpawnPopulation(p.Agents)

	index := make(map[agents.AgentID]*agents.Agent, len(population))
	for _, a := range population {
		index[a.ID] = a
		pos := world.Position{X: rng.Intn(p.Width), Y: rng.Intn(p.Height)}
		for !grid.IsEmpty(pos) {
			pos = world.Position{X: rng.Intn(p.Width), Y: rng.Intn(p.Height)}
		}
		grid.Place(a.ID, pos)
		a.Position = pos
	}

	sim := &Simulation{
		params:     p,
		Grid:       grid,
		Agents:     population,
		AgentIndex: index,
		rng:        rng,
		scheduler:  NewScheduler(rng),
		metrics:    NewCollector(),
		requested:  requested,
		clamped:    clamped,
	}

	slog.Info("simulation created",
		"agents", len(population),
		"grid", grid.String(),
		"strategy", p.Strategy.String(),
		"initial_wealth", p.InitialWealth,
		"seed", p.Seed,
	)
	return sim, nil
}

// Step advances the simulation by one tick: every agent steps once in random
// order, then one point is appended to every metric series.
func (s *Simulation) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduler.Tick(s.Agents, s.stepAgent)
	m := s.metrics.Collect(s.scheduler.Time(), s.Agents)

	slog.Debug("tick complete",
		"tick", m.Tick,
		"gini", m.Gini,
		"total_wealth", m.TotalWealth,
		"trades", m.TotalTrades,
	)
}

// CurrentTick returns the number of completed ticks.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduler.Time()
}

// Params returns the effective parameters: the clamped agent count and the
// seed actually used.
func (s *Simulation) Params() Params {
	return s.params
}

// Clamped reports whether the requested population was reduced, and the
// count originally requested.
func (s *Simulation) Clamped() (bool, int) {
	return s.clamped, s.requested
}

// SetActivitySink forwards every activity any agent records to sink. Call it
// before the first Step.
func (s *Simulation) SetActivitySink(sink func(agents.Activity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.Agents {
		a.History.SetSink(sink)
	}
}

// CheckInvariants verifies grid occupancy against every agent's recorded
// position.
func (s *Simulation) CheckInvariants() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.Grid.Verify(); err != nil {
		return err
	}
	if s.Grid.Len() != len(s.Agents) {
		return fmt.Errorf("grid holds %d agents, population is %d", s.Grid.Len(), len(s.Agents))
	}
	for _, a := range s.Agents {
		pos, ok := s.Grid.PositionOf(a.ID)
		if !ok {
			return fmt.Errorf("agent %d is not on the grid", a.ID)
		}
		if pos != a.Position {
			return fmt.Errorf("agent %d records %s but grid has %s", a.ID, a.Position, pos)
		}
	}
	return nil
}

// Current computes the aggregates of the live population. Tick is the
// number of completed ticks.
func (s *Simulation) Current() TickMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := Summarize(s.Agents)
	m.Tick = s.scheduler.Time()
	return m
}

// WealthiestAgent returns the highest wealth held by any agent.
func (s *Simulation) WealthiestAgent() float64 {
	return s.Current().Wealthiest
}

// TotalWealth returns the sum of all agents' wealth.
func (s *Simulation) TotalWealth() float64 {
	return s.Current().TotalWealth
}

// AverageWealth returns the mean wealth per agent.
func (s *Simulation) AverageWealth() float64 {
	return s.Current().AverageWealth
}

// Gini returns the current Gini coefficient, NaN when undefined.
func (s *Simulation) Gini() float64 {
	return s.Current().Gini
}

// WealthyCount returns how many agents hold positive wealth.
func (s *Simulation) WealthyCount() int {
	return s.Current().Wealthy
}

// NonWealthyCount returns how many agents hold zero or negative wealth.
func (s *Simulation) NonWealthyCount() int {
	return s.Current().NonWealthy
}

// TotalTrades returns the sum of completed trades over all agents.
func (s *Simulation) TotalTrades() uint64 {
	return s.Current().TotalTrades
}

// TotalInteractions returns the sum of interactions over all agents.
func (s *Simulation) TotalInteractions() uint64 {
	return s.Current().TotalInteractions
}

// LatestMetrics returns the metrics collected at the end of the last tick.
func (s *Simulation) LatestMetrics() (TickMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics.Latest()
}

// MetricsHistory returns every collected tick in order.
func (s *Simulation) MetricsHistory() []TickMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics.History()
}

// SeriesNames lists the queryable aggregate series.
func (s *Simulation) SeriesNames() []string {
	return s.metrics.SeriesNames()
}

// SeriesValues returns a copy of the named aggregate series.
func (s *Simulation) SeriesValues(name string) ([]float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series, ok := s.metrics.Series(name)
	if !ok {
		return nil, false
	}
	return series.Values(), true
}

// AgentSeries returns one agent's wealth, trade and interaction series.
func (s *Simulation) AgentSeries(id agents.AgentID) (AgentSeries, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics.Agent(id)
}

// Snapshot is a read-only copy of one agent's state.
type Snapshot struct {
	ID                     agents.AgentID    `json:"id"`
	Wealth                 float64           `json:"wealth"`
	Position               world.Position    `json:"position"`
	Assets                 []agents.Asset    `json:"assets"`
	Strategy               agents.Strategy   `json:"strategy"`
	Mood                   agents.Mood       `json:"mood"`
	MeanReversionThreshold float64           `json:"mean_reversion_threshold"`
	TradesCompleted        uint64            `json:"trades_completed"`
	Interactions           uint64            `json:"interactions"`
	RecentActivity         []agents.Activity `json:"recent_activity,omitempty"`
}

func snapshotOf(a *agents.Agent, recent int) Snapshot {
	assets := make([]agents.Asset, len(a.Assets))
	for i, as := range a.Assets {
		assets[i] = *as
		assets[i].PriceHistory = append([]float64(nil), as.PriceHistory...)
	}
	return Snapshot{
		ID:                     a.ID,
		Wealth:                 a.Wealth,
		Position:               a.Position,
		Assets:                 assets,
		Strategy:               a.Strategy,
		Mood:                   a.Mood,
		MeanReversionThreshold: a.MeanReversionThreshold,
		TradesCompleted:        a.TradesCompleted,
		Interactions:           a.Interactions,
		RecentActivity:         a.History.Recent(recent),
	}
}

// AgentSnapshot returns a copy of one agent's state including its most recent
// activity records.
func (s *Simulation) AgentSnapshot(id agents.AgentID) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.AgentIndex[id]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotOf(a, 20), true
}

// AgentSnapshots returns a copy of every agent's state, in ID order, without
// activity records.
func (s *Simulation) AgentSnapshots() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, len(s.Agents))
	for i, a := range s.Agents {
		out[i] = snapshotOf(a, 0)
	}
	return out
}
