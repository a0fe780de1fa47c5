// Agent spawning: creates the initial population with sequential IDs,
// identical starting wealth and the run's strategy.
package agents

// SpawnConfig controls initial population generation.
type SpawnConfig struct {
	InitialWealth   float64
	Strategy        Strategy
	HistoryCapacity int
}

// Spawner creates agents for the simulation.
type Spawner struct {
	cfg    SpawnConfig
	nextID AgentID
}

// NewSpawner creates an agent spawner. IDs start at 0.
func NewSpawner(cfg SpawnConfig) *Spawner {
	return &Spawner{cfg: cfg}
}

// SpawnPopulation creates count agents.
func (s *Spawner) SpawnPopulation(count int) []*Agent {
	agents := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		agents = append(agents, s.spawnOne())
	}
	return agents
}

func (s *Spawner) spawnOne() *Agent {
	id := s.nextID
	s.nextID++
	return NewAgent(id, s.cfg.InitialWealth, s.cfg.Strategy, s.cfg.HistoryCapacity)
}
