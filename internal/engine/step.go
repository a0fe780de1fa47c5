// Agent step. Each agent ticks in two fixed phases: move to a random Moore
// neighbour, then, if still wealthy, trade with a random cellmate.
package engine

import (
	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/economy"
	"github.com/talgya/mini-market/internal/entropy"
)

func (s *Simulation) stepAgent(tick uint64, a *agents.Agent) {
	s.move(tick, a)
	if a.Wealth > 0 {
		s.trade(tick, a)
	}
}

// move relocates the agent to a uniformly chosen neighbouring cell. On a
// single-cell grid there is nowhere to go and nothing is recorded.
func (s *Simulation) move(tick uint64, a *agents.Agent) {
	options := s.Grid.Neighbors(a.Position)
	if len(options) == 0 {
		return
	}
	old := a.Position
	next := entropy.Pick(s.rng, options)
	s.Grid.Move(a.ID, next)
	a.Position = next

	a.History.Append(agents.Activity{
		Tick:    tick,
		AgentID: a.ID,
		Kind:    agents.ActivityMove,
		OldPos:  old,
		NewPos:  next,
	})
}

// trade picks a random cellmate other than the agent and runs the agent's
// strategy against it.
func (s *Simulation) trade(tick uint64, a *agents.Agent) {
	cellmates := s.Grid.Occupants(a.Position)
	if len(cellmates) < 2 {
		return
	}

	partnerID := entropy.Pick(s.rng, cellmates)
	for partnerID == a.ID {
		partnerID = entropy.Pick(s.rng, cellmates)
	}
	partner := s.AgentIndex[partnerID]

	a.Interactions++
	economy.Trade(economy.Context{Tick: tick, RNG: s.rng}, a, partner)

	a.History.Append(agents.Activity{
		Tick:          tick,
		AgentID:       a.ID,
		Kind:          agents.ActivityTrade,
		OldPos:        a.Position,
		NewPos:        a.Position,
		PartnerID:     partner.ID,
		Wealth:        a.Wealth,
		PartnerWealth: partner.Wealth,
	})
}
