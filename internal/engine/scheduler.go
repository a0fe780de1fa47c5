package engine

import (
	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/entropy"
)

// Scheduler activates every agent exactly once per tick in a fresh random
// order. Agents stepped earlier in a tick can change the state of agents not
// yet stepped; that is the intended random-activation behaviour.
type Scheduler struct {
	rng  *entropy.Source
	time uint64 // completed ticks
}

// NewScheduler creates a scheduler drawing activation order from rng.
func NewScheduler(rng *entropy.Source) *Scheduler {
	return &Scheduler{rng: rng}
}

// Time returns the number of completed ticks.
func (s *Scheduler) Time() uint64 {
	return s.time
}

// Tick steps the population once. step receives the clock as it was when the
// tick began, so the first tick runs at time 0.
func (s *Scheduler) Tick(population []*agents.Agent, step func(tick uint64, a *agents.Agent)) {
	order := s.rng.Perm(len(population))
	for _, i := range order {
		step(s.time, population[i])
	}
	s.time++
}
