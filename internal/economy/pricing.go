package economy

import "github.com/talgya/mini-market/internal/agents"

// Synthetic price walk applied by the price-aware strategies. Every
// DriftInterval ticks a trader nudges the price of everything it owns.
const (
	DriftInterval      = 10
	MeanReversionDrift = -0.1
	MomentumDrift      = 0.05
)

// ApplyDrift shifts the price of every asset the agent owns by delta when
// tick falls on a drift boundary (tick 0 included). Reports whether it fired.
func ApplyDrift(tick uint64, a *agents.Agent, delta float64) bool {
	if tick%DriftInterval != 0 {
		return false
	}
	for _, as := range a.Assets {
		as.Drift(delta)
	}
	return true
}
