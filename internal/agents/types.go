// Package agents provides the trading agent data model: wealth, owned assets,
// strategy tag, counters and the activity history.
package agents

import (
	"github.com/talgya/mini-market/internal/world"
)

// AgentID is a unique identifier for an agent, stable for the whole run.
type AgentID uint64

// Mood is an informational tag carried by every agent. No trading rule reads it.
type Mood uint8

// DefaultMood is the mood assigned at spawn.
const DefaultMood Mood = 1

// DefaultMeanReversionThreshold is the price deviation a MeanReversion trader
// must see before it buys.
const DefaultMeanReversionThreshold = 0.2

// Agent is a trader on the grid.
type Agent struct {
	ID AgentID `json:"id"`

	// Economic. Wealth is signed and never clamped.
	Wealth   float64  `json:"wealth"`
	Strategy Strategy `json:"strategy"`
	Assets   []*Asset `json:"assets"`

	Mood                   Mood    `json:"mood"`
	MeanReversionThreshold float64 `json:"mean_reversion_threshold"`

	// Counters.
	TradesCompleted uint64 `json:"trades_completed"`
	Interactions    uint64 `json:"interactions"`

	// Location. Kept in step with the grid's reverse index.
	Position world.Position `json:"position"`

	History *ActivityLog `json:"-"`
}

// NewAgent creates an agent holding the two starter assets: 10 Gold and
// 5 Silver, both priced at 1.
func NewAgent(id AgentID, wealth float64, strategy Strategy, historyCap int) *Agent {
	return &Agent{
		ID:       id,
		Wealth:   wealth,
		Strategy: strategy,
		Assets: []*Asset{
			NewAsset("Gold", 10, 1),
			NewAsset("Silver", 5, 1),
		},
		Mood:                   DefaultMood,
		MeanReversionThreshold: DefaultMeanReversionThreshold,
		History:                NewActivityLog(historyCap),
	}
}

// AssetNames returns the names of owned assets in ownership order.
func (a *Agent) AssetNames() []string {
	names := make([]string, len(a.Assets))
	for i, as := range a.Assets {
		names[i] = as.Name
	}
	return names
}

// HasAssets reports whether the agent owns anything.
func (a *Agent) HasAssets() bool {
	return len(a.Assets) > 0
}

// AddAsset appends an asset to the agent's holdings.
func (a *Agent) AddAsset(as *Asset) {
	a.Assets = append(a.Assets, as)
}

// RemoveAsset drops the given asset (by identity) from the holdings.
// Returns false if the agent does not own it.
func (a *Agent) RemoveAsset(as *Asset) bool {
	for i, owned := range a.Assets {
		if owned == as {
			a.Assets = append(a.Assets[:i:i], a.Assets[i+1:]...)
			return true
		}
	}
	return false
}

// Owns reports whether the agent holds the given asset.
func (a *Agent) Owns(as *Asset) bool {
	for _, owned := range a.Assets {
		if owned == as {
			return true
		}
	}
	return false
}

// SetMood replaces the agent's mood tag.
func (a *Agent) SetMood(m Mood) {
	a.Mood = m
}

// SetThreshold replaces the mean reversion threshold.
func (a *Agent) SetThreshold(threshold float64) {
	a.MeanReversionThreshold = threshold
}

// IsWealthy reports whether the agent holds positive wealth.
func (a *Agent) IsWealthy() bool {
	return a.Wealth > 0
}
