// Package economy implements the trading strategies agents run when they meet
// a partner on their cell. Each strategy only touches the wealth, holdings,
// price histories and counters of the two agents involved.
package economy

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/entropy"
)

// Context carries the per-trade environment: the scheduler clock (completed
// ticks) and the run's shared random stream.
type Context struct {
	Tick uint64
	RNG  *entropy.Source
}

// Handler executes one trade attempt between an initiator and its partner.
type Handler func(ctx Context, initiator, partner *agents.Agent)

var handlers = [agents.NumStrategies]Handler{
	agents.StrategyAssetTrading:  AssetTrade,
	agents.StrategyWealthTrading: WealthTrade,
	agents.StrategyMeanReversion: MeanReversionTrade,
	agents.StrategyMomentum:      MomentumTrade,
}

// HandlerFor returns the handler for a strategy.
func HandlerFor(s agents.Strategy) (Handler, bool) {
	if !s.Valid() {
		return nil, false
	}
	return handlers[s], true
}

// Trade dispatches on the initiator's strategy. The two agents must be
// distinct and share a cell; anything else is a caller bug and panics.
func Trade(ctx Context, initiator, partner *agents.Agent) {
	if initiator == partner || initiator.ID == partner.ID {
		panic(fmt.Sprintf("economy: agent %d cannot trade with itself", initiator.ID))
	}
	if initiator.Position != partner.Position {
		panic(fmt.Sprintf("economy: agents %d at %s and %d at %s are not co-located",
			initiator.ID, initiator.Position, partner.ID, partner.Position))
	}
	h, ok := HandlerFor(initiator.Strategy)
	if !ok {
		panic(fmt.Sprintf("economy: agent %d has invalid strategy %d", initiator.ID, initiator.Strategy))
	}
	h(ctx, initiator, partner)
}

// AssetTrade buys a random asset from the partner at its current price if
// the initiator can afford it.
func AssetTrade(ctx Context, initiator, partner *agents.Agent) {
	if !partner.HasAssets() {
		return
	}
	asset := entropy.Pick(ctx.RNG, partner.Assets)
	if initiator.Wealth >= asset.Price {
		transferAsset(ctx, initiator, partner, asset)
	}
}

// WealthTrade gives the partner a random whole amount in [1, wealth] when the
// partner still holds positive wealth.
func WealthTrade(ctx Context, initiator, partner *agents.Agent) {
	if partner.Wealth <= 0 {
		return
	}
	ceiling := int(math.Floor(initiator.Wealth))
	if ceiling < 1 {
		return
	}
	amount := float64(ctx.RNG.IntRange(1, ceiling))
	if initiator.Wealth < amount {
		return
	}
	partner.Wealth += amount
	initiator.Wealth -= amount
	initiator.TradesCompleted++

	slog.Debug("wealth trade",
		"tick", ctx.Tick,
		"from", initiator.ID,
		"to", partner.ID,
		"amount", amount,
	)
}

// MeanReversionTrade drifts the initiator's holdings down on drift ticks, then
// buys a random partner asset whose price has strayed from its historical
// mean by more than the initiator's threshold. An asset with no history is
// measured against a zero baseline. The traded price is recorded afterwards.
func MeanReversionTrade(ctx Context, initiator, partner *agents.Agent) {
	ApplyDrift(ctx.Tick, initiator, MeanReversionDrift)

	if !partner.HasAssets() {
		return
	}
	asset := entropy.Pick(ctx.RNG, partner.Assets)
	mean, _ := asset.MeanPrice()
	deviation := asset.Price - mean

	if math.Abs(deviation) > initiator.MeanReversionThreshold && initiator.Wealth >= asset.Price {
		transferAsset(ctx, initiator, partner, asset)
		asset.RecordPrice()
	}
}

// MomentumTrade drifts the initiator's holdings up on drift ticks, records the
// price of a random partner asset and follows its trend:
//   - up: buy it, as AssetTrade does.
//   - down: the initiator hands one of its own assets to the partner and the
//     partner pays the observed price.
//
// The down leg moves goods against the "wait out the dip" intent it was
// written for. It is kept as-is pending a product decision.
func MomentumTrade(ctx Context, initiator, partner *agents.Agent) {
	ApplyDrift(ctx.Tick, initiator, MomentumDrift)

	if !partner.HasAssets() {
		return
	}
	asset := entropy.Pick(ctx.RNG, partner.Assets)
	price := asset.Price
	asset.RecordPrice()

	switch asset.Trend() {
	case agents.TrendUp:
		if initiator.Wealth >= price {
			transferAsset(ctx, initiator, partner, asset)
		}
	case agents.TrendDown:
		if partner.Wealth >= price && initiator.HasAssets() {
			given := entropy.Pick(ctx.RNG, initiator.Assets)
			initiator.RemoveAsset(given)
			partner.AddAsset(given)
			initiator.Wealth += price
			partner.Wealth -= price
			initiator.TradesCompleted++

			slog.Debug("momentum dip trade",
				"tick", ctx.Tick,
				"seller", initiator.ID,
				"buyer", partner.ID,
				"asset", given.Name,
				"price", price,
			)
		}
	}
}

// transferAsset moves asset from seller to buyer for its current price and
// counts the trade for both sides.
func transferAsset(ctx Context, buyer, seller *agents.Agent, asset *agents.Asset) {
	if !seller.RemoveAsset(asset) {
		panic(fmt.Sprintf("economy: agent %d sold %s it does not own", seller.ID, asset.Name))
	}
	price := asset.Price
	buyer.AddAsset(asset)
	seller.Wealth += price
	buyer.Wealth -= price
	buyer.TradesCompleted++
	seller.TradesCompleted++

	slog.Debug("asset trade",
		"tick", ctx.Tick,
		"buyer", buyer.ID,
		"seller", seller.ID,
		"asset", asset.Name,
		"price", price,
	)
}
