// Package engine provides the tick-based simulation loop, the per-agent step,
// the random-activation scheduler and aggregate metrics.
package engine

import (
	"context"
	"log/slog"
	"time"
)

// Engine drives a simulation forward one tick at a time. Cancellation is
// checked between ticks only; a tick always runs to completion.
type Engine struct {
	Tick        uint64        // Completed ticks
	MaxTicks    uint64        // Stop after this many ticks (0 = run until cancelled)
	Interval    time.Duration // Minimum wall time per tick (0 = as fast as possible)
	ReportEvery uint64        // Ticks between OnReport calls (0 = never)

	OnTick   func(tick uint64) // Every tick
	OnReport func(tick uint64) // Every ReportEvery ticks
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		ReportEvery: 10,
	}
}

// Run steps until MaxTicks is reached or ctx is cancelled. It returns
// ctx.Err() when cancelled and nil when the tick budget is used up.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("simulation engine started", "tick", e.Tick, "max_ticks", e.MaxTicks, "interval", e.Interval)

	for e.MaxTicks == 0 || e.Tick < e.MaxTicks {
		if err := ctx.Err(); err != nil {
			slog.Info("simulation engine stopped", "tick", e.Tick, "reason", err)
			return err
		}

		start := time.Now()
		e.step()

		if e.Interval <= 0 {
			continue
		}
		// Sleep for the remainder of the tick interval.
		if wait := e.Interval - time.Since(start); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}

	slog.Info("simulation engine finished", "tick", e.Tick)
	return nil
}

// step advances the simulation by one tick.
func (e *Engine) step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}

	if e.ReportEvery > 0 && e.Tick%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(e.Tick)
	}
}
