package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/api"
	"github.com/talgya/mini-market/internal/config"
	"github.com/talgya/mini-market/internal/engine"
	"github.com/talgya/mini-market/internal/persistence"
	"github.com/talgya/mini-market/internal/telemetry"
)

type runFlags struct {
	configPath string
	agents     int
	width      int
	height     int
	strategy   string
	wealth     float64
	seed       int64
	ticks      uint64
	dbPath     string
	serve      bool
	addr       string
	logLevel   string
}

func newRunCommand() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(f.configPath)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			return runSimulation(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "Path to a YAML config file")
	flags.IntVarP(&f.agents, "agents", "n", config.DefaultAgents, "Number of agents")
	flags.IntVar(&f.width, "width", config.DefaultWidth, "Grid width")
	flags.IntVar(&f.height, "height", config.DefaultHeight, "Grid height")
	flags.StringVarP(&f.strategy, "strategy", "s", agents.StrategyAssetTrading.String(), "Trading strategy (see 'marketsim strategies')")
	flags.Float64Var(&f.wealth, "wealth", config.DefaultInitialWealth, "Initial wealth per agent")
	flags.Int64Var(&f.seed, "seed", 0, "Random seed (0 = random)")
	flags.Uint64Var(&f.ticks, "ticks", config.DefaultTicks, "Ticks to run")
	flags.StringVar(&f.dbPath, "db", "", "SQLite file to export the run to")
	flags.BoolVar(&f.serve, "serve", false, "Serve the observation API and keep it up after the run")
	flags.StringVar(&f.addr, "addr", config.DefaultAPIAddr, "Observation API listen address")
	flags.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	return cmd
}

// apply overrides configuration with every flag set on the command line.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("agents") {
		cfg.Simulation.Agents = f.agents
	}
	if flags.Changed("width") {
		cfg.Simulation.Width = f.width
	}
	if flags.Changed("height") {
		cfg.Simulation.Height = f.height
	}
	if flags.Changed("strategy") {
		cfg.Simulation.Strategy = f.strategy
	}
	if flags.Changed("wealth") {
		cfg.Simulation.InitialWealth = f.wealth
	}
	if flags.Changed("seed") {
		cfg.Simulation.Seed = f.seed
	}
	if flags.Changed("ticks") {
		cfg.Simulation.Ticks = f.ticks
	}
	if flags.Changed("db") {
		cfg.Persistence.Path = f.dbPath
	}
	if flags.Changed("serve") {
		cfg.API.Enabled = f.serve
	}
	if flags.Changed("addr") {
		cfg.API.Addr = f.addr
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func runSimulation(parent context.Context, cfg *config.Config, out io.Writer) error {
	slog.SetDefault(config.NewLogger(cfg.Logging, os.Stderr))

	params, err := cfg.Params()
	if err != nil {
		return err
	}
	sim, err := engine.NewSimulation(params)
	if err != nil {
		return fmt.Errorf("create simulation: %w", err)
	}

	gauges, err := telemetry.NewCollector()
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// ── Export sink ───────────────────────────────────────────────────
	var (
		db      *persistence.DB
		runID   string
		pending []agents.Activity
	)
	if cfg.Persistence.Path != "" {
		db, err = persistence.Open(cfg.Persistence.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		slog.Info("database opened", "path", cfg.Persistence.Path)

		runID, err = db.CreateRun(sim.Params())
		if err != nil {
			return err
		}
		sim.SetActivitySink(func(act agents.Activity) {
			pending = append(pending, act)
		})
	}

	// ── Engine ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub()
	}

	eng := engine.NewEngine()
	eng.MaxTicks = cfg.Simulation.Ticks
	eng.Interval = cfg.Simulation.Interval
	eng.ReportEvery = cfg.Simulation.ReportEvery

	var exportErr error
	eng.OnTick = func(tick uint64) {
		sim.Step()
		m, _ := sim.LatestMetrics()
		gauges.Observe(m)
		if hub != nil {
			hub.Publish(m)
		}
		if db == nil {
			return
		}
		if err := db.SaveTickMetrics(runID, m); err != nil {
			exportErr = fmt.Errorf("save tick %d: %w", tick, err)
			cancel()
			return
		}
		if err := db.SaveActivities(runID, pending); err != nil {
			exportErr = fmt.Errorf("save activities at tick %d: %w", tick, err)
			cancel()
			return
		}
		pending = pending[:0]
	}
	eng.OnReport = func(tick uint64) {
		m, _ := sim.LatestMetrics()
		slog.Info("market report",
			"tick", tick,
			"gini", m.Gini,
			"total_wealth", m.TotalWealth,
			"wealthy", m.Wealthy,
			"non_wealthy", m.NonWealthy,
			"trades", m.TotalTrades,
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	g.Go(func() error {
		err := eng.Run(gctx)
		if hub == nil {
			stopServer()
		} else if err == nil {
			slog.Info("run complete, API still serving (Ctrl+C to stop)", "addr", cfg.API.Addr)
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if cfg.API.Enabled {
		server := &api.Server{
			Sim:            sim,
			Eng:            eng,
			Metrics:        gauges,
			Hub:            hub,
			Addr:           cfg.API.Addr,
			AllowedOrigins: cfg.API.AllowedOrigins,
			StreamRate:     cfg.API.StreamRate,
		}
		g.Go(func() error {
			return server.Run(serverCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if exportErr != nil {
		return exportErr
	}

	// ── Final export ──────────────────────────────────────────────────
	if db != nil {
		if err := db.SaveActivities(runID, pending); err != nil {
			return fmt.Errorf("save activities: %w", err)
		}
		if err := db.SaveAgents(runID, sim.AgentSnapshots()); err != nil {
			return fmt.Errorf("save agents: %w", err)
		}
		if err := db.FinishRun(runID, sim.CurrentTick()); err != nil {
			return err
		}
		slog.Info("run exported", "run_id", runID, "path", cfg.Persistence.Path)
	}

	printSummary(out, sim)
	return nil
}

func printSummary(out io.Writer, sim *engine.Simulation) {
	p := sim.Params()
	m := sim.Current()

	fmt.Fprintf(out, "\n%s, %d agents on a %dx%d grid, seed %d\n",
		p.Strategy, p.Agents, p.Width, p.Height, p.Seed)
	if clamped, requested := sim.Clamped(); clamped {
		fmt.Fprintf(out, "  (requested %d agents, reduced to fit the grid)\n", requested)
	}
	fmt.Fprintf(out, "  ticks:         %s\n", humanize.Comma(int64(m.Tick)))
	fmt.Fprintf(out, "  total wealth:  %s\n", humanize.CommafWithDigits(m.TotalWealth, 2))
	fmt.Fprintf(out, "  wealthiest:    %s\n", humanize.CommafWithDigits(m.Wealthiest, 2))
	fmt.Fprintf(out, "  wealthy:       %d of %d\n", m.Wealthy, m.Wealthy+m.NonWealthy)
	fmt.Fprintf(out, "  gini:          %s\n", formatGini(m.Gini))
	fmt.Fprintf(out, "  trades:        %s\n", humanize.Comma(int64(m.TotalTrades)))
	fmt.Fprintf(out, "  interactions:  %s\n", humanize.Comma(int64(m.TotalInteractions)))
}

func formatGini(g float64) string {
	if math.IsNaN(g) {
		return "undefined"
	}
	return fmt.Sprintf("%.4f", g)
}
