// Command marketsim runs the spatial multi-agent trading simulation.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/mini-market/internal/agents"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("marketsim failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "marketsim",
		Short: "Spatial multi-agent trading simulation",
		Long: `marketsim places trading agents on a bounded grid. Every tick each agent
moves to a random neighbouring cell and trades with a random cellmate using
one of four strategies, and wealth-distribution metrics are collected.

Examples:
  marketsim run --agents 50 --width 10 --height 10 --strategy momentum --ticks 500
  marketsim run --config marketsim.yaml --db runs.db --serve
  marketsim strategies`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newStrategiesCommand())

	return rootCmd
}

func newStrategiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the trading strategies",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, s := range agents.Strategies() {
				fmt.Fprintln(cmd.OutOrStdout(), s.String())
			}
		},
	}
}
