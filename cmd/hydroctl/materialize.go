package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var materializeCmd = &cobra.Command{
	Use:   "materialize",
	Short: "Build and write today's snapshot once",
	Long:  "Merges the inventory with today's and yesterday's telemetry, attaches each station's 24h rainfall history and writes the dated snapshot file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		p, err := engine.Materializer.Materialize(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}
