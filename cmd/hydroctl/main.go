// Command hydroctl runs station pipeline operations from the shell: one-shot
// snapshot materialization, historical windows, categorization, local data
// seeding and snapshot validation.
//
// Usage:
//
//	hydroctl materialize
//	hydroctl history --date 2025-02-10 --interval 24h [--station 12345]
//	hydroctl categorize [--by-city]
//	hydroctl seed --root public/data --stations 10 --days 3
//	hydroctl validate public/data/merged/estacoes_completas_2025-02-10.json
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/hydro-telemetry-service/internal/app"
	"github.com/couchcryptid/hydro-telemetry-service/internal/config"
	"github.com/couchcryptid/hydro-telemetry-service/internal/observability"
)

var (
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	// appFs is swapped for an in-memory filesystem in tests.
	appFs afero.Fs = afero.NewOsFs()
)

var rootCmd = &cobra.Command{
	Use:           "hydroctl",
	Short:         "Station telemetry pipeline operations",
	Long:          "Materializes snapshots, queries historical windows and categorizations, and seeds or validates local data trees.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = observability.NewLoggerTo(cmd.ErrOrStderr(), cfg)
		metrics = observability.NewMetricsForTesting()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(materializeCmd, historyCmd, categorizeCmd, seedCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newEngine() (*app.Engine, error) {
	return app.NewWithFs(appFs, cfg, logger, metrics)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
