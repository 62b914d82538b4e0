package main

import (
	"github.com/spf13/cobra"

	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Print station classifications",
	Long:  "Merges current telemetry and prints each station's rainfall, level, discharge and freshness classification. With --by-city, prints rainfall mean and median per municipality instead.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		byCity, _ := cmd.Flags().GetBool("by-city")

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		merged, err := engine.Merger.MergeStationData(cmd.Context())
		if err != nil {
			return err
		}

		summaries := make([]domain.StationSummary, 0, len(merged.Stations))
		cats := make([]domain.StationCategory, 0, len(merged.Stations))
		for _, st := range merged.Stations {
			cat := domain.CategorizeStation(st)
			cats = append(cats, cat)
			summaries = append(summaries, domain.Summarize(st, cat))
		}

		if byCity {
			return printJSON(cmd.OutOrStdout(), domain.RainfallByCity(cats))
		}
		return printJSON(cmd.OutOrStdout(), summaries)
	},
}

func init() {
	categorizeCmd.Flags().Bool("by-city", false, "group accumulated rainfall by municipality")
}
