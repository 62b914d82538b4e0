package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print per-station historical windows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		date, _ := cmd.Flags().GetString("date")
		token, _ := cmd.Flags().GetString("interval")
		station, _ := cmd.Flags().GetString("station")

		interval, err := domain.ParseInterval(token)
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		if date == "" {
			date, _ = domain.OperationalDays(domain.Now(), engine.Location)
		}

		groups, err := engine.History.GetHistoricalStationData(cmd.Context(), interval, date)
		if err != nil {
			return err
		}
		if station == "" {
			return printJSON(cmd.OutOrStdout(), groups)
		}
		group, ok := groups[station]
		if !ok {
			return fmt.Errorf("no data for station %s in the %dh window ending %s", station, interval, date)
		}
		return printJSON(cmd.OutOrStdout(), group)
	},
}

func init() {
	historyCmd.Flags().String("date", "", "reference date YYYY-MM-DD (default: today in the operational timezone)")
	historyCmd.Flags().String("interval", "24h", "window length: 2h, 6h, 12h, 24h or 48h")
	historyCmd.Flags().String("station", "", "only print this station code")
}
