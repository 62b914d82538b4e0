package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
)

var (
	seedRivers = []string{"RIO ITAJAÍ-AÇU", "RIO DO PEIXE", "RIO URUGUAI", "RIO TUBARÃO", ""}
	seedCities = []string{"Blumenau", "Joaçaba", "Chapecó", "Tubarão", "Florianópolis"}
)

type seedOptions struct {
	Stations int
	Days     int
	End      time.Time
	Step     time.Duration
	Seed     uint64
}

// stationDay is one generated (station, day) document.
type stationDay struct {
	Code string
	Day  string
	Doc  domain.StationDocument
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write a deterministic mock data tree",
	Long:  "Generates an inventory plus YYYY/MM/YYYY-MM-DD/codigoestacao_<code>.json documents under DATA_ROOT so the service can run without upstream access. The same flags always produce the same tree.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := seedOptions{}
		opts.Stations, _ = cmd.Flags().GetInt("stations")
		opts.Days, _ = cmd.Flags().GetInt("days")
		opts.Step, _ = cmd.Flags().GetDuration("step")
		opts.Seed, _ = cmd.Flags().GetUint64("seed")
		end, _ := cmd.Flags().GetString("end")

		if opts.Stations <= 0 || opts.Days <= 0 || opts.Step <= 0 {
			return fmt.Errorf("--stations, --days and --step must be positive")
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		if end == "" {
			end, _ = domain.OperationalDays(domain.Now(), engine.Location)
		}
		// Readings are written in the upstream zone.
		endDay, err := time.ParseInLocation(domain.DateLayout, end, domain.Location())
		if err != nil {
			return fmt.Errorf("invalid --end %q: %w", end, err)
		}
		opts.End = endDay

		inv, days := generateTree(opts)
		if err := engine.Store.WriteInventory(cmd.Context(), inv); err != nil {
			return err
		}
		for _, d := range days {
			if err := engine.Store.WriteStationDay(cmd.Context(), d.Code, d.Day, d.Doc); err != nil {
				return err
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d stations, %d station-day files under %s\n", len(inv), len(days), cfg.DataRoot)
		return nil
	},
}

func init() {
	seedCmd.Flags().Int("stations", 10, "number of inventory stations")
	seedCmd.Flags().Int("days", 3, "number of days ending at --end")
	seedCmd.Flags().String("end", "", "last day YYYY-MM-DD (default: today in the operational timezone)")
	seedCmd.Flags().Duration("step", 15*time.Minute, "spacing between readings")
	seedCmd.Flags().Uint64("seed", 1, "random seed")
}

// generateTree builds the inventory and every station-day document. Station
// i gets code 10000+i; every seventh station has no telemetry at all.
func generateTree(opts seedOptions) ([]domain.StationInventory, []stationDay) {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	inv := make([]domain.StationInventory, 0, opts.Stations)
	var days []stationDay
	for i := range opts.Stations {
		code := strconv.Itoa(10000 + i)
		inv = append(inv, domain.StationInventory{
			CodigoEstacao: domain.StringValue(code),
			EstacaoNome:   domain.StringValue(fmt.Sprintf("ESTAÇÃO %02d", i+1)),
			RioNome:       domain.StringValue(seedRivers[i%len(seedRivers)]),
			MunicipioNome: domain.StringValue(seedCities[i%len(seedCities)]),
			Latitude:      domain.NumberValue(round(-26.9-rng.Float64(), 4)),
			Longitude:     domain.NumberValue(round(-49.1-rng.Float64(), 4)),
			UFEstacao:     domain.StringValue("SC"),
			TipoEstacao:   domain.StringValue("Telemetrica"),
			Operando:      domain.StringValue("1"),
		})
		if i%7 == 6 {
			continue
		}

		level := 380 + rng.Float64()*90
		discharge := 25 + rng.Float64()*15
		for d := opts.Days - 1; d >= 0; d-- {
			day := opts.End.AddDate(0, 0, -d)
			dayStr := day.Format(domain.DateLayout)
			doc := domain.StationDocument{
				CodigoEstacao: domain.StringValue(code),
				Data:          domain.StringValue(dayStr),
				Dados:         []domain.TelemetricRecord{},
			}
			for t := day; t.Before(day.AddDate(0, 0, 1)); t = t.Add(opts.Step) {
				level += rng.NormFloat64() * 2
				discharge = math.Max(0, discharge+rng.NormFloat64()*0.5)
				rain := 0.0
				if rng.Float64() < 0.2 {
					rain = round(rng.ExpFloat64()*1.5, 1)
				}
				doc.Dados = append(doc.Dados, domain.TelemetricRecord{
					ChuvaAdotada:    domain.NumberValue(rain),
					CotaAdotada:     domain.NumberValue(round(level, 1)),
					VazaoAdotada:    domain.NumberValue(round(discharge, 2)),
					DataHoraMedicao: domain.StringValue(t.Format(domain.MeasurementLayout) + ".0"),
					DataAtualizacao: domain.StringValue(t.Add(5*time.Minute).Format(domain.MeasurementLayout) + ".0"),
				})
			}
			days = append(days, stationDay{Code: code, Day: dayStr, Doc: doc})
		}
	}
	return inv, days
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
