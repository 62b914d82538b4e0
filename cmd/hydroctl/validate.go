package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

var errValidationFailed = errors.New("snapshot validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate [snapshot.json]",
	Short: "Check a snapshot file's structural invariants",
	Long:  "Loads a materialized snapshot (default: today's) and verifies station identity, newest-first reading order, the latest-reading fields and the 24h history window of every station.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		p := ""
		if len(args) == 1 {
			p = args[0]
		} else {
			today, _ := domain.OperationalDays(domain.Now(), engine.Location)
			p = engine.Store.SnapshotPath(today)
		}

		stations, err := engine.Store.LoadSnapshot(cmd.Context(), p)
		if err != nil {
			return err
		}

		phases := validateSnapshot(stations)
		if !report(cmd.OutOrStdout(), p, len(stations), phases) {
			return errValidationFailed
		}
		return nil
	},
}

func validateSnapshot(stations []domain.SnapshotStation) []*phase {
	return []*phase{
		validateIdentity(stations),
		validateReadingOrder(stations),
		validateHistoryWindow(stations),
	}
}

func validateIdentity(stations []domain.SnapshotStation) *phase {
	p := &phase{name: "Station identity"}
	seen := make(map[string]int, len(stations))
	for i, st := range stations {
		code := st.Code()
		if code == "" {
			p.errorf("station[%d]: empty codigoestacao", i)
			continue
		}
		if prev, dup := seen[code]; dup {
			p.errorf("station %s: duplicated at positions %d and %d", code, prev, i)
		}
		seen[code] = i
		if _, err := time.Parse(domain.DateLayout, st.Data); err != nil {
			p.errorf("station %s: invalid data %q", code, st.Data)
		}
		if st.Dados == nil {
			p.errorf("station %s: dados is null", code)
		}
		if st.HistoricoChuva24h == nil {
			p.errorf("station %s: historicoChuva24h is null", code)
		}
	}
	return p
}

func validateReadingOrder(stations []domain.SnapshotStation) *phase {
	p := &phase{name: "Newest-first readings"}
	for _, st := range stations {
		code := st.Code()
		if len(st.Dados) == 0 {
			if !st.DataHoraMedicao.IsNull() || !st.DataAtualizacao.IsNull() {
				p.errorf("station %s: no readings but latest timestamps are set", code)
			}
			continue
		}
		if st.DataHoraMedicao.Text() != st.Dados[0].DataHoraMedicao.Text() {
			p.errorf("station %s: Data_Hora_Medicao %q != dados[0] %q",
				code, st.DataHoraMedicao.Text(), st.Dados[0].DataHoraMedicao.Text())
		}
		if st.DataAtualizacao.Text() != st.Dados[0].DataAtualizacao.Text() {
			p.errorf("station %s: Data_Atualizacao %q != dados[0] %q",
				code, st.DataAtualizacao.Text(), st.Dados[0].DataAtualizacao.Text())
		}
		var prev time.Time
		for i, r := range st.Dados {
			t, ok := r.MeasuredAt()
			if !ok {
				continue
			}
			if i > 0 && !prev.IsZero() && t.After(prev) {
				p.errorf("station %s: dados[%d] %s is newer than its predecessor", code, i, r.DataHoraMedicao.Text())
			}
			prev = t
		}
	}
	return p
}

func validateHistoryWindow(stations []domain.SnapshotStation) *phase {
	p := &phase{name: "24h history window"}
	for _, st := range stations {
		code := st.Code()
		hist := st.HistoricoChuva24h
		if len(hist) == 0 {
			continue
		}
		last, ok := domain.ParseTimestamp(hist[len(hist)-1].DataHoraMedicao.Text())
		if !ok {
			p.errorf("station %s: unparseable anchor %q", code, hist[len(hist)-1].DataHoraMedicao.Text())
			continue
		}
		var prev time.Time
		for i, r := range hist {
			t, ok := domain.ParseTimestamp(r.DataHoraMedicao.Text())
			if !ok {
				p.errorf("station %s: historico[%d] unparseable %q", code, i, r.DataHoraMedicao.Text())
				continue
			}
			if last.Sub(t) > domain.RainfallWindow {
				p.errorf("station %s: historico[%d] %s is more than 24h before %s",
					code, i, r.DataHoraMedicao.Text(), hist[len(hist)-1].DataHoraMedicao.Text())
			}
			if !prev.IsZero() && t.Before(prev) {
				p.errorf("station %s: historico[%d] is older than its predecessor", code, i)
			}
			prev = t
		}
	}
	return p
}

func report(w io.Writer, path string, stations int, phases []*phase) bool {
	fmt.Fprintf(w, "=== Snapshot Validation: %s ===\n\n", path)

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-32s %s\n", p.name, status)
	}
	fmt.Fprintf(w, "\nStations: %d\n", stations)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
	} else {
		fmt.Fprintln(w, "\nValidation FAILED.")
	}
	return allPassed
}
