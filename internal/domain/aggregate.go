package domain

import (
	"cmp"
	"slices"
	"time"
)

// timedRecord pairs a record with its parsed timestamps and load position.
type timedRecord struct {
	record   TelemetricRecord
	measured time.Time
	updated  time.Time
	seq      int
}

// newestFirst orders records by measurement time descending. Equal
// measurement times put the later Data_Atualizacao first; remaining ties keep
// load order.
func newestFirst(a, b timedRecord) int {
	if c := b.measured.Compare(a.measured); c != 0 {
		return c
	}
	if c := b.updated.Compare(a.updated); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// SortNewestFirst returns records ordered by measurement time descending,
// with the tie-break used everywhere a "latest" record is chosen. Records
// whose measurement time cannot be parsed sort last in load order.
func SortNewestFirst(records []TelemetricRecord) []TelemetricRecord {
	timed := make([]timedRecord, 0, len(records))
	var undated []TelemetricRecord
	for i, rec := range records {
		measured, ok := rec.MeasuredAt()
		if !ok {
			undated = append(undated, rec)
			continue
		}
		updated, _ := rec.UpdatedAt()
		timed = append(timed, timedRecord{record: rec, measured: measured, updated: updated, seq: i})
	}
	slices.SortStableFunc(timed, newestFirst)

	out := make([]TelemetricRecord, 0, len(records))
	for _, tr := range timed {
		out = append(out, tr.record)
	}
	return append(out, undated...)
}

// AggregateByStation builds one trailing-window group per station from the
// readings loaded for w. Each station's window is anchored at its own newest
// reading, so stale stations still report their last interval of data.
// An empty pool yields an empty, non-nil map.
func AggregateByStation(readings []RawReading, w Window) map[string]HistoricalGroup {
	byStation := make(map[string][]timedRecord)
	var order []string
	for i, rd := range readings {
		if !w.Contains(rd.Record.MeasurementDate()) {
			continue
		}
		measured, ok := rd.Record.MeasuredAt()
		if !ok {
			continue
		}
		updated, _ := rd.Record.UpdatedAt()
		if _, seen := byStation[rd.Station]; !seen {
			order = append(order, rd.Station)
		}
		byStation[rd.Station] = append(byStation[rd.Station], timedRecord{
			record:   rd.Record,
			measured: measured,
			updated:  updated,
			seq:      i,
		})
	}

	groups := make(map[string]HistoricalGroup, len(byStation))
	for _, station := range order {
		groups[station] = windowGroup(byStation[station], w)
	}
	return groups
}

func windowGroup(records []timedRecord, w Window) HistoricalGroup {
	slices.SortStableFunc(records, newestFirst)

	anchor := records[0].measured
	start := anchor.Add(-w.Interval)
	n := 0
	for n < len(records) && !records[n].measured.Before(start) {
		n++
	}
	kept := records[:n]

	// Ascending view of the same kept set.
	slices.Reverse(kept)

	group := HistoricalGroup{
		Data:      w.Reference,
		Registros: make([]HistoricalRecord, 0, len(kept)),
	}
	for _, tr := range kept {
		group.Registros = append(group.Registros, tr.record.Historical())
	}
	if len(kept) > 0 {
		group.Data = kept[len(kept)-1].record.MeasurementDate()
	}
	return group
}
