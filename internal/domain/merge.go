package domain

// MergeTelemetry joins an inventory entry with the telemetry documents for
// today and yesterday. Either document may be nil. The station is always
// returned: without telemetry it carries an empty reading list and null
// latest fields.
func MergeTelemetry(inv StationInventory, today string, todayDoc, yesterdayDoc *StationDocument) MergedStation {
	var records []TelemetricRecord
	if yesterdayDoc != nil {
		records = append(records, yesterdayDoc.Dados...)
	}
	if todayDoc != nil {
		records = append(records, todayDoc.Dados...)
	}

	merged := MergedStation{
		StationInventory: inv,
		Data:             today,
		Dados:            SortNewestFirst(records),
	}
	if len(merged.Dados) > 0 {
		merged.DataHoraMedicao = merged.Dados[0].DataHoraMedicao
		merged.DataAtualizacao = merged.Dados[0].DataAtualizacao
	}
	return merged
}

// BuildSnapshot combines merged stations with their 24h historical groups
// into the persisted snapshot shape. Stations absent from history get an
// empty history list.
func BuildSnapshot(stations []MergedStation, history map[string]HistoricalGroup) []SnapshotStation {
	out := make([]SnapshotStation, 0, len(stations))
	for _, st := range stations {
		hist := []HistoricalRecord{}
		if g, ok := history[st.Code()]; ok && g.Registros != nil {
			hist = g.Registros
		}
		out = append(out, SnapshotStation{
			StationInventory:  st.StationInventory,
			Data:              st.Data,
			Dados:             st.Dados,
			HistoricoChuva24h: hist,
			DataHoraMedicao:   st.DataHoraMedicao,
			DataAtualizacao:   st.DataAtualizacao,
		})
	}
	return out
}
