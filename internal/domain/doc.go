// Package domain models telemetry from the ANA HidroWeb network of
// hydrometeorological stations: static inventory, per-day readings, trailing
// windows, and the threshold classifications dashboards display.
//
// # Data Source
//
// The upstream collector downloads each station's readings once per day and
// stores them as one JSON document per (station, day):
//
//	<root>/YYYY/MM/YYYY-MM-DD/codigoestacao_<code>.json
//	{"codigoestacao": "12345678", "data": "2025-02-10", "dados": [ ... ]}
//
// The station inventory is a single JSON array (inventario_estacoes.json)
// with one object per station, keyed by codigoestacao.
//
// # HidroWeb Data Conventions
//
// Timestamps:
//
//	Data_Hora_Medicao and Data_Atualizacao are "YYYY-MM-DD HH:MM:SS.f" in
//	local Sao Paulo time with no offset. They are parsed in
//	[OperationalTimezone]; "today" and "yesterday" are computed there too,
//	never in the host's zone.
//
// Values:
//
//	Chuva_Adotada (mm), Cota_Adotada (cm) and Vazao_Adotada (m³/s) arrive as
//	numbers, quoted numbers, or null depending on the payload. They are kept
//	verbatim as [Value] and parsed on demand so snapshots reproduce the
//	source bytes.
//
// # Windows
//
// A historical request names an interval (2, 6, 12, 24 or 48 hours) and a
// reference date. Intervals under a day read only the reference day; 24h adds
// the previous day and 48h the two previous days. Each station's window is
// anchored at its own newest reading, not at the reference date or the wall
// clock, so a stale station still reports its last interval of data.
//
// When two readings share a measurement time, the one with the later
// Data_Atualizacao is treated as newer; remaining ties keep load order.
//
// # Classification
//
//	Rainfall (24h total ending at the latest reading, upper bounds inclusive):
//	  null Indefinido | 0 Sem Chuva | ≤5 Fraca | ≤29 Moderada | ≤59 Forte |
//	  ≤99 Muito Forte | >99 Extrema
//	Level:     <400 Baixo | ≤450 Normal | >450 Alto
//	Discharge: <30 Baixa | ≤35 Normal | >35 Alta
//	Freshness: latest reading at most 12h old is Atualizado
//
// Rainfall totals are summed as exact decimals and rounded half-up to two
// places for display only.
package domain
