package domain

import (
	"strings"
	"time"
)

const (
	// DateLayout is the calendar date format used for partitions and request parameters.
	DateLayout = "2006-01-02"

	// MeasurementLayout matches Data_Hora_Medicao ("2025-02-10 10:00:00.0").
	// Fractional seconds are accepted by time.Parse without appearing in the layout.
	MeasurementLayout = "2006-01-02 15:04:05"
)

// StationInventory is the static descriptor of one telemetric station as
// published by the HidroWeb inventory. Columns are kept as raw values so the
// snapshot reproduces the inventory exactly: absent columns are omitted,
// explicit nulls and unknown columns are written back.
type StationInventory struct {
	Altitude          Value `json:"Altitude,omitempty"`
	AreaDrenagem      Value `json:"Area_Drenagem,omitempty"`
	BaciaNome         Value `json:"Bacia_Nome,omitempty"`
	EstacaoNome       Value `json:"Estacao_Nome,omitempty"`
	Latitude          Value `json:"Latitude,omitempty"`
	Longitude         Value `json:"Longitude,omitempty"`
	MunicipioCodigo   Value `json:"Municipio_Codigo,omitempty"`
	MunicipioNome     Value `json:"Municipio_Nome,omitempty"`
	OperadoraCodigo   Value `json:"Operadora_Codigo,omitempty"`
	OperadoraSigla    Value `json:"Operadora_Sigla,omitempty"`
	Operando          Value `json:"Operando,omitempty"`
	ResponsavelCodigo Value `json:"Responsavel_Codigo,omitempty"`
	ResponsavelSigla  Value `json:"Responsavel_Sigla,omitempty"`
	RioCodigo         Value `json:"Rio_Codigo,omitempty"`
	RioNome           Value `json:"Rio_Nome,omitempty"`
	SubBaciaCodigo    Value `json:"Sub_Bacia_Codigo,omitempty"`
	SubBaciaNome      Value `json:"Sub_Bacia_Nome,omitempty"`
	TipoEstacao       Value `json:"Tipo_Estacao,omitempty"`
	UFEstacao         Value `json:"UF_Estacao,omitempty"`
	UFNomeEstacao     Value `json:"UF_Nome_Estacao,omitempty"`
	CodigoEstacao     Value `json:"codigoestacao"`

	// Extra carries inventory columns without a typed field.
	Extra Extra `json:"-"`
}

// Code returns the station identifier as text.
func (s StationInventory) Code() string {
	return strings.TrimSpace(s.CodigoEstacao.Text())
}

// TelemetricRecord is one timestamped observation. Within a station a record
// is identified by its measurement timestamp.
type TelemetricRecord struct {
	ChuvaAdotada       Value `json:"Chuva_Adotada"`
	ChuvaAdotadaStatus Value `json:"Chuva_Adotada_Status,omitempty"`
	CotaAdotada        Value `json:"Cota_Adotada"`
	CotaAdotadaStatus  Value `json:"Cota_Adotada_Status,omitempty"`
	DataAtualizacao    Value `json:"Data_Atualizacao"`
	DataHoraMedicao    Value `json:"Data_Hora_Medicao"`
	VazaoAdotada       Value `json:"Vazao_Adotada"`
	VazaoAdotadaStatus Value `json:"Vazao_Adotada_Status,omitempty"`

	Extra Extra `json:"-"`
}

// MeasurementDate returns the calendar date portion of Data_Hora_Medicao.
func (r TelemetricRecord) MeasurementDate() string {
	return datePart(r.DataHoraMedicao.Text())
}

// MeasuredAt parses Data_Hora_Medicao in the operational timezone.
func (r TelemetricRecord) MeasuredAt() (time.Time, bool) {
	return ParseTimestamp(r.DataHoraMedicao.Text())
}

// UpdatedAt parses Data_Atualizacao in the operational timezone.
func (r TelemetricRecord) UpdatedAt() (time.Time, bool) {
	return ParseTimestamp(r.DataAtualizacao.Text())
}

// Historical reformats the record to the fixed historical schema.
func (r TelemetricRecord) Historical() HistoricalRecord {
	return HistoricalRecord{
		ChuvaAdotada:    r.ChuvaAdotada,
		CotaAdotada:     r.CotaAdotada,
		VazaoAdotada:    r.VazaoAdotada,
		DataHoraMedicao: r.DataHoraMedicao,
		DataAtualizacao: r.DataAtualizacao,
	}
}

// StationDocument is the on-disk shape of one (station, day) telemetry file.
type StationDocument struct {
	CodigoEstacao Value              `json:"codigoestacao"`
	Data          Value              `json:"data,omitempty"`
	Dados         []TelemetricRecord `json:"dados"`
}

// RawReading is a record loaded from a partition, tagged with its owner.
type RawReading struct {
	Station string
	Day     string
	Record  TelemetricRecord
}

// HistoricalRecord is the trimmed, fixed-order shape used in historical
// windows and the snapshot's 24h history.
type HistoricalRecord struct {
	ChuvaAdotada    Value `json:"Chuva_Adotada"`
	CotaAdotada     Value `json:"Cota_Adotada"`
	VazaoAdotada    Value `json:"Vazao_Adotada"`
	DataHoraMedicao Value `json:"Data_Hora_Medicao"`
	DataAtualizacao Value `json:"Data_Atualizacao"`
}

// HistoricalGroup is one station's trailing window: the date of its most
// recent kept record and the kept records, oldest first.
type HistoricalGroup struct {
	Data      string             `json:"data"`
	Registros []HistoricalRecord `json:"registros"`
}

// MergedStation is an inventory entry joined with its last two days of
// telemetry, newest first, plus the timestamps of the newest record.
type MergedStation struct {
	StationInventory
	Data            string             `json:"data"`
	Dados           []TelemetricRecord `json:"dados"`
	DataAtualizacao Value              `json:"Data_Atualizacao"`
	DataHoraMedicao Value              `json:"Data_Hora_Medicao"`

	// ChuvaAcumulada is an upstream precomputed 24h total, used only when
	// the station carries no raw records.
	ChuvaAcumulada *float64 `json:"chuvaAcumulada,omitempty"`
}

// SnapshotStation is one element of the persisted daily snapshot.
type SnapshotStation struct {
	StationInventory
	Data              string             `json:"data"`
	Dados             []TelemetricRecord `json:"dados"`
	HistoricoChuva24h []HistoricalRecord `json:"historicoChuva24h"`
	DataHoraMedicao   Value              `json:"Data_Hora_Medicao"`
	DataAtualizacao   Value              `json:"Data_Atualizacao"`
}

// ParseTimestamp parses an upstream "YYYY-MM-DD HH:MM:SS[.f]" timestamp in
// the operational timezone. An ISO "T" separator is tolerated.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	s = strings.Replace(s, "T", " ", 1)
	t, err := time.ParseInLocation(MeasurementLayout, s, location)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func datePart(ts string) string {
	ts = strings.TrimSpace(ts)
	if i := strings.IndexAny(ts, " T"); i >= 0 {
		return ts[:i]
	}
	return ts
}
