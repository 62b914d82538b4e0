package domain

import (
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Completeness flags whether every record of a station carries rainfall,
// level and discharge values.
type Completeness string

const (
	Complete   Completeness = "Completo"
	Incomplete Completeness = "Incompleto"
)

// UnknownRiver is used when the inventory has no river name.
const UnknownRiver = "Desconhecido"

// UnknownCity is used when the inventory has no municipality name.
const UnknownCity = "DESCONHECIDO"

// StationCategory is a merged station reduced to its classifications and the
// identity fields dashboards display next to them.
type StationCategory struct {
	CodigoEstacao      Value           `json:"codigoestacao"`
	EstacaoNome        Value           `json:"Estacao_Nome"`
	Data               string          `json:"data"`
	RioNome            string          `json:"Rio_Nome"`
	Latitude           *float64        `json:"latitude"`
	Longitude          *float64        `json:"longitude"`
	Completude         Completeness    `json:"completude"`
	ChuvaAcumulada     *float64        `json:"chuvaAcumulada"`
	NivelMaisRecente   Value           `json:"nivelMaisRecente"`
	VazaoMaisRecente   Value           `json:"vazaoMaisRecente"`
	StatusAtualizacao  FreshnessStatus `json:"statusAtualizacao"`
	ClassificacaoChuva RainfallClass   `json:"classificacaoChuva"`
	ClassificacaoNivel LevelClass      `json:"classificacaoNivel"`
	ClassificacaoVazao DischargeClass  `json:"classificacaoVazao"`

	Municipality string `json:"-"`
}

// Categories groups categorized stations the way the dashboard filters them.
type Categories struct {
	ByRiver     map[string][]StationCategory
	Updated     []StationCategory
	NotUpdated  []StationCategory
	ByRainfall  map[RainfallClass][]StationCategory
	ByLevel     map[LevelClass][]StationCategory
	ByDischarge map[DischargeClass][]StationCategory
}

// CategorizeStation classifies a merged station against the package clock.
// The rainfall total is summed over the 24h before the station's own latest
// reading; with no raw records the precomputed total is used instead.
func CategorizeStation(st MergedStation) StationCategory {
	return categorizeAt(st, Now())
}

func categorizeAt(st MergedStation, now time.Time) StationCategory {
	records := st.Dados

	var latest *TelemetricRecord
	var latestAt *time.Time
	if sorted := SortNewestFirst(records); len(sorted) > 0 {
		if t, ok := sorted[0].MeasuredAt(); ok {
			latest = &sorted[0]
			latestAt = &t
		}
	}

	ref := now
	if latestAt != nil {
		ref = *latestAt
	}

	exact := AccumulateRainfall(records, ref)
	classifyTotal := DecimalFloat(exact)
	rounded := RoundHundredths(exact)
	if len(records) == 0 && st.ChuvaAcumulada != nil {
		classifyTotal = st.ChuvaAcumulada
		rounded = st.ChuvaAcumulada
	}

	cat := StationCategory{
		CodigoEstacao:      st.CodigoEstacao,
		EstacaoNome:        st.EstacaoNome,
		Data:               st.Data,
		RioNome:            st.RioNome.Text(),
		Latitude:           nonZero(st.Latitude),
		Longitude:          nonZero(st.Longitude),
		Completude:         completeness(records),
		ChuvaAcumulada:     rounded,
		StatusAtualizacao:  Freshness(latestAt, now),
		ClassificacaoChuva: ClassifyRainfall(classifyTotal),
		ClassificacaoNivel: LevelUndefined,
		ClassificacaoVazao: DischargeUndefined,
		Municipality:       st.MunicipioNome.Text(),
	}
	if cat.RioNome == "" {
		cat.RioNome = UnknownRiver
	}
	if latest != nil {
		cat.NivelMaisRecente = latest.CotaAdotada
		cat.VazaoMaisRecente = latest.VazaoAdotada
		cat.ClassificacaoNivel = ClassifyLevel(latest.CotaAdotada.Float64Ptr())
		cat.ClassificacaoVazao = ClassifyDischarge(latest.VazaoAdotada.Float64Ptr())
	}
	return cat
}

// CategorizeStations classifies every station and groups the results.
func CategorizeStations(stations []MergedStation) Categories {
	now := Now()
	out := Categories{
		ByRiver:     make(map[string][]StationCategory),
		Updated:     []StationCategory{},
		NotUpdated:  []StationCategory{},
		ByRainfall:  make(map[RainfallClass][]StationCategory),
		ByLevel:     make(map[LevelClass][]StationCategory),
		ByDischarge: make(map[DischargeClass][]StationCategory),
	}
	for _, st := range stations {
		cat := categorizeAt(st, now)
		if cat.StatusAtualizacao == FreshnessUpdated {
			out.Updated = append(out.Updated, cat)
		} else {
			out.NotUpdated = append(out.NotUpdated, cat)
		}
		out.ByRiver[cat.RioNome] = append(out.ByRiver[cat.RioNome], cat)
		out.ByRainfall[cat.ClassificacaoChuva] = append(out.ByRainfall[cat.ClassificacaoChuva], cat)
		out.ByLevel[cat.ClassificacaoNivel] = append(out.ByLevel[cat.ClassificacaoNivel], cat)
		out.ByDischarge[cat.ClassificacaoVazao] = append(out.ByDischarge[cat.ClassificacaoVazao], cat)
	}
	return out
}

// CityStation is one contributor to a city's rainfall figures.
type CityStation struct {
	CodigoEstacao  Value   `json:"codigoestacao"`
	EstacaoNome    Value   `json:"Estacao_Nome"`
	ChuvaAcumulada float64 `json:"chuvaAcumulada"`
}

// CityRainfall summarizes accumulated rainfall across a municipality's stations.
type CityRainfall struct {
	Cidade       string        `json:"cidade"`
	Estacoes     []CityStation `json:"estacoes"`
	ChuvaMedia   float64       `json:"chuvaMedia"`
	ChuvaMediana float64       `json:"chuvaMediana"`
}

// RainfallByCity groups categorized stations by upper-cased municipality and
// reports the mean and median accumulated rainfall. Stations without a total
// are skipped. Cities appear in first-seen order.
func RainfallByCity(categories []StationCategory) []CityRainfall {
	var cities []CityRainfall
	values := make(map[string][]float64)
	for _, cat := range categories {
		if cat.ChuvaAcumulada == nil {
			continue
		}
		city := strings.ToUpper(strings.TrimSpace(cat.Municipality))
		if city == "" {
			city = UnknownCity
		}
		idx := slices.IndexFunc(cities, func(c CityRainfall) bool { return c.Cidade == city })
		if idx < 0 {
			cities = append(cities, CityRainfall{Cidade: city})
			idx = len(cities) - 1
		}
		cities[idx].Estacoes = append(cities[idx].Estacoes, CityStation{
			CodigoEstacao:  cat.CodigoEstacao,
			EstacaoNome:    cat.EstacaoNome,
			ChuvaAcumulada: *cat.ChuvaAcumulada,
		})
		values[city] = append(values[city], *cat.ChuvaAcumulada)
	}

	for i := range cities {
		v := values[cities[i].Cidade]
		cities[i].ChuvaMedia = stat.Mean(v, nil)
		cities[i].ChuvaMediana = median(v)
	}
	if cities == nil {
		cities = []CityRainfall{}
	}
	return cities
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func completeness(records []TelemetricRecord) Completeness {
	if len(records) == 0 {
		return Incomplete
	}
	for _, r := range records {
		if r.ChuvaAdotada.IsNull() || r.CotaAdotada.IsNull() || r.VazaoAdotada.IsNull() {
			return Incomplete
		}
	}
	return Complete
}

func nonZero(v Value) *float64 {
	f, ok := v.Float64()
	if !ok || f == 0 {
		return nil
	}
	return &f
}

// StationSummary is the flat per-station view: inventory columns next to the
// computed classifications. Coordinates are the normalized ones from the
// category rather than the raw inventory columns.
type StationSummary struct {
	Latitude           *float64        `json:"latitude"`
	Longitude          *float64        `json:"longitude"`
	Altitude           Value           `json:"Altitude"`
	AreaDrenagem       Value           `json:"Area_Drenagem"`
	BaciaNome          Value           `json:"Bacia_Nome"`
	EstacaoNome        Value           `json:"Estacao_Nome"`
	MunicipioCodigo    Value           `json:"Municipio_Codigo"`
	MunicipioNome      Value           `json:"Municipio_Nome"`
	OperadoraCodigo    Value           `json:"Operadora_Codigo"`
	OperadoraSigla     Value           `json:"Operadora_Sigla"`
	Operando           Value           `json:"Operando"`
	ResponsavelCodigo  Value           `json:"Responsavel_Codigo"`
	ResponsavelSigla   Value           `json:"Responsavel_Sigla"`
	RioCodigo          Value           `json:"Rio_Codigo"`
	RioNome            Value           `json:"Rio_Nome"`
	SubBaciaCodigo     Value           `json:"Sub_Bacia_Codigo"`
	SubBaciaNome       Value           `json:"Sub_Bacia_Nome"`
	TipoEstacao        Value           `json:"Tipo_Estacao"`
	UFEstacao          Value           `json:"UF_Estacao"`
	UFNomeEstacao      Value           `json:"UF_Nome_Estacao"`
	CodigoEstacao      Value           `json:"codigoestacao"`
	Completude         Completeness    `json:"completude"`
	DataAtualizacao    Value           `json:"Data_Atualizacao"`
	DataHoraMedicao    Value           `json:"Data_Hora_Medicao"`
	ChuvaAcumulada     *float64        `json:"chuvaAcumulada"`
	NivelMaisRecente   Value           `json:"nivelMaisRecente"`
	VazaoMaisRecente   Value           `json:"vazaoMaisRecente"`
	StatusAtualizacao  FreshnessStatus `json:"statusAtualizacao"`
	ClassificacaoChuva RainfallClass   `json:"classificacaoChuva"`
	ClassificacaoNivel LevelClass      `json:"classificacaoNivel"`
	ClassificacaoVazao DischargeClass  `json:"classificacaoVazao"`
}

// Summarize joins a merged station's inventory columns with its category.
func Summarize(st MergedStation, cat StationCategory) StationSummary {
	return StationSummary{
		Latitude:           cat.Latitude,
		Longitude:          cat.Longitude,
		Altitude:           st.Altitude,
		AreaDrenagem:       st.AreaDrenagem,
		BaciaNome:          st.BaciaNome,
		EstacaoNome:        st.EstacaoNome,
		MunicipioCodigo:    st.MunicipioCodigo,
		MunicipioNome:      st.MunicipioNome,
		OperadoraCodigo:    st.OperadoraCodigo,
		OperadoraSigla:     st.OperadoraSigla,
		Operando:           st.Operando,
		ResponsavelCodigo:  st.ResponsavelCodigo,
		ResponsavelSigla:   st.ResponsavelSigla,
		RioCodigo:          st.RioCodigo,
		RioNome:            st.RioNome,
		SubBaciaCodigo:     st.SubBaciaCodigo,
		SubBaciaNome:       st.SubBaciaNome,
		TipoEstacao:        st.TipoEstacao,
		UFEstacao:          st.UFEstacao,
		UFNomeEstacao:      st.UFNomeEstacao,
		CodigoEstacao:      st.CodigoEstacao,
		Completude:         cat.Completude,
		DataAtualizacao:    st.DataAtualizacao,
		DataHoraMedicao:    st.DataHoraMedicao,
		ChuvaAcumulada:     cat.ChuvaAcumulada,
		NivelMaisRecente:   cat.NivelMaisRecente,
		VazaoMaisRecente:   cat.VazaoMaisRecente,
		StatusAtualizacao:  cat.StatusAtualizacao,
		ClassificacaoChuva: cat.ClassificacaoChuva,
		ClassificacaoNivel: cat.ClassificacaoNivel,
		ClassificacaoVazao: cat.ClassificacaoVazao,
	}
}
