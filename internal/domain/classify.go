package domain

import (
	"math"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// RainfallClass labels a trailing 24h rainfall total.
type RainfallClass string

const (
	RainfallUndefined  RainfallClass = "Indefinido"
	RainfallNone       RainfallClass = "Sem Chuva"
	RainfallWeak       RainfallClass = "Fraca"
	RainfallModerate   RainfallClass = "Moderada"
	RainfallStrong     RainfallClass = "Forte"
	RainfallVeryStrong RainfallClass = "Muito Forte"
	RainfallExtreme    RainfallClass = "Extrema"
)

// LevelClass labels the latest river level (cota), in centimetres.
type LevelClass string

const (
	LevelUndefined LevelClass = "Indefinido"
	LevelLow       LevelClass = "Baixo"
	LevelNormal    LevelClass = "Normal"
	LevelHigh      LevelClass = "Alto"
)

// DischargeClass labels the latest discharge (vazão), in m³/s.
type DischargeClass string

const (
	DischargeUndefined DischargeClass = "Indefinido"
	DischargeLow       DischargeClass = "Baixa"
	DischargeNormal    DischargeClass = "Normal"
	DischargeHigh      DischargeClass = "Alta"
)

// FreshnessStatus reports whether a station's latest reading is recent.
type FreshnessStatus string

const (
	FreshnessUpdated  FreshnessStatus = "Atualizado"
	FreshnessOutdated FreshnessStatus = "Desatualizado"
)

// FreshnessLimit is the largest reading age still considered up to date.
const FreshnessLimit = 12 * time.Hour

// RainfallWindow is the trailing span summed for rainfall classification.
const RainfallWindow = 24 * time.Hour

// ClassifyRainfall buckets a 24h rainfall total in millimetres. Upper bounds
// are inclusive: exactly 5.0 is Fraca, 99.01 is Extrema.
func ClassifyRainfall(total *float64) RainfallClass {
	if !defined(total) {
		return RainfallUndefined
	}
	v := *total
	switch {
	case v == 0:
		return RainfallNone
	case v <= 5:
		return RainfallWeak
	case v <= 29:
		return RainfallModerate
	case v <= 59:
		return RainfallStrong
	case v <= 99:
		return RainfallVeryStrong
	default:
		return RainfallExtreme
	}
}

// ClassifyLevel buckets a level reading: below 400 is low, up to and
// including 450 is normal.
func ClassifyLevel(level *float64) LevelClass {
	if !defined(level) {
		return LevelUndefined
	}
	switch v := *level; {
	case v < 400:
		return LevelLow
	case v <= 450:
		return LevelNormal
	default:
		return LevelHigh
	}
}

// ClassifyDischarge buckets a discharge reading: below 30 is low, up to and
// including 35 is normal.
func ClassifyDischarge(discharge *float64) DischargeClass {
	if !defined(discharge) {
		return DischargeUndefined
	}
	switch v := *discharge; {
	case v < 30:
		return DischargeLow
	case v <= 35:
		return DischargeNormal
	default:
		return DischargeHigh
	}
}

// Freshness compares the latest reading time against now. A station with no
// reading is always outdated.
func Freshness(latest *time.Time, now time.Time) FreshnessStatus {
	if latest == nil || latest.IsZero() {
		return FreshnessOutdated
	}
	if now.Sub(*latest) <= FreshnessLimit {
		return FreshnessUpdated
	}
	return FreshnessOutdated
}

// AccumulateRainfall sums Chuva_Adotada over records measured within
// [ref-24h, ref]. It returns nil when no numeric value falls in range so a
// missing total stays distinguishable from a confirmed zero.
func AccumulateRainfall(records []TelemetricRecord, ref time.Time) *apd.Decimal {
	start := ref.Add(-RainfallWindow)
	ctx := decimalContext()

	var sum apd.Decimal
	found := false
	for _, rec := range records {
		t, ok := rec.MeasuredAt()
		if !ok || t.Before(start) || t.After(ref) {
			continue
		}
		v, ok := rec.ChuvaAdotada.Decimal()
		if !ok {
			continue
		}
		if _, err := ctx.Add(&sum, &sum, v); err != nil {
			continue
		}
		found = true
	}
	if !found {
		return nil
	}
	return &sum
}

// RoundHundredths rounds d half-up to two decimal places.
func RoundHundredths(d *apd.Decimal) *float64 {
	if d == nil {
		return nil
	}
	var rounded apd.Decimal
	if _, err := decimalContext().Quantize(&rounded, d, -2); err != nil {
		return nil
	}
	f, err := rounded.Float64()
	if err != nil {
		return nil
	}
	return &f
}

// DecimalFloat converts an exact sum to float64 for threshold comparison.
func DecimalFloat(d *apd.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f, err := d.Float64()
	if err != nil {
		return nil
	}
	return &f
}

func decimalContext() *apd.Context {
	ctx := apd.BaseContext.WithPrecision(34)
	ctx.Rounding = apd.RoundHalfUp
	return ctx
}

func defined(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
