package entity

import "time"

const (
	MetricWaterRetention       = "water_retention"
	MetricInflammationIndex    = "inflammation_index"
	MetricLymphCongestionScore = "lymph_congestion_score"
	MetricFacialFatLayer       = "facial_fat_layer"
	MetricDefinitionScore      = "definition_score"
	MetricPotentialCeiling     = "potential_ceiling"
)

// ScoredMetrics are the keys the oracle actually scores. potential_ceiling is
// never scored.
var ScoredMetrics = []string{
	MetricWaterRetention,
	MetricInflammationIndex,
	MetricLymphCongestionScore,
	MetricFacialFatLayer,
	MetricDefinitionScore,
}

type MetricSet struct {
	WaterRetention       float64 `json:"water_retention" db:"water_retention"`
	InflammationIndex    float64 `json:"inflammation_index" db:"inflammation_index"`
	LymphCongestionScore float64 `json:"lymph_congestion_score" db:"lymph_congestion_score"`
	FacialFatLayer       float64 `json:"facial_fat_layer" db:"facial_fat_layer"`
	DefinitionScore      float64 `json:"definition_score" db:"definition_score"`
	PotentialCeiling     float64 `json:"potential_ceiling" db:"potential_ceiling"`
}

func DefaultMetricSet() MetricSet {
	return MetricSet{
		WaterRetention:       25,
		InflammationIndex:    25,
		LymphCongestionScore: 25,
		FacialFatLayer:       25,
		DefinitionScore:      50,
		PotentialCeiling:     0,
	}
}

// Get returns the value stored under a metric key.
func (m MetricSet) Get(key string) (float64, bool) {
	switch key {
	case MetricWaterRetention:
		return m.WaterRetention, true
	case MetricInflammationIndex:
		return m.InflammationIndex, true
	case MetricLymphCongestionScore:
		return m.LymphCongestionScore, true
	case MetricFacialFatLayer:
		return m.FacialFatLayer, true
	case MetricDefinitionScore:
		return m.DefinitionScore, true
	case MetricPotentialCeiling:
		return m.PotentialCeiling, true
	default:
		return 0, false
	}
}

func (m *MetricSet) Set(key string, value float64) bool {
	switch key {
	case MetricWaterRetention:
		m.WaterRetention = value
	case MetricInflammationIndex:
		m.InflammationIndex = value
	case MetricLymphCongestionScore:
		m.LymphCongestionScore = value
	case MetricFacialFatLayer:
		m.FacialFatLayer = value
	case MetricDefinitionScore:
		m.DefinitionScore = value
	case MetricPotentialCeiling:
		m.PotentialCeiling = value
	default:
		return false
	}
	return true
}

// RawMetrics is the untrusted key/value payload returned by the oracle.
type RawMetrics map[string]interface{}

func DefaultRawMetrics() RawMetrics {
	d := DefaultMetricSet()
	return RawMetrics{
		MetricWaterRetention:       d.WaterRetention,
		MetricInflammationIndex:    d.InflammationIndex,
		MetricLymphCongestionScore: d.LymphCongestionScore,
		MetricFacialFatLayer:       d.FacialFatLayer,
		MetricDefinitionScore:      d.DefinitionScore,
		MetricPotentialCeiling:     d.PotentialCeiling,
	}
}

type ValidationReport struct {
	Substituted []string `json:"substituted,omitempty"`
	Clamped     []string `json:"clamped,omitempty"`
	Spread      float64  `json:"spread"`
	LowSpread   bool     `json:"low_spread"`
}

type FaceScan struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ScanDate     time.Time `json:"scan_date"`
	ImageURL     string    `json:"image_url,omitempty"`
	FrameCount   int       `json:"frame_count"`
	Metrics      MetricSet `json:"metrics"`
	LowSpread    bool      `json:"low_spread"`
	UsedFallback bool      `json:"used_fallback"`
	CreatedAt    time.Time `json:"created_at"`
}

// ScanAssessment is everything the pipeline learned about one scan, ready to
// be persisted.
type ScanAssessment struct {
	Metrics        MetricSet        `json:"metrics"`
	Report         ValidationReport `json:"report"`
	UsedFallback   bool             `json:"used_fallback"`
	FallbackReason string           `json:"fallback_reason,omitempty"`
}
