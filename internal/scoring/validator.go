package scoring

import (
	"encoding/json"
	"math"
	"strconv"

	"FaceScan/internal/entity"
	contextPkg "FaceScan/pkg/context"
	"FaceScan/pkg/observability"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	MinScore  = 0.0
	MaxScore  = 100.0
	MinSpread = 10.0
)

// Normalize turns an untrusted oracle payload into a complete MetricSet.
// Missing, non-numeric and non-finite values take the default for that key,
// everything else is clamped to [0,100] and rounded to two decimals.
// potential_ceiling is always 0. Values are never adjusted to widen the spread.
func Normalize(raw entity.RawMetrics) (entity.MetricSet, entity.ValidationReport) {
	defaults := entity.DefaultMetricSet()
	result := entity.MetricSet{}
	report := entity.ValidationReport{}

	values := make([]float64, 0, len(entity.ScoredMetrics))
	for _, key := range entity.ScoredMetrics {
		fallback, _ := defaults.Get(key)

		v, ok := toFloat(raw[key])
		if !ok {
			result.Set(key, fallback)
			report.Substituted = append(report.Substituted, key)
			values = append(values, fallback)
			continue
		}

		clamped := clamp(v)
		if clamped != v {
			report.Clamped = append(report.Clamped, key)
		}
		clamped = round2(clamped)
		result.Set(key, clamped)
		values = append(values, clamped)
	}

	result.PotentialCeiling = 0

	report.Spread = round2(spread(values))
	report.LowSpread = report.Spread < MinSpread

	return result, report
}

func toFloat(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clamp(v float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func spread(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

type IValidator interface {
	Validate(ctx context.Context, raw entity.RawMetrics) (entity.MetricSet, entity.ValidationReport)
}

type validator struct {
	log      *logrus.Logger
	observer observability.IObserver
}

func NewValidator(log *logrus.Logger, observer observability.IObserver) IValidator {
	if observer == nil {
		observer = observability.Nop{}
	}
	return &validator{
		log:      log,
		observer: observer,
	}
}

func (v *validator) Validate(ctx context.Context, raw entity.RawMetrics) (entity.MetricSet, entity.ValidationReport) {
	requestID := contextPkg.GetRequestID(ctx)
	metrics, report := Normalize(raw)

	if len(report.Substituted) > 0 || len(report.Clamped) > 0 {
		v.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"substituted": report.Substituted,
			"clamped":     report.Clamped,
		}).Warn("Oracle metrics violated the output contract")
	}

	if report.LowSpread {
		v.observer.LowSpread()
		v.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"spread":     report.Spread,
			"min_spread": MinSpread,
		}).Warn("Metric spread below consistency threshold")
	}

	return metrics, report
}
