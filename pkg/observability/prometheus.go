package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	PoseOutcomeAccepted    = "accepted"
	PoseOutcomeMismatch    = "mismatch"
	PoseOutcomeUnavailable = "unavailable"

	ScanResultCompleted = "completed"
	ScanResultFailed    = "failed"
	ScanResultCancelled = "cancelled"

	OracleCallPoseCheck  = "pose_check"
	OracleCallExtraction = "metric_extraction"
)

type IObserver interface {
	PoseCheck(outcome string)
	CaptureFailure()
	ExtractionFallback(reason string)
	LowSpread()
	ScanFinished(result string)
	OracleLatency(call string, d time.Duration)
}

type PromObs struct {
	poseChecks     *prometheus.CounterVec
	captureFails   prometheus.Counter
	fallbacks      *prometheus.CounterVec
	lowSpread      prometheus.Counter
	scans          *prometheus.CounterVec
	oracleDuration *prometheus.HistogramVec
}

func NewPromObs(reg prometheus.Registerer) *PromObs {
	poseChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "facescan_pose_checks_total",
		Help: "Pose checks by outcome.",
	}, []string{"outcome"})
	captureFails := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "facescan_capture_failures_total",
		Help: "Poses skipped because no usable frame could be captured.",
	})
	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "facescan_metric_extraction_fallbacks_total",
		Help: "Metric extractions answered with the default metric set.",
	}, []string{"reason"})
	lowSpread := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "facescan_metric_low_spread_total",
		Help: "Validated metric sets whose spread was below the consistency threshold.",
	})
	scans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "facescan_scans_total",
		Help: "Scans by terminal result.",
	}, []string{"result"})
	oracleDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "facescan_oracle_request_seconds",
		Help:    "Latency of oracle calls.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"call"})

	reg.MustRegister(poseChecks, captureFails, fallbacks, lowSpread, scans, oracleDuration)

	return &PromObs{
		poseChecks:     poseChecks,
		captureFails:   captureFails,
		fallbacks:      fallbacks,
		lowSpread:      lowSpread,
		scans:          scans,
		oracleDuration: oracleDuration,
	}
}

func (p *PromObs) PoseCheck(outcome string) {
	p.poseChecks.WithLabelValues(outcome).Inc()
}

func (p *PromObs) CaptureFailure() {
	p.captureFails.Inc()
}

func (p *PromObs) ExtractionFallback(reason string) {
	p.fallbacks.WithLabelValues(reason).Inc()
}

func (p *PromObs) LowSpread() {
	p.lowSpread.Inc()
}

func (p *PromObs) ScanFinished(result string) {
	p.scans.WithLabelValues(result).Inc()
}

func (p *PromObs) OracleLatency(call string, d time.Duration) {
	p.oracleDuration.WithLabelValues(call).Observe(d.Seconds())
}

// Nop discards every observation.
type Nop struct{}

func (Nop) PoseCheck(string)                    {}
func (Nop) CaptureFailure()                     {}
func (Nop) ExtractionFallback(string)           {}
func (Nop) LowSpread()                          {}
func (Nop) ScanFinished(string)                 {}
func (Nop) OracleLatency(string, time.Duration) {}
