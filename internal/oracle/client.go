package oracle

import (
	"io"
	"time"

	"FaceScan/internal/entity"
	contextPkg "FaceScan/pkg/context"
	"FaceScan/pkg/observability"
	"FaceScan/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	DefaultTimeout      = 60 * time.Second
	DefaultMaxDimension = 1024
	DefaultQuality      = 85

	ConfidenceReady = 90
	MaxImages       = 6
)

const (
	FallbackNoCredentials = "no_credentials"
	FallbackTransport     = "transport"
	FallbackNoContent     = "no_content"
	FallbackParse         = "parse"
	FallbackNoImages      = "no_images"
)

const (
	msgPoseAccepted = "Pose looks good"
	msgPoseAdjust   = "Please adjust your position and try again"
)

// PoseCheckResult is the verdict for one frame. Unavailable marks a verdict
// the oracle could not give (no credentials, transport error, unusable
// answer), as opposed to a real "wrong pose".
type PoseCheckResult struct {
	Ready           bool   `json:"ready"`
	CorrectPosition bool   `json:"correctPosition"`
	Message         string `json:"message"`
	Confidence      int    `json:"confidence"`
	Unavailable     bool   `json:"unavailable,omitempty"`
}

// Extraction carries the raw metric payload. When Fallback is set Raw is the
// default metric set and Reason says why.
type Extraction struct {
	Raw      entity.RawMetrics
	Fallback bool
	Reason   string
}

type Options struct {
	Timeout      time.Duration
	MaxDimension int
	Quality      int
}

type IOracle interface {
	Available() bool
	CheckPose(ctx context.Context, frame []byte, pose entity.PoseID) PoseCheckResult
	ExtractMetrics(ctx context.Context, frames [][]byte, labels []entity.PoseID) Extraction
}

type Client struct {
	model    Model
	log      *logrus.Logger
	observer observability.IObserver
	utils    utils.IUtils
	rubric   *Rubric
	opts     Options
}

// New builds the oracle client. model may be nil when no credentials are
// configured, every call then takes its degraded path.
func New(model Model, log *logrus.Logger, observer observability.IObserver, util utils.IUtils, opts Options) *Client {
	if observer == nil {
		observer = observability.Nop{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultQuality
	}

	return &Client{
		model:    model,
		log:      log,
		observer: observer,
		utils:    util,
		rubric:   DefaultRubric(),
		opts:     opts,
	}
}

func (c *Client) Available() bool {
	return c.model != nil
}

func (c *Client) Close() error {
	if closer, ok := c.model.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Client) CheckPose(ctx context.Context, frame []byte, pose entity.PoseID) PoseCheckResult {
	requestID := contextPkg.GetRequestID(ctx)

	if c.model == nil {
		return c.poseUnavailable(requestID, pose, "Pose check unavailable: oracle credentials are not configured", nil)
	}
	if len(frame) == 0 {
		return c.poseUnavailable(requestID, pose, "Pose check unavailable: empty frame", nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	content, err := c.model.Generate(callCtx, Request{
		Prompt: BuildPoseCheckPrompt(pose),
		Images: [][]byte{c.prepare(requestID, frame)},
		JSON:   true,
	})
	c.observer.OracleLatency(observability.OracleCallPoseCheck, time.Since(start))
	if err != nil {
		return c.poseUnavailable(requestID, pose, "Pose check unavailable: oracle request failed", err)
	}

	text, ok := Unwrap(content)
	if !ok {
		return c.poseUnavailable(requestID, pose, "Pose check unavailable: oracle returned no content", nil)
	}

	correct, message, err := parsePoseVerdict(text)
	if err != nil {
		return c.poseUnavailable(requestID, pose, "Pose check unavailable: could not read oracle answer", err)
	}

	if correct {
		c.observer.PoseCheck(observability.PoseOutcomeAccepted)
		if message == "" {
			message = msgPoseAccepted
		}
		return PoseCheckResult{
			Ready:           true,
			CorrectPosition: true,
			Message:         message,
			Confidence:      ConfidenceReady,
		}
	}

	c.observer.PoseCheck(observability.PoseOutcomeMismatch)
	if message == "" {
		message = msgPoseAdjust
	}
	c.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"pose":       pose,
		"message":    message,
	}).Debug("Pose rejected by oracle")

	return PoseCheckResult{Message: message}
}

func (c *Client) poseUnavailable(requestID string, pose entity.PoseID, message string, err error) PoseCheckResult {
	c.observer.PoseCheck(observability.PoseOutcomeUnavailable)

	fields := logrus.Fields{
		"request_id": requestID,
		"pose":       pose,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	c.log.WithFields(fields).Warn(message)

	return PoseCheckResult{
		Message:     message,
		Unavailable: true,
	}
}

// ExtractMetrics asks the oracle for the raw metric payload of a scan. It
// never fails: every problem yields the default metric set. Frames beyond
// MaxImages are dropped and missing labels are filled from the protocol.
func (c *Client) ExtractMetrics(ctx context.Context, frames [][]byte, labels []entity.PoseID) Extraction {
	requestID := contextPkg.GetRequestID(ctx)

	if len(frames) == 0 {
		return c.fallback(requestID, FallbackNoImages, nil)
	}
	if len(frames) > MaxImages {
		frames = frames[:MaxImages]
	}
	labels = alignLabels(labels, len(frames))

	if c.model == nil {
		return c.fallback(requestID, FallbackNoCredentials, nil)
	}

	images := make([][]byte, 0, len(frames))
	for _, frame := range frames {
		images = append(images, c.prepare(requestID, frame))
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	content, err := c.model.Generate(callCtx, Request{
		Prompt: BuildExtractionPrompt(c.rubric, labels),
		Images: images,
		JSON:   true,
	})
	c.observer.OracleLatency(observability.OracleCallExtraction, time.Since(start))
	if err != nil {
		return c.fallback(requestID, FallbackTransport, err)
	}

	text, ok := Unwrap(content)
	if !ok {
		return c.fallback(requestID, FallbackNoContent, nil)
	}

	raw, err := parseMetrics(text)
	if err != nil {
		return c.fallback(requestID, FallbackParse, err)
	}

	c.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"images":     len(images),
		"model":      c.model.Name(),
	}).Info("Metric extraction completed")

	return Extraction{Raw: raw}
}

func (c *Client) fallback(requestID string, reason string, err error) Extraction {
	c.observer.ExtractionFallback(reason)

	fields := logrus.Fields{
		"request_id": requestID,
		"reason":     reason,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	c.log.WithFields(fields).Warn("Metric extraction fell back to default metrics")

	return Extraction{
		Raw:      entity.DefaultRawMetrics(),
		Fallback: true,
		Reason:   reason,
	}
}

// prepare downscales a frame before upload. Frames that cannot be decoded are
// sent as they are.
func (c *Client) prepare(requestID string, frame []byte) []byte {
	if c.utils == nil {
		return frame
	}
	optimized, err := c.utils.OptimizeImage(frame, c.opts.MaxDimension, c.opts.Quality)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Debug("Sending frame without optimization")
		return frame
	}
	return optimized
}

func alignLabels(labels []entity.PoseID, n int) []entity.PoseID {
	out := make([]entity.PoseID, n)
	for i := range out {
		if i < len(labels) && entity.IsValidPose(string(labels[i])) {
			out[i] = labels[i]
			continue
		}
		if step, ok := entity.StepAt(i); ok {
			out[i] = step.Pose
		} else {
			out[i] = entity.PoseCenter
		}
	}
	return out
}
