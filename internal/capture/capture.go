package capture

import (
	"errors"
	"time"

	"FaceScan/internal/entity"
	"FaceScan/internal/oracle"
	"golang.org/x/net/context"
)

type Status string

const (
	StatusIdle        Status = "idle"
	StatusPositioning Status = "positioning"
	StatusScanning    Status = "scanning"
	StatusFinalizing  Status = "finalizing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

type Choice string

const (
	ChoiceRetry Choice = "retry"
	ChoiceSkip  Choice = "skip"
)

func (c Choice) Valid() bool {
	return c == ChoiceRetry || c == ChoiceSkip
}

var (
	ErrBusy                 = errors.New("a scan is already running on this capture surface")
	ErrCancelled            = errors.New("scan cancelled")
	ErrCancelDuringFinalize = errors.New("scan cannot be cancelled while finalizing")
	ErrNoImages             = errors.New("no images captured")
	ErrSaveFailed           = errors.New("save failed")
	ErrCaptureFailed        = errors.New("frame capture failed")
	ErrNotScanning          = errors.New("frames are only accepted while scanning")
	ErrNoPendingPrompt      = errors.New("no prompt is waiting for an answer")
	ErrInvalidChoice        = errors.New("choice must be retry or skip")
)

// FrameSource produces one frame for the given protocol step.
type FrameSource interface {
	Capture(ctx context.Context, step entity.PoseStep) ([]byte, error)
}

type PoseChecker interface {
	CheckPose(ctx context.Context, frame []byte, pose entity.PoseID) oracle.PoseCheckResult
}

type MetricExtractor interface {
	ExtractMetrics(ctx context.Context, frames [][]byte, labels []entity.PoseID) oracle.Extraction
}

type Persister interface {
	SaveScan(ctx context.Context, userID string, centerFrame []byte, frameCount int, assessment entity.ScanAssessment) (entity.FaceScan, error)
}

// Prompter asks the user whether to retry a rejected pose or skip it. Ask
// blocks until the user answers or ctx is done.
type Prompter interface {
	Ask(ctx context.Context, step entity.PoseStep, message string, attempt int) (Choice, error)
}

type Listener interface {
	OnEvent(event Event)
}

type ListenerFunc func(event Event)

func (f ListenerFunc) OnEvent(event Event) {
	f(event)
}

type EventType string

const (
	EventStatus    EventType = "status"
	EventPose      EventType = "pose"
	EventCapture   EventType = "capture"
	EventCheck     EventType = "check"
	EventPrompt    EventType = "prompt"
	EventNotice    EventType = "notice"
	EventCue       EventType = "cue"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

const (
	NoticeInfo    = "info"
	NoticeWarning = "warning"
)

type Event struct {
	Type       EventType               `json:"type"`
	Status     Status                  `json:"status,omitempty"`
	PoseIndex  int                     `json:"pose_index"`
	Step       *entity.PoseStep        `json:"step,omitempty"`
	Attempt    int                     `json:"attempt,omitempty"`
	Message    string                  `json:"message,omitempty"`
	Level      string                  `json:"level,omitempty"`
	Check      *oracle.PoseCheckResult `json:"check,omitempty"`
	FrameCount int                     `json:"frame_count,omitempty"`
	Scan       *entity.FaceScan        `json:"scan,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

type Config struct {
	MaxCaptureRetries   int
	MaxPoseRetries      int
	CaptureBackoff      time.Duration
	CaptureTimeout      time.Duration
	PositioningDelay    time.Duration
	PoseTransitionPause time.Duration
	MinFrameBytes       int
	LockTTL             time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxCaptureRetries:   3,
		MaxPoseRetries:      3,
		CaptureBackoff:      300 * time.Millisecond,
		CaptureTimeout:      10 * time.Second,
		PositioningDelay:    time.Second,
		PoseTransitionPause: 1200 * time.Millisecond,
		MinFrameBytes:       1024,
		LockTTL:             10 * time.Minute,
	}
}
