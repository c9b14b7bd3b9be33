package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"FaceScan/internal/entity"
	"FaceScan/internal/scoring"
	contextPkg "FaceScan/pkg/context"
	"FaceScan/pkg/observability"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type Deps struct {
	Source    FrameSource
	Checker   PoseChecker
	Extractor MetricExtractor
	Validator scoring.IValidator
	Persister Persister
	Prompter  Prompter
	Listener  Listener
	Locker    Locker
	Observer  observability.IObserver
	Log       *logrus.Logger
}

// Orchestrator drives the guided capture of one capture surface. Oracle calls
// are issued one at a time, each pose gating the next.
type Orchestrator struct {
	key  string
	deps Deps
	cfg  Config

	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	status    Status
	running   bool
	cancelled bool
	stop      context.CancelFunc
	poseIndex int
	frames    [][]byte
	labels    []entity.PoseID
}

func New(key string, deps Deps, cfg Config) *Orchestrator {
	if deps.Observer == nil {
		deps.Observer = observability.Nop{}
	}
	if deps.Listener == nil {
		deps.Listener = ListenerFunc(func(Event) {})
	}
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}

	return &Orchestrator{
		key:    key,
		deps:   deps,
		cfg:    cfg,
		sleep:  sleepCtx,
		status: StatusIdle,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Start launches a scan in the background. It is a no-op returning false when
// a scan is already running on this surface.
func (o *Orchestrator) Start(ctx context.Context, userID string) bool {
	waitCtx, release, err := o.begin(ctx)
	if err != nil {
		if !errors.Is(err, ErrBusy) {
			o.deps.Log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"surface":    o.key,
				"error":      err.Error(),
			}).Error("Failed to start scan")
		}
		return false
	}

	go func() {
		_, _ = o.execute(ctx, waitCtx, userID, release)
	}()
	return true
}

// Run performs a whole scan and returns the persisted record.
func (o *Orchestrator) Run(ctx context.Context, userID string) (*entity.FaceScan, error) {
	waitCtx, release, err := o.begin(ctx)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, waitCtx, userID, release)
}

// Cancel stops the running scan. It is refused while finalizing. Cancelling an
// idle surface only discards whatever was accumulated.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status == StatusFinalizing {
		return ErrCancelDuringFinalize
	}
	if !o.running {
		o.frames = nil
		o.labels = nil
		o.poseIndex = 0
		return nil
	}

	o.cancelled = true
	if o.stop != nil {
		o.stop()
	}
	return nil
}

// begin claims the surface and resets the session under one lock, so a Cancel
// arriving before execute runs is kept.
func (o *Orchestrator) begin(ctx context.Context) (context.Context, func(), error) {
	waitCtx, stop := context.WithCancel(ctx)

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		stop()
		return nil, nil, ErrBusy
	}
	o.running = true
	o.cancelled = false
	o.stop = stop
	o.frames = nil
	o.labels = nil
	o.poseIndex = 0
	o.mu.Unlock()

	unlock, ok, err := o.deps.Locker.TryLock(ctx, o.key)
	if err != nil || !ok {
		stop()
		o.mu.Lock()
		o.running = false
		o.stop = nil
		o.mu.Unlock()
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrBusy
	}

	return waitCtx, unlock, nil
}

func (o *Orchestrator) execute(ctx, waitCtx context.Context, userID string, release func()) (*entity.FaceScan, error) {
	defer release()

	defer func() {
		o.mu.Lock()
		if o.stop != nil {
			o.stop()
		}
		o.running = false
		o.stop = nil
		o.frames = nil
		o.labels = nil
		o.poseIndex = 0
		o.mu.Unlock()
		o.setStatus(StatusIdle)
	}()

	requestID := contextPkg.GetRequestID(ctx)
	o.deps.Log.WithFields(logrus.Fields{
		"request_id": requestID,
		"surface":    o.key,
		"user_id":    userID,
	}).Info("Scan started")

	scan, err := o.scan(waitCtx, ctx, userID)
	switch {
	case err == nil:
		o.deps.Observer.ScanFinished(observability.ScanResultCompleted)
		o.setStatus(StatusCompleted)
		o.emit(Event{Type: EventCompleted, Scan: &scan, FrameCount: scan.FrameCount})
		o.deps.Log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    scan.ID,
			"frames":     scan.FrameCount,
		}).Info("Scan completed")
		return &scan, nil
	case errors.Is(err, ErrCancelled):
		o.deps.Observer.ScanFinished(observability.ScanResultCancelled)
		o.setStatus(StatusCancelled)
		o.emit(Event{Type: EventCancelled})
		o.deps.Log.WithFields(logrus.Fields{
			"request_id": requestID,
			"surface":    o.key,
		}).Info("Scan cancelled")
		return nil, err
	default:
		o.deps.Observer.ScanFinished(observability.ScanResultFailed)
		o.setStatus(StatusFailed)
		o.emit(Event{Type: EventFailed, Error: err.Error()})
		o.deps.Log.WithFields(logrus.Fields{
			"request_id": requestID,
			"surface":    o.key,
			"error":      err.Error(),
		}).Error("Scan failed")
		return nil, err
	}
}

// scan runs the pose loop and the finalizing stage. waitCtx is cancelled by
// Cancel and bounds every wait on the user. Oracle and persistence calls use
// callCtx so an in-flight call finishes and its result is then discarded.
func (o *Orchestrator) scan(waitCtx, callCtx context.Context, userID string) (entity.FaceScan, error) {
	o.setStatus(StatusPositioning)
	if err := o.sleep(waitCtx, o.cfg.PositioningDelay); err != nil {
		return entity.FaceScan{}, ErrCancelled
	}
	if o.isCancelled(waitCtx) {
		return entity.FaceScan{}, ErrCancelled
	}

	o.setStatus(StatusScanning)
	steps := entity.PoseProtocol()
	for i, step := range steps {
		if o.isCancelled(waitCtx) {
			return entity.FaceScan{}, ErrCancelled
		}

		o.mu.Lock()
		o.poseIndex = i
		o.mu.Unlock()
		o.emit(Event{Type: EventPose, PoseIndex: i, Step: &step})

		if err := o.resolvePose(waitCtx, callCtx, i, step); err != nil {
			return entity.FaceScan{}, err
		}

		if i < len(steps)-1 {
			if err := o.sleep(waitCtx, o.cfg.PoseTransitionPause); err != nil {
				return entity.FaceScan{}, ErrCancelled
			}
		}
	}

	o.mu.Lock()
	if o.cancelled || waitCtx.Err() != nil {
		o.mu.Unlock()
		return entity.FaceScan{}, ErrCancelled
	}
	o.status = StatusFinalizing
	frames := append([][]byte(nil), o.frames...)
	labels := append([]entity.PoseID(nil), o.labels...)
	o.mu.Unlock()
	o.emit(Event{Type: EventStatus, Status: StatusFinalizing, FrameCount: len(frames)})

	return o.finalize(callCtx, userID, frames, labels)
}

func (o *Orchestrator) resolvePose(waitCtx, callCtx context.Context, index int, step entity.PoseStep) error {
	retries := 0
	for {
		frame, err := o.captureFrame(waitCtx, index, step)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return err
			}
			o.deps.Observer.CaptureFailure()
			o.notice(index, NoticeWarning, fmt.Sprintf("Could not capture the %s pose, moving on", step.Pose))
			return nil
		}

		if o.isCancelled(waitCtx) {
			return ErrCancelled
		}
		result := o.deps.Checker.CheckPose(callCtx, frame, step.Pose)
		if o.isCancelled(waitCtx) {
			return ErrCancelled
		}
		o.emit(Event{Type: EventCheck, PoseIndex: index, Attempt: retries + 1, Check: &result})

		switch {
		case result.Ready:
			o.accept(frame, step.Pose)
			o.emit(Event{Type: EventCue, PoseIndex: index, Step: &step})
			return nil
		case result.Unavailable:
			o.accept(frame, step.Pose)
			o.notice(index, NoticeInfo, "Pose check unavailable, frame kept")
			return nil
		case retries >= o.cfg.MaxPoseRetries:
			o.accept(frame, step.Pose)
			o.notice(index, NoticeWarning, fmt.Sprintf("Maximum retries reached for the %s pose, continuing with the last frame", step.Pose))
			return nil
		}

		o.emit(Event{Type: EventPrompt, PoseIndex: index, Step: &step, Attempt: retries + 1, Message: result.Message})
		choice, err := o.deps.Prompter.Ask(waitCtx, step, result.Message, retries+1)
		if err != nil {
			if o.isCancelled(waitCtx) {
				return ErrCancelled
			}
			return fmt.Errorf("prompt for %s pose: %w", step.Pose, err)
		}

		if choice == ChoiceSkip {
			o.accept(frame, step.Pose)
			return nil
		}
		retries++
	}
}

func (o *Orchestrator) captureFrame(waitCtx context.Context, index int, step entity.PoseStep) ([]byte, error) {
	attempts := o.cfg.MaxCaptureRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if o.isCancelled(waitCtx) {
			return nil, ErrCancelled
		}
		o.emit(Event{Type: EventCapture, PoseIndex: index, Step: &step, Attempt: attempt})

		frame, err := o.deps.Source.Capture(waitCtx, step)
		if o.isCancelled(waitCtx) {
			return nil, ErrCancelled
		}
		if err == nil && len(frame) >= o.cfg.MinFrameBytes && len(frame) > 0 {
			return frame, nil
		}

		fields := logrus.Fields{
			"request_id": contextPkg.GetRequestID(waitCtx),
			"pose":       step.Pose,
			"attempt":    attempt,
			"bytes":      len(frame),
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		o.deps.Log.WithFields(fields).Warn("Frame capture failed")

		if attempt < attempts {
			if err := o.sleep(waitCtx, o.cfg.CaptureBackoff*time.Duration(attempt)); err != nil {
				return nil, ErrCancelled
			}
		}
	}

	return nil, ErrCaptureFailed
}

func (o *Orchestrator) finalize(ctx context.Context, userID string, frames [][]byte, labels []entity.PoseID) (entity.FaceScan, error) {
	if len(frames) == 0 {
		return entity.FaceScan{}, ErrNoImages
	}

	extraction := o.deps.Extractor.ExtractMetrics(ctx, frames, labels)
	metrics, report := o.deps.Validator.Validate(ctx, extraction.Raw)

	assessment := entity.ScanAssessment{
		Metrics:        metrics,
		Report:         report,
		UsedFallback:   extraction.Fallback,
		FallbackReason: extraction.Reason,
	}

	scan, err := o.deps.Persister.SaveScan(ctx, userID, CenterFrame(frames, labels), len(frames), assessment)
	if err != nil {
		return entity.FaceScan{}, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return scan, nil
}

// CenterFrame picks the reference frame stored with a scan: the first
// center-pose frame, or the first frame when no center pose was kept.
func CenterFrame(frames [][]byte, labels []entity.PoseID) []byte {
	if len(frames) == 0 {
		return nil
	}
	for i, pose := range labels {
		if pose == entity.PoseCenter && i < len(frames) {
			return frames[i]
		}
	}
	return frames[0]
}

func (o *Orchestrator) accept(frame []byte, pose entity.PoseID) {
	o.mu.Lock()
	o.frames = append(o.frames, frame)
	o.labels = append(o.labels, pose)
	o.mu.Unlock()
}

func (o *Orchestrator) isCancelled(waitCtx context.Context) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled || waitCtx.Err() != nil
}

func (o *Orchestrator) setStatus(status Status) {
	o.mu.Lock()
	o.status = status
	o.mu.Unlock()
	o.emit(Event{Type: EventStatus, Status: status})
}

func (o *Orchestrator) notice(index int, level string, message string) {
	o.emit(Event{Type: EventNotice, PoseIndex: index, Level: level, Message: message})
}

func (o *Orchestrator) emit(event Event) {
	o.deps.Listener.OnEvent(event)
}

// Frames returns a copy of the frames accepted so far in the running scan.
func (o *Orchestrator) Frames() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]byte(nil), o.frames...)
}
