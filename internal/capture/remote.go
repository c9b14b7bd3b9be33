package capture

import (
	"errors"
	"sync"
	"time"

	"FaceScan/internal/entity"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

var ErrCaptureTimeout = errors.New("timed out waiting for a frame")

// JSONWriter is the sending half of a client connection.
type JSONWriter interface {
	WriteJSON(v interface{}) error
}

// Remote bridges an orchestrator to a client that captures frames itself. It
// is the orchestrator's FrameSource, Prompter and Listener at once: events go
// out through the writer, frames and prompt answers come back through
// SubmitFrame and ResolvePrompt.
type Remote struct {
	writeMu sync.Mutex
	writer  JSONWriter

	captureTimeout time.Duration
	log            *logrus.Logger

	mu            sync.Mutex
	status        Status
	promptPending bool

	frames  chan []byte
	choices chan Choice
}

func NewRemote(writer JSONWriter, captureTimeout time.Duration, log *logrus.Logger) *Remote {
	return &Remote{
		writer:         writer,
		captureTimeout: captureTimeout,
		log:            log,
		status:         StatusIdle,
		frames:         make(chan []byte, 1),
		choices:        make(chan Choice, 1),
	}
}

// Send writes a message to the client. Writes are serialized because the
// orchestrator and the connection handler share the writer.
func (r *Remote) Send(v interface{}) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.writer.WriteJSON(v)
}

func (r *Remote) OnEvent(event Event) {
	r.mu.Lock()
	switch event.Type {
	case EventStatus:
		r.status = event.Status
		if event.Status != StatusScanning {
			r.promptPending = false
		}
	case EventCapture:
		// a frame sent before this request belongs to an older attempt
		select {
		case <-r.frames:
		default:
		}
	case EventPrompt:
		select {
		case <-r.choices:
		default:
		}
		r.promptPending = true
	}
	r.mu.Unlock()

	if err := r.Send(event); err != nil {
		r.log.WithFields(logrus.Fields{
			"event": event.Type,
			"error": err.Error(),
		}).Warn("Failed to send capture event")
	}
}

// SubmitFrame hands a captured frame to the waiting orchestrator. Frames are
// only accepted while scanning; a newer frame replaces one not yet consumed.
func (r *Remote) SubmitFrame(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusScanning {
		return ErrNotScanning
	}

	select {
	case r.frames <- frame:
	default:
		select {
		case <-r.frames:
		default:
		}
		r.frames <- frame
	}
	return nil
}

func (r *Remote) ResolvePrompt(choice Choice) error {
	if !choice.Valid() {
		return ErrInvalidChoice
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.promptPending {
		return ErrNoPendingPrompt
	}
	r.promptPending = false
	r.choices <- choice
	return nil
}

func (r *Remote) Capture(ctx context.Context, _ entity.PoseStep) ([]byte, error) {
	timeout := r.captureTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().CaptureTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-r.frames:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrCaptureTimeout
	}
}

func (r *Remote) Ask(ctx context.Context, _ entity.PoseStep, _ string, _ int) (Choice, error) {
	select {
	case choice := <-r.choices:
		return choice, nil
	case <-ctx.Done():
		r.mu.Lock()
		r.promptPending = false
		r.mu.Unlock()
		return "", ctx.Err()
	}
}
