package scanHandler

import (
	"FaceScan/internal/api/scan"
	"FaceScan/internal/capture"
	"FaceScan/internal/entity"
	"FaceScan/internal/middleware"
	contextPkg "FaceScan/pkg/context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// wsMaxFrameBytes is the largest frame accepted from the camera. Messages up to
// twice that are read and rejected with an error; anything larger closes the
// socket with 1009.
var wsMaxFrameBytes int64 = 8 << 20

var errFrameTooLarge = errors.New("frame exceeds size limit")

// wsWriter sends JSON frames with a bounded write deadline.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) WriteJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	if err := w.conn.WriteJSON(v); err != nil {
		return err
	}
	return w.conn.SetWriteDeadline(time.Time{})
}

// handleCaptureWebSocket runs one capture surface per connection. Binary
// messages are frames, text messages are start/resolve/cancel commands.
func (h *ScanHandler) handleCaptureWebSocket(c *websocket.Conn) {
	user, ok := c.Locals("user").(entity.UserLoginData)
	if !ok {
		_ = c.WriteJSON(scan.ServerError{Type: "error", Error: "Unauthorized", Code: "UNAUTHORIZED"})
		return
	}

	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	ctx := contextPkg.WithRequestID(context.Background(), requestID)
	deviceID := c.Query("device_id")

	logger := h.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"user_id":    user.ID,
		"device_id":  deviceID,
	})
	logger.Info("Capture WebSocket client connected")
	defer logger.Info("Capture WebSocket client disconnected")

	remote := capture.NewRemote(&wsWriter{conn: c}, h.captureCfg.CaptureTimeout, h.log)
	session := h.scanService.NewSession(capture.SurfaceKey(user.ID, deviceID), remote)
	defer func() {
		if err := session.Cancel(); err != nil {
			logger.WithField("error", err.Error()).Info("Scan left to finish after disconnect")
		}
	}()

	c.SetPingHandler(func(data string) error {
		h.log.Debug("Received ping, sending pong")
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	sendError := func(err error, code string) {
		if writeErr := remote.Send(scan.ServerError{Type: "error", Error: err.Error(), Code: code}); writeErr != nil {
			logger.WithField("error", writeErr.Error()).Warn("Error sending error message")
		}
	}

	c.SetReadLimit(2 * wsMaxFrameBytes)

	for {
		if err := c.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			logger.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("Capture WebSocket error: %v", err)
			} else {
				logger.Info("Capture WebSocket connection closed")
			}
			break
		}

		switch messageType {
		case websocket.BinaryMessage:
			if int64(len(message)) > wsMaxFrameBytes {
				sendError(errFrameTooLarge, "FRAME_TOO_LARGE")
				continue
			}
			if err := remote.SubmitFrame(message); err != nil {
				sendError(err, "NOT_SCANNING")
			}
		case websocket.TextMessage:
			var msg scan.ClientMessage
			if err := jsoniter.Unmarshal(message, &msg); err != nil {
				sendError(errors.New("invalid message"), "INVALID_MESSAGE")
				continue
			}
			h.handleClientMessage(ctx, user, session, remote, msg, sendError)
		default:
			logger.Warnf("Received unexpected message type: %d", messageType)
		}
	}
}

func (h *ScanHandler) handleClientMessage(
	ctx context.Context,
	user entity.UserLoginData,
	session *capture.Orchestrator,
	remote *capture.Remote,
	msg scan.ClientMessage,
	sendError func(err error, code string),
) {
	switch msg.Type {
	case scan.ClientStart:
		if !session.Start(ctx, user.ID) {
			sendError(scan.ErrScanBusy, "SCAN_BUSY")
		}
	case scan.ClientResolve:
		if err := remote.ResolvePrompt(capture.Choice(msg.Choice)); err != nil {
			code := "NO_PENDING_PROMPT"
			if errors.Is(err, capture.ErrInvalidChoice) {
				code = "INVALID_CHOICE"
			}
			sendError(err, code)
		}
	case scan.ClientCancel:
		if err := session.Cancel(); err != nil {
			sendError(err, "CANCEL_REJECTED")
		}
	default:
		sendError(errors.New("unknown message type"), "INVALID_MESSAGE")
	}
}
