package scanHandler

import (
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialCapture(t *testing.T, auth string) *websocket.Conn {
	t.Helper()
	app, _ := newTestApp(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	header := http.Header{}
	if auth != "" {
		header.Set("Authorization", auth)
	}

	url := "ws://" + ln.Addr().String() + "/api/v1/scan/ws?device_id=test-device"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestCaptureWebSocket_FullScan(t *testing.T) {
	conn := dialCapture(t, bearer(t, "user-1"))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "start"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "start"}))

	var (
		captures int
		cues     int
		busy     bool
		statuses []string
		done     map[string]interface{}
	)

	for done == nil {
		msg := readMessage(t, conn)
		switch msg["type"] {
		case "capture":
			captures++
			frame := []byte(strings.Repeat("f", 64))
			require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))
		case "prompt":
			require.NoError(t, conn.WriteJSON(map[string]string{"type": "resolve", "choice": "skip"}))
		case "cue":
			cues++
		case "status":
			statuses = append(statuses, msg["status"].(string))
		case "error":
			if msg["code"] == "SCAN_BUSY" {
				busy = true
			}
		case "completed":
			done = msg
		case "failed":
			t.Fatalf("scan failed: %v", msg["error"])
		}
	}

	assert.True(t, busy, "second start must be rejected while scanning")
	assert.Equal(t, 6, captures)
	assert.Equal(t, 6, cues)
	assert.Equal(t, []string{"positioning", "scanning", "finalizing"}, statuses[:3])

	scanned := done["scan"].(map[string]interface{})
	assert.Equal(t, float64(6), scanned["frame_count"])
	assert.Equal(t, "user-1", scanned["user_id"])
}

func TestCaptureWebSocket_CommandErrors(t *testing.T) {
	conn := dialCapture(t, bearer(t, "user-1"))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("early frame")))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "NOT_SCANNING", msg["code"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "resolve", "choice": "skip"}))
	msg = readMessage(t, conn)
	assert.Equal(t, "NO_PENDING_PROMPT", msg["code"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "resolve", "choice": "maybe"}))
	msg = readMessage(t, conn)
	assert.Equal(t, "INVALID_CHOICE", msg["code"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg = readMessage(t, conn)
	assert.Equal(t, "INVALID_MESSAGE", msg["code"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "cancel"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	msg = readMessage(t, conn)
	assert.Equal(t, "INVALID_MESSAGE", msg["code"])
}

func TestCaptureWebSocket_CancelDuringScan(t *testing.T) {
	conn := dialCapture(t, bearer(t, "user-1"))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "start"}))

	for {
		msg := readMessage(t, conn)
		if msg["type"] == "capture" {
			require.NoError(t, conn.WriteJSON(map[string]string{"type": "cancel"}))
		}
		if msg["type"] == "cancelled" {
			break
		}
		require.NotEqual(t, "completed", msg["type"])
	}
}

func TestCaptureWebSocket_FrameSizeLimit(t *testing.T) {
	previous := wsMaxFrameBytes
	wsMaxFrameBytes = 1024
	t.Cleanup(func() { wsMaxFrameBytes = previous })

	conn := dialCapture(t, bearer(t, "user-1"))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 1500)))
	msg := readMessage(t, conn)
	assert.Equal(t, "FRAME_TOO_LARGE", msg["code"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "resolve", "choice": "skip"}))
	msg = readMessage(t, conn)
	assert.Equal(t, "NO_PENDING_PROMPT", msg["code"], "socket stays open after a rejected frame")

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 4096)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)
}

func TestCaptureWebSocket_Unauthorized(t *testing.T) {
	app, _ := newTestApp(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/scan/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
