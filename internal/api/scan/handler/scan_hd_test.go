package scanHandler

import (
	"FaceScan/internal/api/scan"
	"FaceScan/internal/capture"
	"FaceScan/internal/entity"
	"FaceScan/internal/middleware"
	"FaceScan/internal/oracle"
	"FaceScan/internal/scoring"
	jwtPkg "FaceScan/pkg/jwt"
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

type fakeService struct {
	mu       sync.Mutex
	log      *logrus.Logger
	saved    []entity.FaceScan
	scans    map[string]entity.FaceScan
	analyzed scan.AnalyzeRequest
	checkErr error
	cfg      capture.Config
	locker   capture.Locker

	// waitDeadline holds Analyze until the request deadline, then returns analyzeErr if set.
	waitDeadline bool
	analyzeErr   error
}

func newFakeService(log *logrus.Logger) *fakeService {
	cfg := capture.DefaultConfig()
	cfg.MinFrameBytes = 1
	cfg.PositioningDelay = 0
	cfg.PoseTransitionPause = 0
	cfg.CaptureTimeout = 2 * time.Second

	return &fakeService{
		log:    log,
		scans:  map[string]entity.FaceScan{},
		cfg:    cfg,
		locker: capture.NewLocalLocker(),
	}
}

func (f *fakeService) SaveScan(_ context.Context, userID string, _ []byte, frameCount int, assessment entity.ScanAssessment) (entity.FaceScan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := entity.FaceScan{
		ID:         "scan-1",
		UserID:     userID,
		ScanDate:   time.Now(),
		FrameCount: frameCount,
		Metrics:    assessment.Metrics,
		CreatedAt:  time.Now(),
	}
	f.saved = append(f.saved, s)
	return s, nil
}

func (f *fakeService) CheckPose(_ context.Context, req scan.PoseCheckRequest) (oracle.PoseCheckResult, error) {
	if f.checkErr != nil {
		return oracle.PoseCheckResult{}, f.checkErr
	}
	return oracle.PoseCheckResult{Ready: true, CorrectPosition: true, Message: "Pose looks good for " + req.RequiredPose, Confidence: 90}, nil
}

func (f *fakeService) Analyze(ctx context.Context, userID string, req scan.AnalyzeRequest) (entity.FaceScan, entity.ScanAssessment, error) {
	f.analyzed = req
	if f.waitDeadline {
		<-ctx.Done()
		if f.analyzeErr != nil {
			return entity.FaceScan{}, entity.ScanAssessment{}, f.analyzeErr
		}
	}
	s := entity.FaceScan{ID: "scan-2", UserID: userID, FrameCount: len(req.Images), Metrics: entity.DefaultMetricSet(), UsedFallback: true}
	return s, entity.ScanAssessment{Metrics: s.Metrics, UsedFallback: true, FallbackReason: oracle.FallbackNoCredentials}, nil
}

func (f *fakeService) GetHistory(_ context.Context, userID string, _ string) ([]entity.FaceScan, error) {
	var out []entity.FaceScan
	for _, s := range f.scans {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeService) GetScan(_ context.Context, userID string, id string) (entity.FaceScan, error) {
	s, ok := f.scans[id]
	if !ok {
		return entity.FaceScan{}, scan.ErrScanNotFound
	}
	if s.UserID != userID {
		return entity.FaceScan{}, scan.ErrScanNotOwned
	}
	return s, nil
}

func (f *fakeService) DeleteScan(ctx context.Context, userID string, id string) error {
	if _, err := f.GetScan(ctx, userID, id); err != nil {
		return err
	}
	delete(f.scans, id)
	return nil
}

type readyChecker struct{}

func (readyChecker) CheckPose(context.Context, []byte, entity.PoseID) oracle.PoseCheckResult {
	return oracle.PoseCheckResult{Ready: true, CorrectPosition: true, Message: "Pose looks good", Confidence: 90}
}

type staticExtractor struct{}

func (staticExtractor) ExtractMetrics(context.Context, [][]byte, []entity.PoseID) oracle.Extraction {
	return oracle.Extraction{Raw: entity.RawMetrics{
		entity.MetricWaterRetention:       70,
		entity.MetricInflammationIndex:    20,
		entity.MetricLymphCongestionScore: 45,
		entity.MetricFacialFatLayer:       60,
		entity.MetricDefinitionScore:      35,
		entity.MetricPotentialCeiling:     0,
	}}
}

func (f *fakeService) NewSession(key string, remote *capture.Remote) *capture.Orchestrator {
	return capture.New(key, capture.Deps{
		Source:    remote,
		Checker:   readyChecker{},
		Extractor: staticExtractor{},
		Validator: scoring.NewValidator(f.log, nil),
		Persister: f,
		Prompter:  remote,
		Listener:  remote,
		Locker:    f.locker,
		Log:       f.log,
	}, f.cfg)
}

const testSecret = "scan-handler-secret"

func newTestApp(t *testing.T) (*fiber.App, *fakeService) {
	t.Helper()
	t.Setenv(middleware.AccessTokenSecret, testSecret)

	log, _ := test.NewNullLogger()
	svc := newFakeService(log)

	app := fiber.New(fiber.Config{JSONEncoder: jsoniter.Marshal, JSONDecoder: jsoniter.Unmarshal})
	mw := middleware.New(log)
	app.Use(mw.NewRequestIDMiddleware())

	h := New(log, validator.New(), mw, svc, svc.cfg)
	h.Start(app.Group("/api/v1"))

	return app, svc
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := jwtPkg.Sign(map[string]interface{}{
		"id":       userID,
		"email":    userID + "@example.com",
		"username": userID,
	}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(t *testing.T, app *fiber.App, method, target, auth string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := jsoniter.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	var decoded map[string]interface{}
	_ = jsoniter.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestGetProtocol(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/scan/protocol", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(6), body["count"])

	steps := body["steps"].([]interface{})
	first := steps[0].(map[string]interface{})
	last := steps[5].(map[string]interface{})
	assert.Equal(t, "center", first["pose"])
	assert.Equal(t, float64(100), last["progress"])
	assert.NotContains(t, first, "description")
}

func TestCheckPose(t *testing.T) {
	app, svc := newTestApp(t)
	auth := bearer(t, "user-1")

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/scan/pose-check", auth, scan.PoseCheckRequest{
		ImageBase64:  "aGVsbG8=",
		RequiredPose: "left",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ready"])
	assert.Equal(t, true, body["correctPosition"])
	assert.Equal(t, float64(90), body["confidence"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/scan/pose-check", auth, scan.PoseCheckRequest{
		ImageBase64:  "aGVsbG8=",
		RequiredPose: "behind",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	svc.checkErr = scan.ErrInvalidImage
	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/scan/pose-check", auth, scan.PoseCheckRequest{
		ImageBase64:  "aGVsbG8=",
		RequiredPose: "up",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_IMAGE", body["code"])
}

func TestCheckPose_RequiresToken(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/scan/pose-check", "", scan.PoseCheckRequest{
		ImageBase64:  "aGVsbG8=",
		RequiredPose: "left",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAnalyze(t *testing.T) {
	app, svc := newTestApp(t)
	auth := bearer(t, "user-1")

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/scan/analyze", auth, scan.AnalyzeRequest{
		Images: []string{"aGVsbG8=", "d29ybGQ="},
		Poses:  []string{"center", "left"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, oracle.FallbackNoCredentials, body["fallback_reason"])

	scanBody := body["scan"].(map[string]interface{})
	assert.Equal(t, float64(2), scanBody["frame_count"])
	assert.Equal(t, true, scanBody["used_fallback"])
	assert.Len(t, svc.analyzed.Images, 2)

	tooMany := make([]string, 7)
	for i := range tooMany {
		tooMany[i] = "aGVsbG8="
	}
	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/scan/analyze", auth, scan.AnalyzeRequest{Images: tooMany})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestAnalyze_SavedScanReturnedPastDeadline(t *testing.T) {
	previous := analyzeTimeout
	analyzeTimeout = 20 * time.Millisecond
	t.Cleanup(func() { analyzeTimeout = previous })

	app, svc := newTestApp(t)
	svc.waitDeadline = true
	auth := bearer(t, "user-1")
	req := scan.AnalyzeRequest{Images: []string{"aGVsbG8="}, Poses: []string{"center"}}

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/scan/analyze", auth, req)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "scan-2", body["scan"].(map[string]interface{})["id"])

	svc.analyzeErr = context.DeadlineExceeded
	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/scan/analyze", auth, req)
	assert.Equal(t, fiber.StatusRequestTimeout, resp.StatusCode)
}

func TestHistoryAndScanLookup(t *testing.T) {
	app, svc := newTestApp(t)
	now := time.Now()
	svc.scans["mine"] = entity.FaceScan{ID: "mine", UserID: "user-1", ScanDate: now, CreatedAt: now, FrameCount: 6}
	svc.scans["theirs"] = entity.FaceScan{ID: "theirs", UserID: "user-2", ScanDate: now, CreatedAt: now, FrameCount: 6}
	auth := bearer(t, "user-1")

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/scan/history?period=week", auth, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "week", body["period"])
	assert.Equal(t, float64(1), body["count"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/scan/history?period=year", auth, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/scan/mine", auth, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "mine", body["id"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/scan/theirs", auth, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "SCAN_NOT_OWNED", body["code"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/scan/missing", auth, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SCAN_NOT_FOUND", body["code"])
}

func TestDeleteScan(t *testing.T) {
	app, svc := newTestApp(t)
	svc.scans["mine"] = entity.FaceScan{ID: "mine", UserID: "user-1"}
	auth := bearer(t, "user-1")

	resp, _ := doJSON(t, app, http.MethodDelete, "/api/v1/scan/mine", auth, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotContains(t, svc.scans, "mine")

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/scan/mine", auth, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/scan/ws", bearer(t, "user-1"), nil)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/scan/ws", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
