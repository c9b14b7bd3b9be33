package oracle

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"FaceScan/internal/entity"
	"FaceScan/pkg/observability"
	"FaceScan/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

type fakeModel struct {
	mu       sync.Mutex
	content  Content
	err      error
	requests []Request
	deadline bool
}

func (f *fakeModel) Name() string { return "fake" }

func (f *fakeModel) Generate(ctx context.Context, req Request) (Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	_, f.deadline = ctx.Deadline()
	return f.content, f.err
}

func newTestClient(t *testing.T, model Model) (*Client, *prometheus.Registry) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	client := New(model, logger, observability.NewPromObs(reg), utils.New(), Options{})
	return client, reg
}

func pngFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: 180, G: 140, B: 110, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCheckPose_Accepted(t *testing.T) {
	model := &fakeModel{content: BlocksContent{{Type: "text", Payload: `{"correctPosition": true, "message": "Great"}`}}}
	client, reg := newTestClient(t, model)

	res := client.CheckPose(context.Background(), pngFrame(t, 16, 16), entity.PoseUp)

	assert.True(t, res.Ready)
	assert.True(t, res.CorrectPosition)
	assert.False(t, res.Unavailable)
	assert.Equal(t, ConfidenceReady, res.Confidence)
	assert.Equal(t, "Great", res.Message)

	require.Len(t, model.requests, 1)
	assert.True(t, model.requests[0].JSON)
	assert.True(t, model.deadline)
	assert.Len(t, model.requests[0].Images, 1)
	assert.Contains(t, model.requests[0].Prompt, `"up"`)

	expected := `
# HELP facescan_pose_checks_total Pose checks by outcome.
# TYPE facescan_pose_checks_total counter
facescan_pose_checks_total{outcome="accepted"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "facescan_pose_checks_total"))
	count, err := testutil.GatherAndCount(reg, "facescan_oracle_request_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCheckPose_Mismatch(t *testing.T) {
	model := &fakeModel{content: TextContent(`{"correctPosition": false, "message": "Please remove your glasses"}`)}
	client, _ := newTestClient(t, model)

	res := client.CheckPose(context.Background(), []byte("not-an-image-but-sent-anyway"), entity.PoseCenter)

	assert.False(t, res.Ready)
	assert.False(t, res.CorrectPosition)
	assert.False(t, res.Unavailable)
	assert.Equal(t, 0, res.Confidence)
	assert.Equal(t, "Please remove your glasses", res.Message)
	require.Len(t, model.requests, 1)
	assert.Equal(t, []byte("not-an-image-but-sent-anyway"), model.requests[0].Images[0])
}

func TestCheckPose_MismatchWithoutMessageGetsDefault(t *testing.T) {
	client, _ := newTestClient(t, &fakeModel{content: TextContent(`{"correctPosition": false}`)})

	res := client.CheckPose(context.Background(), []byte("frame"), entity.PoseCenter)

	assert.False(t, res.Unavailable)
	assert.NotEmpty(t, res.Message)
}

func TestCheckPose_Unavailable(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		frame []byte
	}{
		{name: "no credentials", model: nil, frame: []byte("frame")},
		{name: "transport error", model: &fakeModel{err: errors.New("dial tcp: timeout")}, frame: []byte("frame")},
		{name: "no content", model: &fakeModel{content: nil}, frame: []byte("frame")},
		{name: "unparsable", model: &fakeModel{content: TextContent("I think the pose is fine")}, frame: []byte("frame")},
		{name: "empty frame", model: &fakeModel{content: TextContent(`{"correctPosition": true}`)}, frame: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.model)

			res := client.CheckPose(context.Background(), tt.frame, entity.PoseLeft)

			assert.False(t, res.Ready)
			assert.False(t, res.CorrectPosition)
			assert.True(t, res.Unavailable)
			assert.Equal(t, 0, res.Confidence)
			assert.NotEmpty(t, res.Message)
		})
	}
}

func TestExtractMetrics_Success(t *testing.T) {
	model := &fakeModel{content: TextContent("```json\n{\"water_retention\": 40, \"inflammation_index\": 45, \"lymph_congestion_score\": 30, \"facial_fat_layer\": 50, \"definition_score\": 60, \"potential_ceiling\": 0}\n```")}
	client, _ := newTestClient(t, model)

	frames := [][]byte{pngFrame(t, 2048, 1024), []byte("b"), []byte("c")}
	labels := []entity.PoseID{entity.PoseCenter, entity.PoseLeft, entity.PoseRight}

	res := client.ExtractMetrics(context.Background(), frames, labels)

	assert.False(t, res.Fallback)
	assert.Empty(t, res.Reason)
	assert.Equal(t, 40.0, res.Raw["water_retention"])
	assert.Equal(t, 60.0, res.Raw["definition_score"])

	require.Len(t, model.requests, 1)
	req := model.requests[0]
	assert.Len(t, req.Images, 3)
	sent, _, err := image.Decode(bytes.NewReader(req.Images[0]))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxDimension, sent.Bounds().Dx())
	assert.Equal(t, DefaultMaxDimension/2, sent.Bounds().Dy())
	assert.Equal(t, []byte("b"), req.Images[1])
	assert.Contains(t, req.Prompt, "Image 2: ")
	assert.Contains(t, req.Prompt, "(left)")
}

func TestExtractMetrics_TruncatesAndFillsLabels(t *testing.T) {
	model := &fakeModel{content: TextContent(`{"water_retention": 40}`)}
	client, _ := newTestClient(t, model)

	frames := make([][]byte, 8)
	for i := range frames {
		frames[i] = []byte{byte(i + 1)}
	}

	res := client.ExtractMetrics(context.Background(), frames, nil)

	assert.False(t, res.Fallback)
	require.Len(t, model.requests, 1)
	assert.Len(t, model.requests[0].Images, MaxImages)
	assert.Contains(t, model.requests[0].Prompt, "6 photo(s)")
	assert.Contains(t, model.requests[0].Prompt, "(down)")
}

func TestExtractMetrics_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		model  Model
		frames [][]byte
		reason string
	}{
		{name: "no images", model: &fakeModel{}, frames: nil, reason: FallbackNoImages},
		{name: "no credentials", model: nil, frames: [][]byte{[]byte("a")}, reason: FallbackNoCredentials},
		{name: "transport", model: &fakeModel{err: context.DeadlineExceeded}, frames: [][]byte{[]byte("a")}, reason: FallbackTransport},
		{name: "no content", model: &fakeModel{content: BlocksContent{{Type: "genai.Blob"}}}, frames: [][]byte{[]byte("a")}, reason: FallbackNoContent},
		{name: "parse", model: &fakeModel{content: TextContent("sorry, I cannot help with that")}, frames: [][]byte{[]byte("a")}, reason: FallbackParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, reg := newTestClient(t, tt.model)

			res := client.ExtractMetrics(context.Background(), tt.frames, nil)

			assert.True(t, res.Fallback)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, entity.DefaultRawMetrics(), res.Raw)

			count, err := testutil.GatherAndCount(reg, "facescan_metric_extraction_fallbacks_total")
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestClientTimeoutOption(t *testing.T) {
	logger, _ := test.NewNullLogger()
	client := New(nil, logger, nil, nil, Options{Timeout: 5 * time.Second})

	assert.Equal(t, 5*time.Second, client.opts.Timeout)
	assert.Equal(t, DefaultMaxDimension, client.opts.MaxDimension)
	assert.False(t, client.Available())
	assert.NoError(t, client.Close())
}
