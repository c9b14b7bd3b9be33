package config

import (
	"io"
	"testing"
	"time"

	"FaceScan/internal/capture"
	"FaceScan/internal/oracle"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestLoadCaptureConfig_Defaults(t *testing.T) {
	assert.Equal(t, capture.DefaultConfig(), LoadCaptureConfig(quietLogger()))
}

func TestLoadCaptureConfig_Overrides(t *testing.T) {
	t.Setenv("SCAN_MAX_POSE_RETRIES", "5")
	t.Setenv("SCAN_CAPTURE_TIMEOUT_MS", "2500")
	t.Setenv("SCAN_POSE_PAUSE_MS", "0")
	t.Setenv("SCAN_MIN_FRAME_BYTES", "oops")

	cfg := LoadCaptureConfig(quietLogger())
	assert.Equal(t, 5, cfg.MaxPoseRetries)
	assert.Equal(t, 2500*time.Millisecond, cfg.CaptureTimeout)
	assert.Equal(t, time.Duration(0), cfg.PoseTransitionPause)
	assert.Equal(t, capture.DefaultConfig().MinFrameBytes, cfg.MinFrameBytes)
}

func TestLoadOracleOptions(t *testing.T) {
	t.Setenv("ORACLE_TIMEOUT_MS", "30000")

	opts := LoadOracleOptions(quietLogger())
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, oracle.DefaultMaxDimension, opts.MaxDimension)
	assert.Equal(t, oracle.DefaultQuality, opts.Quality)
}

func TestNewValidatorUsesJSONNames(t *testing.T) {
	type payload struct {
		RequiredPose string `json:"required_pose" validate:"required"`
	}

	err := NewValidator().Struct(payload{})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "required_pose")
	}
}
