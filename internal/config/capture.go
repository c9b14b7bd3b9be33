package config

import (
	"os"
	"strconv"
	"time"

	"FaceScan/internal/capture"
	"FaceScan/internal/oracle"
	"github.com/sirupsen/logrus"
)

// LoadCaptureConfig reads the SCAN_* tuning variables on top of the defaults.
// Durations are in milliseconds.
func LoadCaptureConfig(log *logrus.Logger) capture.Config {
	cfg := capture.DefaultConfig()

	cfg.MaxCaptureRetries = envInt(log, "SCAN_MAX_CAPTURE_RETRIES", cfg.MaxCaptureRetries)
	cfg.MaxPoseRetries = envInt(log, "SCAN_MAX_POSE_RETRIES", cfg.MaxPoseRetries)
	cfg.MinFrameBytes = envInt(log, "SCAN_MIN_FRAME_BYTES", cfg.MinFrameBytes)
	cfg.CaptureBackoff = envMillis(log, "SCAN_CAPTURE_BACKOFF_MS", cfg.CaptureBackoff)
	cfg.CaptureTimeout = envMillis(log, "SCAN_CAPTURE_TIMEOUT_MS", cfg.CaptureTimeout)
	cfg.PositioningDelay = envMillis(log, "SCAN_POSITIONING_DELAY_MS", cfg.PositioningDelay)
	cfg.PoseTransitionPause = envMillis(log, "SCAN_POSE_PAUSE_MS", cfg.PoseTransitionPause)
	cfg.LockTTL = envMillis(log, "SCAN_LOCK_TTL_MS", cfg.LockTTL)

	return cfg
}

// LoadOracleOptions reads ORACLE_* request tuning.
func LoadOracleOptions(log *logrus.Logger) oracle.Options {
	return oracle.Options{
		Timeout:      envMillis(log, "ORACLE_TIMEOUT_MS", oracle.DefaultTimeout),
		MaxDimension: envInt(log, "ORACLE_MAX_DIMENSION", oracle.DefaultMaxDimension),
		Quality:      envInt(log, "ORACLE_JPEG_QUALITY", oracle.DefaultQuality),
	}
}

func envInt(log *logrus.Logger, key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		log.WithFields(logrus.Fields{
			"key":     key,
			"value":   raw,
			"default": fallback,
		}).Warn("Ignoring invalid numeric setting")
		return fallback
	}
	return value
}

func envMillis(log *logrus.Logger, key string, fallback time.Duration) time.Duration {
	ms := envInt(log, key, -1)
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
