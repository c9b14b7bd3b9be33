package scanService

import (
	"FaceScan/internal/api/scan"
	"FaceScan/internal/capture"
	"FaceScan/internal/entity"
	"FaceScan/internal/oracle"
	contextPkg "FaceScan/pkg/context"
	"FaceScan/pkg/observability"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const scanImageContentType = "image/jpeg"

func scanImageKey(userID, scanID string) string {
	return fmt.Sprintf("face-scans/%s/%s.jpg", userID, scanID)
}

func (s *scanService) CheckPose(ctx context.Context, req scan.PoseCheckRequest) (oracle.PoseCheckResult, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if !entity.IsValidPose(req.RequiredPose) {
		return oracle.PoseCheckResult{}, scan.ErrInvalidPose
	}

	frame, err := s.utils.DecodeBase64Image(req.ImageBase64)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Pose check image could not be decoded")
		return oracle.PoseCheckResult{}, scan.ErrInvalidImage
	}

	result := s.oracle.CheckPose(ctx, frame, entity.PoseID(req.RequiredPose))

	s.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"pose":        req.RequiredPose,
		"ready":       result.Ready,
		"unavailable": result.Unavailable,
	}).Debug("Pose check finished")

	return result, nil
}

func (s *scanService) Analyze(ctx context.Context, userID string, req scan.AnalyzeRequest) (entity.FaceScan, entity.ScanAssessment, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if len(req.Images) == 0 {
		return entity.FaceScan{}, entity.ScanAssessment{}, scan.ErrNoImagesCaptured
	}
	if len(req.Images) > oracle.MaxImages {
		return entity.FaceScan{}, entity.ScanAssessment{}, scan.ErrTooManyImages
	}
	if len(req.Poses) > 0 && len(req.Poses) != len(req.Images) {
		return entity.FaceScan{}, entity.ScanAssessment{}, scan.ErrPoseCountMismatch
	}

	frames := make([][]byte, 0, len(req.Images))
	labels := make([]entity.PoseID, 0, len(req.Images))
	for i, encoded := range req.Images {
		frame, err := s.utils.DecodeBase64Image(encoded)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"index":      i,
				"error":      err.Error(),
			}).Warn("Analyze image could not be decoded")
			return entity.FaceScan{}, entity.ScanAssessment{}, scan.ErrInvalidImage
		}
		frames = append(frames, frame)

		if len(req.Poses) > 0 {
			if !entity.IsValidPose(req.Poses[i]) {
				return entity.FaceScan{}, entity.ScanAssessment{}, scan.ErrInvalidPose
			}
			labels = append(labels, entity.PoseID(req.Poses[i]))
			continue
		}
		step, _ := entity.StepAt(i)
		labels = append(labels, step.Pose)
	}

	extraction := s.oracle.ExtractMetrics(ctx, frames, labels)
	metrics, report := s.validator.Validate(ctx, extraction.Raw)
	assessment := entity.ScanAssessment{
		Metrics:        metrics,
		Report:         report,
		UsedFallback:   extraction.Fallback,
		FallbackReason: extraction.Reason,
	}

	faceScan, err := s.SaveScan(ctx, userID, capture.CenterFrame(frames, labels), len(frames), assessment)
	if err != nil {
		s.observer.ScanFinished(observability.ScanResultFailed)
		return entity.FaceScan{}, entity.ScanAssessment{}, err
	}
	s.observer.ScanFinished(observability.ScanResultCompleted)

	return faceScan, assessment, nil
}

// SaveScan stores the reference frame and the scan row. Nothing is kept when
// either step fails.
func (s *scanService) SaveScan(ctx context.Context, userID string, centerFrame []byte, frameCount int, assessment entity.ScanAssessment) (entity.FaceScan, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.scanRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return entity.FaceScan{}, err
	}

	now := time.Now()
	ULID, err := s.utils.NewULIDFromTimestamp(now)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return entity.FaceScan{}, err
	}

	var imageURL string
	if s.s3 != nil && len(centerFrame) > 0 {
		imageURL, err = s.s3.UploadBytes(scanImageKey(userID, ULID), centerFrame, scanImageContentType)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"scan_id":    ULID,
				"error":      err.Error(),
			}).Error("Failed to upload scan image")
			return entity.FaceScan{}, scan.ErrUploadFrame
		}
	}

	faceScan := entity.FaceScan{
		ID:           ULID,
		UserID:       userID,
		ScanDate:     now,
		ImageURL:     imageURL,
		FrameCount:   frameCount,
		Metrics:      assessment.Metrics,
		LowSpread:    assessment.Report.LowSpread,
		UsedFallback: assessment.UsedFallback,
		CreatedAt:    now,
	}

	if err := repo.Scan.CreateScan(ctx, faceScan); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    ULID,
			"error":      err.Error(),
		}).Error("Failed to save scan")

		if imageURL != "" {
			if delErr := s.s3.DeleteFile(imageURL); delErr != nil {
				s.log.WithFields(logrus.Fields{
					"request_id": requestID,
					"scan_id":    ULID,
					"error":      delErr.Error(),
				}).Warn("Failed to remove orphaned scan image")
			}
		}
		return entity.FaceScan{}, scan.ErrSaveScan
	}

	s.log.WithFields(logrus.Fields{
		"request_id":    requestID,
		"scan_id":       ULID,
		"user_id":       userID,
		"frame_count":   frameCount,
		"low_spread":    faceScan.LowSpread,
		"used_fallback": faceScan.UsedFallback,
	}).Info("Scan saved")

	return faceScan, nil
}

func (s *scanService) GetHistory(ctx context.Context, userID string, period string) ([]entity.FaceScan, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if period == "" {
		period = scan.PeriodAll
	}
	if !scan.IsValidPeriod(period) {
		return nil, scan.ErrInvalidPeriod
	}

	repo, err := s.scanRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return nil, err
	}

	scans, err := repo.Scan.GetScansByPeriod(ctx, userID, period)
	if err != nil {
		return nil, err
	}

	for i := range scans {
		scans[i].ImageURL = s.presign(requestID, scans[i].ImageURL)
	}

	return scans, nil
}

func (s *scanService) GetScan(ctx context.Context, userID string, id string) (entity.FaceScan, error) {
	requestID := contextPkg.GetRequestID(ctx)

	faceScan, err := s.ownedScan(ctx, requestID, userID, id)
	if err != nil {
		return entity.FaceScan{}, err
	}

	faceScan.ImageURL = s.presign(requestID, faceScan.ImageURL)
	return faceScan, nil
}

func (s *scanService) DeleteScan(ctx context.Context, userID string, id string) error {
	requestID := contextPkg.GetRequestID(ctx)

	faceScan, err := s.ownedScan(ctx, requestID, userID, id)
	if err != nil {
		return err
	}

	repo, err := s.scanRepository.NewClient(false)
	if err != nil {
		return err
	}

	if err := repo.Scan.DeleteScan(ctx, id); err != nil {
		if errors.Is(err, scan.ErrScanNotFound) {
			return err
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    id,
			"error":      err.Error(),
		}).Error("Failed to delete scan")
		return scan.ErrDeleteScan
	}

	if faceScan.ImageURL != "" && s.s3 != nil {
		if err := s.s3.DeleteFile(faceScan.ImageURL); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"scan_id":    id,
				"error":      err.Error(),
			}).Warn("Failed to delete scan image")
		}
	}

	return nil
}

func (s *scanService) ownedScan(ctx context.Context, requestID, userID, id string) (entity.FaceScan, error) {
	repo, err := s.scanRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return entity.FaceScan{}, err
	}

	faceScan, err := repo.Scan.GetScanByID(ctx, id)
	if err != nil {
		return entity.FaceScan{}, err
	}

	if faceScan.UserID != userID {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    id,
			"user_id":    userID,
		}).Warn("Scan requested by a user who does not own it")
		return entity.FaceScan{}, scan.ErrScanNotOwned
	}

	return faceScan, nil
}

// presign returns a short-lived URL for a stored image, or the stored URL
// when signing is not possible.
func (s *scanService) presign(requestID, imageURL string) string {
	if imageURL == "" || s.s3 == nil {
		return imageURL
	}

	signed, err := s.s3.PresignUrl(imageURL)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to presign scan image")
		return imageURL
	}
	return signed
}
