package handlerUtil

import (
	"FaceScan/internal/api/scan"
	"FaceScan/internal/capture"
	"FaceScan/pkg/log"
	"FaceScan/pkg/response"
	pkgUtils "FaceScan/pkg/utils"
	"errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// errorCodes gives domain errors a stable machine-readable code.
var errorCodes = []struct {
	err  error
	code string
}{
	{scan.ErrScanNotFound, "SCAN_NOT_FOUND"},
	{scan.ErrScanNotOwned, "SCAN_NOT_OWNED"},
	{scan.ErrInvalidPose, "INVALID_POSE"},
	{scan.ErrInvalidImage, "INVALID_IMAGE"},
	{scan.ErrTooManyImages, "TOO_MANY_IMAGES"},
	{scan.ErrPoseCountMismatch, "POSE_COUNT_MISMATCH"},
	{scan.ErrInvalidPeriod, "INVALID_PERIOD"},
	{scan.ErrScanBusy, "SCAN_BUSY"},
	{scan.ErrNoImagesCaptured, "NO_IMAGES_CAPTURED"},
	{scan.ErrUploadFrame, "UPLOAD_FAILED"},
	{scan.ErrSaveScan, "SAVE_FAILED"},
	{scan.ErrDeleteScan, "DELETE_FAILED"},
}

func codeFor(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return ""
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	if status, ok := response.StatusCode(err); ok {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       status,
			"path":       path,
			"operation":  operation,
		}).Warn("Operation failed with error response")
		return c.Status(status).JSON(ErrorResponse{
			Error: err.Error(),
			Code:  codeFor(err),
		})
	}

	// Capture session errors
	if errors.Is(err, capture.ErrBusy) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Capture surface busy")
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error: "A scan is already running on this device",
			Code:  "SCAN_BUSY",
		})
	}

	if errors.Is(err, capture.ErrNoImages) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Scan finished without images")
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
			Error: "No images captured",
			Code:  "NO_IMAGES_CAPTURED",
		})
	}

	if errors.Is(err, capture.ErrSaveFailed) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Error("Scan could not be saved")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "Save failed",
			Code:    "SAVE_FAILED",
			Details: err.Error(),
		})
	}

	// Image payload errors
	if errors.Is(err, pkgUtils.ErrInvalidImage) || errors.Is(err, pkgUtils.ErrEmptyImage) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Invalid image payload")
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_IMAGE",
		})
	}

	if errors.Is(err, pkgUtils.ErrImageTooBig) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Image too large")
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(ErrorResponse{
			Error: err.Error(),
			Code:  "IMAGE_TOO_LARGE",
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Request rejected")
		return c.Status(fiberErr.Code).JSON(ErrorResponse{
			Error: fiberErr.Message,
		})
	}

	traceID := log.ErrorWithTraceID(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}, "Unhandled error")

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "Internal server error",
		Code:    "INTERNAL_ERROR",
		Details: "trace id " + traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Validation failed: " + err.Error(),
		"code":  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(utils.StatusMessage(fiber.StatusRequestTimeout))
}

func (h *ErrorHandler) HandleUnauthorized(c *fiber.Ctx, requestID string, message string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"path":       c.Path(),
		"message":    message,
	}).Warn("Unauthorized access")

	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": message,
		"code":  "UNAUTHORIZED",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
