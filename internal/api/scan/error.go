package scan

import "FaceScan/pkg/response"

var (
	ErrScanNotFound      = response.NewError(404, "scan not found")
	ErrScanNotOwned      = response.NewError(403, "scan does not belong to user")
	ErrInvalidPose       = response.NewError(400, "invalid pose")
	ErrInvalidImage      = response.NewError(400, "invalid image data")
	ErrTooManyImages     = response.NewError(400, "at most 6 images are allowed")
	ErrPoseCountMismatch = response.NewError(400, "poses must match the number of images")
	ErrInvalidPeriod     = response.NewError(400, "invalid period")
	ErrScanBusy          = response.NewError(409, "a scan is already running on this device")
	ErrNoImagesCaptured  = response.NewError(422, "no images captured")
	ErrUploadFrame       = response.NewError(500, "failed to upload scan image")
	ErrSaveScan          = response.NewError(500, "failed to save scan")
	ErrDeleteScan        = response.NewError(500, "failed to delete scan")
)
