package scan

import (
	"time"

	"FaceScan/internal/entity"
)

const (
	PeriodAll   = "all"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

func IsValidPeriod(period string) bool {
	return period == PeriodAll || period == PeriodWeek || period == PeriodMonth
}

type PoseCheckRequest struct {
	ImageBase64  string `json:"image_base64" validate:"required"`
	RequiredPose string `json:"required_pose" validate:"required,oneof=center left right up down"`
}

type AnalyzeRequest struct {
	Images []string `json:"images" validate:"required,min=1,max=6,dive,required"`
	Poses  []string `json:"poses" validate:"omitempty,max=6,dive,oneof=center left right up down"`
}

type ScanResponse struct {
	ID           string           `json:"id"`
	ScanDate     string           `json:"scan_date"`
	ImageURL     string           `json:"image_url,omitempty"`
	FrameCount   int              `json:"frame_count"`
	Metrics      entity.MetricSet `json:"metrics"`
	LowSpread    bool             `json:"low_spread"`
	UsedFallback bool             `json:"used_fallback"`
	CreatedAt    string           `json:"created_at"`
}

type AnalyzeResponse struct {
	Scan           ScanResponse            `json:"scan"`
	Report         entity.ValidationReport `json:"report"`
	FallbackReason string                  `json:"fallback_reason,omitempty"`
}

type ScanListResponse struct {
	Period string         `json:"period"`
	Count  int            `json:"count"`
	Scans  []ScanResponse `json:"scans"`
}

type ProtocolResponse struct {
	Count int               `json:"count"`
	Steps []entity.PoseStep `json:"steps"`
}

// ClientMessage is a text frame sent by a capture client over the socket.
// Binary frames carry images and are not wrapped.
type ClientMessage struct {
	Type   string `json:"type"`
	Choice string `json:"choice,omitempty"`
}

const (
	ClientStart   = "start"
	ClientResolve = "resolve"
	ClientCancel  = "cancel"
)

type ServerError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func NewScanResponse(s entity.FaceScan) ScanResponse {
	return ScanResponse{
		ID:           s.ID,
		ScanDate:     s.ScanDate.Format(time.RFC3339),
		ImageURL:     s.ImageURL,
		FrameCount:   s.FrameCount,
		Metrics:      s.Metrics,
		LowSpread:    s.LowSpread,
		UsedFallback: s.UsedFallback,
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
	}
}
