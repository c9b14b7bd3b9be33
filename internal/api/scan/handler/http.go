package scanHandler

import (
	scanService "FaceScan/internal/api/scan/service"
	"FaceScan/internal/capture"
	"FaceScan/internal/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type ScanHandler struct {
	log         *logrus.Logger
	validator   *validator.Validate
	middleware  middleware.Middleware
	scanService scanService.IScanService
	captureCfg  capture.Config
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	scanService scanService.IScanService,
	captureCfg capture.Config,
) *ScanHandler {
	return &ScanHandler{
		log:         log,
		validator:   validate,
		middleware:  middleware,
		scanService: scanService,
		captureCfg:  captureCfg,
	}
}

func (h *ScanHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	scan := srv.Group("/scan")

	scan.Get("/protocol", h.GetProtocol)
	scan.Post("/pose-check", h.middleware.NewTokenMiddleware, h.CheckPose)
	scan.Post("/analyze", h.middleware.NewTokenMiddleware, h.Analyze)
	scan.Get("/history", h.middleware.NewTokenMiddleware, h.GetHistory)

	scan.Use("/ws", h.middleware.NewTokenMiddleware, wsMiddleware)
	scan.Get("/ws", websocket.New(h.handleCaptureWebSocket))

	scan.Get("/:id", h.middleware.NewTokenMiddleware, h.GetScan)
	scan.Delete("/:id", h.middleware.NewTokenMiddleware, h.DeleteScan)
}
