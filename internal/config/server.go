package config

import (
	"FaceScan/database/postgres"
	scanHandler "FaceScan/internal/api/scan/handler"
	scanRepository "FaceScan/internal/api/scan/repository"
	scanService "FaceScan/internal/api/scan/service"
	"FaceScan/internal/capture"
	"FaceScan/internal/middleware"
	"FaceScan/internal/oracle"
	"FaceScan/internal/scoring"
	"FaceScan/pkg/observability"
	"FaceScan/pkg/redis"
	"FaceScan/pkg/s3"
	"FaceScan/pkg/utils"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine       *fiber.App
	db           *sqlx.DB
	log          *logrus.Logger
	middleware   middleware.Middleware
	validator    *validator.Validate
	utils        utils.IUtils
	handlers     []handler
	redisServer  redis.IRedis
	s3Client     s3.ItfS3
	oracleModel  oracle.Model
	oracleClient *oracle.Client
	registry     *prometheus.Registry
	observer     observability.IObserver
	captureCfg   capture.Config
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.utils == nil {
		server.utils = utils.New()
	}
	if server.observer == nil {
		server.observer = observability.Nop{}
	}
	if server.captureCfg == (capture.Config{}) {
		server.captureCfg = capture.DefaultConfig()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

// WithRedisServer enables the shared scan lock. Without it every instance
// keeps its own in-process lock.
func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

// WithS3Client stores scan reference images. A missing bucket is not fatal,
// scans are then saved without an image.
func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Warnf("S3 unavailable, scan images will not be stored: %v", err)
			}
			return nil
		}
		s.s3Client = client
		return nil
	}
}

// WithOracle selects the vision model from the environment. Missing
// credentials leave the model nil and the oracle degraded.
func WithOracle() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before oracle")
		}
		s.oracleModel = oracle.ModelFromEnv(s.log)
		return nil
	}
}

func WithCaptureConfig(cfg capture.Config) ServerOption {
	return func(s *Server) error {
		s.captureCfg = cfg
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

// WithObservability registers the scan metrics and serves them on /metrics.
func WithObservability() ServerOption {
	return func(s *Server) error {
		if s.engine == nil {
			return fmt.Errorf("fiber app must be initialized before observability")
		}
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		s.observer = observability.NewPromObs(s.registry)

		s.engine.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
		return nil
	}
}

func (s *Server) locker() capture.Locker {
	if s.redisServer == nil {
		return capture.NewLocalLocker()
	}
	return capture.NewRedisLocker(s.redisServer, s.captureCfg.LockTTL)
}

func (s *Server) RegisterHandler() {
	s.oracleClient = oracle.New(s.oracleModel, s.log, s.observer, s.utils, LoadOracleOptions(s.log))

	// Scan Domain
	scanRepo := scanRepository.New(s.db, s.log)
	scanServices := scanService.NewScanService(s.log, scanService.Deps{
		Repository: scanRepo,
		S3:         s.s3Client,
		Utils:      s.utils,
		Oracle:     s.oracleClient,
		Validator:  scoring.NewValidator(s.log, s.observer),
		Locker:     s.locker(),
		Observer:   s.observer,
	}, s.captureCfg)
	scanHandlers := scanHandler.New(s.log, s.validator, s.middleware, scanServices, s.captureCfg)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, scanHandlers)
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())
	s.engine.Use(s.middleware.NewRateLimiter)
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

func (s *Server) Shutdown() error {
	err := s.engine.Shutdown()

	if s.oracleClient != nil {
		if closeErr := s.oracleClient.Close(); closeErr != nil {
			s.log.Warnf("Failed to close oracle client: %v", closeErr)
		}
	}
	if s.db != nil {
		if closeErr := s.db.Close(); closeErr != nil {
			s.log.Warnf("Failed to close database: %v", closeErr)
		}
	}

	return err
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
			"oracle":  s.oracleClient.Available(),
		})
	})
}
