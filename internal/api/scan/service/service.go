package scanService

import (
	"FaceScan/internal/api/scan"
	scanRepository "FaceScan/internal/api/scan/repository"
	"FaceScan/internal/capture"
	"FaceScan/internal/entity"
	"FaceScan/internal/oracle"
	"FaceScan/internal/scoring"
	"FaceScan/pkg/observability"
	"FaceScan/pkg/s3"
	"FaceScan/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IScanService interface {
	capture.Persister
	CheckPose(ctx context.Context, req scan.PoseCheckRequest) (oracle.PoseCheckResult, error)
	Analyze(ctx context.Context, userID string, req scan.AnalyzeRequest) (entity.FaceScan, entity.ScanAssessment, error)
	GetHistory(ctx context.Context, userID string, period string) ([]entity.FaceScan, error)
	GetScan(ctx context.Context, userID string, id string) (entity.FaceScan, error)
	DeleteScan(ctx context.Context, userID string, id string) error
	NewSession(key string, remote *capture.Remote) *capture.Orchestrator
}

type scanService struct {
	log            *logrus.Logger
	scanRepository scanRepository.Repository
	s3             s3.ItfS3
	utils          utils.IUtils
	oracle         oracle.IOracle
	validator      scoring.IValidator
	locker         capture.Locker
	observer       observability.IObserver
	captureCfg     capture.Config
}

// Deps groups the collaborators of the scan service. S3 may be nil, scans are
// then stored without an image.
type Deps struct {
	Repository scanRepository.Repository
	S3         s3.ItfS3
	Utils      utils.IUtils
	Oracle     oracle.IOracle
	Validator  scoring.IValidator
	Locker     capture.Locker
	Observer   observability.IObserver
}

func NewScanService(log *logrus.Logger, deps Deps, captureCfg capture.Config) IScanService {
	if deps.Observer == nil {
		deps.Observer = observability.Nop{}
	}
	if deps.Locker == nil {
		deps.Locker = capture.NewLocalLocker()
	}
	if deps.Validator == nil {
		deps.Validator = scoring.NewValidator(log, deps.Observer)
	}

	return &scanService{
		log:            log,
		scanRepository: deps.Repository,
		s3:             deps.S3,
		utils:          deps.Utils,
		oracle:         deps.Oracle,
		validator:      deps.Validator,
		locker:         deps.Locker,
		observer:       deps.Observer,
		captureCfg:     captureCfg,
	}
}

// NewSession wires a capture orchestrator for one connected surface. The
// remote is both the frame source and the prompter, and receives every event.
func (s *scanService) NewSession(key string, remote *capture.Remote) *capture.Orchestrator {
	return capture.New(key, capture.Deps{
		Source:    remote,
		Checker:   s.oracle,
		Extractor: s.oracle,
		Validator: s.validator,
		Persister: s,
		Prompter:  remote,
		Listener:  remote,
		Locker:    s.locker,
		Observer:  s.observer,
		Log:       s.log,
	}, s.captureCfg)
}
