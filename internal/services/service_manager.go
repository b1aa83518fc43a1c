package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-attempt-service/internal/config"
	"github.com/SAP-F-2025/exam-attempt-service/internal/events"
	"github.com/SAP-F-2025/exam-attempt-service/internal/metrics"
	"github.com/SAP-F-2025/exam-attempt-service/internal/random"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/exam-attempt-service/internal/storage"
	"github.com/SAP-F-2025/exam-attempt-service/internal/validator"
)

// Dependencies is everything the services share
type Dependencies struct {
	Repo      repositories.Repository
	Logger    *slog.Logger
	Validator *validator.Validator
	Publisher events.EventPublisher
	Metrics   *metrics.Metrics
	Media     storage.MediaResolver
	Synonyms  *config.SynonymTable
	Seeds     *random.SeedDeriver
	Clock     func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Validator == nil {
		d.Validator = validator.New()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Media == nil {
		d.Media = storage.StaticMediaResolver{}
	}
	if d.Synonyms == nil {
		d.Synonyms = config.DefaultSynonyms()
	}
	if d.Seeds == nil {
		d.Seeds = random.NewSeedDeriver("")
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	SweepEnabled   bool
	SweepInterval  time.Duration
	SweepBatchSize int
	DefaultTimeout time.Duration
}

func DefaultServiceManagerConfig() ServiceManagerConfig {
	return ServiceManagerConfig{
		SweepEnabled:   true,
		SweepInterval:  time.Minute,
		SweepBatchSize: defaultSweepBatchSize,
		DefaultTimeout: 30 * time.Second,
	}
}

type ServiceManager interface {
	Attempt() AttemptService
	Grading() GradingService
	Exam() ExamService
	ResultExport() ResultExportService
	Sweeper() *ExpirySweeper

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   Dependencies
	config ServiceManagerConfig

	attemptService      AttemptService
	gradingService      GradingService
	examService         ExamService
	resultExportService ResultExportService
	sweeper             *ExpirySweeper

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(deps Dependencies, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		deps:   deps.withDefaults(),
		config: config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(deps Dependencies) ServiceManager {
	return NewServiceManager(deps, DefaultServiceManagerConfig())
}

// Initialize builds every service and starts the expiry sweep
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.deps.Repo == nil {
		return fmt.Errorf("service manager requires a repository")
	}

	sm.deps.Logger.Info("Initializing service manager")

	attempts := newAttemptService(sm.deps)
	sm.attemptService = attempts
	sm.gradingService = NewGradingService(sm.deps)
	sm.examService = NewExamService(sm.deps)
	sm.resultExportService = NewResultExportService(sm.deps)
	sm.sweeper = NewExpirySweeper(sm.deps, attempts, sm.config.SweepInterval, sm.config.SweepBatchSize)

	if sm.config.SweepEnabled {
		sm.sweeper.Start(context.WithoutCancel(ctx))
	}

	sm.initialized = true
	sm.deps.Logger.Info("Service manager initialized successfully",
		"sweep_enabled", sm.config.SweepEnabled,
		"sweep_interval", sm.config.SweepInterval)
	return nil
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.attemptService
}

func (sm *serviceManager) Grading() GradingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.gradingService
}

func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.examService
}

func (sm *serviceManager) ResultExport() ResultExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.resultExportService
}

func (sm *serviceManager) Sweeper() *ExpirySweeper {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.sweeper
}

func (sm *serviceManager) mustBeInitialized() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	ctx, cancel := context.WithTimeout(ctx, sm.config.DefaultTimeout)
	defer cancel()
	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

// Shutdown stops the sweep and closes the event publisher
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.deps.Logger.Info("Shutting down service manager")

	if sm.sweeper != nil {
		sm.sweeper.Stop()
	}
	if sm.deps.Publisher != nil {
		if err := sm.deps.Publisher.Close(); err != nil {
			sm.deps.Logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.deps.Logger.Info("Service manager shut down completed")
	return nil
}
