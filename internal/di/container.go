// Package di provides a dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"codebot/internal/config"
	"codebot/internal/database"
	"codebot/internal/observability"
	"codebot/internal/services"
	contextutils "codebot/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetUserService() (services.UserServiceInterface, error)
	GetProblemService() (services.ProblemServiceInterface, error)
	GetSubmissionService() (services.SubmissionServiceInterface, error)
	GetAIService() (services.AIServiceInterface, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	EnsureAdminUser(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	// Initialize database
	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	return sc.initializeServices(ctx)
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (services.UserServiceInterface, error) {
	return GetServiceAs[services.UserServiceInterface](sc, "user")
}

// GetProblemService returns the problem bank service
func (sc *ServiceContainer) GetProblemService() (services.ProblemServiceInterface, error) {
	return GetServiceAs[services.ProblemServiceInterface](sc, "problem")
}

// GetSubmissionService returns the submission service
func (sc *ServiceContainer) GetSubmissionService() (services.SubmissionServiceInterface, error) {
	return GetServiceAs[services.SubmissionServiceInterface](sc, "submission")
}

// GetAIService returns the AI orchestration service
func (sc *ServiceContainer) GetAIService() (services.AIServiceInterface, error) {
	return GetServiceAs[services.AIServiceInterface](sc, "ai")
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup handles shutdown of all registered resources in reverse order
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errs []error

	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			sc.logger.Error(ctx, "Shutdown step failed", err, nil)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errs)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(ctx context.Context) error {
	// Core services that only depend on the database
	userService := services.NewUserServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["user"] = userService

	problemService := services.NewProblemService(sc.db, sc.logger)
	sc.services["problem"] = problemService

	submissionService := services.NewSubmissionService(sc.db, sc.logger)
	sc.services["submission"] = submissionService

	// Conversation history rides on the same database
	historyStore := services.NewPostgresHistoryStore(sc.db)
	conversationService := services.NewConversationService(historyStore, config.MaxHistoryMessages, sc.logger)
	sc.services["conversation"] = conversationService

	// A broken AI config disables the AI capability only: chat and grading
	// degrade through their fallbacks, generation and review report
	// unavailability, and auth plus persistence routes keep serving.
	var aiService *services.AIService
	generator, err := services.NewOpenAIClient(sc.cfg, sc.logger)
	if err == nil {
		aiService, err = services.NewAIService(sc.cfg, sc.logger, generator, conversationService)
	}
	if err != nil {
		sc.logger.Error(ctx, "AI subsystem disabled, serving without AI capability", err, map[string]interface{}{
			"provider": sc.cfg.AI.Provider,
		})
		aiService, err = services.NewDegradedAIService(sc.cfg, sc.logger, conversationService)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to initialize AI service")
		}
	}
	sc.services["ai"] = aiService

	sc.logger.Info(ctx, "Services initialized", map[string]interface{}{
		"count": len(sc.services),
	})
	return nil
}

// EnsureAdminUser creates the admin user if it doesn't exist
func (sc *ServiceContainer) EnsureAdminUser(ctx context.Context) error {
	userService, err := sc.GetUserService()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to get user service")
	}

	return userService.EnsureAdminUserExists(ctx, sc.cfg.Server.AdminUsername, sc.cfg.Server.AdminPassword)
}
