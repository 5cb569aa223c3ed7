// Package wire is the forge composition root. It opens the database, builds
// the secondary adapters and injects them into the application services.
package wire

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/example/forge/internal/adapters/execution"
	"github.com/example/forge/internal/adapters/git"
	"github.com/example/forge/internal/adapters/httpapi"
	"github.com/example/forge/internal/adapters/sqlite"
	"github.com/example/forge/internal/app"
	"github.com/example/forge/internal/config"
	corerun "github.com/example/forge/internal/core/run"
	"github.com/example/forge/internal/db"
	"github.com/example/forge/internal/logging"
	"github.com/example/forge/internal/ports/secondary"
	"github.com/example/forge/internal/telemetry"
)

// Deps are the collaborators that sit outside the database.
type Deps struct {
	Git       secondary.GitRunner
	Execution secondary.ExecutionClient
	Policy    corerun.PolicySnapshot
	ReposDir  string
	GitToken  string
}

// NewServices builds every application service over database.
func NewServices(database *sql.DB, deps Deps, logger *zap.Logger) httpapi.Services {
	// Create repository adapters (secondary ports) - sqlite adapters with injected DB
	auditRepo := sqlite.NewAuditRepository(database)
	logWriter := sqlite.NewLogWriterAdapter(auditRepo)
	projectRepo := sqlite.NewProjectRepository(database, logWriter)
	planningRepo := sqlite.NewPlanningRepository(database)
	runRepo := sqlite.NewRunRepository(database, logWriter)
	assignmentRepo := sqlite.NewAssignmentRepository(database)
	checkRepo := sqlite.NewCheckRepository(database, logWriter)
	approvalRepo := sqlite.NewApprovalRepository(database, logWriter)
	prRepo := sqlite.NewPRCandidateRepository(database, logWriter)

	repositories := app.NewRepositoryManager(deps.Git, deps.ReposDir, deps.GitToken, projectRepo, runRepo, assignmentRepo, logger)

	// Create services (primary ports implementation)
	return httpapi.Services{
		Projects:     app.NewProjectService(projectRepo, logger),
		Snapshots:    app.NewSnapshotService(planningRepo),
		Actions:      app.NewActionService(planningRepo, logger),
		Runs:         app.NewRunService(runRepo, projectRepo, planningRepo, checkRepo, deps.Policy, logger),
		Assignments:  app.NewAssignmentService(assignmentRepo, runRepo, projectRepo, planningRepo, repositories, deps.Execution, logger),
		Checks:       app.NewCheckService(runRepo, checkRepo, logger),
		Approvals:    app.NewApprovalService(runRepo, approvalRepo, checkRepo, logger),
		PRCandidates: app.NewPRCandidateService(runRepo, prRepo, checkRepo, logger),
		Repositories: repositories,
		Audit:        app.NewAuditService(auditRepo),
	}
}

// App is a fully wired forge process.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *sql.DB
	Services httpapi.Services

	shutdownTelemetry func(context.Context) error
}

// Open builds an App from cfg.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Init(ctx, telemetry.Options{
		Enabled: cfg.Telemetry.Enabled,
		Pretty:  cfg.Telemetry.Stdout,
	})
	if err != nil {
		return nil, err
	}

	database, err := db.Open(ctx, cfg.DatabasePath)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	deps := Deps{
		Git: git.NewRunner(cfg.Git.Binary),
		Execution: execution.NewClient(execution.Options{
			BaseURL:         cfg.Execution.URL,
			Timeout:         cfg.Execution.Timeout,
			MaxRetryElapsed: cfg.Execution.MaxRetryElapsed,
			Logger:          logger,
		}),
		Policy:   corerun.FreezePolicy(cfg.Policy.RequiredChecks, cfg.Policy.ForbiddenPaths),
		ReposDir: cfg.ReposDir(),
		GitToken: cfg.Git.Token,
	}

	logger.Debug("forge wired",
		zap.String("database", cfg.DatabasePath),
		zap.String("repos_dir", deps.ReposDir),
		zap.Strings("required_checks", deps.Policy.RequiredChecks))

	return &App{
		Config:            cfg,
		Logger:            logger,
		DB:                database,
		Services:          NewServices(database, deps, logger),
		shutdownTelemetry: shutdown,
	}, nil
}

// Close releases the database and flushes telemetry and logs.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	if err := a.shutdownTelemetry(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down telemetry: %w", err))
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}

var (
	current *App
	openErr error
	once    sync.Once
)

// Get returns the process-wide App, opening it on first use with the
// configuration at configPath. Later calls ignore configPath.
func Get(ctx context.Context, configPath string) (*App, error) {
	once.Do(func() {
		cfg, err := config.Load(configPath)
		if err != nil {
			openErr = err
			return
		}
		current, openErr = Open(ctx, cfg)
	})
	return current, openErr
}
