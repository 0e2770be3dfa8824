package cmd

import (
	"context"

	adapteragent "maestro/internal/adapters/agent"
	adaptergit "maestro/internal/adapters/git"
	adapterstorage "maestro/internal/adapters/storage"
	"maestro/internal/config"
	"maestro/internal/logging"
	"maestro/internal/pipeline"
	"maestro/internal/ports"
	"maestro/internal/services"
)

// Container holds all dependencies for the application
type Container struct {
	Config         *config.Config
	GitService     *services.GitService
	SessionService *services.SessionService

	// Internal - for cleanup only
	sessionRepo ports.SessionRepository
}

// NewContainer creates a new Container with all dependencies wired
func NewContainer() (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	sessionRepo, err := adapterstorage.NewSQLiteRepository(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	gitRepo := adaptergit.NewCLIRepository(cfg.Git.MainBranch)
	launcher := adapteragent.NewLauncher(cfg.Agent.Command, cfg.Agent.Args)
	pipe := pipeline.NewPipeline(sessionRepo, cfg.Pipeline.SubscriberBuffer)

	sessionService := services.NewSessionService(sessionRepo, sessionRepo, gitRepo, pipe, launcher, cfg)
	gitService := services.NewGitService(sessionRepo, gitRepo, cfg)

	// A previous invocation may have died with sessions marked running
	if err := sessionService.ReconcileStale(context.Background()); err != nil {
		logging.Logger.Warn("Stale session reconciliation failed", "error", err)
	}

	return &Container{
		Config:         cfg,
		GitService:     gitService,
		SessionService: sessionService,
		sessionRepo:    sessionRepo,
	}, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	if c.sessionRepo != nil {
		return c.sessionRepo.Close()
	}
	return nil
}
