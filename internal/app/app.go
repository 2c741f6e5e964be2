// Package app wires the components together and owns the process lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mailkite/mailkite/internal/api"
	"github.com/mailkite/mailkite/internal/audience"
	"github.com/mailkite/mailkite/internal/compose"
	"github.com/mailkite/mailkite/internal/config"
	"github.com/mailkite/mailkite/internal/db"
	"github.com/mailkite/mailkite/internal/dispatch"
	"github.com/mailkite/mailkite/internal/mailer"
	"github.com/mailkite/mailkite/internal/metrics"
	"github.com/mailkite/mailkite/internal/models"
	"github.com/mailkite/mailkite/internal/repository"
	"github.com/mailkite/mailkite/internal/scheduler"
	"github.com/mailkite/mailkite/internal/tracking"
)

// App is the main application
type App struct {
	config    *config.Config
	database  *db.DB
	tracker   *tracking.Store
	apiServer *api.Server
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// New creates a new application
func New(cfg *config.Config, version string) (*App, error) {
	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Open the entity store and apply the schema
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Open the tracking event log
	tracker, err := tracking.NewStore(cfg.Tracking.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracking store: %w", err)
	}

	contacts := repository.NewContactRepository(database.DB)
	segments := repository.NewSegmentRepository(database.DB)
	bodies := repository.NewEmailBodyRepository(database.DB)
	campaigns := repository.NewCampaignRepository(database.DB)
	company := repository.NewCompanyRepository(database.DB)

	if err := seedCompanyProfile(company, cfg.Company, logger); err != nil {
		return nil, err
	}

	// Create the outbound sender
	var sender mailer.Sender
	if cfg.SMTP.DryRun {
		sender = mailer.NewCaptureSender(logger)
		logger.Info("dry run enabled, messages will be logged instead of delivered")
	} else {
		sender, err = mailer.NewSMTPSender(cfg.SMTP, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SMTP sender: %w", err)
		}
	}

	m := metrics.New()
	composer := compose.New(cfg.Tracking.BaseURL, logger)

	engine := dispatch.NewEngine(campaigns, bodies, sender, composer, tracker, m, dispatch.RealClock(), logger)
	sched := scheduler.New(campaigns, engine, cfg.Sending.PollInterval, logger)

	apiServer := api.NewServer(api.Deps{
		Contacts:  contacts,
		Segments:  segments,
		Bodies:    bodies,
		Campaigns: campaigns,
		Company:   company,
		Resolver:  audience.NewResolver(segments),
		Engine:    engine,
		Tracker:   tracker,
		Metrics:   m,
		Version:   version,
	}, cfg, logger.With("component", "api"))

	return &App{
		config:    cfg,
		database:  database,
		tracker:   tracker,
		apiServer: apiServer,
		scheduler: sched,
		logger:    logger,
	}, nil
}

// seedCompanyProfile writes the configured company identity on first start.
// An existing profile is never overwritten; it is edited through the API.
func seedCompanyProfile(company *repository.CompanyRepository, cfg config.CompanyConfig, logger *slog.Logger) error {
	if cfg.Name == "" {
		return nil
	}

	existing, err := company.Get()
	if err != nil {
		return fmt.Errorf("failed to load company profile: %w", err)
	}
	if existing != nil {
		return nil
	}

	err = company.Save(&models.CompanyProfile{
		CompanyName: cfg.Name,
		Email:       cfg.Email,
		Phone:       cfg.Phone,
		Website:     cfg.Website,
		Address:     cfg.Address,
		Logo:        cfg.Logo,
	})
	if err != nil {
		return fmt.Errorf("failed to seed company profile: %w", err)
	}

	logger.Info("company profile seeded from config", "name", cfg.Name)
	return nil
}

// Run starts all components and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting mailkite",
		"api_addr", a.config.Server.ListenAddr,
		"poll_interval", a.config.Sending.PollInterval,
	)

	// Create context that listens for signals
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Start the campaign scheduler
	a.scheduler.Start(ctx)

	// Channel to collect errors
	errCh := make(chan error, 1)

	// Start API server
	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	// Graceful shutdown
	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	// Create timeout context
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop the scheduler first so no new send run begins
	a.scheduler.Stop()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}

	if err := a.tracker.Close(); err != nil {
		a.logger.Error("tracking store close error", "error", err)
	}

	if err := a.database.Close(); err != nil {
		a.logger.Error("database close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
