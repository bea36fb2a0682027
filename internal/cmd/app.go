package cmd

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/image2video/internal/attachment"
	"github.com/Iron-Ham/image2video/internal/config"
	"github.com/Iron-Ham/image2video/internal/lifecycle"
	"github.com/Iron-Ham/image2video/internal/logging"
	"github.com/Iron-Ham/image2video/internal/orchestrator"
	"github.com/Iron-Ham/image2video/internal/session"
)

// app bundles what serve and chat need for one process lifetime.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	orch   *orchestrator.Orchestrator

	closeStore func() error
}

// appOptions carries the pieces that differ between commands and tests.
type appOptions struct {
	Logger      *logging.Logger
	Attachments attachment.Source
	// Services is nil outside tests; the orchestrator then builds the remote clients.
	Services orchestrator.Services
}

// openStore returns the session store selected by cfg.Session.Store.
func openStore(ctx context.Context, cfg *config.Config) (session.Store, func() error, error) {
	switch cfg.Session.Store {
	case config.StoreRedis:
		// Keys outlive the window so the tracker, not Redis, reports the timeout.
		ttl := 2 * cfg.Session.SessionTimeout()
		store, err := session.DialRedis(ctx, cfg.Session.RedisAddr, cfg.Session.RedisPrefix, ttl)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session store: %w", err)
		}
		return store, store.Close, nil
	default:
		return session.NewMemoryStore(), func() error { return nil }, nil
	}
}

// newApp opens the session store and brings the orchestrator to STARTED. The
// logger in opts is owned by the app from here on.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	attachments := opts.Attachments
	if attachments == nil {
		attachments = attachment.Default(cfg.Attachment.Dir)
	}

	orch := orchestrator.New(orchestrator.Options{
		Config:      cfg,
		Services:    opts.Services,
		Store:       store,
		Attachments: attachments,
		Logger:      logger,
	})

	a := &app{cfg: cfg, logger: logger, orch: orch, closeStore: closeStore}
	if err := orch.Initialize(ctx); err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	if err := orch.Start(ctx); err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to start: %w", err)
	}

	logger.Info("orchestrator started",
		"store", cfg.Session.Store,
		"trigger", orch.Trigger(),
		"timeout", cfg.Session.SessionTimeout().String(),
	)
	return a, nil
}

// close stops the orchestrator and releases the store and log file. Errors are
// only logged; the process is on its way out.
func (a *app) close(ctx context.Context) {
	if st := a.orch.State(); st != lifecycle.StateUninitialized && st != lifecycle.StateStopped {
		if err := a.orch.Stop(ctx); err != nil {
			a.logger.Warn("stop reported an error", "error", err.Error())
		}
	}
	if err := a.closeStore(); err != nil {
		a.logger.Warn("failed to close session store", "error", err.Error())
	}
	_ = a.logger.Close()
}

// newLogger opens the logger described by cfg.Logging.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.NewRotatingLogger(cfg.Logging.File, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// loadConfig reads and validates the configuration assembled by initConfig.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
