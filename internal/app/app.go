// Package app wires the process together: config validation, store open,
// demo seeding, responder selection, the orchestrator and the HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"

	"chatcore/pkg/assist"
	"chatcore/pkg/config"
	"chatcore/pkg/fixtures"
	"chatcore/pkg/logger"
	"chatcore/pkg/orchestrator"
	"chatcore/pkg/presence"
	"chatcore/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg     *config.Config
	addr    string
	dbPath  string
	version string

	orc            *orchestrator.Orchestrator
	responderName  string
	presenceCancel context.CancelFunc

	srv *http.Server
}

// New initializes resources that do not require a running context: config
// validation, the store, demo data and the orchestrator. Call Run to start
// the schedulers and the HTTP server and block until shutdown.
func New(cfg *config.Config, addr, dbPath, version string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(cfg, dbPath); err != nil {
		return nil, err
	}

	if err := store.Open(dbPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", dbPath, err)
	}

	if cfg.Storage.SeedDemo {
		if err := fixtures.Seed(); err != nil {
			return nil, fmt.Errorf("demo seed failed: %w", err)
		}
	}

	responder, name := buildResponder(cfg)
	orc := orchestrator.New(responder, orchestrator.Options{
		HistoryWindow: cfg.Assistant.HistoryWindow,
		Timeout:       cfg.AssistantTimeout(),
	})

	return &App{
		cfg:           cfg,
		addr:          addr,
		dbPath:        dbPath,
		version:       version,
		orc:           orc,
		responderName: name,
	}, nil
}

// buildResponder selects the completion backend: the HTTP client when a
// base URL is configured, otherwise the canned demo responder.
func buildResponder(cfg *config.Config) (assist.Responder, string) {
	if cfg.Assistant.BaseURL == "" {
		return &assist.StaticResponder{}, "demo"
	}
	c := assist.NewClient(cfg.Assistant.BaseURL,
		assist.WithAPIKey(cfg.Assistant.APIKey),
		assist.WithModel(cfg.Assistant.Model),
		assist.WithMaxTokens(cfg.Assistant.MaxTokens),
		assist.WithSystemPrompt(cfg.Assistant.SystemPrompt),
		assist.WithTimeout(cfg.AssistantTimeout()),
	)
	return c, cfg.Assistant.BaseURL
}

func validateConfig(cfg *config.Config, dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("db path is required")
	}
	if cfg.Security.RateLimit.RPS < 0 || cfg.Security.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must be non-negative")
	}
	if cfg.Assistant.TimeoutSeconds < 0 {
		return fmt.Errorf("assistant timeout must be non-negative")
	}
	if cfg.Assistant.HistoryWindow < 0 {
		return fmt.Errorf("assistant history window must be non-negative")
	}
	return nil
}

// Run starts the presence scheduler and the HTTP server and blocks until
// ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	cancel, err := presence.Start(ctx, a.cfg)
	if err != nil {
		return err
	}
	a.presenceCancel = cancel

	a.printBanner()

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

func (a *App) shutdown() {
	if a.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = a.srv.Shutdown(shutdownCtx)
	}
	if a.presenceCancel != nil {
		a.presenceCancel()
	}
	// Drain in-flight turns before the store closes under them.
	a.orc.Close()
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Sync()
}
