// Package app initializes and holds long-lived services for one enrichment
// run, acting as a small dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/voterstat/internal/api"
	"github.com/JakeFAU/voterstat/internal/config"
	"github.com/JakeFAU/voterstat/internal/logging"
	"github.com/JakeFAU/voterstat/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// App holds the shared services for a run: configuration, the run-scoped
// logger, and the operator HTTP surface.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	api    *api.Server
}

// NewApp builds the logger and operator server for cfg. runID is stamped on
// every log line.
func NewApp(cfg config.Config, runID string) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return newApp(cfg, runID, logger), nil
}

// NewAppWithLogger is NewApp with a caller-supplied logger, used by tests.
func NewAppWithLogger(cfg config.Config, runID string, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return newApp(cfg, runID, logger)
}

func newApp(cfg config.Config, runID string, logger *zap.Logger) *App {
	metrics.Init()
	logger = logger.With(zap.String("run_id", runID))
	return &App{
		cfg:    cfg,
		logger: logger,
		api:    api.NewServer(logger),
	}
}

// GetLogger returns the run-scoped logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the validated configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// SetReady flips the readiness probe of the operator server.
func (a *App) SetReady(ready bool) {
	a.api.SetReady(ready)
}

// ServeOperator serves health and metrics on metrics.addr until ctx is done.
// It returns immediately when no address is configured.
func (a *App) ServeOperator(ctx context.Context) error {
	if a.cfg.Metrics.Addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Metrics.Addr, err)
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("operator server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve operator: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown operator server: %w", err)
	}
	return nil
}

// Close flushes the logger. It is called by a Cobra hook after the command
// finishes.
func (a *App) Close() {
	// Syncing stderr returns EINVAL on some platforms; nothing useful to do.
	_ = a.logger.Sync()
}
