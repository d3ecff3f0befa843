package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/modanalysis/internal/contract"
	"github.com/vk/modanalysis/internal/ctxlog"
	"github.com/vk/modanalysis/internal/executor"
	"github.com/vk/modanalysis/internal/loader"
	"github.com/vk/modanalysis/internal/registry"
	"github.com/vk/modanalysis/internal/report"
)

// Dialer opens the publisher results are streamed to.
type Dialer func(ctx context.Context, o report.PublishOptions) (report.Publisher, error)

// Option customizes an App.
type Option func(*App)

// WithLoader replaces the unit loader, typically with an in-memory fake.
func WithLoader(l contract.Loader) Option {
	return func(a *App) { a.loader = l }
}

// WithLogWriter sends console logs to w instead of the output writer.
func WithLogWriter(w io.Writer) Option {
	return func(a *App) { a.logW = w }
}

// WithDialer replaces how the result publisher is opened.
func WithDialer(d Dialer) Option {
	return func(a *App) { a.dial = d }
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logW     io.Writer
	logger   *slog.Logger
	logFile  io.Closer
	config   *Config
	loader   contract.Loader
	registry *registry.Registry
	executor *executor.Executor
	dial     Dialer
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		outW:   outW,
		logW:   outW,
		config: cfg,
		loader: loader.New(),
		dial:   dialSocketIO,
	}
	for _, opt := range opts {
		opt(a)
	}

	output, logFile, outErr := buildOutput(cfg, a.logW)
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, output)
	if outErr != nil {
		logger.Warn("Log file unavailable, logging to console.", "path", cfg.LogFile, "error", outErr)
	}
	logger.Debug("Logger configured successfully.")
	a.logger = logger
	a.logFile = logFile

	a.registry = registry.New(cfg.ModulesPath, a.loader)
	a.executor = executor.New(a.loader)
	a.logger.Debug("Application assembled.", "modules_path", cfg.ModulesPath)
	return a, nil
}

func dialSocketIO(ctx context.Context, o report.PublishOptions) (report.Publisher, error) {
	pub, err := report.DialSocketIO(ctx, o)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Config returns the configuration the app was built with.
func (a *App) Config() *Config {
	return a.config
}

// Close releases the log file, if any.
func (a *App) Close() error {
	if a.logFile == nil {
		return nil
	}
	if err := a.logFile.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
