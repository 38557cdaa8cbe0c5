package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// App bundles the logger and root context shared by all subcommands.
// The context is canceled on the first interrupt.
type App struct {
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func newApp() (*App, error) {
	logger, err := newLogger(logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	return &App{logger: logger, ctx: ctx, cancel: cancel}, nil
}

func (a *App) Shutdown() {
	a.cancel()
	_ = a.logger.Sync()
}

func (a *App) Logger() *zap.Logger {
	return a.logger
}

func (a *App) Context() context.Context {
	return a.ctx
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)

	if isatty.IsTerminal(os.Stderr.Fd()) {
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	config.EncoderConfig.ConsoleSeparator = " "
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(`15:04:05.000`)
	config.DisableStacktrace = true
	return config.Build()
}
