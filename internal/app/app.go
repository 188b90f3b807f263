// Package app provides the main application structure and lifecycle management.
package app

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-captcha/internal/assets"
	"github.com/Raikerian/go-audio-captcha/internal/config"
	"github.com/Raikerian/go-audio-captcha/internal/infrastructure"
)

// Application represents the main application with its lifecycle.
type Application struct {
	app *fx.App
}

// Core returns the modules every command needs: configuration read from
// path, logging and the digit bank.
func Core(path string) fx.Option {
	return fx.Options(
		fx.Supply(config.Path(path)),
		config.Module,
		infrastructure.LoggerModule,
		assets.Module,
		fx.WithLogger(infrastructure.NewFxLoggerAdapter),
	)
}

// New creates a new Application with the provided modules and options.
func New(modules ...fx.Option) *Application {
	options := append(modules, fx.Invoke(registerLifecycleHooks))

	return &Application{
		app: fx.New(options...),
	}
}

// Err returns the error fx hit while building the dependency graph.
func (a *Application) Err() error {
	return a.app.Err()
}

// Run starts the application and blocks until it's stopped by a signal or
// a module requests shutdown.
func (a *Application) Run() {
	a.app.Run()
}

// Start starts the application without blocking.
func (a *Application) Start(ctx context.Context) error {
	return a.app.Start(ctx)
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}

// registerLifecycleHooks logs application start and stop and reports asset
// readiness once loading settles.
func registerLifecycleHooks(lc fx.Lifecycle, bank *assets.Bank, cfg *config.Config, logger *zap.Logger) {
	var started time.Time

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			started = time.Now()
			logger.Info("Application started",
				zap.String("assets_dir", cfg.Assets.Dir),
				zap.Int("sample_rate", cfg.Audio.SampleRate))

			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.Assets.LoadTimeout.D())
				defer cancel()
				if err := bank.Wait(ctx); err != nil {
					logger.Warn("Captchas are unavailable until digit assets are fixed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			logger.Info("Application stopped", zap.Duration("uptime", time.Since(started)))
			return nil
		},
	})
}
