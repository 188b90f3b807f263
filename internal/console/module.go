// Package console provides the interactive captcha console and its Fx module.
package console

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the console commands and runs the REPL for the app's
// lifetime. The app shuts down when the REPL ends.
var Module = fx.Module("console",
	fx.Provide(
		NewForm,
		NewCommandManager,
		NewREPL,
		asCommand(NewNewCaptchaCommand),
		asCommand(NewPlayCommand),
		asCommand(NewStopCommand),
		asCommand(NewSubmitCommand),
		asCommand(NewClearCommand),
		asCommand(NewStatusCommand),
		asCommand(NewLevelCommand),
	),
	fx.Invoke(registerREPL),
)

func asCommand(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(Command)),
		fx.ResultTags(`group:"commands"`),
	)
}

func registerREPL(lc fx.Lifecycle, repl *REPL, shutdowner fx.Shutdowner, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := repl.Run(ctx); err != nil {
					logger.Error("Console input failed", zap.Error(err))
				}
				if ctx.Err() == nil {
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
