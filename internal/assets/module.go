package assets

import (
	"context"
	"os"

	"github.com/gopxl/beep/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-captcha/internal/config"
)

// Module provides the digit bank and starts loading it in the background.
var Module = fx.Module("assets",
	fx.Provide(NewBankFromConfig),
	fx.Invoke(registerLoader),
)

// NewBankFromConfig creates a bank rooted at the configured asset directory.
func NewBankFromConfig(cfg *config.Config, logger *zap.Logger) *Bank {
	return NewBank(os.DirFS(cfg.Assets.Dir), beep.SampleRate(cfg.Audio.SampleRate), logger.Named("assets"))
}

func registerLoader(lc fx.Lifecycle, bank *Bank, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Assets.LoadTimeout.D())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// Hosts poll AreAllLoaded; a failed load is reported, not fatal.
			go func() { _ = bank.Load(ctx) }()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
