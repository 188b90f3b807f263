package captcha

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-captcha/internal/assets"
	"github.com/Raikerian/go-audio-captcha/internal/config"
	"github.com/Raikerian/go-audio-captcha/internal/effects"
	"github.com/Raikerian/go-audio-captcha/internal/scramble"
	"github.com/Raikerian/go-audio-captcha/internal/timing"
)

// Module provides the process-wide session played through the live graph.
var Module = fx.Module("captcha",
	fx.Provide(
		fx.Annotate(
			func(b *assets.Bank) *assets.Bank { return b },
			fx.As(new(Source)),
		),
		fx.Annotate(
			func(c *effects.Chain) *effects.Chain { return c },
			fx.As(new(Chain)),
		),
		fx.Annotate(
			NewScrambler,
			fx.As(new(Scrambler)),
		),
		timing.Real,
		NewSession,
	),
	fx.Invoke(registerShutdown),
)

// NewScrambler creates the parameter generator from the scramble section.
func NewScrambler(cfg *config.Config) *scramble.Generator {
	return scramble.NewGenerator(cfg.Scramble)
}

func registerShutdown(lc fx.Lifecycle, s *Session, logger *zap.Logger) {
	lc.Append(fx.StopHook(func() {
		if s.Stop() {
			logger.Debug("Stopped captcha playback on shutdown")
		}
	}))
}
