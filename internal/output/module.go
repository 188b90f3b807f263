package output

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-captcha/internal/config"
	"github.com/Raikerian/go-audio-captcha/pkg/audio"
)

// Module provides the configured sink and runs it for the app's lifetime.
var Module = fx.Module("output",
	fx.Provide(NewSinkFromConfig),
	fx.Invoke(registerSink),
)

// NewSinkFromConfig creates the sink named in audio.output.
func NewSinkFromConfig(cfg *config.Config, graph *audio.Graph, logger *zap.Logger) (Sink, error) {
	return NewSink(cfg.Audio.Output, graph, cfg.Audio.BufferSize.D(), cfg.Audio.Block.D(), logger.Named("output"))
}

func registerSink(lc fx.Lifecycle, sink Sink) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return sink.Start() },
		OnStop:  func(context.Context) error { return sink.Stop() },
	})
}
