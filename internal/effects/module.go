package effects

import (
	"math/rand/v2"

	"github.com/gopxl/beep/v2"
	"go.uber.org/fx"

	"github.com/Raikerian/go-audio-captcha/internal/config"
	"github.com/Raikerian/go-audio-captcha/pkg/audio"
)

// Module provides the process-wide audio graph and its effect chain.
var Module = fx.Module("effects",
	fx.Provide(
		NewGraph,
		NewChainFromConfig,
	),
)

// NewGraph creates the graph the live output sink pulls from.
func NewGraph(cfg *config.Config) *audio.Graph {
	return audio.NewGraph(beep.SampleRate(cfg.Audio.SampleRate), audio.WithTapSize(cfg.Audio.TapSize))
}

// NewChainFromConfig builds the effect chain into graph.
func NewChainFromConfig(graph *audio.Graph, cfg *config.Config) (*Chain, error) {
	return NewChain(graph, cfg.Scramble.NoiseRamp.D(), rand.Uint64())
}
