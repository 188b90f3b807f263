// Package audio implements the small audio graph the captcha effect chain is
// built from: biquad filters, a waveshaping distortion, gains with linear
// ramps, a white-noise source and clip voices, all summed into one output bus.
//
// ───────────────────────────── pipeline ─────────────────────────────
//
//	Voice ──▶ Filter ──▶ … ──▶ Gain ──▶ Bus ──▶ Graph.Stream ──▶ sink
//	Noise ──▶ Gain ───────────────────────▲            │
//	                                                   └──▶ Tap
//
// A Graph is a beep.Streamer: the sink (speaker, WAV encoder, ticker) pulls
// from it, and every pull renders the bus and, recursively, its inputs.
package audio

import (
	"errors"
	"sync"

	"github.com/gopxl/beep/v2"
)

// Graph errors.
var (
	ErrNotSink      = errors.New("audio: destination does not accept input")
	ErrSelfConnect  = errors.New("audio: node cannot feed itself")
	ErrCycle        = errors.New("audio: connection would create a cycle")
	ErrForeignNode  = errors.New("audio: node belongs to another graph")
	ErrNotPlaying   = errors.New("audio: voice is not playing")
	ErrInvalidParam = errors.New("audio: invalid parameter")
)

// Graph owns a set of nodes and the lock that serialises rendering against
// parameter changes and rewiring.
type Graph struct {
	mu   sync.Mutex
	rate beep.SampleRate
	bus  *Gain
	tap  *Tap
}

// Option configures a Graph.
type Option func(*Graph)

// WithTapSize attaches a tap of the given size to the bus output.
func WithTapSize(size int) Option {
	return func(g *Graph) {
		if size > 0 {
			g.tap = NewTap(size)
		}
	}
}

// NewGraph creates an empty graph whose bus is a unity gain.
func NewGraph(rate beep.SampleRate, opts ...Option) *Graph {
	if rate <= 0 {
		rate = DefaultSampleRate
	}

	g := &Graph{rate: rate}
	g.bus = g.NewGain(1)

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// SampleRate returns the graph's sample rate.
func (g *Graph) SampleRate() beep.SampleRate { return g.rate }

// Format returns the stream format produced by Stream.
func (g *Graph) Format() beep.Format { return Format(g.rate) }

// Bus returns the output bus. Everything audible must end up connected to it.
func (g *Graph) Bus() *Gain { return g.bus }

// Tap returns the bus tap, or nil when the graph was built without one.
func (g *Graph) Tap() *Tap { return g.tap }

// Connect routes src's output into dst, detaching src from any previous
// destination first.
func (g *Graph) Connect(src, dst Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.owns(src) || !g.owns(dst) {
		return ErrForeignNode
	}
	if src == dst {
		return ErrSelfConnect
	}

	in := dst.port()
	if !in.sink {
		return ErrNotSink
	}

	// Walking downstream from dst must never reach src.
	for n := dst; n != nil; n = n.port().output {
		if n == src {
			return ErrCycle
		}
	}

	out := src.port()
	if out.output == dst {
		return nil
	}
	if out.output != nil {
		out.output.port().removeInput(src)
	}

	out.output = dst
	in.inputs = append(in.inputs, src)

	return nil
}

// Disconnect detaches src from its destination. Disconnecting a node that is
// not connected is a no-op.
func (g *Graph) Disconnect(src Node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := src.port()
	if out.output == nil {
		return
	}

	out.output.port().removeInput(src)
	out.output = nil
}

// Connected reports whether src currently feeds dst.
func (g *Graph) Connected(src, dst Node) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return src.port().output == dst
}

// Stream renders the next len(samples) frames of the bus. It never runs dry.
func (g *Graph) Stream(samples [][2]float64) (n int, ok bool) {
	g.mu.Lock()
	g.bus.render(samples)
	g.mu.Unlock()

	for i := range samples {
		samples[i][0] = saturate(samples[i][0])
		samples[i][1] = saturate(samples[i][1])
	}

	if g.tap != nil {
		g.tap.write(samples)
	}

	return len(samples), true
}

// Err implements beep.Streamer.
func (g *Graph) Err() error { return nil }

func (g *Graph) owns(n Node) bool {
	switch v := n.(type) {
	case *Filter:
		return v.g == g
	case *Distortion:
		return v.g == g
	case *Gain:
		return v.g == g
	case *Noise:
		return v.g == g
	case *Voice:
		return v.g == g
	default:
		return false
	}
}
