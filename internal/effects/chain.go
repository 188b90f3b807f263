// Package effects builds the scrambling chain digit clips are played
// through:
//
//	voice ─▶ band-pass ─▶ {high-pass | low-pass} ─▶ distortion ─▶ gain ─▶ bus
//	noise ─▶ noise gain ──────────────────────────────────────────────────▲
//
// The chain is built once per graph and reconfigured for every pass.
package effects

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/Raikerian/go-audio-captcha/internal/scramble"
	"github.com/Raikerian/go-audio-captcha/pkg/audio"
)

// ErrForeignVoice is returned when RouteInput is given a voice the chain did
// not create.
var ErrForeignVoice = errors.New("effects: voice was not created by this chain")

// Voice is a playable digit clip as seen by the scheduler.
type Voice interface {
	SetRate(rate float64) error
	SetAmp(amp float64) error
	Play()
	Stop() error
	Playing() bool
}

// Chain owns the effect nodes of one graph.
type Chain struct {
	graph *audio.Graph

	bandPass   *audio.Filter
	highPass   *audio.Filter
	lowPass    *audio.Filter
	distortion *audio.Distortion
	gain       *audio.Gain
	noise      *audio.Noise
	noiseGain  *audio.Gain
	noiseRamp  time.Duration

	mu     sync.Mutex
	inputs []*audio.Voice
	params scramble.Params
}

// NewChain wires the chain into graph with the low-pass as the initial
// secondary filter. The noise source runs from the start, held silent by
// its gain. noiseRamp is how long Configure takes to bring the noise in.
func NewChain(graph *audio.Graph, noiseRamp time.Duration, noiseSeed uint64) (*Chain, error) {
	c := &Chain{
		graph:      graph,
		bandPass:   graph.NewFilter(audio.BandPass),
		highPass:   graph.NewFilter(audio.HighPass),
		lowPass:    graph.NewFilter(audio.LowPass),
		distortion: graph.NewDistortion(0.15),
		gain:       graph.NewGain(1),
		noise:      graph.NewNoise(noiseSeed),
		noiseGain:  graph.NewGain(0),
		noiseRamp:  noiseRamp,
	}

	links := []struct{ src, dst audio.Node }{
		{c.distortion, c.gain},
		{c.gain, graph.Bus()},
		{c.noise, c.noiseGain},
		{c.noiseGain, graph.Bus()},
	}
	for _, l := range links {
		if err := graph.Connect(l.src, l.dst); err != nil {
			return nil, fmt.Errorf("build effect chain: %w", err)
		}
	}

	if err := c.applyTopology(scramble.LowPass(1000)); err != nil {
		return nil, fmt.Errorf("build effect chain: %w", err)
	}

	c.noise.Start()

	return c, nil
}

// Graph returns the graph the chain is built in.
func (c *Chain) Graph() *audio.Graph { return c.graph }

// Configure applies one pass worth of parameters: it rewires the secondary
// filter named by p and sets every node parameter. Calling it again with the
// same p changes nothing.
func (c *Chain) Configure(p scramble.Params) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.applyTopology(p.Secondary); err != nil {
		return err
	}

	if err := c.bandPass.SetFrequency(p.BandPassFrequency); err != nil {
		return err
	}
	if err := c.bandPass.SetResonance(p.BandPassResonance); err != nil {
		return err
	}
	if err := c.distortion.Set(p.Distortion, p.Oversample); err != nil {
		return err
	}
	if err := c.gain.Ramp(p.Gain, 0); err != nil {
		return err
	}
	if err := c.noiseGain.Ramp(p.NoiseLevel, c.noiseRamp); err != nil {
		return err
	}

	c.pruneLocked()
	c.params = p

	return nil
}

// applyTopology routes band-pass → s → distortion and detaches the other
// secondary filter. Connect moves an output, so the band-pass feeds exactly
// one filter afterwards.
func (c *Chain) applyTopology(s scramble.Secondary) error {
	active, idle := c.lowPass, c.highPass
	if s.IsHighPass() {
		active, idle = c.highPass, c.lowPass
	}

	c.graph.Disconnect(idle)
	if err := c.graph.Connect(c.bandPass, active); err != nil {
		return err
	}
	if err := c.graph.Connect(active, c.distortion); err != nil {
		return err
	}

	return active.SetFrequency(s.Frequency())
}

// NewVoice creates a disconnected voice for clip.
func (c *Chain) NewVoice(clip *beep.Buffer) Voice {
	return c.graph.NewVoice(clip)
}

// RouteInput connects v into the band-pass. v becomes the current input;
// earlier inputs that have finished sounding are detached.
func (c *Chain) RouteInput(v Voice) error {
	voice, ok := v.(*audio.Voice)
	if !ok {
		return ErrForeignVoice
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()
	if c.graph.Connected(voice, c.bandPass) {
		return nil
	}
	if err := c.graph.Connect(voice, c.bandPass); err != nil {
		return err
	}
	c.inputs = append(c.inputs, voice)

	return nil
}

// pruneLocked disconnects routed voices that are no longer sounding.
func (c *Chain) pruneLocked() {
	kept := c.inputs[:0]
	for _, v := range c.inputs {
		if v.Playing() {
			kept = append(kept, v)
			continue
		}
		c.graph.Disconnect(v)
	}
	clear(c.inputs[len(kept):])
	c.inputs = kept
}

// MuteNoise fades the noise layer to silence over fade.
func (c *Chain) MuteNoise(fade time.Duration) error {
	return c.noiseGain.Ramp(0, fade)
}

// NoiseLevel returns the level the noise gain is heading to.
func (c *Chain) NoiseLevel() float64 { return c.noiseGain.Target() }

// Params returns the parameters of the last successful Configure.
func (c *Chain) Params() scramble.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// ActiveSecondary reports which secondary filters currently sit between the
// band-pass and the distortion.
func (c *Chain) ActiveSecondary() []audio.FilterKind {
	var kinds []audio.FilterKind
	for _, f := range []*audio.Filter{c.highPass, c.lowPass} {
		if c.graph.Connected(c.bandPass, f) && c.graph.Connected(f, c.distortion) {
			kinds = append(kinds, f.Kind())
		}
	}
	return kinds
}

// Inputs returns the number of voices currently routed into the chain.
func (c *Chain) Inputs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inputs)
}
