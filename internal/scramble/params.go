// Package scramble draws the randomised effect settings applied to each
// captcha playback pass.
package scramble

import (
	"fmt"
	"math/rand/v2"

	"github.com/Raikerian/go-audio-captcha/internal/config"
	"github.com/Raikerian/go-audio-captcha/pkg/audio"
)

// Secondary is the filter that follows the band-pass. It is either a
// high-pass or a low-pass, never both; build it with HighPass or LowPass.
type Secondary struct {
	kind audio.FilterKind
	freq float64
}

// HighPass selects a high-pass secondary filter at hz.
func HighPass(hz float64) Secondary { return Secondary{kind: audio.HighPass, freq: hz} }

// LowPass selects a low-pass secondary filter at hz.
func LowPass(hz float64) Secondary { return Secondary{kind: audio.LowPass, freq: hz} }

// Kind returns audio.HighPass or audio.LowPass.
func (s Secondary) Kind() audio.FilterKind { return s.kind }

// Frequency returns the cutoff in Hz.
func (s Secondary) Frequency() float64 { return s.freq }

// IsHighPass reports whether the secondary is the high-pass variant.
func (s Secondary) IsHighPass() bool { return s.kind == audio.HighPass }

func (s Secondary) String() string {
	if s.IsHighPass() {
		return fmt.Sprintf("HP=%.0fHz", s.freq)
	}
	return fmt.Sprintf("LP=%.0fHz", s.freq)
}

// Params is one pass worth of effect settings.
type Params struct {
	BandPassFrequency float64
	BandPassResonance float64
	Secondary         Secondary
	Distortion        float64
	Oversample        audio.Oversample
	Gain              float64
	NoiseLevel        float64
}

// String renders the one-line summary printed when a pass starts.
func (p Params) String() string {
	return fmt.Sprintf("bp=%.0fHz res=%.1f, %s, dist=%.2f, noise=%.3f",
		p.BandPassFrequency, p.BandPassResonance, p.Secondary, p.Distortion, p.NoiseLevel)
}

// Generator draws Params from configured ranges.
type Generator struct {
	ranges config.ScrambleConfig
}

// NewGenerator creates a generator over the given ranges.
func NewGenerator(ranges config.ScrambleConfig) *Generator {
	return &Generator{ranges: ranges}
}

// Generate draws a fresh Params. The result depends only on rng.
func (g *Generator) Generate(rng *rand.Rand) Params {
	r := g.ranges

	p := Params{
		BandPassFrequency: uniform(rng, r.BandPassFrequency),
		BandPassResonance: uniform(rng, r.BandPassResonance),
	}

	if rng.Float64() < r.HighPassProbability {
		p.Secondary = HighPass(uniform(rng, r.HighPassFrequency))
	} else {
		p.Secondary = LowPass(uniform(rng, r.LowPassFrequency))
	}

	p.Distortion = uniform(rng, r.Distortion)
	p.Oversample = audio.Oversample(r.Oversample)
	p.Gain = r.Gain
	p.NoiseLevel = uniform(rng, r.NoiseLevel)

	return p
}

func uniform(rng *rand.Rand, r config.Range) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}
