package audio

import (
	"fmt"
	"math"

	"github.com/gopxl/beep/v2"
)

// Voice plays a decoded clip at a given playback rate and amplitude. A voice
// is a source: it feeds one destination and accepts no input.
type Voice struct {
	junction
	g *Graph

	clip    *beep.Buffer
	stream  *beep.Resampler
	rate    float64
	amp     float64
	playing bool
}

// NewVoice creates a silent, disconnected voice for clip. The clip must be
// at the graph's sample rate.
func (g *Graph) NewVoice(clip *beep.Buffer) *Voice {
	return &Voice{
		g:    g,
		clip: clip,
		rate: 1,
		amp:  1,
	}
}

// SetRate sets the playback speed multiplier (1 = original speed). Pitch
// follows speed.
func (v *Voice) SetRate(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("%w: rate %v", ErrInvalidParam, rate)
	}

	v.g.mu.Lock()
	defer v.g.mu.Unlock()

	v.rate = rate
	if v.stream != nil {
		v.stream.SetRatio(rate)
	}
	return nil
}

// SetAmp sets the output amplitude.
func (v *Voice) SetAmp(amp float64) error {
	if amp < 0 || math.IsNaN(amp) || math.IsInf(amp, 0) {
		return fmt.Errorf("%w: amplitude %v", ErrInvalidParam, amp)
	}

	v.g.mu.Lock()
	defer v.g.mu.Unlock()

	v.amp = amp
	return nil
}

// Play starts the clip from the beginning, restarting it if it is already
// sounding.
func (v *Voice) Play() {
	v.g.mu.Lock()
	defer v.g.mu.Unlock()

	if v.clip == nil || v.clip.Len() == 0 {
		v.playing = false
		v.stream = nil
		return
	}

	v.stream = beep.ResampleRatio(resampleQuality, v.rate, v.clip.Streamer(0, v.clip.Len()))
	v.playing = true
}

// Stop silences the voice. Stopping a voice that is not sounding returns
// ErrNotPlaying.
func (v *Voice) Stop() error {
	v.g.mu.Lock()
	defer v.g.mu.Unlock()

	if !v.playing {
		return ErrNotPlaying
	}
	v.playing = false
	v.stream = nil
	return nil
}

// Playing reports whether the clip is still sounding.
func (v *Voice) Playing() bool {
	v.g.mu.Lock()
	defer v.g.mu.Unlock()
	return v.playing
}

func (v *Voice) render(buf [][2]float64) {
	if !v.playing {
		clear(buf)
		return
	}

	n, ok := v.stream.Stream(buf)
	for i := 0; i < n; i++ {
		buf[i][0] *= v.amp
		buf[i][1] *= v.amp
	}
	clear(buf[n:])

	if !ok || n < len(buf) {
		v.playing = false
		v.stream = nil
	}
}
