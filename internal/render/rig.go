// Package render plays captcha passes offline: a rig owns its own graph,
// effect chain and virtual clock, and a pass is rendered by advancing the
// clock block by block while pulling the graph into a WAV encoder.
package render

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-captcha/internal/captcha"
	"github.com/Raikerian/go-audio-captcha/internal/config"
	"github.com/Raikerian/go-audio-captcha/internal/effects"
	"github.com/Raikerian/go-audio-captcha/internal/scramble"
	"github.com/Raikerian/go-audio-captcha/internal/timing"
	"github.com/Raikerian/go-audio-captcha/pkg/audio"
)

// ErrRenderLimit is returned when a pass does not finish within the
// configured maximum render length.
var ErrRenderLimit = errors.New("render: pass exceeded the maximum render length")

// epoch is where every rig's virtual clock starts.
var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Rig is a self-contained captcha: one session wired to a private graph and
// a manual clock. A rig is safe for concurrent use, but passes are rendered
// one at a time.
type Rig struct {
	graph   *audio.Graph
	chain   *effects.Chain
	clock   *timing.Manual
	session *captcha.Session
	logger  *zap.Logger

	block time.Duration
	tail  time.Duration
	limit time.Duration

	renderMu sync.Mutex
}

// NewRig builds a rig sharing bank with the rest of the process.
func NewRig(cfg *config.Config, bank captcha.Source, logger *zap.Logger) (*Rig, error) {
	graph := audio.NewGraph(beep.SampleRate(cfg.Audio.SampleRate))

	chain, err := effects.NewChain(graph, cfg.Scramble.NoiseRamp.D(), rand.Uint64())
	if err != nil {
		return nil, fmt.Errorf("build effect chain: %w", err)
	}

	clock := timing.NewManual(epoch)
	session := captcha.NewSession(captcha.SessionParams{
		Config:    cfg,
		Bank:      bank,
		Chain:     chain,
		Scrambler: scramble.NewGenerator(cfg.Scramble),
		Clock:     clock,
		Logger:    logger,
	})

	block := cfg.Audio.Block.D()
	if block <= 0 {
		block = audio.DefaultBlock
	}

	return &Rig{
		graph:   graph,
		chain:   chain,
		clock:   clock,
		session: session,
		logger:  logger,
		block:   block,
		tail:    cfg.Captcha.EndFade.D(),
		limit:   cfg.HTTP.MaxRender.D(),
	}, nil
}

// Session returns the rig's session.
func (r *Rig) Session() *captcha.Session { return r.session }

// Format returns the format RenderPass encodes.
func (r *Rig) Format() beep.Format { return r.graph.Format() }

// RenderPass encodes one scrambled pass of the current token to w as a
// 16-bit WAV and returns the rendered length. A pass that is already queued,
// as after Generate, is rendered as is; otherwise a new pass is started.
func (r *Rig) RenderPass(w io.WriteSeeker) (time.Duration, error) {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	if !r.session.IsPlaying() {
		if err := r.session.Play(); err != nil {
			return 0, err
		}
	}

	buf, err := r.pull()
	if err != nil {
		return 0, err
	}

	if err := wav.Encode(w, buf.Streamer(0, buf.Len()), buf.Format()); err != nil {
		return 0, fmt.Errorf("encode wav: %w", err)
	}

	length := r.graph.SampleRate().D(buf.Len())
	r.logger.Debug("Rendered captcha pass",
		zap.Duration("length", length),
		zap.Int("frames", buf.Len()))

	return length, nil
}

// pull drives the virtual clock until the pass finishes, collecting the
// graph output, then keeps going for the fade tail. The last block before
// the terminal callback is cut short so the pass ends at its exact offset.
func (r *Rig) pull() (*beep.Buffer, error) {
	rate := r.graph.SampleRate()
	buf := beep.NewBuffer(r.graph.Format())

	sched, ok := r.session.Schedule()
	if !ok {
		return nil, captcha.ErrNotReady
	}
	deadline := sched.Started.Add(sched.End)

	// Entries due at offset zero fire before the first block is pulled.
	r.clock.Advance(0)

	var elapsed time.Duration
	for r.session.IsPlaying() {
		if r.limit > 0 && elapsed >= r.limit {
			r.session.Stop()
			return nil, fmt.Errorf("%w (%s)", ErrRenderLimit, r.limit)
		}

		step := r.block
		if left := deadline.Sub(r.clock.Now()); left > 0 && left < step {
			step = left
		}
		if n := rate.N(step); n > 0 {
			buf.Append(beep.Take(n, r.graph))
		}
		r.clock.Advance(step)
		elapsed += step
	}

	if n := rate.N(r.tail); n > 0 {
		buf.Append(beep.Take(n, r.graph))
	}

	return buf, nil
}

// Stop cancels any queued pass so the rig can be dropped.
func (r *Rig) Stop() bool {
	return r.session.Stop()
}
