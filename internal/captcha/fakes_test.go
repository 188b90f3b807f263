package captcha_test

import (
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-audio-captcha/internal/assets"
	"github.com/Raikerian/go-audio-captcha/internal/captcha"
	"github.com/Raikerian/go-audio-captcha/internal/config"
	"github.com/Raikerian/go-audio-captcha/internal/effects"
	"github.com/Raikerian/go-audio-captcha/internal/scramble"
	"github.com/Raikerian/go-audio-captcha/internal/timing"
	"github.com/Raikerian/go-audio-captcha/pkg/audio"
)

const clipRate beep.SampleRate = 8000

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// silence returns a buffer of d worth of zero frames.
func silence(d time.Duration) *beep.Buffer {
	b := beep.NewBuffer(audio.Format(clipRate))
	b.Append(beep.Silence(clipRate.N(d)))
	return b
}

// emptyClip is a loaded clip with no frames, so it has no usable duration.
func emptyClip(d byte) *assets.Clip {
	return assets.NewClip(d, beep.NewBuffer(audio.Format(clipRate)))
}

// fakeBank serves clips of a fixed length, or reports itself unloaded.
type fakeBank struct {
	loaded bool
	clips  map[byte]*assets.Clip
}

func newFakeBank(clipLen time.Duration) *fakeBank {
	b := &fakeBank{loaded: true, clips: map[byte]*assets.Clip{}}
	for i := range assets.Digits {
		d := assets.Digits[i]
		b.clips[d] = assets.NewClip(d, silence(clipLen))
	}
	return b
}

func (b *fakeBank) AreAllLoaded() bool { return b.loaded }

func (b *fakeBank) Clip(d byte) (*assets.Clip, error) {
	c, ok := b.clips[d]
	if !ok {
		return nil, assets.ErrAssetNotFound
	}
	return c, nil
}

// fakeVoice records what the scheduler did to it.
type fakeVoice struct {
	mu      sync.Mutex
	rate    float64
	amp     float64
	plays   int
	stops   int
	playing bool
}

func (v *fakeVoice) SetRate(r float64) error { v.mu.Lock(); v.rate = r; v.mu.Unlock(); return nil }
func (v *fakeVoice) SetAmp(a float64) error  { v.mu.Lock(); v.amp = a; v.mu.Unlock(); return nil }

func (v *fakeVoice) Play() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.plays++
	v.playing = true
}

func (v *fakeVoice) Stop() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.playing {
		return audio.ErrNotPlaying
	}
	v.playing = false
	v.stops++
	return nil
}

func (v *fakeVoice) Playing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

func (v *fakeVoice) Plays() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.plays
}

// fakeChain records configuration, routing and fades.
type fakeChain struct {
	mu           sync.Mutex
	configured   []scramble.Params
	voices       []*fakeVoice
	routed       []*fakeVoice
	mutes        []time.Duration
	configureErr error
	routeErr     error
}

func (c *fakeChain) Configure(p scramble.Params) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configureErr != nil {
		return c.configureErr
	}
	c.configured = append(c.configured, p)
	return nil
}

func (c *fakeChain) NewVoice(*beep.Buffer) effects.Voice {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := &fakeVoice{}
	c.voices = append(c.voices, v)
	return v
}

func (c *fakeChain) RouteInput(v effects.Voice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.routeErr != nil {
		return c.routeErr
	}
	c.routed = append(c.routed, v.(*fakeVoice))
	return nil
}

func (c *fakeChain) MuteNoise(fade time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutes = append(c.mutes, fade)
	return nil
}

// starts counts Play calls across every voice the chain handed out.
func (c *fakeChain) starts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.voices {
		n += v.Plays()
	}
	return n
}

func (c *fakeChain) voicesSnapshot() []*fakeVoice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeVoice(nil), c.voices...)
}

func (c *fakeChain) mutesSnapshot() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.mutes...)
}

// mockScrambler is a testify mock for captcha.Scrambler.
type mockScrambler struct {
	mock.Mock
}

func (m *mockScrambler) Generate(rng *rand.Rand) scramble.Params {
	args := m.Called(rng)
	return args.Get(0).(scramble.Params)
}

// leakyClock wraps a manual clock but never removes a timer on Stop, so
// cancelled callbacks still fire. It exercises the generation guard alone.
type leakyClock struct {
	*timing.Manual
}

type unstoppable struct{}

func (unstoppable) Stop() bool { return false }

func (c leakyClock) AfterFunc(d time.Duration, f func()) timing.Timer {
	c.Manual.AfterFunc(d, f)
	return unstoppable{}
}

type harness struct {
	session *captcha.Session
	clock   *timing.Manual
	bank    *fakeBank
	chain   *fakeChain
}

type harnessOption func(*captcha.SessionParams)

func withClock(c timing.Clock) harnessOption {
	return func(p *captcha.SessionParams) { p.Clock = c }
}

func withScrambler(s captcha.Scrambler) harnessOption {
	return func(p *captcha.SessionParams) { p.Scrambler = s }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	cfg := config.Default()
	h := &harness{
		clock: timing.NewManual(epoch),
		bank:  newFakeBank(500 * time.Millisecond),
		chain: &fakeChain{},
	}

	params := captcha.SessionParams{
		Config:    &cfg,
		Bank:      h.bank,
		Chain:     h.chain,
		Scrambler: scramble.NewGenerator(cfg.Scramble),
		Clock:     h.clock,
		Logger:    zaptest.NewLogger(t),
		Rand:      rand.New(rand.NewPCG(11, 22)),
	}
	for _, opt := range opts {
		opt(&params)
	}

	h.session = captcha.NewSession(params)
	return h
}

var errBoom = errors.New("boom")
