// Package captcha implements the audio captcha session: token generation,
// the scrambled playback scheduler and answer verification.
package captcha

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-captcha/internal/assets"
	"github.com/Raikerian/go-audio-captcha/internal/config"
	"github.com/Raikerian/go-audio-captcha/internal/effects"
	"github.com/Raikerian/go-audio-captcha/internal/scramble"
	"github.com/Raikerian/go-audio-captcha/internal/timing"
)

// Source serves decoded digit clips.
type Source interface {
	AreAllLoaded() bool
	Clip(digit byte) (*assets.Clip, error)
}

// Chain is the effect chain digits are played through.
type Chain interface {
	Configure(p scramble.Params) error
	NewVoice(clip *beep.Buffer) effects.Voice
	RouteInput(v effects.Voice) error
	MuteNoise(fade time.Duration) error
}

// Scrambler draws the effect settings for a pass.
type Scrambler interface {
	Generate(rng *rand.Rand) scramble.Params
}

// State is the session lifecycle state.
type State int

const (
	StateEmpty State = iota
	StateReady
	StatePlaying
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "Empty"
	case StateReady:
		return "Ready"
	case StatePlaying:
		return "Playing"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is a snapshot of the session for display.
type Status struct {
	State       State
	Label       string
	Playing     bool
	TokenLength int
	Generation  uint64
	Passes      int
	Params      scramble.Params
	HasParams   bool
	Gap         time.Duration
	Rate        float64
}

// SessionParams holds dependencies for NewSession.
type SessionParams struct {
	fx.In

	Config    *config.Config
	Bank      Source
	Chain     Chain
	Scrambler Scrambler
	Clock     timing.Clock
	Logger    *zap.Logger
	Rand      *rand.Rand `optional:"true"`
}

// Session is one listener's captcha. All operations run to completion under
// the session lock; timer callbacks re-enter through the same lock and check
// the generation they were created for before touching anything.
type Session struct {
	cfg       config.CaptchaConfig
	bank      Source
	chain     Chain
	scrambler Scrambler
	clock     timing.Clock
	logger    *zap.Logger

	mu         sync.Mutex
	rng        *rand.Rand
	token      Token
	state      State
	playing    bool
	generation uint64
	schedule   *Schedule
	params     scramble.Params
	hasParams  bool
	passes     int
	lastGap    time.Duration
	lastRate   float64

	subID     uint64
	listeners []subscription
}

// NewSession creates an empty session.
func NewSession(p SessionParams) *Session {
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Session{
		cfg:       p.Config.Captcha,
		bank:      p.Bank,
		chain:     p.Chain,
		scrambler: p.Scrambler,
		clock:     p.Clock,
		logger:    p.Logger,
		rng:       rng,
	}
}

// Subscribe registers fn for session events and returns a function that
// removes it.
func (s *Session) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subID++
	id := s.subID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription) bool { return sub.id == id })
	}
}

// unlockAndEmit releases the session lock and then delivers events.
func (s *Session) unlockAndEmit(events ...Event) {
	subs := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, e := range events {
		for _, sub := range subs {
			sub.fn(e)
		}
	}
}

func (s *Session) event(kind EventKind) Event {
	return Event{
		Kind:        kind,
		Generation:  s.generation,
		TokenLength: len(s.token),
		Label:       s.labelLocked(),
	}
}

func (s *Session) rejected(err error) Event {
	e := s.event(EventRejected)
	e.Err = err
	return e
}

// Generate draws a new token of the given length and starts playing it.
// A non-positive length uses the configured default and lengths above
// MaxTokenLength are capped. Without a fully loaded
// digit bank it fails with ErrAssetsMissing and leaves the session as it was.
func (s *Session) Generate(length int) error {
	s.mu.Lock()

	if !s.bank.AreAllLoaded() {
		s.logger.Warn("Cannot generate captcha: digit assets missing")
		s.unlockAndEmit(s.rejected(ErrAssetsMissing))
		return ErrAssetsMissing
	}

	if length <= 0 {
		length = s.cfg.TokenLength
	}
	if length <= 0 {
		length = DefaultTokenLength
	}
	length = min(length, MaxTokenLength)

	var events []Event
	if s.schedule != nil {
		events = append(events, s.cancelLocked(OutcomeSuperseded))
	}

	s.token = NewToken(s.rng, length)
	s.state = StateReady
	s.logger.Info("Generated captcha", zap.Int("length", length))
	events = append(events, s.event(EventGenerated))

	started, err := s.playLocked()
	events = append(events, started...)
	s.unlockAndEmit(events...)

	return err
}

// Play starts a freshly scrambled pass of the current token, replacing any
// pass in progress.
func (s *Session) Play() error {
	s.mu.Lock()

	if s.token == "" {
		s.unlockAndEmit(s.rejected(ErrNotReady))
		return ErrNotReady
	}

	var events []Event
	if s.schedule != nil {
		events = append(events, s.cancelLocked(OutcomeSuperseded))
	}

	started, err := s.playLocked()
	events = append(events, started...)
	s.unlockAndEmit(events...)

	return err
}

// playLocked configures the chain and schedules one pass. The caller must
// have cancelled any previous schedule.
func (s *Session) playLocked() ([]Event, error) {
	params := s.scrambler.Generate(s.rng)
	if err := s.chain.Configure(params); err != nil {
		s.logger.Error("Failed to configure effect chain", zap.Error(err))
		return nil, fmt.Errorf("configure effect chain: %w", err)
	}
	s.params = params
	s.hasParams = true

	gap := uniformDuration(s.rng, s.cfg.DigitGap)
	rate := uniform(s.rng, s.cfg.PlaybackRate)

	digits := []byte(s.token)
	durations := make([]time.Duration, len(digits))
	voices := make([]effects.Voice, len(digits))
	for i, d := range digits {
		durations[i] = s.cfg.FallbackClipDuration.D()

		clip, err := s.bank.Clip(d)
		if err != nil || !clip.Loaded() {
			s.logger.Warn("Digit clip unavailable", zap.String("digit", string(d)), zap.Error(err))
			continue
		}
		if clip.Duration > 0 {
			durations[i] = clip.Duration
		}
		voices[i] = s.chain.NewVoice(clip.Buffer)
	}

	entries, end := layout(digits, durations, gap)

	s.generation++
	gen := s.generation
	sched := &Schedule{
		Generation: gen,
		Started:    s.clock.Now(),
		Gap:        gap,
		Rate:       rate,
		Entries:    entries,
		End:        end + s.cfg.EndPadding.D(),
	}
	for _, v := range voices {
		if v != nil {
			sched.voices = append(sched.voices, v)
		}
	}

	for i, e := range entries {
		if voices[i] == nil {
			continue
		}
		sched.track(s.clock.AfterFunc(e.Offset, s.startDigit(gen, i, voices[i])))
	}
	sched.track(s.clock.AfterFunc(sched.End, s.finishPass(gen)))

	s.schedule = sched
	s.state = StatePlaying
	s.playing = true
	s.passes++
	s.lastGap = gap
	s.lastRate = rate

	s.logger.Debug("scramble: "+params.String(),
		zap.Uint64("generation", gen),
		zap.Duration("gap", gap),
		zap.Float64("rate", rate),
		zap.Duration("end", sched.End))

	e := s.event(EventPassStarted)
	e.Params = params
	return []Event{e}, nil
}

// startDigit returns the callback that starts entry i of pass gen.
func (s *Session) startDigit(gen uint64, i int, v effects.Voice) func() {
	return func() {
		s.mu.Lock()

		if s.generation != gen || !s.playing || s.schedule == nil {
			s.mu.Unlock()
			return
		}
		sched := s.schedule
		digit := sched.Entries[i].Digit

		if err := v.SetRate(sched.Rate); err != nil {
			s.logger.Warn("Failed to set digit rate", zap.Error(err))
		}
		if err := v.SetAmp(s.cfg.Amplitude); err != nil {
			s.logger.Warn("Failed to set digit amplitude", zap.Error(err))
		}
		if err := s.chain.RouteInput(v); err != nil {
			s.logger.Warn("Failed to route digit into effect chain",
				zap.String("digit", string(digit)), zap.Error(err))
			s.mu.Unlock()
			return
		}
		v.Play()

		s.logger.Debug("Digit started",
			zap.Uint64("generation", gen),
			zap.Int("index", i),
			zap.Duration("offset", sched.Entries[i].Offset))

		e := s.event(EventDigitStarted)
		e.Digit = digit
		e.Index = i
		s.unlockAndEmit(e)
	}
}

// finishPass returns the terminal callback of pass gen.
func (s *Session) finishPass(gen uint64) func() {
	return func() {
		s.mu.Lock()

		if s.generation != gen || s.schedule == nil {
			s.mu.Unlock()
			return
		}

		s.playing = false
		s.schedule = nil
		s.state = StateReady
		if err := s.chain.MuteNoise(s.cfg.EndFade.D()); err != nil {
			s.logger.Warn("Failed to fade noise", zap.Error(err))
		}

		s.logger.Debug("Pass finished", zap.Uint64("generation", gen))

		e := s.event(EventPassFinished)
		e.Outcome = OutcomeCompleted
		s.unlockAndEmit(e)
	}
}

// Stop cancels the pass in progress. It reports whether there was one;
// stopping an idle session changes nothing.
func (s *Session) Stop() bool {
	s.mu.Lock()

	if s.schedule == nil {
		s.mu.Unlock()
		return false
	}

	finished := s.cancelLocked(OutcomeStopped)
	s.state = StateStopped
	finished.Label = s.labelLocked()
	s.logger.Info("Captcha playback stopped", zap.Uint64("generation", finished.Generation))

	s.unlockAndEmit(finished, s.event(EventStopped))
	return true
}

// cancelLocked tears down the live schedule: pending timers are removed,
// the generation moves on so any callback already in flight is a no-op,
// sounding clips are stopped and the noise fades out.
func (s *Session) cancelLocked(outcome Outcome) Event {
	sched := s.schedule

	e := s.event(EventPassFinished)
	e.Outcome = outcome

	s.generation++
	s.playing = false
	s.schedule = nil
	s.state = StateReady

	pending := sched.cancel()
	if err := s.chain.MuteNoise(s.cfg.StopFade.D()); err != nil {
		s.logger.Warn("Failed to fade noise", zap.Error(err))
	}

	s.logger.Debug("Pass cancelled",
		zap.Uint64("generation", sched.Generation),
		zap.String("outcome", string(outcome)),
		zap.Int("pending_timers", pending))

	return e
}

// Submit checks answer against the token. Whitespace anywhere in the answer
// is ignored. Submitting never changes the session or its playback.
func (s *Session) Submit(answer string) (Verdict, error) {
	s.mu.Lock()

	if strings.TrimSpace(answer) == "" {
		s.unlockAndEmit(s.rejected(ErrEmptyInput))
		return Incorrect, ErrEmptyInput
	}
	if s.token == "" {
		s.unlockAndEmit(s.rejected(ErrNotReady))
		return Incorrect, ErrNotReady
	}

	verdict := Incorrect
	if s.token.Matches(answer) {
		verdict = Correct
	}

	e := s.event(EventVerdict)
	e.Verdict = verdict
	s.unlockAndEmit(e)

	return verdict, nil
}

// IsPlaying reports whether a pass is in progress.
func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TokenLength returns the number of digits to type, zero before Generate.
func (s *Session) TokenLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.token)
}

// Token returns the current token. Hosts only show it in development.
func (s *Session) Token() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Schedule returns a copy of the live schedule's timeline, or false when no
// pass is in progress.
func (s *Session) Schedule() (Schedule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == nil {
		return Schedule{}, false
	}
	cp := *s.schedule
	cp.Entries = slices.Clone(s.schedule.Entries)
	cp.timers = nil
	cp.voices = nil
	return cp, true
}

// Status returns a snapshot for display.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		State:       s.state,
		Label:       s.labelLocked(),
		Playing:     s.playing,
		TokenLength: len(s.token),
		Generation:  s.generation,
		Passes:      s.passes,
		Params:      s.params,
		HasParams:   s.hasParams,
		Gap:         s.lastGap,
		Rate:        s.lastRate,
	}
}

// labelLocked is the playing indicator text: Playing while a pass runs,
// Idle after one completed.
func (s *Session) labelLocked() string {
	switch s.state {
	case StatePlaying:
		return "Playing"
	case StateReady:
		if s.passes > 0 {
			return "Idle"
		}
		return "Ready"
	default:
		return s.state.String()
	}
}

func uniform(rng *rand.Rand, r config.Range) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

func uniformDuration(rng *rand.Rand, r config.DurationRange) time.Duration {
	return r.Min.D() + time.Duration(rng.Float64()*float64(r.Max.D()-r.Min.D()))
}
