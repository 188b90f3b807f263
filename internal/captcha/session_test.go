package captcha_test

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-audio-captcha/internal/captcha"
	"github.com/Raikerian/go-audio-captcha/internal/config"
	"github.com/Raikerian/go-audio-captcha/internal/effects"
	"github.com/Raikerian/go-audio-captcha/internal/scramble"
	"github.com/Raikerian/go-audio-captcha/internal/timing"
	"github.com/Raikerian/go-audio-captcha/pkg/audio"
)

func TestGenerateTokenLength(t *testing.T) {
	h := newHarness(t)

	for n := 1; n <= 12; n++ {
		require.NoError(t, h.session.Generate(n))

		token := string(h.session.Token())
		assert.Len(t, token, n)
		for _, r := range token {
			assert.True(t, r >= '0' && r <= '9', "digit %q", r)
		}
		assert.Equal(t, n, h.session.TokenLength())
	}
}

func TestGenerateDefaultLength(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.session.Generate(0))
	assert.Len(t, h.session.Token(), 5)

	require.NoError(t, h.session.Generate(-3))
	assert.Len(t, h.session.Token(), 5)
}

func TestGenerateCapsLength(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.session.Generate(1_000_000))
	assert.Len(t, h.session.Token(), captcha.MaxTokenLength)
	assert.Equal(t, captcha.MaxTokenLength+1, h.clock.Pending(), "one timer per digit plus the terminal callback")
}

func TestGenerateStartsPlaying(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.session.Generate(5))
	assert.True(t, h.session.IsPlaying())
	assert.Equal(t, captcha.StatePlaying, h.session.State())
	assert.Len(t, h.chain.configured, 1)
	assert.Len(t, h.chain.voicesSnapshot(), 5)
	assert.Equal(t, 6, h.clock.Pending(), "five digit starts and one terminal callback")
}

func TestSubmitIgnoresWhitespace(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Generate(3))
	token := string(h.session.Token())

	spaced := strings.Join(strings.Split(token, ""), " ")
	for _, answer := range []string{token, spaced, " " + token + "\n", "\t" + spaced + "\t"} {
		v, err := h.session.Submit(answer)
		require.NoError(t, err)
		assert.Equal(t, captcha.Correct, v, "answer %q", answer)
	}

	v, err := h.session.Submit(spaced + " 1")
	require.NoError(t, err)
	assert.Equal(t, captcha.Incorrect, v)
}

func TestSubmitEmptyInput(t *testing.T) {
	h := newHarness(t)

	// Empty input is reported before the missing token.
	_, err := h.session.Submit("   \t")
	assert.ErrorIs(t, err, captcha.ErrEmptyInput)

	require.NoError(t, h.session.Generate(5))
	_, err = h.session.Submit("")
	assert.ErrorIs(t, err, captcha.ErrEmptyInput)
}

func TestSubmitDoesNotTouchPlayback(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Generate(5))

	before := h.session.Status()
	pending := h.clock.Pending()

	_, err := h.session.Submit("00000")
	require.NoError(t, err)

	assert.Equal(t, before, h.session.Status())
	assert.Equal(t, pending, h.clock.Pending())
}

func TestScenarioAssetsMissing(t *testing.T) {
	h := newHarness(t)
	h.bank.loaded = false

	err := h.session.Generate(5)
	assert.ErrorIs(t, err, captcha.ErrAssetsMissing)
	assert.Equal(t, captcha.StateEmpty, h.session.State())
	assert.Zero(t, h.session.TokenLength())
	assert.Zero(t, h.clock.Pending())

	_, err = h.session.Submit("12345")
	assert.ErrorIs(t, err, captcha.ErrNotReady)

	assert.ErrorIs(t, h.session.Play(), captcha.ErrNotReady)
}

func TestScenarioCorrectAndIncorrect(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Generate(5))

	token := string(h.session.Token())
	require.Len(t, token, 5)

	v, err := h.session.Submit(token)
	require.NoError(t, err)
	assert.Equal(t, captcha.Correct, v)

	v, err = h.session.Submit(token + "x")
	require.NoError(t, err)
	assert.Equal(t, captcha.Incorrect, v)
}

func TestScenarioGenerateStopAdvance(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Generate(5))
	require.True(t, h.session.Stop())

	h.clock.Advance(10 * time.Second)

	assert.False(t, h.session.IsPlaying())
	assert.Zero(t, h.chain.starts(), "no clip may start after stop")
	assert.Equal(t, captcha.StateStopped, h.session.State())
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Generate(5))
	h.clock.Advance(10 * time.Millisecond) // first digit sounding

	require.True(t, h.session.Stop())
	once := h.session.Status()
	mutes := len(h.chain.mutesSnapshot())
	stops := h.chain.voicesSnapshot()[0].stops

	assert.False(t, h.session.Stop())
	assert.Equal(t, once, h.session.Status())
	assert.Len(t, h.chain.mutesSnapshot(), mutes, "second stop fades nothing")
	assert.Equal(t, stops, h.chain.voicesSnapshot()[0].stops)

	assert.Equal(t, captcha.StateStopped, once.State)
	assert.Equal(t, "Stopped", once.Label)
	assert.Equal(t, 30*time.Millisecond, h.chain.mutesSnapshot()[mutes-1])
}

func TestStopOnIdleSessionIsNoop(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.session.Stop())
	assert.Equal(t, captcha.StateEmpty, h.session.State())
	assert.Empty(t, h.chain.mutesSnapshot())
}

func TestNoOrphanedTimers(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Generate(5))

	sched, ok := h.session.Schedule()
	require.True(t, ok)

	// Let two digits start, then stop.
	h.clock.Advance(sched.Entries[1].Offset)
	require.Equal(t, 2, h.chain.starts())
	require.True(t, h.session.Stop())
	assert.Zero(t, h.clock.Pending(), "stop removes every pending callback")

	h.clock.Advance(sched.End + time.Second)
	assert.Equal(t, 2, h.chain.starts())
	assert.False(t, h.session.IsPlaying())

	// The clips that were sounding got stopped.
	voices := h.chain.voicesSnapshot()
	assert.Equal(t, 1, voices[0].stops)
	assert.Equal(t, 1, voices[1].stops)
	assert.Zero(t, voices[2].stops, "never started, nothing to stop")
}

func TestGenerationGuardAloneBlocksCancelledCallbacks(t *testing.T) {
	clk := timing.NewManual(epoch)
	h := newHarness(t, withClock(leakyClock{clk}))

	require.NoError(t, h.session.Generate(5))
	require.True(t, h.session.Stop())

	// Every timer survived Stop; the generation check must turn them into no-ops.
	require.Equal(t, 6, clk.Pending())
	clk.Advance(10 * time.Second)

	assert.Zero(t, h.chain.starts())
	assert.False(t, h.session.IsPlaying())
	assert.Equal(t, captcha.StateStopped, h.session.State())
}

func TestPlayTwiceLeavesOneLiveSchedule(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Generate(5))

	first, ok := h.session.Schedule()
	require.True(t, ok)
	h.clock.Advance(first.Entries[0].Offset + time.Millisecond)
	require.Equal(t, 1, h.chain.starts())

	require.NoError(t, h.session.Play())
	second, ok := h.session.Schedule()
	require.True(t, ok)
	assert.Greater(t, second.Generation, first.Generation)
	assert.Equal(t, 6, h.clock.Pending(), "only the second pass is scheduled")

	h.clock.Advance(10 * time.Second)

	voices := h.chain.voicesSnapshot()
	require.Len(t, voices, 10)
	for i, v := range voices[:5] {
		want := 0
		if i == 0 {
			want = 1
		}
		assert.Equal(t, want, v.Plays(), "first pass voice %d", i)
	}
	for i, v := range voices[5:] {
		assert.Equal(t, 1, v.Plays(), "second pass voice %d", i)
	}
	assert.False(t, h.session.IsPlaying())
	assert.Zero(t, h.clock.Pending())
}

func TestPassTimeline(t *testing.T) {
	params := scramble.Params{
		BandPassFrequency: 1000,
		BandPassResonance: 8,
		Secondary:         scramble.HighPass(700),
		Distortion:        0.12,
		Oversample:        audio.Oversample2x,
		Gain:              1,
		NoiseLevel:        0.2,
	}
	scr := &mockScrambler{}
	scr.On("Generate", mock.Anything).Return(params)

	h := newHarness(t, withScrambler(scr))
	require.NoError(t, h.session.Generate(5))
	scr.AssertNumberOfCalls(t, "Generate", 1)
	assert.Equal(t, []scramble.Params{params}, h.chain.configured)

	sched, ok := h.session.Schedule()
	require.True(t, ok)

	assert.GreaterOrEqual(t, sched.Gap, 20*time.Millisecond)
	assert.LessOrEqual(t, sched.Gap, 80*time.Millisecond)
	assert.GreaterOrEqual(t, sched.Rate, 0.92)
	assert.LessOrEqual(t, sched.Rate, 1.06)

	step := 500*time.Millisecond + sched.Gap
	for i, e := range sched.Entries {
		assert.Equal(t, time.Duration(i)*step, e.Offset)
		assert.Equal(t, 500*time.Millisecond, e.Duration)
		assert.Equal(t, h.session.Token()[i], e.Digit)
	}
	assert.Equal(t, 5*step+150*time.Millisecond, sched.End)

	// Every digit of the pass shares one rate, at full amplitude.
	h.clock.Advance(sched.End - time.Millisecond)
	for _, v := range h.chain.voicesSnapshot() {
		assert.Equal(t, 1, v.Plays())
		assert.Equal(t, sched.Rate, v.rate)
		assert.Equal(t, 1.0, v.amp)
	}
	assert.True(t, h.session.IsPlaying())

	h.clock.Advance(time.Millisecond)
	assert.False(t, h.session.IsPlaying())
	assert.Equal(t, captcha.StateReady, h.session.State())
	assert.Equal(t, "Idle", h.session.Status().Label)
	assert.Equal(t, 60*time.Millisecond, h.chain.mutesSnapshot()[len(h.chain.mutesSnapshot())-1])

	status := h.session.Status()
	assert.True(t, status.HasParams)
	assert.Equal(t, params, status.Params)
	assert.Equal(t, 1, status.Passes)
}

func TestFallbackClipDuration(t *testing.T) {
	h := newHarness(t)
	for d := range h.bank.clips {
		h.bank.clips[d] = emptyClip(d)
	}

	require.NoError(t, h.session.Generate(3))
	sched, ok := h.session.Schedule()
	require.True(t, ok)

	for i, e := range sched.Entries {
		assert.Equal(t, time.Second, e.Duration)
		assert.Equal(t, time.Duration(i)*(time.Second+sched.Gap), e.Offset)
	}
}

func TestRouteFailureIsNotRetried(t *testing.T) {
	h := newHarness(t)
	h.chain.routeErr = errBoom

	require.NoError(t, h.session.Generate(5))
	h.clock.Advance(10 * time.Second)

	assert.Zero(t, h.chain.starts())
	assert.False(t, h.session.IsPlaying(), "the pass still ends on schedule")
}

func TestConfigureFailure(t *testing.T) {
	h := newHarness(t)
	h.chain.configureErr = errBoom

	err := h.session.Generate(5)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, captcha.StateReady, h.session.State())
	assert.False(t, h.session.IsPlaying())
	assert.Zero(t, h.clock.Pending())
}

func TestRegenerateSupersedesPass(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Generate(5))
	h.clock.Advance(10 * time.Millisecond)

	require.NoError(t, h.session.Generate(4))
	assert.Equal(t, 5, h.clock.Pending(), "four digit starts and one terminal callback")
	assert.Equal(t, 1, h.chain.voicesSnapshot()[0].stops, "the sounding clip of the old pass is stopped")
}

func TestEvents(t *testing.T) {
	h := newHarness(t)

	var kinds []captcha.EventKind
	var labels []string
	unsubscribe := h.session.Subscribe(func(e captcha.Event) {
		kinds = append(kinds, e.Kind)
		// Listeners may call back into the session.
		labels = append(labels, h.session.Status().Label)
	})

	require.NoError(t, h.session.Generate(2))
	h.clock.Advance(10 * time.Second)
	_, err := h.session.Submit("zz")
	require.NoError(t, err)
	require.NoError(t, h.session.Play())
	require.True(t, h.session.Stop())
	_, err = h.session.Submit("")
	require.Error(t, err)

	assert.Equal(t, []captcha.EventKind{
		captcha.EventGenerated,
		captcha.EventPassStarted,
		captcha.EventDigitStarted,
		captcha.EventDigitStarted,
		captcha.EventPassFinished,
		captcha.EventVerdict,
		captcha.EventPassStarted,
		captcha.EventPassFinished,
		captcha.EventStopped,
		captcha.EventRejected,
	}, kinds)
	assert.Equal(t, "Idle", labels[4])
	assert.Equal(t, "Stopped", labels[8])

	unsubscribe()
	require.NoError(t, h.session.Play())
	assert.Len(t, kinds, 10)
}

func TestEventOutcomes(t *testing.T) {
	h := newHarness(t)

	var outcomes []captcha.Outcome
	h.session.Subscribe(func(e captcha.Event) {
		if e.Kind == captcha.EventPassFinished {
			outcomes = append(outcomes, e.Outcome)
		}
	})

	require.NoError(t, h.session.Generate(2))
	require.NoError(t, h.session.Play())
	h.session.Stop()
	require.NoError(t, h.session.Play())
	h.clock.Advance(10 * time.Second)

	assert.Equal(t, []captcha.Outcome{
		captcha.OutcomeSuperseded,
		captcha.OutcomeStopped,
		captcha.OutcomeCompleted,
	}, outcomes)
}

// TestRealChainKeepsOneSecondary drives the session against the real effect
// chain and checks the filter topology after every pass.
func TestRealChainKeepsOneSecondary(t *testing.T) {
	chain, err := effects.NewChain(audio.NewGraph(clipRate), 20*time.Millisecond, 5)
	require.NoError(t, err)

	cfg := config.Default()
	bank := newFakeBank(50 * time.Millisecond)
	clk := timing.NewManual(epoch)
	s := captcha.NewSession(captcha.SessionParams{
		Config:    &cfg,
		Bank:      bank,
		Chain:     chain,
		Scrambler: scramble.NewGenerator(cfg.Scramble),
		Clock:     clk,
		Logger:    zaptest.NewLogger(t),
		Rand:      rand.New(rand.NewPCG(1, 1)),
	})

	require.NoError(t, s.Generate(3))
	for range 50 {
		require.NoError(t, s.Play())
		assert.Len(t, chain.ActiveSecondary(), 1)
		assert.Equal(t, chain.Params().Secondary.Kind(), chain.ActiveSecondary()[0])
		clk.Advance(20 * time.Millisecond)
	}
}

func TestErrorCodes(t *testing.T) {
	assert.True(t, errors.Is(captcha.NewError(captcha.CodeNotReady, "other text"), captcha.ErrNotReady))
	assert.False(t, errors.Is(captcha.ErrNotReady, captcha.ErrEmptyInput))

	var cerr *captcha.Error
	require.ErrorAs(t, captcha.ErrAssetsMissing, &cerr)
	assert.Equal(t, captcha.CodeAssetsMissing, cerr.Code)
	assert.Equal(t, "missing digit audio assets (0.wav…9.wav)", cerr.Error())
}
