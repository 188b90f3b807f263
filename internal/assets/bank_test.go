package assets_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Raikerian/go-audio-captcha/internal/assets"
)

// tone returns frames samples of a sine at freq.
func tone(rate beep.SampleRate, freq float64, frames int) beep.Streamer {
	i := 0
	return beep.StreamerFunc(func(s [][2]float64) (int, bool) {
		if i >= frames {
			return 0, false
		}
		n := 0
		for ; n < len(s) && i < frames; n++ {
			v := 0.4 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
			s[n] = [2]float64{v, v}
			i++
		}
		return n, true
	})
}

// writeDigits writes digits/N.wav for every digit in digits, each half a
// second long at rate.
func writeDigits(t *testing.T, dir string, rate beep.SampleRate, digits string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "digits"), 0o755))

	format := beep.Format{SampleRate: rate, NumChannels: 1, Precision: 2}
	for i := range digits {
		f, err := os.Create(filepath.Join(dir, assets.Path(digits[i])))
		require.NoError(t, err)
		require.NoError(t, wav.Encode(f, tone(rate, 300+float64(i)*50, rate.N(500*time.Millisecond)), format))
		require.NoError(t, f.Close())
	}
}

func TestBankLoadsAllDigits(t *testing.T) {
	dir := t.TempDir()
	writeDigits(t, dir, 8000, assets.Digits)

	bank := assets.NewBank(os.DirFS(dir), 16000, zap.NewNop())
	assert.False(t, bank.AreAllLoaded())

	require.NoError(t, bank.Load(context.Background()))
	assert.True(t, bank.AreAllLoaded())

	for i := range assets.Digits {
		clip, err := bank.Clip(assets.Digits[i])
		require.NoError(t, err)
		assert.True(t, clip.Loaded())
		assert.Equal(t, assets.Digits[i], clip.Digit)
		assert.Equal(t, beep.SampleRate(16000), clip.Buffer.Format().SampleRate)
		assert.InDelta(t, float64(500*time.Millisecond), float64(clip.Duration), float64(5*time.Millisecond),
			"resampling keeps the duration")
	}

	require.NoError(t, bank.Wait(context.Background()))
}

func TestBankMissingDigit(t *testing.T) {
	dir := t.TempDir()
	writeDigits(t, dir, 8000, "012346789")

	core, logs := observer.New(zapcore.WarnLevel)
	bank := assets.NewBank(os.DirFS(dir), 8000, zap.New(core))

	err := bank.Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "digits/5.wav")
	assert.False(t, bank.AreAllLoaded())
	assert.Equal(t, 1, logs.FilterMessage("Missing digit audio assets").Len())

	five, err := bank.Clip('5')
	require.NoError(t, err)
	assert.False(t, five.Loaded())
	assert.Zero(t, five.Duration)

	four, err := bank.Clip('4')
	require.NoError(t, err)
	assert.True(t, four.Loaded(), "other digits survive a partial failure")

	// No retries: loading again reports the same failure without rereading.
	writeDigits(t, dir, 8000, "5")
	assert.Error(t, bank.Load(context.Background()))
	assert.False(t, bank.AreAllLoaded())
}

func TestBankCorruptClip(t *testing.T) {
	dir := t.TempDir()
	writeDigits(t, dir, 8000, assets.Digits)
	require.NoError(t, os.WriteFile(filepath.Join(dir, assets.Path('7')), []byte("not a wav"), 0o600))

	bank := assets.NewBank(os.DirFS(dir), 8000, zap.NewNop())
	err := bank.Load(context.Background())
	assert.ErrorContains(t, err, "digits/7.wav")
	assert.False(t, bank.AreAllLoaded())
}

func TestBankClipOutOfRange(t *testing.T) {
	bank := assets.NewBank(os.DirFS(t.TempDir()), 8000, zap.NewNop())

	for _, d := range []byte{'a', '/', ':', 0} {
		_, err := bank.Clip(d)
		assert.ErrorIs(t, err, assets.ErrAssetNotFound)
	}
}

func TestBankWaitHonoursContext(t *testing.T) {
	bank := assets.NewBank(os.DirFS(t.TempDir()), 8000, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bank.Wait(ctx), context.Canceled)
}

func TestNewClip(t *testing.T) {
	buf := beep.NewBuffer(beep.Format{SampleRate: 8000, NumChannels: 2, Precision: 2})
	buf.Append(tone(8000, 440, 4000))

	clip := assets.NewClip('3', buf)
	assert.True(t, clip.Loaded())
	assert.Equal(t, 500*time.Millisecond, clip.Duration)
}
