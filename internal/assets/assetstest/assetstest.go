// Package assetstest builds in-memory digit asset trees for tests.
package assetstest

import (
	"math"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-audio-captcha/internal/assets"
	"github.com/Raikerian/go-audio-captcha/internal/render"
)

// DigitFS returns an asset tree holding a mono sine clip of length d at rate
// for every digit in digits. Each digit gets its own pitch.
func DigitFS(t testing.TB, rate beep.SampleRate, d time.Duration, digits string) fstest.MapFS {
	t.Helper()

	fsys := fstest.MapFS{}
	format := beep.Format{SampleRate: rate, NumChannels: 1, Precision: 2}
	for i := range digits {
		var out render.Buffer
		require.NoError(t, wav.Encode(&out, Tone(rate, 400+60*float64(digits[i]-'0'), rate.N(d)), format))
		fsys[assets.Path(digits[i])] = &fstest.MapFile{Data: out.Bytes()}
	}
	return fsys
}

// Tone returns frames samples of a sine at freq.
func Tone(rate beep.SampleRate, freq float64, frames int) beep.Streamer {
	i := 0
	return beep.StreamerFunc(func(s [][2]float64) (int, bool) {
		if i >= frames {
			return 0, false
		}
		n := 0
		for ; n < len(s) && i < frames; n++ {
			v := 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
			s[n] = [2]float64{v, v}
			i++
		}
		return n, true
	})
}
