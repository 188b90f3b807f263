package audio

import (
	"time"

	"github.com/gopxl/beep/v2"
)

// Format constants shared by the graph, the asset loader and the sinks.
const (
	DefaultSampleRate beep.SampleRate = 44_100 // Hz
	Channels                          = 2      // beep frames are always stereo
	Precision                         = 2      // 16-bit PCM when encoding

	// DefaultBlock is the render quantum used by offline rendering and the
	// null sink (10 ms).
	DefaultBlock = 10 * time.Millisecond

	// DefaultTapSize holds roughly 46 ms of bus output at 44.1 kHz.
	DefaultTapSize = 2048

	// resampleQuality is passed to beep's resampler for voices and decoding.
	resampleQuality = 4
)

// Format returns the beep format used for every stream in a graph running at
// the given sample rate.
func Format(rate beep.SampleRate) beep.Format {
	return beep.Format{
		SampleRate:  rate,
		NumChannels: Channels,
		Precision:   Precision,
	}
}
