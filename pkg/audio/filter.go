package audio

import (
	"fmt"
	"math"
)

// FilterKind selects the biquad response.
type FilterKind int

const (
	BandPass FilterKind = iota
	LowPass
	HighPass
)

func (k FilterKind) String() string {
	switch k {
	case BandPass:
		return "bandpass"
	case LowPass:
		return "lowpass"
	case HighPass:
		return "highpass"
	default:
		return fmt.Sprintf("FilterKind(%d)", int(k))
	}
}

const (
	defaultFilterFreq = 1000
	defaultFilterQ    = math.Sqrt2 / 2 // Butterworth
	minFilterFreq     = 10
)

// Filter is a second-order IIR filter (RBJ cookbook coefficients) applied to
// both channels independently.
type Filter struct {
	junction
	g *Graph

	kind FilterKind
	freq float64
	q    float64

	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     [2]float64
}

// NewFilter creates a disconnected filter of the given kind.
func (g *Graph) NewFilter(kind FilterKind) *Filter {
	f := &Filter{
		junction: junction{sink: true},
		g:        g,
		kind:     kind,
		freq:     defaultFilterFreq,
		q:        defaultFilterQ,
	}
	f.updateCoefficients()
	return f
}

// Kind returns the filter response.
func (f *Filter) Kind() FilterKind { return f.kind }

// SetFrequency sets the cutoff (low/high-pass) or centre (band-pass)
// frequency in Hz. Values are clamped below Nyquist.
func (f *Filter) SetFrequency(hz float64) error {
	if hz <= 0 || math.IsNaN(hz) {
		return fmt.Errorf("%w: frequency %v", ErrInvalidParam, hz)
	}

	f.g.mu.Lock()
	defer f.g.mu.Unlock()

	f.freq = hz
	f.updateCoefficients()
	return nil
}

// SetResonance sets the filter Q.
func (f *Filter) SetResonance(q float64) error {
	if q <= 0 || math.IsNaN(q) {
		return fmt.Errorf("%w: resonance %v", ErrInvalidParam, q)
	}

	f.g.mu.Lock()
	defer f.g.mu.Unlock()

	f.q = q
	f.updateCoefficients()
	return nil
}

// Frequency returns the current frequency setting.
func (f *Filter) Frequency() float64 {
	f.g.mu.Lock()
	defer f.g.mu.Unlock()
	return f.freq
}

// Resonance returns the current Q setting.
func (f *Filter) Resonance() float64 {
	f.g.mu.Lock()
	defer f.g.mu.Unlock()
	return f.q
}

func (f *Filter) updateCoefficients() {
	nyquist := float64(f.g.rate) / 2
	freq := math.Min(math.Max(f.freq, minFilterFreq), nyquist*0.99)

	w0 := 2 * math.Pi * freq / float64(f.g.rate)
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * f.q)

	var b0, b1, b2 float64
	switch f.kind {
	case LowPass:
		b0 = (1 - cosw) / 2
		b1 = 1 - cosw
		b2 = (1 - cosw) / 2
	case HighPass:
		b0 = (1 + cosw) / 2
		b1 = -(1 + cosw)
		b2 = (1 + cosw) / 2
	default:
		// constant 0 dB peak gain
		b0 = alpha
		b1 = 0
		b2 = -alpha
	}

	a0 := 1 + alpha
	f.b0 = b0 / a0
	f.b1 = b1 / a0
	f.b2 = b2 / a0
	f.a1 = -2 * cosw / a0
	f.a2 = (1 - alpha) / a0
}

func (f *Filter) render(buf [][2]float64) {
	f.mixInputs(buf)

	for i := range buf {
		for c := 0; c < 2; c++ {
			x := buf[i][c]
			y := f.b0*x + f.b1*f.x1[c] + f.b2*f.x2[c] - f.a1*f.y1[c] - f.a2*f.y2[c]

			f.x2[c] = f.x1[c]
			f.x1[c] = x
			f.y2[c] = f.y1[c]
			f.y1[c] = y

			buf[i][c] = y
		}
	}
}
