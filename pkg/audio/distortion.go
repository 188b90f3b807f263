package audio

import (
	"fmt"
	"math"
)

// Oversample controls how many sub-samples the waveshaper evaluates per
// frame. More sub-samples soften the aliasing the curve introduces.
type Oversample string

const (
	OversampleNone Oversample = "none"
	Oversample2x   Oversample = "2x"
	Oversample4x   Oversample = "4x"
)

func (o Oversample) factor() (int, error) {
	switch o {
	case OversampleNone, "":
		return 1, nil
	case Oversample2x:
		return 2, nil
	case Oversample4x:
		return 4, nil
	default:
		return 0, fmt.Errorf("%w: oversample %q", ErrInvalidParam, string(o))
	}
}

// curveScale maps an amount in [0, 1] onto the waveshaper's k in [0, 2000].
const curveScale = 2000

// Distortion is a soft-clipping waveshaper:
//
//	f(x) = (3 + k) · x · 20° / (π + k · |x|)
type Distortion struct {
	junction
	g *Graph

	amount     float64
	oversample Oversample
	k          float64
	factor     int
	prev       [2]float64
}

// NewDistortion creates a disconnected distortion stage with the given
// amount and no oversampling.
func (g *Graph) NewDistortion(amount float64) *Distortion {
	d := &Distortion{
		junction:   junction{sink: true},
		g:          g,
		amount:     amount,
		oversample: OversampleNone,
		k:          amount * curveScale,
		factor:     1,
	}
	return d
}

// Set updates the amount (0..1) and oversampling mode.
func (d *Distortion) Set(amount float64, oversample Oversample) error {
	if amount < 0 || amount > 1 || math.IsNaN(amount) {
		return fmt.Errorf("%w: distortion amount %v", ErrInvalidParam, amount)
	}
	factor, err := oversample.factor()
	if err != nil {
		return err
	}

	d.g.mu.Lock()
	defer d.g.mu.Unlock()

	d.amount = amount
	d.oversample = oversample
	d.k = amount * curveScale
	d.factor = factor
	return nil
}

// Amount returns the current amount and oversampling mode.
func (d *Distortion) Amount() (float64, Oversample) {
	d.g.mu.Lock()
	defer d.g.mu.Unlock()
	return d.amount, d.oversample
}

func (d *Distortion) shape(x float64) float64 {
	const deg = math.Pi / 180
	return (3 + d.k) * x * 20 * deg / (math.Pi + d.k*math.Abs(x))
}

func (d *Distortion) render(buf [][2]float64) {
	d.mixInputs(buf)

	for i := range buf {
		for c := 0; c < 2; c++ {
			x := buf[i][c]
			if d.factor == 1 {
				buf[i][c] = d.shape(x)
				continue
			}

			// Linear interpolation between the previous and current input,
			// shaped at each sub-sample and averaged back down.
			var sum float64
			for s := 1; s <= d.factor; s++ {
				t := float64(s) / float64(d.factor)
				sum += d.shape(d.prev[c] + (x-d.prev[c])*t)
			}
			d.prev[c] = x
			buf[i][c] = sum / float64(d.factor)
		}
	}
}
