package audio

import (
	"fmt"
	"math"
	"time"
)

// Gain scales its summed input by a level that can be ramped linearly to a
// new target.
type Gain struct {
	junction
	g *Graph

	level     float64
	target    float64
	step      float64
	remaining int
}

// NewGain creates a disconnected gain at the given level.
func (g *Graph) NewGain(level float64) *Gain {
	return &Gain{
		junction: junction{sink: true},
		g:        g,
		level:    level,
		target:   level,
	}
}

// Ramp moves the level to target over the given duration. A zero or negative
// duration applies the level at once. A ramp in progress is replaced.
func (a *Gain) Ramp(target float64, over time.Duration) error {
	if target < 0 || math.IsNaN(target) || math.IsInf(target, 0) {
		return fmt.Errorf("%w: gain %v", ErrInvalidParam, target)
	}

	a.g.mu.Lock()
	defer a.g.mu.Unlock()

	a.target = target
	a.remaining = a.g.rate.N(over)
	if a.remaining <= 0 {
		a.level = target
		a.step = 0
		a.remaining = 0
		return nil
	}
	a.step = (target - a.level) / float64(a.remaining)
	return nil
}

// Level returns the current level, which lags Target while a ramp is running.
func (a *Gain) Level() float64 {
	a.g.mu.Lock()
	defer a.g.mu.Unlock()
	return a.level
}

// Target returns the level the gain is heading to.
func (a *Gain) Target() float64 {
	a.g.mu.Lock()
	defer a.g.mu.Unlock()
	return a.target
}

func (a *Gain) render(buf [][2]float64) {
	a.mixInputs(buf)

	for i := range buf {
		if a.remaining > 0 {
			a.level += a.step
			a.remaining--
			if a.remaining == 0 {
				a.level = a.target
			}
		}
		buf[i][0] *= a.level
		buf[i][1] *= a.level
	}
}
