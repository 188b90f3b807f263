package audio

import (
	"math/rand/v2"
)

// Noise is a white-noise source. It produces silence until started.
type Noise struct {
	junction
	g *Graph

	rng     *rand.Rand
	running bool
}

// NewNoise creates a stopped, disconnected white-noise source.
func (g *Graph) NewNoise(seed uint64) *Noise {
	return &Noise{
		g:   g,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Start makes the source emit noise.
func (n *Noise) Start() {
	n.g.mu.Lock()
	n.running = true
	n.g.mu.Unlock()
}

// Stop silences the source.
func (n *Noise) Stop() {
	n.g.mu.Lock()
	n.running = false
	n.g.mu.Unlock()
}

// Running reports whether the source is emitting.
func (n *Noise) Running() bool {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	return n.running
}

func (n *Noise) render(buf [][2]float64) {
	if !n.running {
		clear(buf)
		return
	}
	for i := range buf {
		v := n.rng.Float64()*2 - 1
		buf[i][0] = v
		buf[i][1] = v
	}
}
