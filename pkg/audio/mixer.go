package audio

// Node is a stage in a Graph. Every node has one output slot; nodes that
// accept input (filters, distortion, gains) sum everything connected to them.
//
// Nodes are created by a Graph and must only be connected to nodes of the
// same graph.
type Node interface {
	port() *junction
	render(buf [][2]float64)
}

// junction is the summing point embedded in every node.
//
// inputs – nodes whose output is connected here (empty for sources)
// output – the single destination this node feeds, nil when disconnected
// sink   – whether other nodes may connect into this one
type junction struct {
	inputs  []Node
	output  Node
	sink    bool
	scratch [][2]float64
}

func (j *junction) port() *junction { return j }

// mixInputs overwrites buf with the sum of all inputs. Called with the graph
// lock held, so the per-node scratch buffer needs no further protection.
func (j *junction) mixInputs(buf [][2]float64) {
	clear(buf)
	if len(j.inputs) == 0 {
		return
	}

	if cap(j.scratch) < len(buf) {
		j.scratch = make([][2]float64, len(buf))
	}
	tmp := j.scratch[:len(buf)]

	for _, in := range j.inputs {
		in.render(tmp)
		for i := range buf {
			buf[i][0] += tmp[i][0]
			buf[i][1] += tmp[i][1]
		}
	}
}

func (j *junction) removeInput(n Node) {
	for i, in := range j.inputs {
		if in == n {
			j.inputs = append(j.inputs[:i], j.inputs[i+1:]...)
			return
		}
	}
}

/* --------------------------- helpers --------------------------- */

// saturate clamps v to the valid [-1, 1] sample range.
func saturate(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
