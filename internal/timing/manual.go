package timing

import (
	"container/heap"
	"sync"
	"time"
)

// Manual is a virtual clock that only moves when Advance is called. Due
// callbacks run synchronously on the goroutine calling Advance, in deadline
// order, with registration order breaking ties.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending timerHeap
}

// NewManual creates a manual clock reading start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc schedules f to run once the clock has advanced by d. A
// non-positive d fires on the next Advance call, even Advance(0).
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d < 0 {
		d = 0
	}

	t := &manualTimer{
		clock:    m,
		deadline: m.now.Add(d),
		seq:      m.seq,
		fn:       f,
		index:    -1,
	}
	m.seq++
	heap.Push(&m.pending, t)
	return t
}

// Advance moves the clock forward by d and runs every callback whose deadline
// has been reached. Callbacks scheduled by a firing callback run in the same
// call if they fall due within the new time.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		if len(m.pending) == 0 || m.pending[0].deadline.After(target) {
			m.now = target
			m.mu.Unlock()
			return
		}

		t := heap.Pop(&m.pending).(*manualTimer)
		t.fired = true
		if t.deadline.After(m.now) {
			m.now = t.deadline
		}
		m.mu.Unlock()

		// Run outside the lock so the callback may schedule or stop timers.
		t.fn()
	}
}

// Pending returns the number of scheduled, not yet fired or stopped timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// NextDeadline returns the earliest pending deadline.
func (m *Manual) NextDeadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return time.Time{}, false
	}
	return m.pending[0].deadline, true
}

type manualTimer struct {
	clock    *Manual
	deadline time.Time
	seq      uint64
	fn       func()
	index    int // position in the heap, -1 once removed
	fired    bool
}

func (t *manualTimer) Stop() bool {
	m := t.clock
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.fired || t.index < 0 {
		return false
	}
	heap.Remove(&m.pending, t.index)
	return true
}

// timerHeap implements container/heap.Interface as a min-heap on deadline,
// FIFO on seq.
type timerHeap []*manualTimer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if !h[i].deadline.Equal(h[j].deadline) {
		return h[i].deadline.Before(h[j].deadline)
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*manualTimer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
