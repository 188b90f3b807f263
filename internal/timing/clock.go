// Package timing provides the delayed-callback primitive the captcha
// scheduler runs on: a real clock for live playback and a manual clock that
// offline rendering and tests drive explicitly.
package timing

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a cancellation handle for a callback scheduled with AfterFunc.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback already fired or the timer was already stopped.
	Stop() bool
}

// Clock is a time source with single-fire delayed callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct {
	c clockwork.Clock
}

// Real returns a Clock backed by the wall clock. Callbacks run on their own
// goroutines.
func Real() Clock {
	return FromClockwork(clockwork.NewRealClock())
}

// FromClockwork adapts any clockwork clock, including clockwork's fake clock.
func FromClockwork(c clockwork.Clock) Clock {
	return &realClock{c: c}
}

func (r *realClock) Now() time.Time { return r.c.Now() }

func (r *realClock) AfterFunc(d time.Duration, f func()) Timer {
	return r.c.AfterFunc(d, f)
}
