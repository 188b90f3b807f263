package captcha

import (
	"time"

	"github.com/Raikerian/go-audio-captcha/internal/effects"
	"github.com/Raikerian/go-audio-captcha/internal/timing"
)

// Entry is one digit on a pass timeline.
type Entry struct {
	Digit    byte
	Offset   time.Duration // from the start of the pass
	Duration time.Duration // nominal clip length used for layout
}

// Schedule is one playback pass. It owns every timer and voice the pass
// created, so cancelling it is the single way a pass is torn down.
type Schedule struct {
	Generation uint64
	Started    time.Time
	Gap        time.Duration
	Rate       float64
	Entries    []Entry
	End        time.Duration // terminal callback offset

	timers []timing.Timer
	voices []effects.Voice
}

// layout places digits back to back from zero: each start is the running
// offset, which then advances by the clip duration plus gap. The returned
// end is the offset after the last digit.
func layout(digits []byte, durations []time.Duration, gap time.Duration) ([]Entry, time.Duration) {
	entries := make([]Entry, len(digits))
	var offset time.Duration
	for i, d := range digits {
		entries[i] = Entry{Digit: d, Offset: offset, Duration: durations[i]}
		offset += durations[i] + gap
	}
	return entries, offset
}

func (s *Schedule) track(t timing.Timer) {
	s.timers = append(s.timers, t)
}

// cancel stops every timer that has not fired and silences every voice of
// the pass. It returns the number of timers that were still pending.
func (s *Schedule) cancel() int {
	pending := 0
	for _, t := range s.timers {
		if t.Stop() {
			pending++
		}
	}
	for _, v := range s.voices {
		// Clips that already ended report audio.ErrNotPlaying; nothing to do.
		_ = v.Stop()
	}
	s.timers = nil
	return pending
}
