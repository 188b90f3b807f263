package captcha

import (
	"github.com/Raikerian/go-audio-captcha/internal/scramble"
)

// EventKind classifies session events.
type EventKind int

const (
	EventGenerated EventKind = iota
	EventPassStarted
	EventDigitStarted
	EventPassFinished
	EventStopped
	EventVerdict
	EventRejected
)

func (k EventKind) String() string {
	switch k {
	case EventGenerated:
		return "generated"
	case EventPassStarted:
		return "pass_started"
	case EventDigitStarted:
		return "digit_started"
	case EventPassFinished:
		return "pass_finished"
	case EventStopped:
		return "stopped"
	case EventVerdict:
		return "verdict"
	case EventRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome says how a pass ended.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeStopped    Outcome = "stopped"
	OutcomeSuperseded Outcome = "superseded"
)

// Event describes something the session did. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind        EventKind
	Generation  uint64
	TokenLength int
	Label       string

	Params  scramble.Params // EventPassStarted
	Digit   byte            // EventDigitStarted
	Index   int             // EventDigitStarted
	Outcome Outcome         // EventPassFinished
	Verdict Verdict         // EventVerdict
	Err     error           // EventRejected
}

// Listener receives session events. Listeners run on the goroutine that
// caused the event, after the session lock has been released, so they may
// call back into the session.
type Listener func(Event)

type subscription struct {
	id uint64
	fn Listener
}
