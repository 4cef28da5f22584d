package game

import (
	"errors"
	"time"
)

// ErrNotHost is a user error surfaced back to the offending client.
var ErrNotHost = errors.New("only host can start")

// ErrCorruptState signals a broken internal invariant (a pick resolved to a
// player with no recorded response). It is not a user error and should be
// treated as fatal by the caller.
var ErrCorruptState = errors.New("picked player has no recorded response")

type Event interface{ isEvent() }

type Join struct {
	Username string
}

type Leave struct{}

type Start struct{}

type Submit struct {
	Cards []Card
}

type Pick struct {
	RevealIndex int
}

// Advance is the timer-driven round advance. NotChangedSince carries the
// timestamp taken when the timer was scheduled; if a round started after it,
// the event is stale and ignored.
type Advance struct {
	NotChangedSince time.Time
}

func (Join) isEvent()    {}
func (Leave) isEvent()   {}
func (Start) isEvent()   {}
func (Submit) isEvent()  {}
func (Pick) isEvent()    {}
func (Advance) isEvent() {}

// Effects are side requests an event handler asks the caller to perform.
type Effects struct {
	// ScheduleAdvance requests a delayed Advance event carrying
	// NotChangedSince, emitted after a winner is picked.
	ScheduleAdvance bool
	NotChangedSince time.Time
}
