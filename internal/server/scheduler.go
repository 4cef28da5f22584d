package server

import "time"

// scheduler is the delayed-delivery queue behind automatic round advance.
// Schedule is fire-and-forget: timers are never cancelled, and a timer that
// outlives its round is suppressed by the NotChangedSince staleness check in
// the engine, not here.
type scheduler struct {
	delay   time.Duration
	deliver func(sessionID string, notChangedSince time.Time)
}

func newScheduler(delay time.Duration, deliver func(string, time.Time)) *scheduler {
	return &scheduler{delay: delay, deliver: deliver}
}

func (q *scheduler) Schedule(sessionID string, notChangedSince time.Time) {
	time.AfterFunc(q.delay, func() {
		q.deliver(sessionID, notChangedSince)
	})
}
