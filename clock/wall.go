package clock

import (
	"sync"
	"time"

	tw "github.com/msackman/gotimerwheel"
)

// wallEntry tracks one scheduled action alongside the callback handed to
// the timer wheel, so Cancel can suppress a callback that has already been
// armed in the wheel without needing the wheel itself to support removal.
type wallEntry struct {
	due       time.Time
	action    Action
	cancelled bool
	fired     bool
}

// Wall is the production Clock, backed by github.com/msackman/gotimerwheel.
// The wheel only fires callbacks on AdvanceTo, so CheckTimers pumps the
// wheel up to now before draining whatever fired.
type Wall struct {
	mu      sync.Mutex
	wheel   *tw.TimerWheel
	entries []*wallEntry
	expired []Action
}

// NewWall returns a Wall clock with a 10ms wheel resolution, fine enough
// for the protocol's 100ms minimum timeout.
func NewWall() *Wall {
	return &Wall{
		wheel: tw.NewTimerWheel(time.Now(), 10*time.Millisecond),
	}
}

func (w *Wall) Now() time.Time { return time.Now() }

func (w *Wall) Schedule(action Action, delay time.Duration) {
	w.ScheduleAt(action, time.Now().Add(delay))
}

func (w *Wall) ScheduleAt(action Action, when time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := &wallEntry{due: when, action: action}
	w.entries = append(w.entries, entry)
	delay := time.Until(when)
	if delay < 0 {
		delay = 0
	}
	_ = w.wheel.ScheduleEventIn(delay, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if !entry.cancelled {
			entry.fired = true
			w.expired = append(w.expired, entry.action)
		}
	})
}

func (w *Wall) Cancel(prototype Action) {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.entries[:0]
	for _, entry := range w.entries {
		if entry.action.Matches(prototype) {
			entry.cancelled = true
			continue
		}
		kept = append(kept, entry)
	}
	w.entries = kept
}

func (w *Wall) NextTimeout() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var soonest time.Time
	found := false
	now := time.Now()
	for _, entry := range w.entries {
		if entry.cancelled {
			continue
		}
		if !found || entry.due.Before(soonest) {
			soonest = entry.due
			found = true
		}
	}
	if !found {
		return 0, false
	}
	if soonest.After(now) {
		return soonest.Sub(now), true
	}
	return 0, true
}

func (w *Wall) CheckTimers() []Action {
	w.wheel.AdvanceTo(time.Now(), 1<<20)

	w.mu.Lock()
	defer w.mu.Unlock()
	fired := w.expired
	w.expired = nil

	remaining := w.entries[:0]
	for _, entry := range w.entries {
		if entry.cancelled || entry.fired {
			continue
		}
		remaining = append(remaining, entry)
	}
	w.entries = remaining
	return fired
}
