package clock

import (
	"container/heap"
	"time"
)

// virtualEvent is one entry in the virtual clock's min-heap, ordered by
// when (earliest first) and then by seq to keep FIFO order among ties —
// the source's BinaryHeap only orders on `when`, but a stable tiebreak
// makes test expectations about delivery order reproducible.
type virtualEvent struct {
	when   time.Time
	seq    uint64
	action Action
}

type virtualHeap []*virtualEvent

func (h virtualHeap) Len() int { return len(h) }
func (h virtualHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h virtualHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *virtualHeap) Push(x interface{}) {
	*h = append(*h, x.(*virtualEvent))
}
func (h *virtualHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Virtual is a deterministic Clock for tests: it only advances via
// explicit Advance/SetTime, never by consulting the wall clock.
type Virtual struct {
	now    time.Time
	timers virtualHeap
	seq    uint64
}

// NewVirtual returns a Virtual clock starting at the given instant.
func NewVirtual(start time.Time) *Virtual {
	v := &Virtual{now: start}
	heap.Init(&v.timers)
	return v
}

// Advance moves the virtual clock forward by d.
func (v *Virtual) Advance(d time.Duration) {
	v.now = v.now.Add(d)
}

// SetTime pins the virtual clock to an absolute instant.
func (v *Virtual) SetTime(t time.Time) {
	v.now = t
}

func (v *Virtual) Now() time.Time { return v.now }

func (v *Virtual) Schedule(action Action, delay time.Duration) {
	v.ScheduleAt(action, v.now.Add(delay))
}

func (v *Virtual) ScheduleAt(action Action, when time.Time) {
	v.seq++
	heap.Push(&v.timers, &virtualEvent{when: when, seq: v.seq, action: action})
}

func (v *Virtual) Cancel(prototype Action) {
	kept := make(virtualHeap, 0, len(v.timers))
	for _, ev := range v.timers {
		if !ev.action.Matches(prototype) {
			kept = append(kept, ev)
		}
	}
	v.timers = kept
	heap.Init(&v.timers)
}

func (v *Virtual) NextTimeout() (time.Duration, bool) {
	if len(v.timers) == 0 {
		return 0, false
	}
	next := v.timers[0].when
	if next.After(v.now) {
		return next.Sub(v.now), true
	}
	return 0, true
}

func (v *Virtual) CheckTimers() []Action {
	var expired []Action
	for len(v.timers) > 0 && !v.timers[0].when.After(v.now) {
		ev := heap.Pop(&v.timers).(*virtualEvent)
		expired = append(expired, ev.action)
	}
	return expired
}

// PendingCount reports how many timers remain scheduled, for tests that
// assert on cancellation.
func (v *Virtual) PendingCount() int { return len(v.timers) }
