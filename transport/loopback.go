package transport

import (
	"fmt"

	"github.com/erewok/multifaustus/messages"
	"github.com/erewok/multifaustus/types"
)

// Loopback is an in-process, in-memory Transport: every registered address
// gets its own FIFO queue, and Send simply appends to the destination's
// queue. Nothing is ever actually lost, reordered, or duplicated by
// Loopback itself — it is the deterministic baseline transport a
// Scheduler runs against in tests and in the demo command.
type Loopback struct {
	queues    map[types.Address][]messages.Envelope
	delivered int
}

// NewLoopback constructs an empty Loopback with queues for every address
// in addrs.
func NewLoopback(addrs []types.Address) *Loopback {
	l := &Loopback{queues: make(map[types.Address][]messages.Envelope, len(addrs))}
	for _, addr := range addrs {
		l.queues[addr] = nil
	}
	return l
}

// Send implements Transport.
func (l *Loopback) Send(env messages.Envelope) error {
	if _, ok := l.queues[env.Dst]; !ok {
		return fmt.Errorf("transport: no queue registered for address %s", env.Dst)
	}
	l.queues[env.Dst] = append(l.queues[env.Dst], env)
	l.delivered++
	return nil
}

// Receive implements Transport.
func (l *Loopback) Receive(addr types.Address) (messages.Envelope, bool) {
	q := l.queues[addr]
	if len(q) == 0 {
		return messages.Envelope{}, false
	}
	env := q[0]
	l.queues[addr] = q[1:]
	return env, true
}

// Delivered returns the total number of envelopes ever accepted by Send.
func (l *Loopback) Delivered() int {
	return l.delivered
}
