// Package scheduler drives a set of local paxos actors to completion
// against a Transport, round-robin, without any goroutines of its own.
// Each actor is sans-IO: Tick pumps its mailbox and timers and lets the
// Transport carry whatever the actor emits to its peers.
package scheduler

import (
	"github.com/go-kit/kit/log"

	"github.com/erewok/multifaustus/clock"
	"github.com/erewok/multifaustus/messages"
	"github.com/erewok/multifaustus/status"
	"github.com/erewok/multifaustus/transport"
	"github.com/erewok/multifaustus/types"
)

// Actor is the common surface the Scheduler drives. Acceptor, Leader, and
// Replica each satisfy it.
type Actor interface {
	AcceptMessage(env messages.Envelope)
	WorkOnMessage() bool
	CheckTimers() []clock.Action
	DrainOutbox() []messages.Envelope
	Status(sc *status.Consumer)
}

// Scheduler owns a fixed roster of actors, indexed by address, and a
// Transport used both to deliver their outbound envelopes and to collect
// inbound ones addressed to the roster.
type Scheduler struct {
	actors    map[types.Address]Actor
	order     []types.Address
	transport transport.Transport
	logger    log.Logger
}

// New constructs an empty Scheduler bound to t.
func New(t transport.Transport, logger log.Logger) *Scheduler {
	return &Scheduler{
		actors:    make(map[types.Address]Actor),
		transport: t,
		logger:    logger,
	}
}

// Register adds an actor at address addr. Registration order is the
// round-robin order Tick uses.
func (s *Scheduler) Register(addr types.Address, actor Actor) {
	if _, exists := s.actors[addr]; !exists {
		s.order = append(s.order, addr)
	}
	s.actors[addr] = actor
}

// Tick runs one round: for every registered actor, in registration order,
// it (1) delivers any envelope waiting at the transport for that
// actor's address, (2) drains every message currently in the actor's
// inbox, (3) fires any expired timers, and (4) hands the actor's outbox
// to the transport. It returns the number of inbound messages processed
// across the whole round, which callers can use to decide whether the
// system has gone quiescent.
func (s *Scheduler) Tick() int {
	processed := 0
	for _, addr := range s.order {
		actor := s.actors[addr]
		for {
			env, ok := s.transport.Receive(addr)
			if !ok {
				break
			}
			actor.AcceptMessage(env)
		}
		for actor.WorkOnMessage() {
			processed++
		}
		actor.CheckTimers()
		for _, env := range actor.DrainOutbox() {
			if err := s.transport.Send(env); err != nil {
				s.logger.Log("msg", "transport send failed", "err", err, "src", env.Src, "dst", env.Dst)
			}
		}
	}
	return processed
}

// Run ticks until a round processes no inbound messages, or maxTicks is
// reached — whichever comes first. It returns the number of ticks
// actually run. A system with live timers (leader scouts, replica
// reproposals) never truly goes idle forever, so callers driving a
// long-lived node should call Tick directly in their own loop instead.
func (s *Scheduler) Run(maxTicks int) int {
	for i := 0; i < maxTicks; i++ {
		if s.Tick() == 0 {
			return i + 1
		}
	}
	return maxTicks
}

// Status reports every registered actor's status, in registration order.
func (s *Scheduler) Status(sc *status.Consumer) {
	sc.Emit("Scheduler")
	for _, addr := range s.order {
		s.actors[addr].Status(sc.Fork())
	}
	sc.Join()
}
