package paxos

import (
	"fmt"

	"github.com/go-kit/kit/log"

	"github.com/erewok/multifaustus/clock"
	"github.com/erewok/multifaustus/mailbox"
	"github.com/erewok/multifaustus/messages"
	"github.com/erewok/multifaustus/metrics"
	"github.com/erewok/multifaustus/persistence"
	"github.com/erewok/multifaustus/status"
	"github.com/erewok/multifaustus/types"
)

// Acceptor is the promise/accept state machine per slot. Slot 0 holds a
// global promise established by P1a; per-slot entries in promised overlay
// it for P2a decisions.
type Acceptor struct {
	id      types.AcceptorId
	address types.Address
	config  types.Config
	mailbox *mailbox.Mailbox
	clock   clock.Clock
	hook    persistence.AcceptorHook
	metrics *metrics.AcceptorMetrics
	logger  log.Logger

	promised map[uint64]types.BallotNumber
	accepted map[uint64]persistence.AcceptedEntry

	highestAcceptedSlot uint64
}

// NewAcceptor constructs an Acceptor bound to id within config. hook may be
// persistence.NoopHook{} when no durability is required.
func NewAcceptor(id types.AcceptorId, config types.Config, box *mailbox.Mailbox, clk clock.Clock, hook persistence.AcceptorHook, m *metrics.AcceptorMetrics, logger log.Logger) (*Acceptor, error) {
	addr, ok := config.GetAddress(id.NodeId())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigLookupMiss, id)
	}
	return &Acceptor{
		id:       id,
		address:  addr,
		config:   config,
		mailbox:  box,
		clock:    clk,
		hook:     hook,
		metrics:  m,
		logger:   log.With(logger, "role", "acceptor", "id", id.String()),
		promised: make(map[uint64]types.BallotNumber),
		accepted: make(map[uint64]persistence.AcceptedEntry),
	}, nil
}

// StartPeriodicChecks schedules the Acceptor's recurring compaction timer.
func (a *Acceptor) StartPeriodicChecks() {
	a.clock.Schedule(clock.AcceptorHeartbeat(), a.config.TimeoutConfig.MaxTimeout)
}

// AcceptMessage enqueues an inbound envelope.
func (a *Acceptor) AcceptMessage(env messages.Envelope) {
	a.mailbox.Receive(env)
}

// WorkOnMessage processes at most one inbound message, returning true iff
// one was processed successfully.
func (a *Acceptor) WorkOnMessage() bool {
	env, ok := a.mailbox.PopInbound()
	if !ok {
		return false
	}
	var err error
	switch payload := env.Payload.(type) {
	case messages.P1a:
		err = a.handleP1a(payload)
	case messages.P2a:
		err = a.handleP2a(payload)
	default:
		a.logger.Log("msg", "unexpected message", "kind", env.Payload.Kind(), "err", ErrUnexpectedMessage)
		return false
	}
	if err != nil {
		a.logger.Log("msg", "error handling message", "err", err)
		return false
	}
	return true
}

// handleP1a always reports every PValue currently accepted in its P1b
// reply, not only those whose ballot equals the incoming P1a ballot — the
// extra history costs nothing and lets a new leader adopt state a
// narrower reply could miss.
func (a *Acceptor) handleP1a(msg messages.P1a) error {
	promisedBallot, ok := a.promised[0]
	if !ok {
		promisedBallot = types.NewBallotNumber(msg.Src)
	}
	if msg.Ballot.Less(promisedBallot) {
		// Stay silent on a stale P1a rather than replying Preempted; the
		// scout that sent it will eventually hear from a higher ballot
		// some other way or time out and retry.
		return nil
	}
	a.promised[0] = msg.Ballot
	if err := a.hook.PersistPromise(0, msg.Ballot); err != nil {
		return err
	}
	accepted := a.allAcceptedPValues()
	a.sendP1b(msg.Src, msg.Ballot, accepted)
	if a.metrics != nil {
		a.metrics.PromisesGranted.Inc()
	}
	return nil
}

// handleP2a checks the incoming ballot against
// max(promised[0], promised[slot]) rather than either alone, so a global
// promise from a P1a always binds per-slot accepts too.
func (a *Acceptor) handleP2a(msg messages.P2a) error {
	global, hasGlobal := a.promised[0]
	local, hasLocal := a.promised[msg.Slot]

	var bound types.BallotNumber
	switch {
	case hasGlobal && hasLocal:
		bound = global
		if local.GreaterThan(global) {
			bound = local
		}
	case hasGlobal:
		bound = global
	case hasLocal:
		bound = local
	default:
		bound = types.NewBallotNumber(msg.Src)
	}

	if msg.Ballot.Less(bound) {
		return nil
	}

	a.promised[msg.Slot] = msg.Ballot
	entry := persistence.AcceptedEntry{Ballot: msg.Ballot, Command: msg.Command}
	a.accepted[msg.Slot] = entry
	if msg.Slot > a.highestAcceptedSlot {
		a.highestAcceptedSlot = msg.Slot
	}
	if err := a.hook.PersistPromise(msg.Slot, msg.Ballot); err != nil {
		return err
	}
	if err := a.hook.PersistAccept(msg.Slot, entry); err != nil {
		return err
	}
	a.sendP2b(msg.Src, msg.Ballot, msg.Slot)
	if a.metrics != nil {
		a.metrics.AcceptsGranted.Inc()
	}
	return nil
}

func (a *Acceptor) allAcceptedPValues() []types.PValue {
	out := make([]types.PValue, 0, len(a.accepted))
	for slot, entry := range a.accepted {
		out = append(out, types.PValue{Ballot: entry.Ballot, Slot: slot, Command: entry.Command})
	}
	return out
}

func (a *Acceptor) sendP1b(leader types.LeaderId, ballot types.BallotNumber, accepted []types.PValue) {
	addr, ok := a.config.GetAddress(leader.NodeId())
	if !ok {
		a.logger.Log("msg", "dropping P1b", "err", ErrConfigLookupMiss, "leader", leader)
		return
	}
	a.mailbox.Send(messages.Envelope{
		Src: a.address,
		Dst: addr,
		Payload: messages.P1b{
			Src:      a.id,
			Ballot:   ballot,
			Accepted: accepted,
		},
	})
}

func (a *Acceptor) sendP2b(leader types.LeaderId, ballot types.BallotNumber, slot uint64) {
	addr, ok := a.config.GetAddress(leader.NodeId())
	if !ok {
		a.logger.Log("msg", "dropping P2b", "err", ErrConfigLookupMiss, "leader", leader)
		return
	}
	a.mailbox.Send(messages.Envelope{
		Src: a.address,
		Dst: addr,
		Payload: messages.P2b{
			Src:    a.id,
			Ballot: ballot,
			Slot:   slot,
		},
	})
}

// CheckTimers drains and handles every expired timer, returning the
// actions that fired.
func (a *Acceptor) CheckTimers() []clock.Action {
	expired := a.clock.CheckTimers()
	for _, action := range expired {
		a.handleTimer(action)
	}
	return expired
}

func (a *Acceptor) handleTimer(action clock.Action) {
	switch action.Kind {
	case clock.ActionAcceptorHeartbeat:
		a.compact()
		a.clock.Schedule(clock.AcceptorHeartbeat(), a.config.TimeoutConfig.MaxTimeout)
	default:
		a.logger.Log("msg", "timer not applicable to acceptor", "err", ErrTimerActionMismatch, "action", action.String())
	}
}

// compact drops promised/accepted state for slots long settled: anything
// more than 2*WINDOW slots behind the highest slot this acceptor has ever
// accepted is assumed quiescent. Slot 0's global promise is never
// touched.
func (a *Acceptor) compact() {
	if a.highestAcceptedSlot <= 2*Window {
		return
	}
	floor := a.highestAcceptedSlot - 2*Window
	dropped := 0
	for slot := range a.accepted {
		if slot != 0 && slot < floor {
			delete(a.accepted, slot)
			delete(a.promised, slot)
			dropped++
		}
	}
	if dropped > 0 && a.metrics != nil {
		a.metrics.CompactedSlots.Add(float64(dropped))
	}
}

// DrainOutbox returns and clears every pending outbound envelope.
func (a *Acceptor) DrainOutbox() []messages.Envelope {
	return a.mailbox.DrainOutbound()
}

// Status reports the acceptor's live state.
func (a *Acceptor) Status(sc *status.Consumer) {
	sc.Emit(fmt.Sprintf("Acceptor %s: %d promised slots, %d accepted slots", a.id, len(a.promised), len(a.accepted)))
}
