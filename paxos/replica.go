package paxos

import (
	"fmt"

	"github.com/go-kit/kit/log"

	"github.com/erewok/multifaustus/clock"
	"github.com/erewok/multifaustus/mailbox"
	"github.com/erewok/multifaustus/messages"
	"github.com/erewok/multifaustus/metrics"
	"github.com/erewok/multifaustus/status"
	"github.com/erewok/multifaustus/types"
)

// Replica is the request-intake, windowed-proposing, and decision-ordering
// actor. slot_in and slot_out both start at 1; slot_out never exceeds
// slot_in.
type Replica struct {
	id      types.ReplicaId
	address types.Address
	config  types.Config
	mailbox *mailbox.Mailbox
	clock   clock.Clock
	metrics *metrics.ReplicaMetrics
	logger  log.Logger

	slotIn, slotOut uint64
	requests        []types.Command
	proposals       map[uint64]types.Command
	decisions       map[uint64]types.Command

	// executed is an auxiliary dedup set keyed by (client_id, request_id),
	// used instead of a linear scan of decisions[1:slot_out) on every
	// perform call.
	executed map[types.DedupKey]struct{}

	// proposalTimes tracks which slots currently have an outstanding
	// proposal awaiting a decision. Nothing reads it: whether the
	// repropose timer is already armed is tracked by reproposeArmed.
	proposalTimes map[uint64]struct{}
	reproposeArmed bool
}

// NewReplica constructs a Replica bound to id within config.
func NewReplica(id types.ReplicaId, config types.Config, box *mailbox.Mailbox, clk clock.Clock, m *metrics.ReplicaMetrics, logger log.Logger) (*Replica, error) {
	addr, ok := config.GetAddress(id.NodeId())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigLookupMiss, id)
	}
	return &Replica{
		id:            id,
		address:       addr,
		config:        config,
		mailbox:       box,
		clock:         clk,
		metrics:       m,
		logger:        log.With(logger, "role", "replica", "id", id.String()),
		slotIn:        1,
		slotOut:       1,
		proposals:     make(map[uint64]types.Command),
		decisions:     make(map[uint64]types.Command),
		executed:      make(map[types.DedupKey]struct{}),
		proposalTimes: make(map[uint64]struct{}),
	}, nil
}

// StartPeriodicChecks schedules the Replica's recurring slot-window check.
func (r *Replica) StartPeriodicChecks() {
	r.scheduleSlotCheck()
}

// AcceptMessage enqueues an inbound envelope.
func (r *Replica) AcceptMessage(env messages.Envelope) {
	r.mailbox.Receive(env)
}

// WorkOnMessage processes at most one inbound message, returning true iff
// one was processed successfully.
func (r *Replica) WorkOnMessage() bool {
	env, ok := r.mailbox.PopInbound()
	if !ok {
		return false
	}
	var err error
	switch payload := env.Payload.(type) {
	case messages.Request:
		err = r.handleRequest(payload)
	case messages.Decision:
		err = r.handleDecision(payload)
	default:
		r.logger.Log("msg", "unexpected message", "kind", env.Payload.Kind(), "err", ErrUnexpectedMessage)
		return false
	}
	if err != nil {
		r.logger.Log("msg", "error handling message", "err", err)
		return false
	}
	return true
}

func (r *Replica) handleRequest(msg messages.Request) error {
	r.requests = append(r.requests, msg.Command)
	return r.propose()
}

func (r *Replica) handleDecision(msg messages.Decision) error {
	r.decisions[msg.Slot] = msg.Command
	delete(r.proposalTimes, msg.Slot)

	for {
		command, ok := r.decisions[r.slotOut]
		if !ok {
			break
		}
		if proposed, has := r.proposals[r.slotOut]; has {
			if !proposed.Equal(command) {
				delete(r.proposals, r.slotOut)
				r.requests = append(r.requests, proposed)
			} else {
				delete(r.proposals, r.slotOut)
			}
		}
		delete(r.proposalTimes, r.slotOut)
		r.perform(r.slotOut)
	}
	return r.propose()
}

// perform advances slot_out exactly once. If the decided command at slot
// was already executed at an earlier slot (by (client_id, request_id)
// identity) or is a Reconfig, the application-level operation is skipped;
// otherwise it would be applied here.
func (r *Replica) perform(slot uint64) {
	defer func() { r.slotOut++ }()

	command, ok := r.decisions[slot]
	if !ok {
		return
	}
	if _, already := r.executed[command.Key()]; already {
		return
	}
	r.executed[command.Key()] = struct{}{}
	if command.IsReconfig() {
		return
	}
	// Application-level execution of command.Op happens here. The core is
	// deliberately silent on what "apply" means for an opaque byte payload.
}

// propose moves requests into proposals while room remains in the window,
// sends a Propose to every configured leader for each newly occupied slot,
// and installs any Reconfig that has become effective WINDOW slots behind.
func (r *Replica) propose() error {
	var newProposals []uint64

	for len(r.requests) > 0 && r.slotIn < r.slotOut+Window {
		if _, decided := r.decisions[r.slotIn]; !decided {
			command := r.requests[0]
			r.requests = r.requests[1:]
			r.proposals[r.slotIn] = command
			r.sendProposeToAll(r.slotIn, command)
			newProposals = append(newProposals, r.slotIn)
		}
		r.slotIn++
		if r.slotIn > Window {
			if reconfigAt, ok := r.decisions[r.slotIn-Window]; ok && reconfigAt.IsReconfig() {
				r.config = reconfigAt.Reconfig.Clone()
				r.logger.Log("msg", "installed reconfigured config", "effective_slot", r.slotIn-Window)
				if r.metrics != nil {
					r.metrics.Reconfigs.Inc()
				}
			}
		}
	}

	if len(newProposals) > 0 {
		for _, slot := range newProposals {
			r.proposalTimes[slot] = struct{}{}
		}
		if !r.reproposeArmed {
			r.reproposeArmed = true
			r.scheduleReproposeCheck()
		}
	}
	r.updateMetrics()
	return nil
}

func (r *Replica) sendProposeToAll(slot uint64, command types.Command) {
	for ldr := range r.config.Leaders {
		addr, ok := r.config.GetAddress(ldr.NodeId())
		if !ok {
			r.logger.Log("msg", "dropping Propose", "err", ErrConfigLookupMiss, "leader", ldr)
			continue
		}
		r.mailbox.Send(messages.Envelope{
			Src:     r.address,
			Dst:     addr,
			Payload: messages.Propose{Src: r.id, Slot: slot, Command: command},
		})
	}
}

// CheckTimers drains and handles every expired timer, returning the
// actions that fired.
func (r *Replica) CheckTimers() []clock.Action {
	expired := r.clock.CheckTimers()
	for _, action := range expired {
		r.handleTimer(action)
	}
	return expired
}

func (r *Replica) handleTimer(action clock.Action) {
	switch action.Kind {
	case clock.ActionReproposePendingRequests:
		r.reproposePendingRequests()
	case clock.ActionCheckSlotWindow:
		r.checkSlotProgress()
	default:
		r.logger.Log("msg", "timer not applicable to replica", "err", ErrTimerActionMismatch, "action", action.String())
	}
}

func (r *Replica) reproposePendingRequests() {
	pending := false
	for slot, command := range r.proposals {
		if _, decided := r.decisions[slot]; decided {
			continue
		}
		pending = true
		r.sendProposeToAll(slot, command)
		r.proposalTimes[slot] = struct{}{}
		if r.metrics != nil {
			r.metrics.Reproposals.Inc()
		}
	}
	r.reproposeArmed = pending
	if pending {
		r.scheduleReproposeCheck()
	}
}

// checkSlotProgress logs a warning when more than one slot is outstanding
// (slot_in > slot_out+1) at check time; it does not compare slot_out with
// its value at the previous check. A stuck window most
// often means every leader in the current config is unreachable, which
// only a Reconfig (or an operator) can fix, so this stays an
// observability hook rather than attempting automatic recovery.
func (r *Replica) checkSlotProgress() {
	if r.slotIn > r.slotOut+1 {
		r.logger.Log("msg", "slot window not advancing", "slot_in", r.slotIn, "slot_out", r.slotOut)
	}
	r.scheduleSlotCheck()
}

func (r *Replica) scheduleReproposeCheck() {
	r.clock.Schedule(clock.ReproposePendingRequests(), 2*r.config.TimeoutConfig.MinTimeout)
}

func (r *Replica) scheduleSlotCheck() {
	r.clock.Schedule(clock.CheckSlotWindow(), r.config.TimeoutConfig.MaxTimeout)
}

func (r *Replica) updateMetrics() {
	if r.metrics == nil {
		return
	}
	r.metrics.SlotIn.Set(float64(r.slotIn))
	r.metrics.SlotOut.Set(float64(r.slotOut))
	r.metrics.WindowDepth.Set(float64(r.slotIn - r.slotOut))
	r.metrics.PendingRequests.Set(float64(len(r.requests)))
}

// DrainOutbox returns and clears every pending outbound envelope.
func (r *Replica) DrainOutbox() []messages.Envelope {
	return r.mailbox.DrainOutbound()
}

// Status reports the replica's live state.
func (r *Replica) Status(sc *status.Consumer) {
	sc.Emit(fmt.Sprintf("Replica %s: slot_in=%d slot_out=%d pending_requests=%d", r.id, r.slotIn, r.slotOut, len(r.requests)))
}
