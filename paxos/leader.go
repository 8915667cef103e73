package paxos

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/erewok/multifaustus/clock"
	"github.com/erewok/multifaustus/mailbox"
	"github.com/erewok/multifaustus/messages"
	"github.com/erewok/multifaustus/metrics"
	"github.com/erewok/multifaustus/persistence"
	"github.com/erewok/multifaustus/status"
	"github.com/erewok/multifaustus/types"
)

// Leader runs the scout (phase 1) and commander (phase 2) activity for one
// ballot at a time. It starts INACTIVE, becomes ACTIVE once it collects a
// P1b quorum for its current ballot, and reverts to INACTIVE whenever it
// observes a strictly greater ballot via Preempted.
type Leader struct {
	id      types.LeaderId
	address types.Address
	config  types.Config
	mailbox *mailbox.Mailbox
	clock   clock.Clock
	hook    persistence.LeaderHook
	metrics *metrics.LeaderMetrics
	logger  log.Logger

	active       bool
	ballot       types.BallotNumber
	proposals    map[uint64]types.Command
	p1bResponses map[types.BallotNumber]map[types.AcceptorId]struct{}
	p1bAccepted  map[types.BallotNumber][]types.PValue
	p2bResponses map[uint64]map[types.AcceptorId]struct{}
	decided      map[uint64]struct{}

	currentTimeout float64 // milliseconds, tracked as float for clean multiplication
}

// NewLeader constructs a Leader bound to id within config and immediately
// starts its initial scout: it sends P1a to every acceptor for ballot round
// 0 and schedules a SendScout retry in case that initial scout is lost.
func NewLeader(id types.LeaderId, config types.Config, box *mailbox.Mailbox, clk clock.Clock, hook persistence.LeaderHook, m *metrics.LeaderMetrics, logger log.Logger) (*Leader, error) {
	addr, ok := config.GetAddress(id.NodeId())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigLookupMiss, id)
	}
	l := &Leader{
		id:             id,
		address:        addr,
		config:         config,
		mailbox:        box,
		clock:          clk,
		hook:           hook,
		metrics:        m,
		logger:         log.With(logger, "role", "leader", "id", id.String()),
		ballot:         types.NewBallotNumber(id),
		proposals:      make(map[uint64]types.Command),
		p1bResponses:   make(map[types.BallotNumber]map[types.AcceptorId]struct{}),
		p1bAccepted:    make(map[types.BallotNumber][]types.PValue),
		p2bResponses:   make(map[uint64]map[types.AcceptorId]struct{}),
		decided:        make(map[uint64]struct{}),
		currentTimeout: float64(config.TimeoutConfig.MinTimeout.Milliseconds()),
	}
	if err := l.hook.PersistBallot(l.ballot); err != nil {
		return nil, err
	}
	l.sendP1a(l.ballot)
	l.scheduleScoutRetry()
	return l, nil
}

// AcceptMessage enqueues an inbound envelope.
func (l *Leader) AcceptMessage(env messages.Envelope) {
	l.mailbox.Receive(env)
}

// WorkOnMessage processes at most one inbound message, returning true iff
// one was processed successfully.
func (l *Leader) WorkOnMessage() bool {
	env, ok := l.mailbox.PopInbound()
	if !ok {
		return false
	}
	var err error
	switch payload := env.Payload.(type) {
	case messages.Propose:
		err = l.handlePropose(payload)
	case messages.P1b:
		err = l.handleP1b(payload)
	case messages.P2b:
		err = l.handleP2b(payload)
	case messages.Preempted:
		err = l.handlePreempted(payload)
	case messages.Adopted:
		err = l.handleAdopted(payload)
	default:
		l.logger.Log("msg", "unexpected message", "kind", env.Payload.Kind(), "err", ErrUnexpectedMessage)
		return false
	}
	if err != nil {
		l.logger.Log("msg", "error handling message", "err", err)
		return false
	}
	return true
}

func (l *Leader) handlePropose(msg messages.Propose) error {
	if _, exists := l.proposals[msg.Slot]; exists {
		return nil
	}
	l.proposals[msg.Slot] = msg.Command
	if l.active {
		l.sendP2aToAll(l.ballot, msg.Slot, msg.Command)
	}
	return nil
}

func (l *Leader) handleP1b(msg messages.P1b) error {
	if msg.Ballot != l.ballot {
		// Ignore a P1b carrying PValues for a ballot we are not currently
		// running a scout for.
		return nil
	}
	set, ok := l.p1bResponses[msg.Ballot]
	if !ok {
		set = make(map[types.AcceptorId]struct{})
		l.p1bResponses[msg.Ballot] = set
	}
	set[msg.Src] = struct{}{}
	// Every P1b's Accepted list is kept, not just the one that completes
	// the quorum: pmax in adopt must run over the union reported by the
	// whole quorum, or a PValue reported early by one acceptor is lost if
	// a later acceptor's P1b happens to be the one crossing the quorum
	// threshold.
	l.p1bAccepted[msg.Ballot] = append(l.p1bAccepted[msg.Ballot], msg.Accepted...)

	if len(set) < l.config.Quorum() {
		return nil
	}
	accepted := l.p1bAccepted[msg.Ballot]
	delete(l.p1bAccepted, msg.Ballot)
	return l.adopt(msg.Ballot, accepted)
}

func (l *Leader) handleAdopted(msg messages.Adopted) error {
	if msg.Ballot != l.ballot {
		return nil
	}
	return l.adopt(msg.Ballot, msg.Accepted)
}

// adopt is the shared quorum-reached path for both an inline P1b quorum and
// an explicit Adopted envelope: reset the backoff, cancel the pending
// scout retry, merge reported PValues into proposals via pmax (highest
// ballot per slot wins), re-drive phase 2 for every proposal, and go
// active.
func (l *Leader) adopt(ballot types.BallotNumber, accepted []types.PValue) error {
	l.resetTimeout()
	l.clock.Cancel(clock.SendScout(l.ballot))

	pmax := make(map[uint64]types.BallotNumber, len(accepted))
	for _, pv := range accepted {
		if best, ok := pmax[pv.Slot]; !ok || best.Less(pv.Ballot) {
			pmax[pv.Slot] = pv.Ballot
			l.proposals[pv.Slot] = pv.Command
		}
	}

	for slot, command := range l.proposals {
		l.sendP2aToAll(ballot, slot, command)
	}
	l.active = true
	if l.metrics != nil {
		l.metrics.Active.Set(1)
	}
	return nil
}

func (l *Leader) handleP2b(msg messages.P2b) error {
	set, ok := l.p2bResponses[msg.Slot]
	if !ok {
		set = make(map[types.AcceptorId]struct{})
		l.p2bResponses[msg.Slot] = set
	}
	set[msg.Src] = struct{}{}

	if len(set) < l.config.Quorum() {
		return nil
	}
	if _, already := l.decided[msg.Slot]; already {
		return nil
	}
	command, ok := l.proposals[msg.Slot]
	if !ok {
		return nil
	}
	l.decided[msg.Slot] = struct{}{}
	l.sendDecisionToAll(msg.Slot, command)
	if l.metrics != nil {
		l.metrics.Decisions.Inc()
	}
	return nil
}

func (l *Leader) handlePreempted(msg messages.Preempted) error {
	if !msg.Ballot.GreaterThan(l.ballot) {
		return nil
	}
	l.active = false
	l.ballot = types.BallotNumber{Round: msg.Ballot.Round + 1, Leader: l.id}
	if err := l.hook.PersistBallot(l.ballot); err != nil {
		return err
	}
	// Schedule a scout retry with backoff instead of sending P1a
	// immediately — this is deliberate: an immediate retry against a
	// leader that just won phase 1 only adds contention.
	l.scheduleScoutRetry()
	if l.metrics != nil {
		l.metrics.Active.Set(0)
		l.metrics.Preemptions.Inc()
	}
	return nil
}

func (l *Leader) sendP1a(ballot types.BallotNumber) {
	for acc := range l.config.Acceptors {
		addr, ok := l.config.GetAddress(acc.NodeId())
		if !ok {
			l.logger.Log("msg", "dropping P1a", "err", ErrConfigLookupMiss, "acceptor", acc)
			continue
		}
		l.mailbox.Send(messages.Envelope{
			Src:     l.address,
			Dst:     addr,
			Payload: messages.P1a{Src: l.id, Ballot: ballot},
		})
	}
}

func (l *Leader) sendP2aToAll(ballot types.BallotNumber, slot uint64, command types.Command) {
	for acc := range l.config.Acceptors {
		addr, ok := l.config.GetAddress(acc.NodeId())
		if !ok {
			l.logger.Log("msg", "dropping P2a", "err", ErrConfigLookupMiss, "acceptor", acc)
			continue
		}
		l.mailbox.Send(messages.Envelope{
			Src:     l.address,
			Dst:     addr,
			Payload: messages.P2a{Src: l.id, Ballot: ballot, Slot: slot, Command: command},
		})
	}
}

func (l *Leader) sendDecisionToAll(slot uint64, command types.Command) {
	for rep := range l.config.Replicas {
		addr, ok := l.config.GetAddress(rep.NodeId())
		if !ok {
			l.logger.Log("msg", "dropping Decision", "err", ErrConfigLookupMiss, "replica", rep)
			continue
		}
		l.mailbox.Send(messages.Envelope{
			Src:     l.address,
			Dst:     addr,
			Payload: messages.Decision{Src: l.id, Slot: slot, Command: command},
		})
	}
}

// CheckTimers drains and handles every expired timer, returning the
// actions that fired.
func (l *Leader) CheckTimers() []clock.Action {
	expired := l.clock.CheckTimers()
	for _, action := range expired {
		l.handleTimer(action)
	}
	return expired
}

func (l *Leader) handleTimer(action clock.Action) {
	switch action.Kind {
	case clock.ActionSendScout:
		l.sendP1a(action.Ballot)
		l.scheduleScoutRetry()
		if l.metrics != nil {
			l.metrics.ScoutRetries.Inc()
		}
	case clock.ActionRetryProposal:
		if command, ok := l.proposals[action.Slot]; ok && l.active {
			l.sendP2aToAll(l.ballot, action.Slot, command)
		}
	case clock.ActionLeaderHeartbeat:
		l.resetTimeout()
	default:
		l.logger.Log("msg", "timer not applicable to leader", "err", ErrTimerActionMismatch, "action", action.String())
	}
}

// scheduleScoutRetry arms the next SendScout at the current backoff value,
// then grows the backoff for the retry after that — schedule first at the
// old value, multiply after, matching the order of operations a liveness
// argument for adaptive backoff depends on.
func (l *Leader) scheduleScoutRetry() {
	timeout := l.currentTimeout
	maxMillis := float64(l.config.TimeoutConfig.MaxTimeout.Milliseconds())
	if timeout > maxMillis {
		timeout = maxMillis
	}
	l.clock.Schedule(clock.SendScout(l.ballot), millisToDuration(timeout))

	l.currentTimeout *= l.config.TimeoutConfig.TimeoutMultiplier
	if l.currentTimeout > maxMillis {
		l.currentTimeout = maxMillis
	}
	if l.metrics != nil {
		l.metrics.CurrentTimeout.Set(l.currentTimeout)
		l.metrics.BallotRound.Set(float64(l.ballot.Round))
	}
}

func (l *Leader) resetTimeout() {
	l.currentTimeout = float64(l.config.TimeoutConfig.MinTimeout.Milliseconds())
	if l.metrics != nil {
		l.metrics.CurrentTimeout.Set(l.currentTimeout)
	}
}

// DrainOutbox returns and clears every pending outbound envelope.
func (l *Leader) DrainOutbox() []messages.Envelope {
	return l.mailbox.DrainOutbound()
}

// Status reports the leader's live state.
func (l *Leader) Status(sc *status.Consumer) {
	sc.Emit(fmt.Sprintf("Leader %s: ballot=%s active=%v proposals=%d", l.id, l.ballot, l.active, len(l.proposals)))
}

func millisToDuration(ms float64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
