package paxos_test

import (
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erewok/multifaustus/clock"
	"github.com/erewok/multifaustus/mailbox"
	"github.com/erewok/multifaustus/messages"
	"github.com/erewok/multifaustus/paxos"
	"github.com/erewok/multifaustus/persistence"
	"github.com/erewok/multifaustus/status"
	"github.com/erewok/multifaustus/types"
)

func timeoutConfig() types.TimeoutConfig {
	return types.DefaultTimeoutConfig()
}

func leaderTestConfig() types.Config {
	return types.NewConfig(
		[]types.ReplicaId{types.NewReplicaId(10)},
		[]types.AcceptorId{types.NewAcceptorId(1), types.NewAcceptorId(2), types.NewAcceptorId(3)},
		[]types.LeaderId{types.NewLeaderId(20), types.NewLeaderId(21)},
		map[types.NodeId]types.Address{
			types.NodeId(1):  types.NewAddress("a1", 1),
			types.NodeId(2):  types.NewAddress("a2", 2),
			types.NodeId(3):  types.NewAddress("a3", 3),
			types.NodeId(10): types.NewAddress("r10", 10),
			types.NodeId(20): types.NewAddress("l20", 20),
			types.NodeId(21): types.NewAddress("l21", 21),
		},
		timeoutConfig(),
	)
}

func newTestLeader(t *testing.T) (*paxos.Leader, *persistence.InMemoryHook) {
	t.Helper()
	cfg := leaderTestConfig()
	hook := persistence.NewInMemoryHook()
	l, err := paxos.NewLeader(types.NewLeaderId(20), cfg, mailbox.New(), clock.NewVirtual(time.Unix(0, 0)), hook, nil, log.NewNopLogger())
	require.NoError(t, err)
	l.DrainOutbox() // discard the constructor's initial P1a broadcast
	return l, hook
}

func quorumP1b(l *paxos.Leader, ballot types.BallotNumber, accepted []types.PValue, from ...types.AcceptorId) {
	for _, acc := range from {
		l.AcceptMessage(messages.Envelope{Payload: messages.P1b{Src: acc, Ballot: ballot, Accepted: accepted}})
		l.WorkOnMessage()
	}
}

func sendP1b(l *paxos.Leader, acc types.AcceptorId, ballot types.BallotNumber, accepted []types.PValue) {
	l.AcceptMessage(messages.Envelope{Payload: messages.P1b{Src: acc, Ballot: ballot, Accepted: accepted}})
	l.WorkOnMessage()
}

func TestLeaderAdoptsOnP1bQuorum(t *testing.T) {
	l, _ := newTestLeader(t)
	ballot := types.NewBallotNumber(types.NewLeaderId(20))

	sc := status.NewConsumer()
	l.Status(sc)
	assert.Contains(t, sc.String(), "active=false")

	quorumP1b(l, ballot, nil, types.NewAcceptorId(1), types.NewAcceptorId(2))

	sc = status.NewConsumer()
	l.Status(sc)
	assert.Contains(t, sc.String(), "active=true", "a P1b quorum for the current ballot must make the leader active")
}

func TestLeaderAdoptsHighestBallotPValueRegardlessOfP1bArrivalOrder(t *testing.T) {
	l, _ := newTestLeader(t)
	ballot := types.NewBallotNumber(types.NewLeaderId(20))

	higherBallot := types.BallotNumber{Round: 3, Leader: types.NewLeaderId(1)}
	lowerBallot := types.BallotNumber{Round: 1, Leader: types.NewLeaderId(2)}
	newCmd := types.NewOpCommand(types.NodeId(1), 1, []byte("new"))
	oldCmd := types.NewOpCommand(types.NodeId(2), 1, []byte("old"))

	// A2's P1b, reporting the higher-ballot PValue, arrives first but does
	// not by itself reach quorum.
	sendP1b(l, types.NewAcceptorId(2), ballot, []types.PValue{{Ballot: higherBallot, Slot: 1, Command: newCmd}})
	// A1's P1b, reporting only the stale lower-ballot PValue, arrives
	// second and completes the quorum.
	sendP1b(l, types.NewAcceptorId(1), ballot, []types.PValue{{Ballot: lowerBallot, Slot: 1, Command: oldCmd}})

	out := l.DrainOutbox()
	var sawSlot1 bool
	for _, env := range out {
		if p2a, ok := env.Payload.(messages.P2a); ok && p2a.Slot == 1 {
			sawSlot1 = true
			assert.True(t, p2a.Command.Equal(newCmd),
				"pmax must pick the PValue with the highest accepted ballot across the whole quorum, not just the P1b that happened to complete it")
		}
	}
	assert.True(t, sawSlot1, "adoption must re-drive phase 2 for the merged slot")
}

func TestLeaderSendsDecisionOnP2bQuorum(t *testing.T) {
	l, _ := newTestLeader(t)
	ballot := types.NewBallotNumber(types.NewLeaderId(20))
	cmd := types.NewOpCommand(types.NodeId(1), 1, nil)

	l.AcceptMessage(messages.Envelope{Payload: messages.Propose{Src: types.NewReplicaId(10), Slot: 1, Command: cmd}})
	require.True(t, l.WorkOnMessage())
	l.DrainOutbox()

	quorumP1b(l, ballot, nil, types.NewAcceptorId(1), types.NewAcceptorId(2))
	l.DrainOutbox()

	l.AcceptMessage(messages.Envelope{Payload: messages.P2b{Src: types.NewAcceptorId(1), Ballot: ballot, Slot: 1}})
	require.True(t, l.WorkOnMessage())
	l.AcceptMessage(messages.Envelope{Payload: messages.P2b{Src: types.NewAcceptorId(2), Ballot: ballot, Slot: 1}})
	require.True(t, l.WorkOnMessage())

	out := l.DrainOutbox()
	var sawDecision bool
	for _, env := range out {
		if dec, ok := env.Payload.(messages.Decision); ok {
			sawDecision = true
			assert.Equal(t, uint64(1), dec.Slot)
		}
	}
	assert.True(t, sawDecision, "expected a Decision to be sent once P2b quorum is reached")
}

func TestLeaderIgnoresAdoptedForWrongBallot(t *testing.T) {
	l, _ := newTestLeader(t)
	stale := types.BallotNumber{Round: 99, Leader: types.NewLeaderId(20)}

	l.AcceptMessage(messages.Envelope{Payload: messages.Adopted{Src: types.NewLeaderId(20), Ballot: stale}})
	require.True(t, l.WorkOnMessage())
	assert.Empty(t, l.DrainOutbox(), "an Adopted for a ballot that isn't current must be ignored")
}

func TestLeaderHandlesPreemptionByBumpingBallotAndRearming(t *testing.T) {
	l, hook := newTestLeader(t)
	current := types.NewBallotNumber(types.NewLeaderId(20))
	higher := types.BallotNumber{Round: current.Round + 1, Leader: types.NewLeaderId(21)}

	before := len(hook.Ballots)
	l.AcceptMessage(messages.Envelope{Payload: messages.Preempted{Src: types.NewLeaderId(21), Ballot: higher}})
	require.True(t, l.WorkOnMessage())

	assert.Greater(t, len(hook.Ballots), before, "a strictly higher preemption must persist a new ballot")
}

func TestLeaderPreemptionBelowCurrentBallotIsIgnored(t *testing.T) {
	l, hook := newTestLeader(t)
	lower := types.BallotNumber{Round: 0, Leader: types.NewLeaderId(19)}

	before := len(hook.Ballots)
	l.AcceptMessage(messages.Envelope{Payload: messages.Preempted{Src: types.NewLeaderId(19), Ballot: lower}})
	require.True(t, l.WorkOnMessage())
	assert.Equal(t, before, len(hook.Ballots))
}
