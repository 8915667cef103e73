package messages_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erewok/multifaustus/messages"
	"github.com/erewok/multifaustus/types"
)

func TestPayloadKindsAreDistinct(t *testing.T) {
	leader := types.NewLeaderId(1)
	acceptor := types.NewAcceptorId(2)
	replica := types.NewReplicaId(3)
	ballot := types.NewBallotNumber(leader)
	cmd := types.NewOpCommand(types.NodeId(9), 1, nil)

	kinds := map[string]messages.Payload{
		"P1a":       messages.P1a{Src: leader, Ballot: ballot},
		"P1b":       messages.P1b{Src: acceptor, Ballot: ballot},
		"P2a":       messages.P2a{Src: leader, Ballot: ballot, Slot: 1, Command: cmd},
		"P2b":       messages.P2b{Src: acceptor, Ballot: ballot, Slot: 1},
		"Preempted": messages.Preempted{Src: leader, Ballot: ballot},
		"Decision":  messages.Decision{Src: leader, Slot: 1, Command: cmd},
		"Request":   messages.Request{Src: types.NewAddress("h", 1), Command: cmd},
		"Propose":   messages.Propose{Src: replica, Slot: 1, Command: cmd},
		"Adopted":   messages.Adopted{Src: leader, Ballot: ballot},
	}
	for wantKind, payload := range kinds {
		assert.Equal(t, wantKind, payload.Kind())
	}
}

func TestEnvelopeString(t *testing.T) {
	src := types.NewAddress("a", 1)
	dst := types.NewAddress("b", 2)
	env := messages.Envelope{Src: src, Dst: dst, Payload: messages.P1a{Src: types.NewLeaderId(1)}}
	s := env.String()
	assert.Contains(t, s, "P1a")
	assert.Contains(t, s, "a:1")
	assert.Contains(t, s, "b:2")
}
