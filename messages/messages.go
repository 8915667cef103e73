// Package messages defines the envelope and payload variants exchanged
// between role actors. Field names and order follow the external interface
// contract exactly; handlers match payload variants exhaustively.
package messages

import (
	"fmt"

	"github.com/erewok/multifaustus/types"
)

// Payload is the tagged-union contract every message variant satisfies.
// Kind lets dispatch switch on a concrete type without a type assertion
// chain growing unboundedly as variants are added.
type Payload interface {
	Kind() string
}

// Envelope is the SendableMessage: the only thing a Mailbox or Transport
// ever moves.
type Envelope struct {
	Src     types.Address
	Dst     types.Address
	Payload Payload
}

func (e Envelope) String() string {
	return fmt.Sprintf("%s from %s => %s", e.Payload.Kind(), e.Src, e.Dst)
}

// P1a is sent by a leader's scout to every acceptor to initiate a ballot.
type P1a struct {
	Src    types.LeaderId
	Ballot types.BallotNumber
}

func (P1a) Kind() string { return "P1a" }

// P1b is an acceptor's promise reply to a P1a, reporting previously
// accepted proposals.
type P1b struct {
	Src      types.AcceptorId
	Ballot   types.BallotNumber
	Accepted []types.PValue
}

func (P1b) Kind() string { return "P1b" }

// P2a is sent by a leader's commander to propose a command for a slot.
type P2a struct {
	Src     types.LeaderId
	Ballot  types.BallotNumber
	Slot    uint64
	Command types.Command
}

func (P2a) Kind() string { return "P2a" }

// P2b is an acceptor's confirmation that it accepted a P2a.
type P2b struct {
	Src    types.AcceptorId
	Ballot types.BallotNumber
	Slot   uint64
}

func (P2b) Kind() string { return "P2b" }

// Preempted tells a leader that a strictly greater ballot has been observed.
type Preempted struct {
	Src    types.LeaderId
	Ballot types.BallotNumber
}

func (Preempted) Kind() string { return "Preempted" }

// Decision tells replicas which command was chosen for a slot.
type Decision struct {
	Src     types.LeaderId
	Slot    uint64
	Command types.Command
}

func (Decision) Kind() string { return "Decision" }

// Request is a client-issued command addressed to a replica.
type Request struct {
	Src     types.Address
	Command types.Command
}

func (Request) Kind() string { return "Request" }

// Propose is sent by a replica to every leader to request a slot assignment.
type Propose struct {
	Src     types.ReplicaId
	Slot    uint64
	Command types.Command
}

func (Propose) Kind() string { return "Propose" }

// Adopted is the internal signal produced once a leader's scout has
// collected a P1b quorum for its current ballot. It is modeled as a literal
// envelope variant (rather than folded silently into P1b handling) because
// it is named as a normative wire type in the external interface contract,
// and because a harness wiring multiple leader instances together needs a
// concrete value to dispatch, not just a side effect.
type Adopted struct {
	Src      types.LeaderId
	Ballot   types.BallotNumber
	Accepted []types.PValue
}

func (Adopted) Kind() string { return "Adopted" }
