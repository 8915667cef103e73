// Package persistence provides a narrow durability boundary: if
// implemented, an acceptor must durably record (promised, accepted)
// before sending P1b/P2b for any (ballot, slot), and a leader must
// durably record ballot_number before sending P1a. No concrete storage
// engine is mandated; the in-memory implementation here exists so call
// sites are exercised without committing to a database.
package persistence

import "github.com/erewok/multifaustus/types"

// AcceptedEntry is the durable record for one slot at an Acceptor.
type AcceptedEntry struct {
	Ballot  types.BallotNumber
	Command types.Command
}

// AcceptorHook is consulted by an Acceptor before it replies to P1a or P2a.
type AcceptorHook interface {
	PersistPromise(slot uint64, promised types.BallotNumber) error
	PersistAccept(slot uint64, entry AcceptedEntry) error
}

// LeaderHook is consulted by a Leader before it sends P1a for a new ballot.
type LeaderHook interface {
	PersistBallot(ballot types.BallotNumber) error
}

// NoopHook is the default AcceptorHook and LeaderHook: it records nothing
// and never fails. A real deployment swaps this for a durable log.
type NoopHook struct{}

func (NoopHook) PersistPromise(uint64, types.BallotNumber) error { return nil }
func (NoopHook) PersistAccept(uint64, AcceptedEntry) error       { return nil }
func (NoopHook) PersistBallot(types.BallotNumber) error          { return nil }

// InMemoryHook records every write so tests can assert on what would have
// been persisted, without requiring an actual storage engine.
type InMemoryHook struct {
	Promises map[uint64]types.BallotNumber
	Accepts  map[uint64]AcceptedEntry
	Ballots  []types.BallotNumber
}

// NewInMemoryHook returns an InMemoryHook ready to use.
func NewInMemoryHook() *InMemoryHook {
	return &InMemoryHook{
		Promises: make(map[uint64]types.BallotNumber),
		Accepts:  make(map[uint64]AcceptedEntry),
	}
}

func (h *InMemoryHook) PersistPromise(slot uint64, promised types.BallotNumber) error {
	h.Promises[slot] = promised
	return nil
}

func (h *InMemoryHook) PersistAccept(slot uint64, entry AcceptedEntry) error {
	h.Accepts[slot] = entry
	return nil
}

func (h *InMemoryHook) PersistBallot(ballot types.BallotNumber) error {
	h.Ballots = append(h.Ballots, ballot)
	return nil
}
