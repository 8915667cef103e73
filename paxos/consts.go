// Package paxos implements the three role actors — Acceptor, Leader,
// Replica — that together run MultiPaxos. Every step function runs to
// completion without blocking; actors are driven by an external scheduler.
package paxos

// Window is the Replica's fixed pipelining depth: a replica may hold
// proposals in flight for slots [slot_out, slot_out+Window).
const Window = 5
