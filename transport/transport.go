// Package transport carries messages.Envelope values between actors. A
// Transport is fire-and-forget: Send never blocks and never reports
// delivery, only enqueue failure. Transports may lose, reorder, or
// duplicate envelopes in flight — the protocol above is built to tolerate
// all three.
package transport

import (
	"github.com/erewok/multifaustus/messages"
	"github.com/erewok/multifaustus/types"
)

// Transport moves envelopes between registered addresses.
type Transport interface {
	// Send enqueues env for eventual delivery to env.Dst. An error means
	// the envelope could not be queued at all (e.g. the address is not
	// registered with this transport); it is never used to report network
	// failure after the fact, since real delivery is never guaranteed.
	Send(env messages.Envelope) error
	// Receive pops the next envelope addressed to addr, if any.
	Receive(addr types.Address) (messages.Envelope, bool)
}
