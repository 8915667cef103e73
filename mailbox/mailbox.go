// Package mailbox implements the sans-IO inbound/outbound queue pair every
// role actor owns exclusively. No concurrency control is required: a
// Mailbox is never shared across actors.
package mailbox

import "github.com/erewok/multifaustus/messages"

// Mailbox is a pair of FIFO queues of envelopes.
type Mailbox struct {
	inbox  []messages.Envelope
	outbox []messages.Envelope
}

// New returns an empty Mailbox.
func New() *Mailbox {
	return &Mailbox{}
}

// Receive pushes an inbound envelope onto the back of the inbox.
func (m *Mailbox) Receive(env messages.Envelope) {
	m.inbox = append(m.inbox, env)
}

// PopInbound returns and removes the oldest inbound envelope, or ok=false
// if the inbox is empty.
func (m *Mailbox) PopInbound() (messages.Envelope, bool) {
	if len(m.inbox) == 0 {
		return messages.Envelope{}, false
	}
	env := m.inbox[0]
	m.inbox = m.inbox[1:]
	return env, true
}

// Send pushes an outbound envelope onto the back of the outbox.
func (m *Mailbox) Send(env messages.Envelope) {
	m.outbox = append(m.outbox, env)
}

// PopOutbound returns and removes the oldest outbound envelope, or
// ok=false if the outbox is empty.
func (m *Mailbox) PopOutbound() (messages.Envelope, bool) {
	if len(m.outbox) == 0 {
		return messages.Envelope{}, false
	}
	env := m.outbox[0]
	m.outbox = m.outbox[1:]
	return env, true
}

// ClearInbox discards every pending inbound envelope.
func (m *Mailbox) ClearInbox() {
	m.inbox = nil
}

// ClearOutbox discards every pending outbound envelope without delivering
// it. The scheduler does not call it; it drains the outbox with
// DrainOutbound instead.
func (m *Mailbox) ClearOutbox() {
	m.outbox = nil
}

// PendingInbound reports how many envelopes are waiting to be processed.
func (m *Mailbox) PendingInbound() int { return len(m.inbox) }

// PendingOutbound reports how many envelopes are waiting to be drained.
func (m *Mailbox) PendingOutbound() int { return len(m.outbox) }

// DrainOutbound removes and returns every pending outbound envelope in
// order. Convenience for a harness that wants to flush the whole queue to a
// transport in one call rather than looping PopOutbound itself.
func (m *Mailbox) DrainOutbound() []messages.Envelope {
	drained := m.outbox
	m.outbox = nil
	return drained
}
