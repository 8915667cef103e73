package transport

import (
	"github.com/go-kit/kit/log"

	"github.com/erewok/multifaustus/messages"
	"github.com/erewok/multifaustus/types"
)

// Logging wraps another Transport and logs every envelope it sends,
// before delegating. The demo command always wraps its Loopback in one.
type Logging struct {
	inner  Transport
	logger log.Logger
}

// NewLogging wraps inner with structured send logging at logger.
func NewLogging(inner Transport, logger log.Logger) *Logging {
	return &Logging{inner: inner, logger: logger}
}

// Send implements Transport.
func (t *Logging) Send(env messages.Envelope) error {
	t.logger.Log("msg", "sending message", "envelope", env.String())
	return t.inner.Send(env)
}

// Receive implements Transport.
func (t *Logging) Receive(addr types.Address) (messages.Envelope, bool) {
	return t.inner.Receive(addr)
}
