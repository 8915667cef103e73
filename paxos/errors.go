package paxos

import "errors"

// Sentinel error kinds from the error handling design. A failure is logged
// with role id and message context and the message is abandoned; none of
// these are retried automatically outside the protocol's own reproposal
// paths (ReproposePendingRequests, SendScout).
var (
	// ErrConfigLookupMiss means no address is registered for a required
	// NodeId — non-recoverable for that particular send.
	ErrConfigLookupMiss = errors.New("paxos: no address registered for node")
	// ErrUnexpectedMessage means a role received a payload variant it does
	// not handle.
	ErrUnexpectedMessage = errors.New("paxos: unexpected message for this role")
	// ErrTimerActionMismatch means a role received a timer variant not
	// applicable to it.
	ErrTimerActionMismatch = errors.New("paxos: timer action not applicable to this role")
)
