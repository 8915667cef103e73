// Package clock abstracts monotonic time behind a small capability
// interface with two implementations: a wall-clock provider for production
// and a virtual provider that only advances when a test tells it to. No
// protocol code may consult an ambient global time source directly.
package clock

import (
	"fmt"
	"time"

	"github.com/erewok/multifaustus/types"
)

// ActionKind tags the variant of a scheduled Action. Cancel matches on
// Kind alone (and, for ActionCustom, on Name as well) — it never compares
// payload fields like Ballot or Slot.
type ActionKind int

const (
	ActionSendScout ActionKind = iota
	ActionRetryProposal
	ActionLeaderHeartbeat
	ActionReproposePendingRequests
	ActionCheckSlotWindow
	ActionAcceptorHeartbeat
	ActionCustom
)

func (k ActionKind) String() string {
	switch k {
	case ActionSendScout:
		return "SendScout"
	case ActionRetryProposal:
		return "RetryProposal"
	case ActionLeaderHeartbeat:
		return "LeaderHeartbeat"
	case ActionReproposePendingRequests:
		return "ReproposePendingRequests"
	case ActionCheckSlotWindow:
		return "CheckSlotWindow"
	case ActionAcceptorHeartbeat:
		return "AcceptorHeartbeat"
	case ActionCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// Action is a scheduled or fired timer action. Only the fields relevant to
// its Kind are meaningful; the zero value of the others is ignored.
type Action struct {
	Kind   ActionKind
	Ballot types.BallotNumber // ActionSendScout
	Slot   uint64             // ActionRetryProposal
	Name   string             // ActionCustom
}

func (a Action) String() string {
	switch a.Kind {
	case ActionSendScout:
		return fmt.Sprintf("SendScout{%s}", a.Ballot)
	case ActionRetryProposal:
		return fmt.Sprintf("RetryProposal{%d}", a.Slot)
	case ActionCustom:
		return fmt.Sprintf("Custom{%s}", a.Name)
	default:
		return a.Kind.String()
	}
}

// Matches reports whether a fired/pending action matches a cancellation
// prototype: same Kind, and for ActionCustom, identical Name.
func (a Action) Matches(prototype Action) bool {
	if a.Kind != prototype.Kind {
		return false
	}
	if a.Kind == ActionCustom {
		return a.Name == prototype.Name
	}
	return true
}

// SendScout builds a SendScout action for ballot.
func SendScout(ballot types.BallotNumber) Action { return Action{Kind: ActionSendScout, Ballot: ballot} }

// RetryProposal builds a RetryProposal action for slot.
func RetryProposal(slot uint64) Action { return Action{Kind: ActionRetryProposal, Slot: slot} }

// LeaderHeartbeat builds a LeaderHeartbeat action.
func LeaderHeartbeat() Action { return Action{Kind: ActionLeaderHeartbeat} }

// ReproposePendingRequests builds a ReproposePendingRequests action.
func ReproposePendingRequests() Action { return Action{Kind: ActionReproposePendingRequests} }

// CheckSlotWindow builds a CheckSlotWindow action.
func CheckSlotWindow() Action { return Action{Kind: ActionCheckSlotWindow} }

// AcceptorHeartbeat builds an AcceptorHeartbeat action.
func AcceptorHeartbeat() Action { return Action{Kind: ActionAcceptorHeartbeat} }

// Custom builds a Custom action tagged with name, for callers outside the
// three built-in roles (e.g. a demo harness's own bookkeeping timers).
func Custom(name string) Action { return Action{Kind: ActionCustom, Name: name} }

// Clock is the capability every actor holds instead of touching time
// directly.
type Clock interface {
	// Now returns the clock's current time.
	Now() time.Time
	// Schedule arranges for action to fire after delay.
	Schedule(action Action, delay time.Duration)
	// ScheduleAt arranges for action to fire at the given instant.
	ScheduleAt(action Action, when time.Time)
	// Cancel removes every pending timer whose action Matches prototype.
	Cancel(prototype Action)
	// NextTimeout returns the duration until the soonest pending timer —
	// zero if already due — and false if nothing is scheduled.
	NextTimeout() (time.Duration, bool)
	// CheckTimers removes and returns, earliest-first, every action whose
	// instant is now or in the past.
	CheckTimers() []Action
}
