package interaction

import "fmt"

// State tracks where an interaction sits in its response lifecycle.
// Discord accepts exactly one initial response per interaction; everything
// after that has to go through edits or followup webhooks, and after the
// 15 minute token window only plain channel messages work.
type State int

const (
	// StateInitial means no response has been sent yet.
	StateInitial State = iota

	// StateDeferredCreate means a deferred message-create placeholder is out.
	StateDeferredCreate

	// StateDeferredUpdate means a deferred message-update was acknowledged.
	StateDeferredUpdate

	// StateCreated means at least one real response exists.
	StateCreated

	// StateDeleted means the last response was deleted.
	StateDeleted

	// StateRest means the interaction token expired; only plain channel
	// messages are possible from here.
	StateRest
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateDeferredCreate:
		return "deferred-create"
	case StateDeferredUpdate:
		return "deferred-update"
	case StateCreated:
		return "created"
	case StateDeleted:
		return "deleted"
	case StateRest:
		return "rest"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions is the legal state DAG. Created->Created covers followups.
var transitions = map[State][]State{
	StateInitial:        {StateDeferredCreate, StateDeferredUpdate, StateCreated, StateRest},
	StateDeferredCreate: {StateCreated, StateRest},
	StateDeferredUpdate: {StateCreated, StateRest},
	StateCreated:        {StateCreated, StateDeleted, StateRest},
	StateDeleted:        {},
	StateRest:           {StateRest},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrIllegalTransition is returned when an operation would violate the
// response-state DAG, e.g. calling Defer twice.
type ErrIllegalTransition struct {
	From State
	To   State
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal response state transition: %s -> %s", e.From, e.To)
}
