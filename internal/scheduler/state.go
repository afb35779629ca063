package scheduler

import "fmt"

// State is the lifecycle position of one unit within a run.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	// StateSkipped marks units left undispatched by an interrupted run.
	StateSkipped State = "skipped"
	// StateInterrupted marks units stopped between attempts by cancellation.
	StateInterrupted State = "interrupted"
)

var allowedTransitions = map[State]map[State]bool{
	StatePending: {
		StateRunning: true,
		StateSkipped: true,
	},
	StateRunning: {
		StateSucceeded:   true,
		StateFailed:      true,
		StateInterrupted: true,
	},
	StateSucceeded:   {},
	StateFailed:      {},
	StateSkipped:     {},
	StateInterrupted: {},
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s State) IsTerminal() bool {
	next, ok := allowedTransitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func transition(states []State, index int, to State) error {
	from := states[index]
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid unit state transition: %q -> %q (index=%d)", from, to, index)
	}
	states[index] = to
	return nil
}
