package booking

import "errors"

var ErrInvalidTransition = errors.New("invalid status transition")

// transitions maps each legal status change. NO_SHOW is reachable from any
// non-terminal state and is handled in CanTransition directly.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransition reports whether from -> to is a legal lifecycle change.
// Terminal states admit nothing.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition unless from -> to is legal.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return nil
}
