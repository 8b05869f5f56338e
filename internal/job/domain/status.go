package domain

func (s Status) Valid() bool {
	return s.IsTerminal() || s.IsNonTerminal()
}

func (s Status) IsNonTerminal() bool {
	switch s {
	case StatusPending, StatusDispatched, StatusActive, StatusAwaitingOTP, StatusSnoozed:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompletedPaid,
		StatusCompletedEventual,
		StatusCompletedReneged,
		StatusUserSkip,
		StatusUserAbandon,
		StatusImpliedSkip,
		StatusFailed:
		return true
	default:
		return false
	}
}

// Transition classifies a requested status change.
type Transition int

const (
	// TransitionApply means the new status must be written.
	TransitionApply Transition = iota
	// TransitionNoop means the job is already in the requested terminal
	// status and the request is absorbed.
	TransitionNoop
)

var nonTerminalEdges = map[Status][]Status{
	StatusPending:     {StatusDispatched, StatusSnoozed},
	StatusDispatched:  {StatusActive, StatusSnoozed},
	StatusActive:      {StatusAwaitingOTP},
	StatusAwaitingOTP: {StatusActive},
	StatusSnoozed:     {StatusPending},
}

// CheckTransition validates from -> to. Any non-terminal status may enter any
// terminal status. Leaving a terminal status is only allowed from
// completed_reneged to completed_eventual and only when allowLatePayment is
// set, which is reserved for debt settlement.
func CheckTransition(from, to Status, allowLatePayment bool) (Transition, error) {
	if !to.Valid() {
		return TransitionApply, ErrInvalidStatus
	}

	if from.IsTerminal() {
		if from == to {
			return TransitionNoop, nil
		}
		if from == StatusCompletedReneged && to == StatusCompletedEventual && allowLatePayment {
			return TransitionApply, nil
		}
		return TransitionApply, ErrInvalidTransition.WithMessage("%s -> %s", from, to)
	}

	if to.IsTerminal() {
		return TransitionApply, nil
	}
	for _, next := range nonTerminalEdges[from] {
		if next == to {
			return TransitionApply, nil
		}
	}
	return TransitionApply, ErrInvalidTransition.WithMessage("%s -> %s", from, to)
}
