package settlement

var allowedTransitions = map[Status][]Status{
	StatusInitiated:          {StatusCalculated, StatusCancelled},
	StatusCalculated:         {StatusPendingClearance, StatusApproved, StatusCancelled},
	StatusPendingClearance:   {StatusApproved, StatusCancelled},
	StatusApproved:           {StatusDocumentsGenerated, StatusCancelled},
	StatusDocumentsGenerated: {StatusCompleted, StatusCancelled},
	StatusCompleted:          {},
	StatusCancelled:          {},
}

// CanTransition reports whether target is a listed edge out of from.
// A status never transitions to itself.
func CanTransition(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckTransition returns nil when current -> target is allowed. Leaving a
// terminal status yields ErrAlreadyCompleted or ErrAlreadyCancelled, which
// also match ErrInvalidStateTransition.
func CheckTransition(current, target Status) error {
	if current.IsTerminal() {
		return alreadyTerminalError(current, target)
	}
	if !CanTransition(current, target) {
		return newInvalidTransitionError(current, target)
	}
	return nil
}

// Transition moves s to target or leaves it untouched and returns the reason.
func Transition(s *Settlement, target Status) error {
	if err := CheckTransition(s.Status, target); err != nil {
		return err
	}
	s.Status = target
	return nil
}

func AllowedTargets(from Status) []Status {
	targets := allowedTransitions[from]
	out := make([]Status, len(targets))
	copy(out, targets)
	return out
}

// AllStatuses lists every lifecycle status in forward order.
func AllStatuses() []Status {
	return []Status{
		StatusInitiated,
		StatusCalculated,
		StatusPendingClearance,
		StatusApproved,
		StatusDocumentsGenerated,
		StatusCompleted,
		StatusCancelled,
	}
}
