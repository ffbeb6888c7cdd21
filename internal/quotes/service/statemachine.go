package service

// Quote lifecycle statuses. STEP1 through COMPLETE advance strictly forward;
// EXPIRED is terminal and only the sweeper sets it.
const (
	StatusStep1    = "STEP1"
	StatusStep2    = "STEP2"
	StatusStep3    = "STEP3"
	StatusComplete = "COMPLETE"
	StatusExpired  = "EXPIRED"
)

// statusRank orders the forward progression. EXPIRED is deliberately absent:
// it is never a valid target of a caller-driven transition.
var statusRank = map[string]int{
	StatusStep1:    1,
	StatusStep2:    2,
	StatusStep3:    3,
	StatusComplete: 4,
}

// IsKnownStatus reports whether s is a lifecycle status at all.
func IsKnownStatus(s string) bool {
	_, ok := statusRank[s]
	return ok || s == StatusExpired
}

// CanTransition reports whether a caller-driven move from one status to
// another is allowed. Only strictly forward moves between the step statuses
// are permitted; same-status is a no-op and allowed.
func CanTransition(from, to string) bool {
	if from == StatusExpired {
		return false
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank >= fromRank
}

// InferStatus derives the next status from which field groups an update
// touched, when the caller declared no explicit target. Policy-holder data
// implies the caller reached the final form step; event or venue data implies
// the middle step. The status never regresses.
func InferStatus(current string, touchedHolder, touchedEventOrVenue bool) string {
	inferred := current
	switch {
	case touchedHolder:
		inferred = StatusStep3
	case touchedEventOrVenue:
		inferred = StatusStep2
	}
	if statusRank[inferred] > statusRank[current] {
		return inferred
	}
	return current
}
