package domain

// Status is a complaint's lifecycle state.
type Status string

// Status constants
const (
	StatusSubmitted   Status = "submitted" // initial
	StatusUnderReview Status = "under_review"
	StatusInProgress  Status = "in_progress"
	StatusResolved    Status = "resolved" // terminal
	StatusRejected    Status = "rejected" // terminal
)

// Statuses returns every lifecycle state.
func Statuses() []Status {
	return []Status{
		StatusSubmitted,
		StatusUnderReview,
		StatusInProgress,
		StatusResolved,
		StatusRejected,
	}
}

// OpenStatuses returns the non-terminal states, the ones dedup candidates and
// the default ranked feed are drawn from.
func OpenStatuses() []Status {
	return []Status{StatusSubmitted, StatusUnderReview, StatusInProgress}
}

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusInProgress,
		StatusResolved, StatusRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}
