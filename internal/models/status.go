package models

import "fmt"

// Status is the pipeline state of a listing. The vocabulary is closed:
// every write goes through the transition table below and anything not
// listed there is rejected.
type Status string

const (
	StatusNew                  Status = "new"
	StatusCollected            Status = "collected"
	StatusStructurallyFiltered Status = "structurally_filtered"
	StatusStructurallyRejected Status = "structurally_rejected"
	StatusSemanticallyFiltered Status = "semantically_filtered"
	StatusSemanticallyRejected Status = "semantically_rejected"
	StatusDeduplicated         Status = "deduplicated"
	StatusDuplicateOfCanonical Status = "duplicate_of_canonical"
	StatusMatchedToProfile     Status = "matched_to_profile"
	StatusNotified             Status = "notified"
)

// Transition is the pair of outcomes a stage may write from a given
// input status.
type Transition struct {
	Success Status
	Failure Status // empty when the stage has no failure outcome
}

// Transitions maps each non-terminal status to its allowed outcomes.
// Rejected / duplicate / notified statuses are terminal and have no entry.
var Transitions = map[Status]Transition{
	StatusNew:                  {Success: StatusCollected},
	StatusCollected:            {Success: StatusStructurallyFiltered, Failure: StatusStructurallyRejected},
	StatusStructurallyFiltered: {Success: StatusSemanticallyFiltered, Failure: StatusSemanticallyRejected},
	StatusSemanticallyFiltered: {Success: StatusDeduplicated, Failure: StatusDuplicateOfCanonical},
	StatusDeduplicated:         {Success: StatusMatchedToProfile},
	StatusMatchedToProfile:     {Success: StatusNotified},
}

// Terminal reports whether no stage may move a listing out of s.
func (s Status) Terminal() bool {
	_, ok := Transitions[s]
	return !ok
}

// ValidTransition reports whether from -> to is listed in the table.
func ValidTransition(from, to Status) bool {
	t, ok := Transitions[from]
	if !ok {
		return false
	}
	return to == t.Success || (t.Failure != "" && to == t.Failure)
}

// CheckTransition returns a descriptive error for writes outside the table.
func CheckTransition(from, to Status) error {
	if !ValidTransition(from, to) {
		return fmt.Errorf("invalid status transition %q -> %q", from, to)
	}
	return nil
}
