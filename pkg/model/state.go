package model

// RunStatus represents the lifecycle status of a UserWorkflow.
type RunStatus string

const (
	RunInProgress RunStatus = "in-progress"
	RunCompleted  RunStatus = "completed"
	RunAbandoned  RunStatus = "abandoned"
)

// String returns the string representation of the run status.
func (s RunStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the run can no longer change.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunCompleted, RunAbandoned:
		return true
	}
	return false
}

// ValidRunTransitions defines the allowed status transitions for runs.
var ValidRunTransitions = map[RunStatus][]RunStatus{
	RunInProgress: {RunCompleted, RunAbandoned},
}

// CanTransitionTo returns true if moving from the current status to next is valid.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	for _, allowed := range ValidRunTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
