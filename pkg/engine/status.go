package engine

import (
	"fmt"
)

// ActionKind is the action a phase applies to its targets.
type ActionKind string

const (
	// ActionInstall installs targets that are not already satisfied.
	ActionInstall ActionKind = "install"

	// ActionVerify fails when a target is not installed.
	ActionVerify ActionKind = "verify"

	// ActionExecuteJobs runs the targets' commands unconditionally.
	ActionExecuteJobs ActionKind = "execute-jobs"

	// ActionRunPhases treats the phase's children as phases.
	ActionRunPhases ActionKind = "run-phases"
)

// IsLeaf returns true if the action applies to targets rather than phases.
func (a ActionKind) IsLeaf() bool {
	return a != ActionRunPhases
}

// Validate checks if the action kind is known.
func (a ActionKind) Validate() error {
	switch a {
	case ActionInstall, ActionVerify, ActionExecuteJobs, ActionRunPhases:
		return nil
	default:
		return fmt.Errorf("invalid action kind: %s", a)
	}
}

// String implements fmt.Stringer.
func (a ActionKind) String() string {
	return string(a)
}

// Outcome is the terminal state of dispatching one target.
type Outcome string

const (
	// OutcomeSkipped indicates skipAction reported true.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeSatisfied indicates the Oracle found the target already installed.
	OutcomeSatisfied Outcome = "satisfied"

	// OutcomeInstalled indicates an installer ran successfully.
	OutcomeInstalled Outcome = "installed"

	// OutcomeExecuted indicates a job's commands ran successfully.
	OutcomeExecuted Outcome = "executed"

	// OutcomeFailed indicates the dispatch returned an error.
	OutcomeFailed Outcome = "failed"
)

// Changed returns true if the outcome mutated the workstation.
func (o Outcome) Changed() bool {
	return o == OutcomeInstalled || o == OutcomeExecuted
}

// IsSuccess returns true for every outcome except OutcomeFailed.
func (o Outcome) IsSuccess() bool {
	return o != OutcomeFailed && o != ""
}

// Validate checks if the outcome is valid.
func (o Outcome) Validate() error {
	switch o {
	case OutcomeSkipped, OutcomeSatisfied, OutcomeInstalled, OutcomeExecuted, OutcomeFailed:
		return nil
	default:
		return fmt.Errorf("invalid outcome: %s", o)
	}
}

// String implements fmt.Stringer.
func (o Outcome) String() string {
	return string(o)
}
