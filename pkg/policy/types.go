package policy

import (
	"github.com/akinizer/akinizer/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that block the target.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that block the target.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether a violation of this severity denies the target.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is one Rego module. Its deny set is evaluated per target.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity applies to violations that do not carry their own.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Source is the file the policy was loaded from; empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is one element of a policy's deny set.
type Violation struct {
	Policy   string   `json:"policy"`
	Target   string   `json:"target"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Input is the document policies see as input.
type Input struct {
	Target TargetInput `json:"target"`
}

// TargetInput describes a resolved target.
type TargetInput struct {
	Name     string    `json:"name"`
	Action   string    `json:"action"`
	Command  string    `json:"command"`
	Commands []string  `json:"commands"`
	GUI      bool      `json:"gui"`
	Forced   bool      `json:"forced"`
	Git      *GitInput `json:"git,omitempty"`
}

// GitInput describes the git package of a target.
type GitInput struct {
	RepoURL    string `json:"repo_url"`
	Ref        string `json:"ref"`
	CloneDir   string `json:"clone_dir,omitempty"`
	BinDir     string `json:"bin_dir,omitempty"`
	BinSymlink string `json:"bin_symlink,omitempty"`
}

// NewInput builds the policy input of a target. Predicates are not
// evaluated; forced only records that a forceAction option is present.
func NewInput(t engine.Target) Input {
	in := Input{
		Target: TargetInput{
			Name:     t.Name,
			Action:   string(t.Action),
			Command:  t.CommandName(),
			Commands: append([]string{}, t.Options.ActionCommands...),
			GUI:      t.Options.GUI(),
			Forced:   t.Options.ForceAction != nil,
		},
	}
	if gp := t.Options.GitPackage; gp != nil {
		in.Target.Git = &GitInput{
			RepoURL:    gp.RepoURL,
			Ref:        gp.Ref,
			CloneDir:   gp.CloneDir,
			BinDir:     gp.BinDir,
			BinSymlink: gp.BinSymlink,
		}
	}
	return in
}
