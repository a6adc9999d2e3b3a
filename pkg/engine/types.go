package engine

import (
	"context"
	"fmt"
)

// Phase name constants.
const (
	// RootPhaseName is the name of the implicit root phase. It never appears
	// in the dotted names of its descendants.
	RootPhaseName = "default"

	// PhaseNameDelimiter joins phase and target names into unit names.
	PhaseNameDelimiter = ":"
)

// Git refs that move over time. Installing from them works but is flagged.
var unsafeRefs = map[string]bool{
	"master": true,
	"main":   true,
}

// IsUnsafeRef returns true if the ref is a moving branch name.
func IsUnsafeRef(ref string) bool {
	return unsafeRefs[ref]
}

// Predicate decides a yes/no question about a target.
type Predicate func(t Target) (bool, error)

// MessageFunc returns a human readable reason about a target.
type MessageFunc func(t Target) string

// Hook runs after a successful install.
type Hook func(ctx context.Context, t Target) error

// GitPackageSpec describes a target installed from a git repository.
type GitPackageSpec struct {
	// RepoURL is the repository to clone.
	RepoURL string `json:"repoUrl" yaml:"repoUrl"`

	// Ref is the commit, tag or branch to check out. Required.
	Ref string `json:"ref" yaml:"ref"`

	// CloneDir defaults to <gitCloneDir>/<target name>.
	CloneDir string `json:"cloneDir,omitempty" yaml:"cloneDir,omitempty"`

	// BinDir defaults to the configured binary install directory.
	BinDir string `json:"binDir,omitempty" yaml:"binDir,omitempty"`

	// BinSymlink is a file, relative to CloneDir, exposed in BinDir.
	BinSymlink string `json:"binSymlink,omitempty" yaml:"binSymlink,omitempty"`
}

// TargetOptions holds every option a target definition or a phase may set.
// Nil fields are unset and do not override inherited values during Merge.
type TargetOptions struct {
	// SkipAction skips the action entirely when it reports true.
	SkipAction Predicate

	// SkipActionMessage explains why the action was skipped.
	SkipActionMessage MessageFunc

	// ForceAction installs without consulting the Oracle when it reports true.
	ForceAction Predicate

	// ActionCommands are explicit shell commands for installs and jobs.
	ActionCommands []string

	// GitPackage installs the target from a git repository.
	GitPackage *GitPackageSpec

	// TestFn is a custom installed-predicate.
	TestFn Predicate

	// VerifyCommandExists checks the command on PATH instead of the package database.
	VerifyCommandExists *bool

	// IsGUI selects the GUI (cask) variant of the macOS package manager.
	IsGUI *bool

	// Command overrides the command name probed on PATH.
	Command string

	// PostInstall runs after a successful install.
	PostInstall Hook
}

// Merge returns a copy of o with every field set in over taking precedence.
func (o TargetOptions) Merge(over TargetOptions) TargetOptions {
	merged := o
	if over.SkipAction != nil {
		merged.SkipAction = over.SkipAction
	}
	if over.SkipActionMessage != nil {
		merged.SkipActionMessage = over.SkipActionMessage
	}
	if over.ForceAction != nil {
		merged.ForceAction = over.ForceAction
	}
	if over.ActionCommands != nil {
		merged.ActionCommands = append([]string(nil), over.ActionCommands...)
	}
	if over.GitPackage != nil {
		gp := *over.GitPackage
		merged.GitPackage = &gp
	}
	if over.TestFn != nil {
		merged.TestFn = over.TestFn
	}
	if over.VerifyCommandExists != nil {
		merged.VerifyCommandExists = over.VerifyCommandExists
	}
	if over.IsGUI != nil {
		merged.IsGUI = over.IsGUI
	}
	if over.Command != "" {
		merged.Command = over.Command
	}
	if over.PostInstall != nil {
		merged.PostInstall = over.PostInstall
	}
	return merged
}

// GUI reports whether the GUI variant was requested.
func (o TargetOptions) GUI() bool {
	return o.IsGUI != nil && *o.IsGUI
}

// ShouldVerifyCommand reports whether verifyCommandExists was explicitly enabled.
func (o TargetOptions) ShouldVerifyCommand() bool {
	return o.VerifyCommandExists != nil && *o.VerifyCommandExists
}

// Bool returns a pointer to b, for the optional boolean options.
func Bool(b bool) *bool {
	return &b
}

// TargetDef is a target definition: Named or NamedWithOptions.
type TargetDef interface {
	targetDef()
}

// Named is a target definition consisting of a bare name.
type Named string

func (Named) targetDef() {}

// NamedWithOptions is a target definition with its own options.
type NamedWithOptions struct {
	Name    string
	Options TargetOptions
}

func (NamedWithOptions) targetDef() {}

// WithOptions is shorthand for a NamedWithOptions definition.
func WithOptions(name string, opts TargetOptions) TargetDef {
	return NamedWithOptions{Name: name, Options: opts}
}

// Target is one resolved unit of work. Targets are rebuilt on every walk of
// the tree and never persisted.
type Target struct {
	// Name identifies the target and, by default, its package and command.
	Name string

	// Action is always the action of the enclosing phase.
	Action ActionKind

	// Options are the inherited options merged with the definition's own.
	Options TargetOptions
}

// CommandName returns the command probed on PATH for this target.
func (t Target) CommandName() string {
	if t.Options.Command != "" {
		return t.Options.Command
	}
	return t.Name
}

// String implements fmt.Stringer.
func (t Target) String() string {
	return fmt.Sprintf("%s(%s)", t.Name, t.Action)
}

// Phase is a named group of targets, or of child phases when Action is
// ActionRunPhases.
type Phase struct {
	// Name is the phase's own name, without its parent's prefix.
	Name string

	// Action is applied to every target of the phase.
	Action ActionKind

	// Targets are the leaf definitions for every action except ActionRunPhases.
	Targets []TargetDef

	// Phases are the children of an ActionRunPhases phase.
	Phases []Phase

	// Parallel runs the children concurrently instead of in order.
	Parallel bool

	// TargetOpts are inherited by every target of the phase.
	TargetOpts TargetOptions
}

// Root wraps top-level phases in the implicit root phase.
func Root(children []Phase, parallel bool) Phase {
	return Phase{
		Name:     RootPhaseName,
		Action:   ActionRunPhases,
		Phases:   children,
		Parallel: parallel,
	}
}

// childCount returns the number of children relevant to the phase's action.
func (p Phase) childCount() int {
	if p.Action == ActionRunPhases {
		return len(p.Phases)
	}
	return len(p.Targets)
}

// JoinName composes a unit name from a phase prefix and a name. The root
// phase is never used as a prefix.
func JoinName(prefix, name string) string {
	if prefix == "" || prefix == RootPhaseName {
		return name
	}
	return prefix + PhaseNameDelimiter + name
}
