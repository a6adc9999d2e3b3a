package engine

import (
	"fmt"
	"strings"
)

// ResolveTarget normalizes a definition into a Target. Options merge in
// order inherited, then the definition's own; the action is always the one
// passed in.
func ResolveTarget(def TargetDef, action ActionKind, inherited TargetOptions) (Target, error) {
	switch d := def.(type) {
	case Named:
		return newTarget(string(d), action, inherited)
	case NamedWithOptions:
		return newTarget(d.Name, action, inherited.Merge(d.Options))
	default:
		return Target{}, NewDefinitionError(
			fmt.Sprintf("malformed target definition: %#v", def), nil).
			WithDetail("definition", fmt.Sprintf("%#v", def))
	}
}

func newTarget(name string, action ActionKind, opts TargetOptions) (Target, error) {
	if name == "" {
		return Target{}, NewDefinitionError("a target name is required", nil).WithAction(action)
	}
	if strings.ContainsRune(name, '\'') {
		return Target{}, NewDefinitionError(
			fmt.Sprintf("target name %q must not contain a single quote", name), nil).
			WithTarget(name).WithAction(action)
	}
	return Target{
		Name:    name,
		Action:  action,
		Options: opts,
	}, nil
}

// ActionArgs is the action-specific view of a target's merged options.
type ActionArgs interface {
	Kind() ActionKind
}

// InstallArgs installs through explicit commands or the package manager.
type InstallArgs struct {
	TargetOptions
}

// Kind implements ActionArgs.
func (InstallArgs) Kind() ActionKind { return ActionInstall }

// GitInstallArgs installs from a git repository.
type GitInstallArgs struct {
	TargetOptions
	Git GitPackageSpec
}

// Kind implements ActionArgs.
func (GitInstallArgs) Kind() ActionKind { return ActionInstall }

// VerifyArgs checks a target without installing it.
type VerifyArgs struct {
	TargetOptions
}

// Kind implements ActionArgs.
func (VerifyArgs) Kind() ActionKind { return ActionVerify }

// JobArgs runs commands unconditionally.
type JobArgs struct {
	TargetOptions
	Commands []string
}

// Kind implements ActionArgs.
func (JobArgs) Kind() ActionKind { return ActionExecuteJobs }

// Args tags the merged options with the target's action.
func (t Target) Args() (ActionArgs, error) {
	switch t.Action {
	case ActionInstall:
		if t.Options.GitPackage != nil {
			return GitInstallArgs{TargetOptions: t.Options, Git: *t.Options.GitPackage}, nil
		}
		return InstallArgs{TargetOptions: t.Options}, nil
	case ActionVerify:
		return VerifyArgs{TargetOptions: t.Options}, nil
	case ActionExecuteJobs:
		return JobArgs{TargetOptions: t.Options, Commands: t.Options.ActionCommands}, nil
	default:
		return nil, NewUnsupportedActionError(t)
	}
}
