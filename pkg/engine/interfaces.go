package engine

import (
	"context"
	"time"
)

// ExecResult is the outcome of one shell command.
type ExecResult struct {
	// ExitCode is the command's exit status.
	ExitCode int `json:"exit_code"`

	// Stdout is the captured standard output.
	Stdout string `json:"stdout,omitempty"`
}

// Shell executes shell commands.
type Shell interface {
	// Exec runs one command. A non-zero exit code is not an error; an error
	// means the command could not be run at all.
	Exec(ctx context.Context, command string) (ExecResult, error)
}

// GitClient clones repositories.
type GitClient interface {
	// Clone clones repoURL into destDir.
	Clone(ctx context.Context, repoURL, destDir string) error

	// Checkout checks out ref in the repository at dir.
	Checkout(ctx context.Context, dir, ref string) error
}

// FileSystem is the subset of filesystem operations the installers need.
// Exists and IsDir follow symlinks; IsSymlink does not.
type FileSystem interface {
	Exists(path string) bool
	IsDir(path string) bool
	IsSymlink(path string) bool
	MkdirAll(path string) error
	Symlink(oldname, newname string) error
	RemoveAll(path string) error
	// Remove deletes a file or an empty directory.
	Remove(path string) error
}

// CommandProber checks whether a command resolves on PATH.
type CommandProber interface {
	Exists(command string) bool
}

// Platform identifies the host variant. At most one of the methods returns true.
type Platform interface {
	IsLinux() bool
	IsMac() bool
}

// Paths are the configured default install locations.
type Paths struct {
	// BinInstallDir receives binary symlinks of git packages.
	BinInstallDir string `json:"binInstallDir" yaml:"binInstallDir"`

	// GitCloneDir is the parent of every default clone directory.
	GitCloneDir string `json:"gitCloneDir" yaml:"gitCloneDir"`
}

// Unit is a named executable unit of the task graph.
type Unit interface {
	Name() string
	Run(ctx context.Context) error
}

// Runtime composes units. It is supplied by the host application.
type Runtime interface {
	// Unit wraps fn in a named leaf unit.
	Unit(name string, fn func(ctx context.Context) error) Unit

	// Parallel runs children concurrently; the group fails if any child fails.
	Parallel(name string, children []Unit) Unit

	// Series runs children in order and stops at the first failure.
	Series(name string, children []Unit) Unit

	// Register exposes a unit for individual invocation by name.
	Register(u Unit) error
}

// Verdict is a policy decision for one target.
type Verdict struct {
	// Allowed is false when at least one blocking rule matched.
	Allowed bool `json:"allowed"`

	// Reasons explains blocking rules.
	Reasons []string `json:"reasons,omitempty"`

	// Warnings explains non-blocking rules.
	Warnings []string `json:"warnings,omitempty"`
}

// Gate evaluates policy for a target before it is dispatched.
type Gate interface {
	Evaluate(ctx context.Context, t Target) (*Verdict, error)
}

// Observer is notified after every leaf unit finishes.
type Observer interface {
	UnitFinished(ctx context.Context, report Report)
}

// Report describes one finished leaf unit.
type Report struct {
	// Unit is the unit's full dotted name.
	Unit string `json:"unit"`

	// Target is the resolved target.
	Target Target `json:"-"`

	// Outcome is the terminal state.
	Outcome Outcome `json:"outcome"`

	// Err is the failure, if any.
	Err error `json:"-"`

	// StartedAt is when dispatch began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long dispatch took.
	Duration time.Duration `json:"duration"`
}
