package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an engine failure. No kind is retried: every engine
// error is fatal to the target (or the build) that raised it.
type ErrorKind string

const (
	// KindDefinition indicates a malformed phase or target definition.
	// Raised at build time, before any side effect.
	KindDefinition ErrorKind = "definition"

	// KindUnsupportedAction indicates a target action without a handler.
	KindUnsupportedAction ErrorKind = "unsupported_action"

	// KindVerificationFailed indicates a verified target is not installed.
	KindVerificationFailed ErrorKind = "verification_failed"

	// KindInstallCommandFailed indicates a shell command exited non-zero.
	KindInstallCommandFailed ErrorKind = "install_command_failed"

	// KindGitClone indicates cloning or checking out a repository failed.
	KindGitClone ErrorKind = "git_clone"

	// KindFilesystemCollision indicates a path is occupied by the wrong type of file.
	KindFilesystemCollision ErrorKind = "filesystem_collision"

	// KindUnrecognizedPlatform indicates neither the Linux nor the macOS variant applies.
	KindUnrecognizedPlatform ErrorKind = "unrecognized_platform"

	// KindInstallFailed covers the remaining install preconditions and hooks.
	KindInstallFailed ErrorKind = "install_failed"

	// KindPolicyDenied indicates a policy rejected the target.
	KindPolicyDenied ErrorKind = "policy_denied"
)

// EngineError represents a classified error with target context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Target is the target name that caused the error, if applicable.
	Target string `json:"target,omitempty"`

	// Action is the action being performed when the error occurred.
	Action ActionKind `json:"action,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Target != "" && e.Action != "" {
		msg = fmt.Sprintf("%s (target=%s, action=%s)", msg, e.Target, e.Action)
	} else if e.Target != "" {
		msg = fmt.Sprintf("%s (target=%s)", msg, e.Target)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is. Two engine errors
// match when their kinds match.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is.
var (
	ErrDefinition           = &EngineError{Kind: KindDefinition}
	ErrUnsupportedAction    = &EngineError{Kind: KindUnsupportedAction}
	ErrVerificationFailed   = &EngineError{Kind: KindVerificationFailed}
	ErrInstallCommandFailed = &EngineError{Kind: KindInstallCommandFailed}
	ErrGitClone             = &EngineError{Kind: KindGitClone}
	ErrFilesystemCollision  = &EngineError{Kind: KindFilesystemCollision}
	ErrUnrecognizedPlatform = &EngineError{Kind: KindUnrecognizedPlatform}
	ErrInstallFailed        = &EngineError{Kind: KindInstallFailed}
	ErrPolicyDenied         = &EngineError{Kind: KindPolicyDenied}
)

func newError(kind ErrorKind, message string, err error) *EngineError {
	return &EngineError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NewDefinitionError creates a new definition error.
func NewDefinitionError(message string, err error) *EngineError {
	return newError(KindDefinition, message, err)
}

// NewUnsupportedActionError creates an error naming both the action and the target.
func NewUnsupportedActionError(t Target) *EngineError {
	return newError(KindUnsupportedAction,
		fmt.Sprintf("action '%s' for target '%s' is not supported", t.Action, t.Name), nil).
		WithTarget(t.Name).WithAction(t.Action)
}

// NewVerificationFailedError creates an error for a target that is not installed.
func NewVerificationFailedError(t Target) *EngineError {
	return newError(KindVerificationFailed,
		fmt.Sprintf("target package '%s' is not installed", t.Name), nil).
		WithTarget(t.Name).WithAction(t.Action)
}

// NewInstallCommandFailedError creates an error carrying the failing command
// and the full command set.
func NewInstallCommandFailedError(command string, commands []string, err error) *EngineError {
	msg := fmt.Sprintf("install command '%s' failed", command)
	if len(commands) > 1 {
		msg = fmt.Sprintf("%s. Full command set: %q", msg, commands)
	}
	return newError(KindInstallCommandFailed, msg, err).
		WithDetail("command", command).
		WithDetail("commands", append([]string(nil), commands...))
}

// NewGitCloneError creates an error wrapping a git failure.
func NewGitCloneError(message string, err error) *EngineError {
	return newError(KindGitClone, message, err)
}

// NewFilesystemCollisionError creates an error for a path occupied by the wrong file type.
func NewFilesystemCollisionError(message, path string) *EngineError {
	return newError(KindFilesystemCollision, message, nil).WithDetail("path", path)
}

// NewUnrecognizedPlatformError creates a platform configuration error.
func NewUnrecognizedPlatformError(message string) *EngineError {
	return newError(KindUnrecognizedPlatform, message, nil)
}

// NewInstallFailedError creates a generic install failure.
func NewInstallFailedError(message string, err error) *EngineError {
	return newError(KindInstallFailed, message, err)
}

// NewPolicyDeniedError creates an error for a target rejected by policy.
func NewPolicyDeniedError(message string) *EngineError {
	return newError(KindPolicyDenied, message, nil)
}

// WithTarget adds target context to an error.
func (e *EngineError) WithTarget(name string) *EngineError {
	e.Target = name
	return e
}

// WithAction adds action context to an error.
func (e *EngineError) WithAction(action ActionKind) *EngineError {
	e.Action = action
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// KindOf returns the kind of the first engine error in err's chain, or an
// empty kind when there is none.
func KindOf(err error) ErrorKind {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsDefinition returns true if the error is a definition error.
func IsDefinition(err error) bool {
	return errors.Is(err, ErrDefinition)
}
