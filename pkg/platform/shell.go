// Package platform implements the engine's boundary collaborators against
// the local operating system.
package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/akinizer/akinizer/pkg/engine"
)

// Shell runs commands through /bin/sh. Output is captured and also streamed
// to the configured writers so long installs stay visible.
type Shell struct {
	shell  string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	env    []string
	logger zerolog.Logger
}

// ShellOption configures a Shell.
type ShellOption func(*Shell)

// WithStreams sets where command output is mirrored. Nil writers discard.
func WithStreams(stdin io.Reader, stdout, stderr io.Writer) ShellOption {
	return func(s *Shell) {
		s.stdin = stdin
		s.stdout = stdout
		s.stderr = stderr
	}
}

// WithEnv appends variables to the inherited environment.
func WithEnv(env ...string) ShellOption {
	return func(s *Shell) {
		s.env = append(s.env, env...)
	}
}

// WithShellPath overrides the interpreter (default /bin/sh).
func WithShellPath(path string) ShellOption {
	return func(s *Shell) {
		s.shell = path
	}
}

// NewShell creates a shell that mirrors output to the process streams.
func NewShell(logger zerolog.Logger, opts ...ShellOption) *Shell {
	s := &Shell{
		shell:  "/bin/sh",
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: logger.With().Str("component", "shell").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exec implements engine.Shell. A non-zero exit status is reported in the
// result; only a command that could not be started is an error.
func (s *Shell) Exec(ctx context.Context, command string) (engine.ExecResult, error) {
	if command == "" {
		return engine.ExecResult{}, fmt.Errorf("command is required")
	}

	cmd := exec.CommandContext(ctx, s.shell, "-c", command)
	if len(s.env) > 0 {
		cmd.Env = append(os.Environ(), s.env...)
	}

	var stdout bytes.Buffer
	cmd.Stdin = s.stdin
	cmd.Stdout = &stdout
	if s.stdout != nil {
		cmd.Stdout = io.MultiWriter(&stdout, s.stdout)
	}
	cmd.Stderr = s.stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := engine.ExecResult{Stdout: stdout.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return engine.ExecResult{}, fmt.Errorf("failed to execute command: %w", err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	s.logger.Debug().
		Str("command", command).
		Int("exit_code", result.ExitCode).
		Dur("duration", elapsed).
		Msg("Command finished")

	return result, nil
}
