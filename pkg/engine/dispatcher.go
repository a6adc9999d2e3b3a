package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Checker reports whether a target is already installed.
type Checker interface {
	IsInstalled(ctx context.Context, t Target) (bool, error)
}

// Dispatcher maps a target's action to its handler after applying the
// skip, policy and force rules.
type Dispatcher struct {
	oracle   Checker
	commands Installer
	git      Installer
	jobs     Shell
	gate     Gate
	logger   zerolog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithGate evaluates policy before every dispatch.
func WithGate(g Gate) DispatcherOption {
	return func(d *Dispatcher) {
		d.gate = g
	}
}

// NewDispatcher creates a dispatcher. jobs runs the commands of
// execute-jobs targets.
func NewDispatcher(oracle Checker, commands, git Installer, jobs Shell, logger zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		oracle:   oracle,
		commands: commands,
		git:      git,
		jobs:     jobs,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewDefaultDispatcher wires the Oracle and both installers from deps.
func NewDefaultDispatcher(deps Deps, logger zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	return NewDispatcher(
		NewOracle(deps, logger),
		NewCommandInstaller(deps, logger),
		NewGitInstaller(deps, logger),
		deps.Shell,
		logger,
		opts...,
	)
}

// Dispatch runs the target's action and returns its terminal outcome.
// A non-nil error always comes with OutcomeFailed.
func (d *Dispatcher) Dispatch(ctx context.Context, t Target) (Outcome, error) {
	log := d.logger.With().Str("target", t.Name).Str("action", string(t.Action)).Logger()

	dec, err := decide(ctx, t, d.oracle, d.gate)
	for _, w := range dec.Warnings {
		log.Warn().Str("policy", "warning").Msg(w)
	}
	if err != nil {
		return OutcomeFailed, err
	}

	switch dec.Operation {
	case OperationSkip:
		msg := fmt.Sprintf("Skipping action '%s' for target '%s'", t.Action, t.Name)
		if dec.Reason != "" {
			msg += ": " + dec.Reason
		}
		log.Warn().Msg(msg)
		return OutcomeSkipped, nil
	case OperationNoop:
		log.Info().Msgf("Target package '%s' is already installed. Moving on...", t.Name)
		return OutcomeSatisfied, nil
	case OperationVerify:
		log.Info().Msgf("Target package '%s' is installed. Moving on...", t.Name)
		return OutcomeSatisfied, nil
	case OperationForceInstall:
		log.Info().Msgf("Forcing install of '%s'...", t.Name)
		return d.install(ctx, t, dec.Args)
	case OperationInstall:
		log.Info().Msgf("Target package '%s' is not installed. Proceeding with installation...", t.Name)
		return d.install(ctx, t, dec.Args)
	case OperationExecute:
		return d.execute(ctx, log, t, dec.Args.(JobArgs).Commands)
	default:
		return OutcomeFailed, NewUnsupportedActionError(t)
	}
}

func (d *Dispatcher) install(ctx context.Context, t Target, args ActionArgs) (Outcome, error) {
	installer := d.commands
	if _, ok := args.(GitInstallArgs); ok {
		installer = d.git
	}
	if err := installer.Install(ctx, t); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeInstalled, nil
}

func (d *Dispatcher) execute(ctx context.Context, log zerolog.Logger, t Target, commands []string) (Outcome, error) {
	log.Info().Msgf("Executing job for '%s': %s", t.Name, quoteCommands(commands))
	if err := runCommands(ctx, d.jobs, log, t, commands); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeExecuted, nil
}
