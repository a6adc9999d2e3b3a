package config

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/akinizer/akinizer/pkg/engine"
)

// Compiler turns a Catalog into an engine phase tree.
type Compiler struct {
	env    *Env
	shell  engine.Shell
	logger zerolog.Logger
}

// NewCompiler creates a catalog compiler. The shell runs data-form
// postInstall commands.
func NewCompiler(env *Env, shell engine.Shell, logger zerolog.Logger) *Compiler {
	return &Compiler{
		env:    env,
		shell:  shell,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Compile evaluates phase conditions and converts every phase and option.
// The result is wrapped in the implicit root phase.
func (c *Compiler) Compile(cat *Catalog) (engine.Phase, error) {
	phases, err := c.compilePhases(cat.Phases, "")
	if err != nil {
		return engine.Phase{}, err
	}
	return engine.Root(phases, cat.Parallel), nil
}

func (c *Compiler) compilePhases(specs []PhaseSpec, prefix string) ([]engine.Phase, error) {
	phases := make([]engine.Phase, 0, len(specs))
	for _, spec := range specs {
		name := engine.JoinName(prefix, spec.Name)

		keep, err := c.when(spec, name)
		if err != nil {
			return nil, err
		}
		if !keep {
			c.logger.Debug().Str("phase", name).Str("when", spec.When).Msg("Phase condition is false, dropping phase")
			continue
		}

		p, err := c.compilePhase(spec, name)
		if err != nil {
			return nil, err
		}
		phases = append(phases, p)
	}
	return phases, nil
}

func (c *Compiler) when(spec PhaseSpec, name string) (bool, error) {
	if spec.When == "" {
		return true, nil
	}
	expr, err := c.env.Compile(spec.When)
	if err != nil {
		return false, engine.NewDefinitionError(fmt.Sprintf("phase '%s' has an invalid 'when' condition", name), err)
	}
	ok, err := expr.Eval(nil)
	if err != nil {
		return false, engine.NewDefinitionError(fmt.Sprintf("phase '%s' 'when' condition failed", name), err)
	}
	return ok, nil
}

func (c *Compiler) compilePhase(spec PhaseSpec, name string) (engine.Phase, error) {
	opts, err := c.compileOptions(spec.TargetOpts, name)
	if err != nil {
		return engine.Phase{}, err
	}

	p := engine.Phase{
		Name:       spec.Name,
		Action:     engine.ActionKind(spec.Action),
		Parallel:   spec.Parallel,
		TargetOpts: opts,
	}

	for _, entry := range spec.Targets {
		def, err := c.compileEntry(entry, name)
		if err != nil {
			return engine.Phase{}, err
		}
		p.Targets = append(p.Targets, def)
	}

	if len(spec.Phases) > 0 {
		children, err := c.compilePhases(spec.Phases, name)
		if err != nil {
			return engine.Phase{}, err
		}
		p.Phases = children
	}
	return p, nil
}

func (c *Compiler) compileEntry(entry TargetEntry, phase string) (engine.TargetDef, error) {
	if entry.Name == "" {
		// null entries never reach TargetEntry.UnmarshalYAML
		return nil, engine.NewDefinitionError(
			fmt.Sprintf("malformed target definition in phase '%s': null", phase), nil)
	}
	if entry.Options == nil {
		return engine.Named(entry.Name), nil
	}
	opts, err := c.compileOptions(*entry.Options, engine.JoinName(phase, entry.Name))
	if err != nil {
		return nil, err
	}
	return engine.WithOptions(entry.Name, opts), nil
}

// compileOptions converts data-form options. owner names the phase or
// target in error messages.
func (c *Compiler) compileOptions(spec OptionsSpec, owner string) (engine.TargetOptions, error) {
	opts := engine.TargetOptions{
		ActionCommands:      spec.ActionCommands,
		GitPackage:          spec.GitPackage,
		VerifyCommandExists: spec.VerifyCommandExists,
		IsGUI:               spec.IsGUI,
		Command:             spec.Command,
	}

	predicates := []struct {
		option string
		src    string
		dst    *engine.Predicate
	}{
		{"skipAction", spec.SkipAction, &opts.SkipAction},
		{"forceAction", spec.ForceAction, &opts.ForceAction},
		{"testFn", spec.TestFn, &opts.TestFn},
	}
	for _, p := range predicates {
		if p.src == "" {
			continue
		}
		expr, err := c.env.Compile(p.src)
		if err != nil {
			return engine.TargetOptions{}, engine.NewDefinitionError(
				fmt.Sprintf("option '%s' of '%s' is invalid", p.option, owner), err)
		}
		*p.dst = expr.Predicate()
	}

	if msg := spec.SkipActionMessage; msg != "" {
		opts.SkipActionMessage = func(engine.Target) string { return msg }
	}

	if len(spec.PostInstall) > 0 {
		opts.PostInstall = c.postInstall(append([]string(nil), spec.PostInstall...))
	}
	return opts, nil
}

// postInstall runs commands in order and stops at the first failure.
func (c *Compiler) postInstall(commands []string) engine.Hook {
	return func(ctx context.Context, t engine.Target) error {
		for _, command := range commands {
			c.logger.Debug().Str("target", t.Name).Str("command", command).Msg("Running post-install command")
			res, err := c.shell.Exec(ctx, command)
			if err != nil {
				return err
			}
			if res.ExitCode != 0 {
				return fmt.Errorf("post-install command '%s' exited with code %d", command, res.ExitCode)
			}
		}
		return nil
	}
}
