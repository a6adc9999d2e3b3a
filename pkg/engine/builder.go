package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// TargetDispatcher runs one resolved target to a terminal outcome.
type TargetDispatcher interface {
	Dispatch(ctx context.Context, t Target) (Outcome, error)
}

// Builder turns a phase tree into named units composed by a Runtime.
type Builder struct {
	runtime    Runtime
	dispatcher TargetDispatcher
	observers  []Observer
	logger     zerolog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithObserver notifies o after every leaf unit finishes.
func WithObserver(o Observer) BuilderOption {
	return func(b *Builder) {
		if o != nil {
			b.observers = append(b.observers, o)
		}
	}
}

// NewBuilder creates a new task-graph builder.
func NewBuilder(runtime Runtime, dispatcher TargetDispatcher, logger zerolog.Logger, opts ...BuilderOption) *Builder {
	b := &Builder{
		runtime:    runtime,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "builder").Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build validates the tree and returns the unit of the root phase. Every
// leaf and group unit is registered with the runtime under its dotted name.
// Definition errors are returned before any unit runs.
func (b *Builder) Build(root Phase) (Unit, error) {
	return b.build(root, "")
}

func (b *Builder) build(p Phase, prefix string) (Unit, error) {
	name := JoinName(prefix, p.Name)
	if err := validatePhase(p, name); err != nil {
		return nil, err
	}

	var children []Unit
	if p.Action == ActionRunPhases {
		children = make([]Unit, 0, len(p.Phases))
		for _, child := range p.Phases {
			u, err := b.build(child, name)
			if err != nil {
				return nil, err
			}
			children = append(children, u)
		}
	} else {
		children = make([]Unit, 0, len(p.Targets))
		for _, def := range p.Targets {
			t, err := resolveLeaf(def, p)
			if err != nil {
				return nil, err
			}
			unitName := JoinName(name, t.Name)
			u := b.runtime.Unit(unitName, b.leaf(unitName, t))
			if err := b.register(u); err != nil {
				return nil, err
			}
			children = append(children, u)
		}
	}

	var group Unit
	if p.Parallel {
		group = b.runtime.Parallel(name, children)
	} else {
		group = b.runtime.Series(name, children)
	}
	if err := b.register(group); err != nil {
		return nil, err
	}

	b.logger.Debug().
		Str("unit", name).
		Bool("parallel", p.Parallel).
		Int("children", len(children)).
		Msg("Built phase")

	return group, nil
}

// leaf returns the body of a target unit: dispatch, then notify observers.
func (b *Builder) leaf(unit string, t Target) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		start := time.Now()
		outcome, err := b.dispatcher.Dispatch(ctx, t)
		if err != nil {
			outcome = OutcomeFailed
		}

		report := Report{
			Unit:      unit,
			Target:    t,
			Outcome:   outcome,
			Err:       err,
			StartedAt: start,
			Duration:  time.Since(start),
		}
		for _, o := range b.observers {
			o.UnitFinished(ctx, report)
		}
		return err
	}
}

func (b *Builder) register(u Unit) error {
	if err := b.runtime.Register(u); err != nil {
		return NewDefinitionError(fmt.Sprintf("cannot register unit '%s'", u.Name()), err).
			WithDetail("unit", u.Name())
	}
	return nil
}

// Walk resolves every target of the tree in definition order and calls fn
// with its dotted unit name. It applies the same validation as Build and
// performs no side effects of its own.
func Walk(root Phase, fn func(unit string, t Target) error) error {
	return walk(root, "", fn)
}

func walk(p Phase, prefix string, fn func(unit string, t Target) error) error {
	name := JoinName(prefix, p.Name)
	if err := validatePhase(p, name); err != nil {
		return err
	}

	if p.Action == ActionRunPhases {
		for _, child := range p.Phases {
			if err := walk(child, name, fn); err != nil {
				return err
			}
		}
		return nil
	}

	for _, def := range p.Targets {
		t, err := resolveLeaf(def, p)
		if err != nil {
			return err
		}
		if err := fn(JoinName(name, t.Name), t); err != nil {
			return err
		}
	}
	return nil
}

// validatePhase checks the structural invariants of one phase.
func validatePhase(p Phase, name string) error {
	if p.Name == "" {
		return NewDefinitionError("a phase name is required", nil).WithDetail("parent", name)
	}
	if p.childCount() == 0 {
		return NewDefinitionError(fmt.Sprintf("phase '%s' has no targets", name), nil).
			WithAction(p.Action).WithDetail("phase", name)
	}
	if p.Action == ActionRunPhases && len(p.Targets) > 0 {
		return NewDefinitionError(
			fmt.Sprintf("phase '%s' runs phases but also defines %d target(s)", name, len(p.Targets)), nil).
			WithAction(p.Action).WithDetail("phase", name)
	}
	if p.Action != ActionRunPhases && len(p.Phases) > 0 {
		return NewDefinitionError(
			fmt.Sprintf("phase '%s' with action '%s' cannot contain child phases", name, p.Action), nil).
			WithAction(p.Action).WithDetail("phase", name)
	}
	return nil
}

// resolveLeaf resolves a definition of a leaf phase and applies the
// per-action checks that do not need any side effect.
func resolveLeaf(def TargetDef, p Phase) (Target, error) {
	t, err := ResolveTarget(def, p.Action, p.TargetOpts)
	if err != nil {
		return Target{}, err
	}
	if t.Action == ActionExecuteJobs && len(t.Options.ActionCommands) == 0 {
		return Target{}, NewDefinitionError(
			fmt.Sprintf("execute failed for %s: target option 'actionCommands' is required", t.Name), nil).
			WithTarget(t.Name).WithAction(t.Action)
	}
	return t, nil
}
