package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/akinizer/akinizer/pkg/engine"
)

var (
	// ErrDuplicateUnit is returned when a unit name is registered twice.
	ErrDuplicateUnit = errors.New("duplicate unit name")

	// ErrUnknownUnit is returned when running a name that was never registered.
	ErrUnknownUnit = errors.New("unknown unit")
)

// Kind describes how a unit runs.
type Kind string

const (
	KindTask     Kind = "task"
	KindParallel Kind = "parallel"
	KindSeries   Kind = "series"
)

// RunningGauge tracks the number of leaf tasks in flight.
type RunningGauge interface {
	Inc()
	Dec()
}

// Runner is a host task runtime: it composes units into parallel and series
// groups and keeps a registry of named units for individual invocation.
type Runner struct {
	mu    sync.RWMutex
	units map[string]*Task
	order []string

	maxParallel int
	tracer      trace.Tracer
	running     RunningGauge
	logger      zerolog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxParallel bounds the number of concurrently running children of each
// parallel group. Zero or less means unbounded.
func WithMaxParallel(n int) Option {
	return func(r *Runner) {
		r.maxParallel = n
	}
}

// WithTracer records a span for every unit run.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithRunningGauge reports leaf tasks in flight.
func WithRunningGauge(g RunningGauge) Option {
	return func(r *Runner) {
		r.running = g
	}
}

// NewRunner creates an empty runner.
func NewRunner(logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		units:  make(map[string]*Task),
		tracer: otel.Tracer("github.com/akinizer/akinizer/pkg/tasks"),
		logger: logger.With().Str("component", "tasks").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Task is a unit created by a Runner.
type Task struct {
	name     string
	kind     Kind
	fn       func(ctx context.Context) error
	children []engine.Unit
	runner   *Runner
}

// Name implements engine.Unit.
func (t *Task) Name() string { return t.name }

// Kind returns how the task runs.
func (t *Task) Kind() Kind { return t.kind }

// Children returns the units of a group; nil for a leaf task.
func (t *Task) Children() []engine.Unit { return t.children }

// Run implements engine.Unit.
func (t *Task) Run(ctx context.Context) error {
	r := t.runner
	ctx, span := r.tracer.Start(ctx, "unit.run",
		trace.WithAttributes(
			attribute.String("unit.name", t.name),
			attribute.String("unit.kind", string(t.kind)),
		))
	defer span.End()

	log := r.logger.With().Str("unit", t.name).Logger()
	log.Info().Msgf("Starting '%s'...", t.name)
	start := time.Now()

	var err error
	switch t.kind {
	case KindParallel:
		err = r.runParallel(ctx, t.children)
	case KindSeries:
		err = r.runSeries(ctx, t.children)
	default:
		if r.running != nil {
			r.running.Inc()
			defer r.running.Dec()
		}
		err = t.fn(ctx)
	}

	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Dur("duration", elapsed).Msgf("'%s' errored after %s", t.name, elapsed.Round(time.Millisecond))
		return err
	}

	span.SetStatus(codes.Ok, "")
	log.Info().Dur("duration", elapsed).Msgf("Finished '%s' after %s", t.name, elapsed.Round(time.Millisecond))
	return nil
}

// Unit implements engine.Runtime.
func (r *Runner) Unit(name string, fn func(ctx context.Context) error) engine.Unit {
	return &Task{name: name, kind: KindTask, fn: fn, runner: r}
}

// Parallel implements engine.Runtime. The first failing child cancels the
// context of its siblings and becomes the group's error.
func (r *Runner) Parallel(name string, children []engine.Unit) engine.Unit {
	return &Task{name: name, kind: KindParallel, children: children, runner: r}
}

// Series implements engine.Runtime.
func (r *Runner) Series(name string, children []engine.Unit) engine.Unit {
	return &Task{name: name, kind: KindSeries, children: children, runner: r}
}

func (r *Runner) runParallel(ctx context.Context, children []engine.Unit) error {
	g, gctx := errgroup.WithContext(ctx)
	if r.maxParallel > 0 {
		g.SetLimit(r.maxParallel)
	}
	for _, child := range children {
		g.Go(func() error {
			return child.Run(gctx)
		})
	}
	return g.Wait()
}

func (r *Runner) runSeries(ctx context.Context, children []engine.Unit) error {
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := child.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Register implements engine.Runtime.
func (r *Runner) Register(u engine.Unit) error {
	t, ok := u.(*Task)
	if !ok {
		t = &Task{name: u.Name(), kind: KindTask, fn: u.Run, runner: r}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.units[t.name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateUnit, t.name)
	}
	r.units[t.name] = t
	r.order = append(r.order, t.name)
	return nil
}

// Lookup returns a registered unit.
func (r *Runner) Lookup(name string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.units[name]
	return t, ok
}

// Names returns the registered unit names in registration order.
func (r *Runner) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Run runs the named units one after another, stopping at the first failure.
// Every name is checked before anything runs.
func (r *Runner) Run(ctx context.Context, names ...string) error {
	units := make([]engine.Unit, 0, len(names))
	for _, name := range names {
		t, ok := r.Lookup(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownUnit, name)
		}
		units = append(units, t)
	}
	return r.runSeries(ctx, units)
}
