package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/akinizer/akinizer/pkg/engine"
)

// Env evaluates the Starlark expressions of a catalog. Expressions see the
// host through a fixed set of builtins and never touch it otherwise.
type Env struct {
	platform engine.Platform
	prober   engine.CommandProber
	fs       engine.FileSystem
	home     string
	getenv   func(string) string
	timeout  time.Duration
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithGetenv replaces os.Getenv for the env() builtin.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.getenv = fn
	}
}

// WithTimeout bounds the evaluation of one expression.
func WithTimeout(d time.Duration) EnvOption {
	return func(e *Env) {
		e.timeout = d
	}
}

// NewEnv creates a new predicate environment.
func NewEnv(platform engine.Platform, prober engine.CommandProber, fs engine.FileSystem, home string, opts ...EnvOption) *Env {
	e := &Env{
		platform: platform,
		prober:   prober,
		fs:       fs,
		home:     home,
		getenv:   os.Getenv,
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expr is a parsed expression.
type Expr struct {
	src  string
	expr syntax.Expr
	env  *Env
}

// Compile parses src. Syntax errors surface here, at catalog load time.
func (e *Env) Compile(src string) (*Expr, error) {
	expr, err := syntax.ParseExpr("catalog", src, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", src, err)
	}
	return &Expr{src: src, expr: expr, env: e}, nil
}

// Eval evaluates the expression for t, or with target bound to None when
// t is nil, and returns its truth value.
func (x *Expr) Eval(t *engine.Target) (bool, error) {
	val, err := x.Value(t)
	if err != nil {
		return false, err
	}
	return bool(val.Truth()), nil
}

// Value evaluates the expression and returns the raw Starlark value.
func (x *Expr) Value(t *engine.Target) (starlark.Value, error) {
	thread := &starlark.Thread{
		Name: "akinizer",
		Print: func(_ *starlark.Thread, msg string) {
			// Suppress print
		},
	}
	timer := time.AfterFunc(x.env.timeout, func() {
		thread.Cancel(fmt.Sprintf("execution timeout after %v", x.env.timeout))
	})
	defer timer.Stop()

	val, err := starlark.EvalExpr(thread, x.expr, x.env.globals(t))
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", x.src, err)
	}
	return val, nil
}

// String returns the source of the expression.
func (x *Expr) String() string {
	return x.src
}

// Predicate adapts the expression to an engine predicate.
func (x *Expr) Predicate() engine.Predicate {
	return func(t engine.Target) (bool, error) {
		return x.Eval(&t)
	}
}

func (e *Env) globals(t *engine.Target) starlark.StringDict {
	var target starlark.Value = starlark.None
	if t != nil {
		target = starlarkstruct.FromStringDict(starlark.String("target"), starlark.StringDict{
			"name":    starlark.String(t.Name),
			"command": starlark.String(t.CommandName()),
			"action":  starlark.String(t.Action),
		})
	}

	return starlark.StringDict{
		"target":         target,
		"is_linux":       starlark.NewBuiltin("is_linux", e.isLinux),
		"is_mac":         starlark.NewBuiltin("is_mac", e.isMac),
		"file_exists":    starlark.NewBuiltin("file_exists", e.fileExists),
		"command_exists": starlark.NewBuiltin("command_exists", e.commandExists),
		"env":            starlark.NewBuiltin("env", e.env),
		"home":           starlark.NewBuiltin("home", e.homeDir),
		"path_join":      starlark.NewBuiltin("path_join", pathJoin),
	}
}

func (e *Env) isLinux(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.Bool(e.platform.IsLinux()), nil
}

func (e *Env) isMac(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.Bool(e.platform.IsMac()), nil
}

func (e *Env) fileExists(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &path); err != nil {
		return nil, err
	}
	return starlark.Bool(e.fs.Exists(ExpandHome(path, e.home))), nil
}

func (e *Env) commandExists(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	return starlark.Bool(e.prober.Exists(name)), nil
}

func (e *Env) env(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, fallback string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &fallback); err != nil {
		return nil, err
	}
	if v := e.getenv(name); v != "" {
		return starlark.String(v), nil
	}
	return starlark.String(fallback), nil
}

func (e *Env) homeDir(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.String(e.home), nil
}

func pathJoin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	parts := make([]string, 0, len(args))
	for i, arg := range args {
		s, ok := starlark.AsString(arg)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d is %s, want string", b.Name(), i+1, arg.Type())
		}
		parts = append(parts, s)
	}
	return starlark.String(filepath.Join(parts...)), nil
}
