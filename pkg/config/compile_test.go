package config

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/akinizer/akinizer/pkg/engine"
)

type recordingShell struct {
	mu       sync.Mutex
	commands []string
	exitCode map[string]int
}

func (s *recordingShell) Exec(_ context.Context, command string) (engine.ExecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, command)
	return engine.ExecResult{ExitCode: s.exitCode[command]}, nil
}

func newTestCompiler(t *testing.T, shell engine.Shell) *Compiler {
	t.Helper()
	env, _ := newTestEnv(t)
	return NewCompiler(env, shell, zerolog.Nop())
}

func compileYAML(t *testing.T, c *Compiler, doc string) (engine.Phase, error) {
	t.Helper()
	cat, err := ParseCatalogYAML([]byte(doc))
	if err != nil {
		t.Fatalf("ParseCatalogYAML() error = %v", err)
	}
	return c.Compile(cat)
}

func TestCompiler_Compile(t *testing.T) {
	c := newTestCompiler(t, &recordingShell{})
	root, err := compileYAML(t, c, sampleCatalog)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if root.Name != engine.RootPhaseName || root.Action != engine.ActionRunPhases {
		t.Errorf("root = %s/%s", root.Name, root.Action)
	}

	var units []string
	err = engine.Walk(root, func(unit string, tgt engine.Target) error {
		units = append(units, unit)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	// The fonts phase only applies to macOS.
	want := []string{"base:git", "base:fd", "base:ripgrep", "tools:git-tools:fzf"}
	if !reflect.DeepEqual(units, want) {
		t.Errorf("units = %v, want %v", units, want)
	}
}

func TestCompiler_OptionsInheritAndOverride(t *testing.T) {
	c := newTestCompiler(t, &recordingShell{})
	root, err := compileYAML(t, c, sampleCatalog)
	if err != nil {
		t.Fatal(err)
	}

	targets := map[string]engine.Target{}
	_ = engine.Walk(root, func(unit string, tgt engine.Target) error {
		targets[unit] = tgt
		return nil
	})

	fd := targets["base:fd"]
	if fd.CommandName() != "fdfind" || !fd.Options.ShouldVerifyCommand() {
		t.Errorf("fd options = %+v", fd.Options)
	}
	if targets["base:git"].CommandName() != "git" {
		t.Error("bare target should use its name as the command")
	}
	fzf := targets["tools:git-tools:fzf"]
	if _, ok := mustArgs(t, fzf).(engine.GitInstallArgs); !ok {
		t.Errorf("fzf args = %T, want GitInstallArgs", mustArgs(t, fzf))
	}
	if fzf.Options.PostInstall == nil {
		t.Error("postInstall hook not compiled")
	}
}

func mustArgs(t *testing.T, tgt engine.Target) engine.ActionArgs {
	t.Helper()
	args, err := tgt.Args()
	if err != nil {
		t.Fatalf("Args() error = %v", err)
	}
	return args
}

func TestCompiler_Predicates(t *testing.T) {
	c := newTestCompiler(t, &recordingShell{})
	root, err := compileYAML(t, c, `
phases:
  - name: p
    action: install
    targetOpts:
      skipAction: command_exists(target.command)
      skipActionMessage: already on PATH
    targets:
      - git
      - [jq, {forceAction: "target.name == 'jq'", testFn: "False"}]
`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	opts := root.Phases[0].TargetOpts
	skip, err := opts.SkipAction(engine.Target{Name: "git"})
	if err != nil || !skip {
		t.Errorf("skipAction(git) = %v, %v", skip, err)
	}
	if msg := opts.SkipActionMessage(engine.Target{Name: "git"}); msg != "already on PATH" {
		t.Errorf("skipActionMessage = %q", msg)
	}

	jq := root.Phases[0].Targets[1].(engine.NamedWithOptions)
	force, err := jq.Options.ForceAction(engine.Target{Name: "jq"})
	if err != nil || !force {
		t.Errorf("forceAction(jq) = %v, %v", force, err)
	}
	installed, err := jq.Options.TestFn(engine.Target{Name: "jq"})
	if err != nil || installed {
		t.Errorf("testFn(jq) = %v, %v", installed, err)
	}
}

func TestCompiler_PostInstall(t *testing.T) {
	shell := &recordingShell{exitCode: map[string]int{"fail": 3}}
	c := newTestCompiler(t, shell)

	root, err := compileYAML(t, c, `
phases:
  - name: p
    action: install
    targets:
      - [ok, {postInstall: [one, two]}]
      - [bad, {postInstall: [fail, never]}]
`)
	if err != nil {
		t.Fatal(err)
	}

	ok := root.Phases[0].Targets[0].(engine.NamedWithOptions)
	if err := ok.Options.PostInstall(context.Background(), engine.Target{Name: "ok"}); err != nil {
		t.Errorf("PostInstall(ok) error = %v", err)
	}
	bad := root.Phases[0].Targets[1].(engine.NamedWithOptions)
	if err := bad.Options.PostInstall(context.Background(), engine.Target{Name: "bad"}); err == nil {
		t.Error("PostInstall(bad) expected an error")
	}

	want := []string{"one", "two", "fail"}
	if !reflect.DeepEqual(shell.commands, want) {
		t.Errorf("commands = %v, want %v", shell.commands, want)
	}
}

func TestCompiler_DefinitionErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "invalid when",
			doc:  "phases:\n  - name: p\n    action: install\n    when: 'is_linux('\n    targets: [git]\n",
		},
		{
			name: "failing when",
			doc:  "phases:\n  - name: p\n    action: install\n    when: 'undefined_thing'\n    targets: [git]\n",
		},
		{
			name: "invalid predicate",
			doc:  "phases:\n  - name: p\n    action: install\n    targets:\n      - [git, {skipAction: 'a b'}]\n",
		},
		{
			name: "null target",
			doc:  "phases:\n  - name: p\n    action: install\n    targets:\n      - null\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCompiler(t, &recordingShell{})
			_, err := compileYAML(t, c, tt.doc)
			if !errors.Is(err, engine.ErrDefinition) {
				t.Errorf("Compile() error = %v, want a definition error", err)
			}
		})
	}
}

func TestCompiler_AllPhasesDropped(t *testing.T) {
	c := newTestCompiler(t, &recordingShell{})
	root, err := compileYAML(t, c, "phases:\n  - name: mac\n    action: install\n    when: is_mac()\n    targets: [mas]\n")
	if err != nil {
		t.Fatal(err)
	}
	// An empty root is reported when the tree is walked or built.
	if err := engine.Walk(root, func(string, engine.Target) error { return nil }); !errors.Is(err, engine.ErrDefinition) {
		t.Errorf("Walk() error = %v, want a definition error", err)
	}
}
