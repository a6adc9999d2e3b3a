package policy

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/akinizer/akinizer/pkg/engine"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	g, err := NewGate(context.Background(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	return g
}

func gitTarget(url, ref string) engine.Target {
	return engine.Target{
		Name:   "fzf",
		Action: engine.ActionInstall,
		Options: engine.TargetOptions{
			GitPackage: &engine.GitPackageSpec{RepoURL: url, Ref: ref},
		},
	}
}

func TestGate_Builtins(t *testing.T) {
	g := newTestGate(t)

	tests := []struct {
		name       string
		target     engine.Target
		wantPolicy string
	}{
		{
			name:       "moving ref",
			target:     gitTarget("https://github.com/junegunn/fzf.git", "master"),
			wantPolicy: "moving-git-ref",
		},
		{
			name:       "plain http",
			target:     gitTarget("http://example.com/fzf.git", "v1.0.0"),
			wantPolicy: "plain-http-repo",
		},
		{
			name: "pipe to shell",
			target: engine.Target{
				Name:   "rustup",
				Action: engine.ActionInstall,
				Options: engine.TargetOptions{
					ActionCommands: []string{"curl -sSf https://sh.rustup.rs | sh -s -- -y"},
				},
			},
			wantPolicy: "pipe-to-shell",
		},
		{
			name: "pipe to sudo bash",
			target: engine.Target{
				Name:    "docker",
				Action:  engine.ActionExecuteJobs,
				Options: engine.TargetOptions{ActionCommands: []string{"wget -qO- https://get.docker.com | sudo bash"}},
			},
			wantPolicy: "pipe-to-shell",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := g.Evaluate(context.Background(), tt.target)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if !verdict.Allowed {
				t.Errorf("built-in policies must not block: %v", verdict.Reasons)
			}
			if len(verdict.Warnings) != 1 || !strings.Contains(verdict.Warnings[0], tt.wantPolicy) {
				t.Errorf("Warnings = %v, want one from %s", verdict.Warnings, tt.wantPolicy)
			}
		})
	}
}

func TestGate_CleanTarget(t *testing.T) {
	g := newTestGate(t)

	targets := []engine.Target{
		gitTarget("https://github.com/junegunn/fzf.git", "v0.54.0"),
		{Name: "jq", Action: engine.ActionInstall},
		{Name: "sdk", Action: engine.ActionInstall, Options: engine.TargetOptions{
			ActionCommands: []string{"curl -s https://get.sdkman.io -o /tmp/sdk.sh", "bash /tmp/sdk.sh"},
		}},
	}
	for _, tgt := range targets {
		verdict, err := g.Evaluate(context.Background(), tgt)
		if err != nil {
			t.Fatal(err)
		}
		if !verdict.Allowed || len(verdict.Warnings) != 0 {
			t.Errorf("%s: verdict = %+v", tgt.Name, verdict)
		}
	}
}

func TestGate_UserPolicyDenies(t *testing.T) {
	g := newTestGate(t)
	dir := t.TempDir()
	writePolicy(t, filepath.Join(dir, "headless.rego"), noGUIPolicy)
	writePolicy(t, filepath.Join(dir, "advisory.rego"), `package fleet.advisory

import rego.v1

deny contains violation if {
	input.target.forced
	violation := {"message": "forced installs bypass the oracle", "severity": "warning"}
}
`)

	if err := g.Load(context.Background(), []string{dir}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	names := g.Names()
	if len(names) != 5 {
		t.Errorf("Names() = %v", names)
	}

	gui := engine.Target{Name: "iterm2", Action: engine.ActionInstall, Options: engine.TargetOptions{IsGUI: engine.Bool(true)}}
	verdict, err := g.Evaluate(context.Background(), gui)
	if err != nil {
		t.Fatal(err)
	}
	if verdict.Allowed {
		t.Fatal("GUI target should be denied")
	}
	if len(verdict.Reasons) != 1 || !strings.Contains(verdict.Reasons[0], "GUI target 'iterm2' is not allowed") {
		t.Errorf("Reasons = %v", verdict.Reasons)
	}

	forced := engine.Target{Name: "git", Action: engine.ActionInstall, Options: engine.TargetOptions{
		ForceAction: func(engine.Target) (bool, error) { return true, nil },
	}}
	verdict, err = g.Evaluate(context.Background(), forced)
	if err != nil {
		t.Fatal(err)
	}
	if !verdict.Allowed || len(verdict.Warnings) != 1 {
		t.Errorf("verdict = %+v, want one downgraded warning", verdict)
	}
}

func TestGate_AddInvalidPolicy(t *testing.T) {
	g := newTestGate(t)
	err := g.Add(context.Background(), Policy{Name: "broken", Rego: "package broken\n\ndeny contains x if {", Enabled: true})
	if err == nil {
		t.Error("expected a parse error")
	}
}

func TestGate_DisabledPolicy(t *testing.T) {
	g := newTestGate(t)
	p := movingRefPolicy()
	p.Enabled = false
	if err := g.Add(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	verdict, _ := g.Evaluate(context.Background(), gitTarget("https://github.com/junegunn/fzf.git", "main"))
	if len(verdict.Warnings) != 0 {
		t.Errorf("disabled policy still reported: %v", verdict.Warnings)
	}
}

func TestGate_WithDispatcher(t *testing.T) {
	g := newTestGate(t)
	if err := g.Add(context.Background(), Policy{
		Name:     "no-jq",
		Severity: SeverityError,
		Enabled:  true,
		Rego:     "package test.nojq\n\nimport rego.v1\n\ndeny contains \"jq is banned\" if input.target.name == \"jq\"\n",
	}); err != nil {
		t.Fatal(err)
	}

	var checked bool
	oracle := checkerFunc(func(context.Context, engine.Target) (bool, error) {
		checked = true
		return true, nil
	})
	d := engine.NewDispatcher(oracle, nil, nil, nil, zerolog.Nop(), engine.WithGate(g))

	_, err := d.Dispatch(context.Background(), engine.Target{Name: "jq", Action: engine.ActionInstall})
	if !errors.Is(err, engine.ErrPolicyDenied) {
		t.Errorf("Dispatch() error = %v, want policy denied", err)
	}
	if checked {
		t.Error("a denied target must not reach the oracle")
	}
}

type checkerFunc func(context.Context, engine.Target) (bool, error)

func (f checkerFunc) IsInstalled(ctx context.Context, t engine.Target) (bool, error) {
	return f(ctx, t)
}
