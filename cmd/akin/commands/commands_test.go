package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akinizer/akinizer/pkg/engine"
	"github.com/akinizer/akinizer/pkg/stores"
	"github.com/akinizer/akinizer/pkg/tasks"
)

const jobsCatalog = `
phases:
  - name: jobs
    action: execute-jobs
    targets:
      - name: hello
        actionCommands: ["echo hello-from-akin"]
  - name: check
    action: verify
    targets:
      - name: sh
        verifyCommandExists: true
`

const failingCatalog = `
phases:
  - name: check
    action: verify
    targets:
      - name: akin-no-such-command
        verifyCommandExists: true
`

const denyHello = `# Jobs named hello are not allowed.
package akinizer.test

import rego.v1

deny contains msg if {
	input.target.name == "hello"
	msg := "hello is not allowed"
}
`

type workspace struct {
	dir      string
	settings string
	textfile string
}

func setupWorkspace(t *testing.T, catalog string, policyFiles ...string) workspace {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	write("catalog.yaml", catalog)

	var policies []string
	for i, content := range policyFiles {
		policies = append(policies, write("policy"+string(rune('a'+i))+".rego", content))
	}

	ws := workspace{dir: dir, textfile: filepath.Join(dir, "akinizer.prom")}
	settings := "catalog: catalog.yaml\n" +
		"binInstallDir: " + filepath.Join(dir, "bin") + "\n" +
		"gitCloneDir: " + filepath.Join(dir, "opt") + "\n" +
		"logging:\n  output: " + filepath.Join(dir, "akin.log") + "\n" +
		"metrics:\n  textfilePath: " + ws.textfile + "\n" +
		"journal:\n  enabled: true\n  path: " + filepath.Join(dir, "journal.db") + "\n"
	if len(policies) > 0 {
		settings += "policy:\n  paths:\n"
		for _, p := range policies {
			settings += "    - " + p + "\n"
		}
	}
	ws.settings = write(".akinizerrc.yaml", settings)
	return ws
}

func runAkin(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand("test", "none", "today")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunRecordsHistoryAndMetrics(t *testing.T) {
	ws := setupWorkspace(t, jobsCatalog)

	out, err := runAkin(t, "--config", ws.settings, "run")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "hello-from-akin") {
		t.Errorf("job output not mirrored:\n%s", out)
	}
	if !strings.Contains(out, "2 targets: 0 installed, 1 executed, 1 satisfied, 0 skipped, 0 failed") {
		t.Errorf("unexpected summary:\n%s", out)
	}

	prom, err := os.ReadFile(ws.textfile)
	if err != nil {
		t.Fatalf("metrics textfile not written: %v", err)
	}
	if !strings.Contains(string(prom), `akinizer_targets_total{action="execute-jobs",outcome="executed"} 1`) {
		t.Errorf("unexpected metrics:\n%s", prom)
	}

	out, err = runAkin(t, "--config", ws.settings, "--json", "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var runs []*stores.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("invalid history JSON: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].Status != stores.RunStatusSucceeded {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if len(runs[0].Units) != 1 || runs[0].Units[0] != engine.RootPhaseName {
		t.Errorf("units = %v", runs[0].Units)
	}

	out, err = runAkin(t, "--config", ws.settings, "--json", "history", runs[0].ID)
	if err != nil {
		t.Fatalf("history detail failed: %v", err)
	}
	var detail runDetail
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("invalid detail JSON: %v\n%s", err, out)
	}
	if len(detail.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(detail.Results))
	}
	if detail.Results[0].Unit != "jobs:hello" || detail.Results[0].Outcome != "executed" {
		t.Errorf("unexpected first result: %+v", detail.Results[0])
	}
}

func TestRunFailureIsRecorded(t *testing.T) {
	ws := setupWorkspace(t, failingCatalog)

	_, err := runAkin(t, "--config", ws.settings, "run", "check")
	if !errors.Is(err, engine.ErrVerificationFailed) {
		t.Fatalf("expected verification failure, got %v", err)
	}

	out, err := runAkin(t, "--config", ws.settings, "--json", "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var runs []*stores.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("invalid history JSON: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != stores.RunStatusFailed || runs[0].Error == nil {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestRunUnknownUnit(t *testing.T) {
	ws := setupWorkspace(t, jobsCatalog)

	_, err := runAkin(t, "--config", ws.settings, "run", "--no-journal", "nope")
	if !errors.Is(err, tasks.ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
}

func TestListAndGraph(t *testing.T) {
	ws := setupWorkspace(t, jobsCatalog)

	out, err := runAkin(t, "--config", ws.settings, "--json", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var units []unitEntry
	if err := json.Unmarshal([]byte(out), &units); err != nil {
		t.Fatalf("invalid list JSON: %v\n%s", err, out)
	}
	kinds := map[string]string{}
	for _, u := range units {
		kinds[u.Name] = u.Kind
	}
	for _, name := range []string{"default", "jobs", "jobs:hello", "check", "check:sh"} {
		if _, ok := kinds[name]; !ok {
			t.Errorf("unit %s not listed: %v", name, units)
		}
	}
	if kinds["jobs:hello"] != string(tasks.KindTask) || kinds["default"] != string(tasks.KindSeries) {
		t.Errorf("unexpected kinds: %v", kinds)
	}

	out, err = runAkin(t, "--config", ws.settings, "graph")
	if err != nil {
		t.Fatalf("graph failed: %v", err)
	}
	if !strings.HasPrefix(out, "digraph Units {") || !strings.Contains(out, `"jobs:hello"`) {
		t.Errorf("unexpected graph:\n%s", out)
	}
}

func TestPlanDoesNotRunJobs(t *testing.T) {
	ws := setupWorkspace(t, jobsCatalog)

	out, err := runAkin(t, "--config", ws.settings, "--json", "plan")
	if err != nil {
		t.Fatalf("plan failed: %v\n%s", err, out)
	}
	if strings.Contains(out, "hello-from-akin\n") {
		t.Errorf("plan executed a job:\n%s", out)
	}

	var plan engine.Plan
	if err := json.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("invalid plan JSON: %v\n%s", err, out)
	}
	ops := map[string]engine.Operation{}
	for _, e := range plan.Entries {
		ops[e.Unit] = e.Operation
	}
	if ops["jobs:hello"] != engine.OperationExecute || ops["check:sh"] != engine.OperationVerify {
		t.Errorf("unexpected operations: %v", ops)
	}

	_, err = runAkin(t, "--config", ws.settings, "plan", "--detailed-exitcode")
	if err == nil {
		t.Error("expected pending changes to fail with --detailed-exitcode")
	}
}

func TestValidate(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		ws := setupWorkspace(t, jobsCatalog)
		out, err := runAkin(t, "--config", ws.settings, "validate")
		if err != nil {
			t.Fatalf("validate failed: %v\n%s", err, out)
		}
		if !strings.Contains(out, "2 targets checked, 0 finding(s)") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("denied by policy", func(t *testing.T) {
		ws := setupWorkspace(t, jobsCatalog, denyHello)
		out, err := runAkin(t, "--config", ws.settings, "validate")
		if err == nil {
			t.Fatalf("expected validation failure:\n%s", out)
		}
		if !strings.Contains(out, "hello is not allowed") {
			t.Errorf("violation not reported:\n%s", out)
		}
	})

	t.Run("run is denied too", func(t *testing.T) {
		ws := setupWorkspace(t, jobsCatalog, denyHello)
		_, err := runAkin(t, "--config", ws.settings, "run", "--no-journal", "jobs")
		if !errors.Is(err, engine.ErrPolicyDenied) {
			t.Fatalf("expected ErrPolicyDenied, got %v", err)
		}
	})

	t.Run("malformed catalog", func(t *testing.T) {
		ws := setupWorkspace(t, "phases:\n  - name: p\n    action: install\n    targets:\n      - [1, 2, 3]\n")
		_, err := runAkin(t, "--config", ws.settings, "validate")
		if !errors.Is(err, engine.ErrDefinition) {
			t.Fatalf("expected ErrDefinition, got %v", err)
		}
	})
}
