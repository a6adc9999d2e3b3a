package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writePolicy(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

const noGUIPolicy = `# Workstations in this fleet are headless.
# GUI casks are not allowed.
package fleet.headless

import rego.v1

deny contains msg if {
	input.target.gui
	msg := sprintf("GUI target '%s' is not allowed", [input.target.name])
}
`

func TestLoadFromFile_Rego(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "headless.rego")
	writePolicy(t, path, noGUIPolicy)

	policy, err := loader.loadFromFile(path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "headless" {
		t.Errorf("Expected name 'headless', got '%s'", policy.Name)
	}
	if policy.Description != "Workstations in this fleet are headless. GUI casks are not allowed." {
		t.Errorf("Description = %q", policy.Description)
	}
	if policy.Severity != SeverityError || !policy.Enabled || policy.Source != path {
		t.Errorf("policy = %+v", policy)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "soft.json")

	data, err := json.Marshal(map[string]interface{}{
		"description": "advisory only",
		"rego":        "package soft\n\nimport rego.v1\n\ndeny contains \"x\" if false\n",
		"severity":    "warning",
	})
	if err != nil {
		t.Fatal(err)
	}
	writePolicy(t, path, string(data))

	policy, err := loader.loadFromFile(path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if policy.Name != "soft" || policy.Severity != SeverityWarning || !policy.Enabled {
		t.Errorf("policy = %+v", policy)
	}
}

func TestLoadFromPaths_Directory(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, filepath.Join(dir, "a.rego"), noGUIPolicy)
	writePolicy(t, filepath.Join(dir, "nested", "b.rego"), "package b\n")
	writePolicy(t, filepath.Join(dir, "README.md"), "not a policy")
	writePolicy(t, filepath.Join(dir, "broken.json"), "{")

	policies, err := NewLoader(zerolog.Nop()).LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths() error = %v", err)
	}
	if len(policies) != 2 {
		t.Errorf("loaded %d policies, want 2 (broken files are skipped)", len(policies))
	}
}

func TestLoadFromPaths_MissingPath(t *testing.T) {
	_, err := NewLoader(zerolog.Nop()).LoadFromPaths(context.Background(), []string{filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Error("expected an error for a missing path")
	}
}
