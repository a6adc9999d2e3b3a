package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/akinizer/akinizer/pkg/engine"
)

const sampleCUE = `
_linuxOnly: "is_linux()"

parallel: true
phases: [
	{
		name:   "base"
		action: "install"
		targetOpts: verifyCommandExists: true
		targets: ["git", {name: "fd", command: "fdfind"}, ["ripgrep", {command: "rg"}]]
	},
	{
		name:   "checks"
		action: "verify"
		when:   _linuxOnly
		targets: ["go"]
	},
]
`

func TestParseCatalogCUE(t *testing.T) {
	cat, err := ParseCatalogCUE("akinizer.cue", []byte(sampleCUE))
	if err != nil {
		t.Fatalf("ParseCatalogCUE() error = %v", err)
	}

	if !cat.Parallel || len(cat.Phases) != 2 {
		t.Fatalf("catalog = %+v", cat)
	}
	targets := cat.Phases[0].Targets
	if len(targets) != 3 {
		t.Fatalf("got %d targets", len(targets))
	}
	if targets[0].Name != "git" || targets[1].Options.Command != "fdfind" || targets[2].Options.Command != "rg" {
		t.Errorf("targets = %+v", targets)
	}
	if cat.Phases[1].When != "is_linux()" {
		t.Errorf("when = %q", cat.Phases[1].When)
	}
}

func TestParseCatalogCUE_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "phases not a list", src: `phases: 3`},
		{name: "missing action", src: `phases: [{name: "p", targets: ["git"]}]`},
		{name: "unknown option", src: `phases: [{name: "p", action: "install", targets: [{name: "git", colour: "red"}]}]`},
		{name: "empty git ref", src: `phases: [{name: "p", action: "install", targets: [{name: "fzf", gitPackage: {repoUrl: "u", ref: ""}}]}]`},
		{name: "numeric target", src: `phases: [{name: "p", action: "install", targets: [42]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalogCUE("bad.cue", []byte(tt.src))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, engine.ErrDefinition) {
				t.Errorf("error = %v, want a definition error", err)
			}
		})
	}
}

func TestParseCatalogCUE_SyntaxError(t *testing.T) {
	if _, err := ParseCatalogCUE("bad.cue", []byte(`phases: [`)); err == nil {
		t.Error("expected a compile error")
	}
}

func TestLoadCatalog_CUE(t *testing.T) {
	path := filepath.Join(t.TempDir(), "akinizer.cue")
	if err := os.WriteFile(path, []byte(sampleCUE), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if len(cat.Phases) != 2 {
		t.Errorf("got %d phases", len(cat.Phases))
	}
}
