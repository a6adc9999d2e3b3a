package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/akinizer/akinizer/pkg/engine"
)

// Catalog is the data form of a phase tree.
type Catalog struct {
	// Parallel runs the top-level phases concurrently.
	Parallel bool `yaml:"parallel"`

	// Phases are the children of the implicit root phase.
	Phases []PhaseSpec `yaml:"phases"`
}

// PhaseSpec is one phase of a catalog.
type PhaseSpec struct {
	Name     string `yaml:"name"`
	Action   string `yaml:"action"`
	Parallel bool   `yaml:"parallel"`

	// When is a Starlark condition; a false result drops the phase.
	When string `yaml:"when"`

	TargetOpts OptionsSpec   `yaml:"targetOpts"`
	Targets    []TargetEntry `yaml:"targets"`
	Phases     []PhaseSpec   `yaml:"phases"`
}

// OptionsSpec is the data form of engine.TargetOptions. Predicates are
// Starlark expressions.
type OptionsSpec struct {
	SkipAction          string                 `yaml:"skipAction,omitempty"`
	SkipActionMessage   string                 `yaml:"skipActionMessage,omitempty"`
	ForceAction         string                 `yaml:"forceAction,omitempty"`
	TestFn              string                 `yaml:"testFn,omitempty"`
	ActionCommands      []string               `yaml:"actionCommands,omitempty"`
	GitPackage          *engine.GitPackageSpec `yaml:"gitPackage,omitempty"`
	VerifyCommandExists *bool                  `yaml:"verifyCommandExists,omitempty"`
	IsGUI               *bool                  `yaml:"isGUI,omitempty"`
	Command             string                 `yaml:"command,omitempty"`

	// PostInstall commands run through the shell after a successful install.
	PostInstall []string `yaml:"postInstall,omitempty"`
}

// TargetEntry is a target definition: a bare name, a mapping with a name
// and options, or a [name, options] pair.
type TargetEntry struct {
	Name    string
	Options *OptionsSpec
}

type namedOptions struct {
	Name        string `yaml:"name"`
	OptionsSpec `yaml:",inline"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *TargetEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.ShortTag() == "!!str" && value.Value != "" {
			e.Name = value.Value
			return nil
		}

	case yaml.MappingNode:
		var named namedOptions
		if err := value.Decode(&named); err != nil {
			return err
		}
		if named.Name != "" {
			e.Name = named.Name
			e.Options = &named.OptionsSpec
			return nil
		}

	case yaml.SequenceNode:
		if len(value.Content) == 2 &&
			value.Content[0].Kind == yaml.ScalarNode && value.Content[0].Value != "" &&
			value.Content[1].Kind == yaml.MappingNode {
			var opts OptionsSpec
			if err := value.Content[1].Decode(&opts); err != nil {
				return err
			}
			e.Name = value.Content[0].Value
			e.Options = &opts
			return nil
		}
	}

	return malformedEntry(value)
}

func malformedEntry(value *yaml.Node) error {
	rendered, err := yaml.Marshal(value)
	text := strings.TrimSpace(string(rendered))
	if err != nil {
		text = value.Value
	}
	return engine.NewDefinitionError(
		fmt.Sprintf("malformed target definition at line %d: %s", value.Line, text), nil).
		WithDetail("definition", text)
}

// ParseCatalogYAML decodes a YAML catalog.
func ParseCatalogYAML(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// LoadCatalog reads a catalog file. Files ending in .cue are evaluated
// with CUE; everything else is YAML.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var cat *Catalog
	switch filepath.Ext(path) {
	case ".cue":
		cat, err = ParseCatalogCUE(path, data)
	default:
		cat, err = ParseCatalogYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return cat, nil
}
