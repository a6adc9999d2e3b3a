package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/akinizer/akinizer/pkg/engine"
	"github.com/akinizer/akinizer/pkg/telemetry"
)

// SettingsFileNames are searched, in order, in the working directory and
// then the home directory.
var SettingsFileNames = []string{".akinizerrc.yaml", ".akinizerrc.yml"}

// Settings is the content of an .akinizerrc file merged over the defaults.
type Settings struct {
	// BinInstallDir receives binary symlinks of git packages.
	BinInstallDir string `yaml:"binInstallDir" validate:"required"`

	// GitCloneDir is the parent of default clone directories.
	GitCloneDir string `yaml:"gitCloneDir" validate:"required"`

	// Catalog is the YAML or CUE file describing the phases.
	Catalog string `yaml:"catalog" validate:"required"`

	// MaxParallel bounds the concurrency of parallel phases. Zero is unbounded.
	MaxParallel int `yaml:"maxParallel" validate:"gte=0"`

	Logging telemetry.LoggingConfig `yaml:"logging"`
	Tracing telemetry.TracingConfig `yaml:"tracing"`
	Metrics telemetry.MetricsConfig `yaml:"metrics"`
	Journal JournalConfig           `yaml:"journal"`
	Policy  PolicyConfig            `yaml:"policy"`
}

// JournalConfig configures the run history database.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// PolicyConfig configures the target gate.
type PolicyConfig struct {
	// Disabled turns off every rule, built-in ones included.
	Disabled bool `yaml:"disabled"`

	// Paths are .rego files or directories of them.
	Paths []string `yaml:"paths"`
}

// DefaultSettings returns the settings used when no file overrides them.
func DefaultSettings(home string) *Settings {
	tel := telemetry.DefaultConfig()
	return &Settings{
		BinInstallDir: filepath.Join(home, "bin"),
		GitCloneDir:   filepath.Join(home, "opt"),
		Catalog:       "akinizer.yaml",
		Logging:       tel.Logging,
		Tracing:       tel.Tracing,
		Metrics:       tel.Metrics,
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(home, ".local", "state", "akinizer", "journal.db"),
		},
	}
}

// LoadSettings reads the settings file. An explicit path must exist;
// otherwise the search order is cwd/.akinizerrc.yaml, cwd/.akinizerrc.yml,
// home/.akinizerrc.yaml. It returns the file used, empty for defaults.
func LoadSettings(explicit, cwd, home string) (*Settings, string, error) {
	settings := DefaultSettings(home)

	path := explicit
	if path == "" {
		path = findSettingsFile(cwd, home)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read settings %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, "", fmt.Errorf("failed to parse settings %s: %w", path, err)
		}
	}

	settings.expand(home)
	if err := settings.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return settings, path, nil
}

func findSettingsFile(cwd, home string) string {
	var candidates []string
	for _, name := range SettingsFileNames {
		candidates = append(candidates, filepath.Join(cwd, name))
	}
	candidates = append(candidates, filepath.Join(home, SettingsFileNames[0]))

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// Validate checks field constraints.
func (s *Settings) Validate() error {
	err := validator.New().Struct(s)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return err
}

func (s *Settings) expand(home string) {
	s.BinInstallDir = ExpandHome(s.BinInstallDir, home)
	s.GitCloneDir = ExpandHome(s.GitCloneDir, home)
	s.Catalog = ExpandHome(s.Catalog, home)
	s.Journal.Path = ExpandHome(s.Journal.Path, home)
	s.Metrics.TextfilePath = ExpandHome(s.Metrics.TextfilePath, home)
	for i, p := range s.Policy.Paths {
		s.Policy.Paths[i] = ExpandHome(p, home)
	}
	if s.Logging.Output != "stdout" && s.Logging.Output != "stderr" {
		s.Logging.Output = ExpandHome(s.Logging.Output, home)
	}
}

// EnginePaths returns the install locations used by the engine.
func (s *Settings) EnginePaths() engine.Paths {
	return engine.Paths{
		BinInstallDir: s.BinInstallDir,
		GitCloneDir:   s.GitCloneDir,
	}
}

// Telemetry returns the telemetry configuration of the settings.
func (s *Settings) Telemetry(version string) *telemetry.Config {
	return &telemetry.Config{
		ServiceName:    "akinizer",
		ServiceVersion: version,
		Logging:        s.Logging,
		Tracing:        s.Tracing,
		Metrics:        s.Metrics,
	}
}

// ExpandHome replaces a leading ~ with home.
func ExpandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// CatalogPath resolves a relative catalog against the directory of the
// settings file, or cwd when the defaults are in use.
func (s *Settings) CatalogPath(settingsFile, cwd string) string {
	if filepath.IsAbs(s.Catalog) {
		return s.Catalog
	}
	if settingsFile != "" {
		return filepath.Join(filepath.Dir(settingsFile), s.Catalog)
	}
	return filepath.Join(cwd, s.Catalog)
}
