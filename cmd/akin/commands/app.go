package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/akinizer/akinizer/pkg/config"
	"github.com/akinizer/akinizer/pkg/engine"
	"github.com/akinizer/akinizer/pkg/gitclient"
	"github.com/akinizer/akinizer/pkg/platform"
	"github.com/akinizer/akinizer/pkg/policy"
	"github.com/akinizer/akinizer/pkg/stores"
	"github.com/akinizer/akinizer/pkg/tasks"
	"github.com/akinizer/akinizer/pkg/telemetry"
)

// app holds what every command derives from the settings file.
type app struct {
	settings     *config.Settings
	settingsFile string
	catalogPath  string
	home         string
	host         platform.Host

	tel    *telemetry.Telemetry
	logger zerolog.Logger

	stdout io.Writer
	stderr io.Writer
}

// newApp loads the settings and starts telemetry. Callers must Close it.
func newApp(cmd *cobra.Command) (*app, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}

	settings, file, err := config.LoadSettings(configPath, cwd, home)
	if err != nil {
		return nil, err
	}
	catalog := settings.CatalogPath(file, cwd)
	if catalogFlag != "" {
		settings.Catalog = config.ExpandHome(catalogFlag, home)
		catalog = settings.CatalogPath("", cwd)
	}
	if verbose {
		settings.Logging.Level = "debug"
	}

	tel, err := telemetry.NewTelemetry(settings.Telemetry(buildVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	log.Logger = tel.Logger

	tel.Logger.Debug().
		Str("settings", file).
		Str("catalog", catalog).
		Msg("Settings loaded")

	return &app{
		settings:     settings,
		settingsFile: file,
		catalogPath:  catalog,
		home:         home,
		host:         platform.Detect(),
		tel:          tel,
		logger:       tel.Logger,
		stdout:       cmd.OutOrStdout(),
		stderr:       cmd.ErrOrStderr(),
	}, nil
}

// Close flushes telemetry.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
}

// newShell returns a shell mirroring command output to the command's
// streams, or discarding it when quiet.
func (a *app) newShell(quiet bool) *platform.Shell {
	if quiet {
		return platform.NewShell(a.logger, platform.WithStreams(nil, nil, nil))
	}
	return platform.NewShell(a.logger, platform.WithStreams(os.Stdin, a.stdout, a.stderr))
}

func (a *app) deps(shell engine.Shell) engine.Deps {
	return engine.Deps{
		Shell:    shell,
		Git:      gitclient.New(a.logger, gitclient.WithProgress(a.stderr)),
		FS:       platform.NewFileSystem(),
		Prober:   platform.PathProber{},
		Platform: a.host,
		Paths:    a.settings.EnginePaths(),
	}
}

// loadRoot reads and compiles the catalog. postInstall hooks run through shell.
func (a *app) loadRoot(shell engine.Shell) (engine.Phase, error) {
	cat, err := config.LoadCatalog(a.catalogPath)
	if err != nil {
		return engine.Phase{}, err
	}
	env := config.NewEnv(a.host, platform.PathProber{}, platform.NewFileSystem(), a.home)
	return config.NewCompiler(env, shell, a.logger).Compile(cat)
}

// newGate returns the policy gate, or nil when policies are disabled.
func (a *app) newGate(ctx context.Context) (*policy.Gate, error) {
	if a.settings.Policy.Disabled {
		return nil, nil
	}
	gate, err := policy.NewGate(ctx, a.logger)
	if err != nil {
		return nil, err
	}
	if err := gate.Load(ctx, a.settings.Policy.Paths); err != nil {
		return nil, err
	}
	return gate, nil
}

// engineGate converts a possibly nil gate without producing a non-nil
// interface around a nil pointer.
func engineGate(g *policy.Gate) engine.Gate {
	if g == nil {
		return nil
	}
	return g
}

func dispatcherOptions(g *policy.Gate) []engine.DispatcherOption {
	if g == nil {
		return nil
	}
	return []engine.DispatcherOption{engine.WithGate(g)}
}

// openJournal opens the run journal, or returns nil when it is disabled.
func (a *app) openJournal(ctx context.Context) (*stores.Journal, error) {
	if !a.settings.Journal.Enabled {
		return nil, nil
	}
	return stores.Open(ctx, stores.Config{Path: a.settings.Journal.Path}, a.logger)
}

// buildUnits compiles the catalog into a fresh runner. Nothing runs.
func (a *app) buildUnits(shell engine.Shell, dispatcher engine.TargetDispatcher, opts ...engine.BuilderOption) (*tasks.Runner, engine.Unit, error) {
	root, err := a.loadRoot(shell)
	if err != nil {
		return nil, nil, err
	}
	runner := tasks.NewRunner(a.logger,
		tasks.WithMaxParallel(a.settings.MaxParallel),
		tasks.WithRunningGauge(a.tel.Metrics),
	)
	unit, err := engine.NewBuilder(runner, dispatcher, a.logger, opts...).Build(root)
	if err != nil {
		return nil, nil, err
	}
	return runner, unit, nil
}

// execute runs the named units once, recording the run in journal when
// it is not nil, and prints the summary.
func (a *app) execute(ctx context.Context, names []string, journal *stores.Journal) error {
	shell := a.newShell(false)

	gate, err := a.newGate(ctx)
	if err != nil {
		return err
	}
	dispatcher := engine.NewDefaultDispatcher(a.deps(shell), a.logger, dispatcherOptions(gate)...)

	summary := telemetry.NewSummary()
	opts := []engine.BuilderOption{
		engine.WithObserver(a.tel.Metrics),
		engine.WithObserver(summary),
	}

	runID := uuid.NewString()
	if journal != nil {
		run, err := journal.StartRun(ctx, a.catalogPath, names)
		if err != nil {
			return err
		}
		runID = run.ID
		opts = append(opts, engine.WithObserver(journal.Recorder(runID)))
	}

	start := time.Now()
	runErr := a.runUnits(ctx, runID, names, shell, dispatcher, opts)
	status := runStatus(ctx, runErr)
	a.tel.Metrics.RecordRunCompleted(string(status), time.Since(start))

	if journal != nil {
		if err := journal.FinishRun(context.WithoutCancel(ctx), runID, status, runErr); err != nil {
			a.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to record run status")
		}
	}

	if err := summary.Render(a.stdout); err != nil {
		return err
	}
	return runErr
}

func (a *app) runUnits(ctx context.Context, runID string, names []string, shell engine.Shell, dispatcher engine.TargetDispatcher, opts []engine.BuilderOption) error {
	runner, _, err := a.buildUnits(shell, dispatcher, opts...)
	if err != nil {
		return err
	}

	ctx, span := a.tel.Tracer.StartRunSpan(ctx, runID, names)
	defer span.End()

	log := a.logger.With().Str("run_id", runID).Logger()
	if traceID := telemetry.TraceID(ctx); traceID != "" {
		log = log.With().Str("trace_id", traceID).Logger()
	}
	log.Info().Strs("units", names).Msg("Run started")

	if err := runner.Run(ctx, names...); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.RecordSuccess(span)
	log.Info().Msg("Run completed")
	return nil
}

func runStatus(ctx context.Context, err error) stores.RunStatus {
	switch {
	case err == nil:
		return stores.RunStatusSucceeded
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return stores.RunStatusCancelled
	default:
		return stores.RunStatusFailed
	}
}

// unitNames defaults to the root phase.
func unitNames(args []string) []string {
	if len(args) == 0 {
		return []string{engine.RootPhaseName}
	}
	return args
}

// watchedFiles returns the absolute files whose change triggers a re-run.
func (a *app) watchedFiles() []string {
	files := []string{a.catalogPath}
	for _, p := range a.settings.Policy.Paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			files = append(files, p)
		}
	}
	for i, f := range files {
		if abs, err := filepath.Abs(f); err == nil {
			files[i] = abs
		}
	}
	return files
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
