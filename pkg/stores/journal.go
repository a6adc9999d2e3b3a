package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akinizer/akinizer/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const memoryPath = ":memory:"

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Config holds journal configuration
type Config struct {
	Path         string
	MaxOpenConns int
}

// Journal records runs and per-target outcomes in SQLite.
type Journal struct {
	db           *sql.DB
	path         string
	maxOpenConns int
	logger       zerolog.Logger
	now          func() time.Time
}

// NewJournal creates a new journal instance. Call Init and Migrate before use.
func NewJournal(cfg Config, logger zerolog.Logger) (*Journal, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 1
	}

	return &Journal{
		path:         cfg.Path,
		maxOpenConns: cfg.MaxOpenConns,
		logger:       logger.With().Str("component", "journal").Logger(),
		now:          time.Now,
	}, nil
}

// Open is a convenience for NewJournal followed by Init and Migrate.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*Journal, error) {
	j, err := NewJournal(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := j.Init(ctx); err != nil {
		return nil, err
	}
	if err := j.Migrate(ctx); err != nil {
		_ = j.Close()
		return nil, err
	}
	return j, nil
}

// Init opens the database connection.
func (j *Journal) Init(ctx context.Context) error {
	dsn := j.path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if j.path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
			return fmt.Errorf("failed to create journal directory: %w", err)
		}
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database lives only as long as its single connection.
	db.SetMaxOpenConns(j.maxOpenConns)
	if j.path == memoryPath {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	j.db = db
	return nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (j *Journal) Migrate(_ context.Context) error {
	if j.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(j.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is usable.
func (j *Journal) HealthCheck(ctx context.Context) error {
	if j.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return j.db.PingContext(ctx)
}

// StartRun records a new running run and returns it.
func (j *Journal) StartRun(ctx context.Context, catalog string, units []string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Catalog:   catalog,
		Units:     append([]string(nil), units...),
		Status:    RunStatusRunning,
		StartedAt: j.now().UTC(),
	}

	query := `
		INSERT INTO runs (id, catalog, units, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := j.db.ExecContext(ctx, query,
		run.ID,
		run.Catalog,
		strings.Join(run.Units, ","),
		run.Status,
		run.StartedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	j.logger.Debug().Str("run_id", run.ID).Strs("units", run.Units).Msg("Run started")
	return run, nil
}

// FinishRun sets the terminal status of a run. runErr may be nil.
func (j *Journal) FinishRun(ctx context.Context, id string, status RunStatus, runErr error) error {
	var errMsg *string
	if runErr != nil {
		msg := runErr.Error()
		errMsg = &msg
	}

	query := `
		UPDATE runs
		SET status = ?, completed_at = ?, error = ?
		WHERE id = ?
	`
	result, err := j.db.ExecContext(ctx, query, status, j.now().UTC().UnixMilli(), errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	j.logger.Debug().Str("run_id", id).Str("status", string(status)).Msg("Run finished")
	return nil
}

// GetRun retrieves a run by ID
func (j *Journal) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, catalog, units, status, started_at, completed_at, error
		FROM runs
		WHERE id = ?
	`
	run, err := scanRun(j.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs, newest first.
func (j *Journal) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, catalog, units, status, started_at, completed_at, error
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`

	rows, err := j.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRun deletes a run and its results.
func (j *Journal) DeleteRun(ctx context.Context, id string) error {
	result, err := j.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return nil
}

// AppendResult records the outcome of one leaf unit of a run.
func (j *Journal) AppendResult(ctx context.Context, runID string, report engine.Report) error {
	var errMsg, errKind *string
	if report.Err != nil {
		msg := report.Err.Error()
		errMsg = &msg
		if kind := engine.KindOf(report.Err); kind != "" {
			k := string(kind)
			errKind = &k
		}
	}

	startedAt := report.StartedAt
	if startedAt.IsZero() {
		startedAt = j.now()
	}

	query := `
		INSERT INTO target_results (run_id, unit, target, action, outcome, error, error_kind, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := j.db.ExecContext(ctx, query,
		runID,
		report.Unit,
		report.Target.Name,
		string(report.Target.Action),
		string(report.Outcome),
		errMsg,
		errKind,
		startedAt.UTC().UnixMilli(),
		report.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to append result: %w", err)
	}
	return nil
}

// ListResults returns the results of a run in the order they finished.
func (j *Journal) ListResults(ctx context.Context, runID string) ([]*TargetResult, error) {
	query := `
		SELECT id, run_id, unit, target, action, outcome, error, error_kind, started_at, duration_ms
		FROM target_results
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := j.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	results := []*TargetResult{}
	for rows.Next() {
		var (
			res        TargetResult
			errMsg     sql.NullString
			errKind    sql.NullString
			startedAt  int64
			durationMs int64
		)
		err := rows.Scan(
			&res.ID,
			&res.RunID,
			&res.Unit,
			&res.Target,
			&res.Action,
			&res.Outcome,
			&errMsg,
			&errKind,
			&startedAt,
			&durationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if errMsg.Valid {
			res.Error = &errMsg.String
		}
		if errKind.Valid {
			res.ErrorKind = &errKind.String
		}
		res.StartedAt = time.UnixMilli(startedAt).UTC()
		res.Duration = time.Duration(durationMs) * time.Millisecond
		results = append(results, &res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

// Recorder returns an engine.Observer appending results to runID.
func (j *Journal) Recorder(runID string) *Recorder {
	return &Recorder{journal: j, runID: runID}
}

// Recorder appends finished units to one run of the journal.
type Recorder struct {
	journal *Journal
	runID   string
}

// UnitFinished implements engine.Observer. Write failures are logged and
// never fail the unit.
func (r *Recorder) UnitFinished(ctx context.Context, report engine.Report) {
	if err := r.journal.AppendResult(context.WithoutCancel(ctx), r.runID, report); err != nil {
		r.journal.logger.Warn().Err(err).
			Str("run_id", r.runID).
			Str("unit", report.Unit).
			Msg("Failed to record unit outcome")
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run         Run
		units       string
		startedAt   int64
		completedAt sql.NullInt64
		errMsg      sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Catalog, &units, &run.Status, &startedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	if units != "" {
		run.Units = strings.Split(units, ",")
	}
	run.StartedAt = time.UnixMilli(startedAt).UTC()
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		run.CompletedAt = &t
	}
	if errMsg.Valid {
		run.Error = &errMsg.String
	}
	return &run, nil
}
