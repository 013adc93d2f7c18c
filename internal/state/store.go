package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"polytrain/internal/config"
	"polytrain/internal/services"
)

// Run statuses persisted in the runs table.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Step statuses persisted in the step_events table.
const (
	StepStatusCompleted = "completed"
	StepStatusSkipped   = "skipped"
	StepStatusFailed    = "failed"
)

// Run records one pipeline invocation.
type Run struct {
	ID           string
	StartStage   int
	Status       string
	ErrorMessage string
	FailureClass string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// StepEvent records the outcome of a single stage step during a run.
type StepEvent struct {
	RunID      string
	Stage      string
	Step       string
	Status     string
	Detail     string
	Duration   time.Duration
	RecordedAt time.Time
}

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the state database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.StateDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// BeginRun inserts a new running record and returns it.
func (s *Store) BeginRun(ctx context.Context, startStage int) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		StartStage: startStage,
		Status:     RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, start_stage, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID,
		run.StartStage,
		run.Status,
		run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun closes out a run record with the terminal outcome of runErr.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	status := RunStatusCompleted
	message := ""
	class := ""
	if runErr != nil {
		status = RunStatusFailed
		message = runErr.Error()
		class = services.Classify(runErr)
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET status = ?, error_message = ?, failure_class = ?, finished_at = ? WHERE id = ?`,
		status,
		nullableString(message),
		nullableString(class),
		time.Now().UTC().Format(time.RFC3339Nano),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordStep appends a step outcome to the run history.
func (s *Store) RecordStep(ctx context.Context, event StepEvent) error {
	if event.RunID == "" {
		return errors.New("step event requires a run id")
	}
	recorded := event.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO step_events (run_id, stage, step, status, detail, duration_ms, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.RunID,
		event.Stage,
		event.Step,
		event.Status,
		nullableString(event.Detail),
		event.Duration.Milliseconds(),
		recorded.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert step event: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run, or nil when no run exists.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// StepEvents returns the step history of one run in recorded order.
func (s *Store) StepEvents(ctx context.Context, runID string) ([]StepEvent, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT run_id, stage, step, status, detail, duration_ms, recorded_at
         FROM step_events WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("step events: %w", err)
	}
	defer rows.Close()

	var events []StepEvent
	for rows.Next() {
		var (
			event      StepEvent
			detail     sql.NullString
			durationMS int64
			recorded   string
		)
		if err := rows.Scan(&event.RunID, &event.Stage, &event.Step, &event.Status, &detail, &durationMS, &recorded); err != nil {
			return nil, err
		}
		event.Detail = detail.String
		event.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, err := time.Parse(time.RFC3339Nano, recorded); err == nil {
			event.RecordedAt = ts
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

const runColumns = "id, start_stage, status, error_message, failure_class, started_at, finished_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run          Run
		errorMessage sql.NullString
		failureClass sql.NullString
		startedRaw   string
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(&run.ID, &run.StartStage, &run.Status, &errorMessage, &failureClass, &startedRaw, &finishedRaw); err != nil {
		return nil, err
	}
	run.ErrorMessage = errorMessage.String
	run.FailureClass = failureClass.String
	if ts, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
		run.StartedAt = ts
	}
	if finishedRaw.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, finishedRaw.String); err == nil {
			run.FinishedAt = &ts
		}
	}
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
